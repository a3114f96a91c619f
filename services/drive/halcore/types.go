// Package halcore holds the hardware seams the drive service is written
// against. Platform code implements them; tests use fakes.
package halcore

// ---- GPIO abstractions ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// IRQPin extends GPIOPin with interrupts. The handler runs in interrupt
// context and must not block.
type IRQPin interface {
	GPIOPin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// ---- PWM ----

// PWM is one output channel with a logical range of 0..top.
type PWM interface {
	Configure(freqHz uint32, top uint16) error
	Set(level uint16)
}

// Counter exposes a free-running hardware count (e.g. the PWM timer).
type Counter interface {
	Count() uint32
}

// ---- Motors ----

// Channel selects one side of the differential drive.
type Channel uint8

const (
	ChannelA Channel = iota
	ChannelB
)

func (c Channel) String() string {
	if c == ChannelB {
		return "B"
	}
	return "A"
}

// MotorDriver is the register-level actuation surface: one complementary
// direction pair per channel and one duty shared by both channels.
type MotorDriver interface {
	SetDirectionPair(ch Channel, in1, in2 bool)
	SetDuty(duty uint16)
}

// Hardware bundles what the drive service needs from a board.
type Hardware struct {
	Motor      MotorDriver
	FrontLeft  IRQPin
	FrontRight IRQPin
	Rear       GPIOPin
	// Counter is optional; required only for the counter entropy source.
	Counter Counter
}
