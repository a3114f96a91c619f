package types

import "wanderbot-go/errcode"

// Configuration is supplied per device (see services/config) and published
// section by section on "config/<section>".

type Config struct {
	Heartbeat HeartbeatConfig `yaml:"heartbeat" json:"heartbeat"`
	Drive     DriveConfig     `yaml:"drive" json:"drive"`
	Console   ConsoleConfig   `yaml:"console" json:"console"`
}

type HeartbeatConfig struct {
	IntervalS int `yaml:"interval" json:"interval"`
}

type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	UART    string `yaml:"uart" json:"uart"` // "uart0" | "uart1"
	Baud    uint32 `yaml:"baud" json:"baud"`
}

// Hold is a randomised wait: BaseMs + pct % WindowMs, pct being a fresh
// percentage draw, so windows above 100 add nothing. WindowMs == 0 means a
// fixed BaseMs hold with no random draw.
type Hold struct {
	BaseMs   uint32 `yaml:"base_ms" json:"base_ms"`
	WindowMs uint32 `yaml:"window_ms" json:"window_ms"`
}

// Thresholds partition a percentage draw: rnd < Forward drives forward,
// rnd < Right turns right, anything else turns left.
type Thresholds struct {
	Forward uint8 `yaml:"forward" json:"forward"`
	Right   uint8 `yaml:"right" json:"right"`
}

type EscapePolicy string

const (
	ReverseThenTurn EscapePolicy = "reverse_then_turn"
	DirectTurn      EscapePolicy = "direct_turn"
)

type ReseedMode string

const (
	ReseedFree      ReseedMode = "free"
	ReseedShrinking ReseedMode = "shrinking"
)

type EntropySource string

const (
	EntropyLFSR    EntropySource = "lfsr"
	EntropyCounter EntropySource = "counter"
)

type SensorMode string

const (
	SensorIRQ  SensorMode = "irq"
	SensorPoll SensorMode = "poll"
)

type EscapeConfig struct {
	Policy     EscapePolicy `yaml:"policy" json:"policy"`
	Backing    Hold         `yaml:"backing" json:"backing"`
	TurnHoldMs uint32       `yaml:"turn_hold_ms" json:"turn_hold_ms"`

	// Repeated escapes closer together than EscalateWindowMs count as one
	// streak. WarnAfter logs the streak; EscalateFactor > 1 stretches the
	// backing hold by min(EscalateFactor^(streak-1), EscalateMax).
	EscalateWindowMs uint32 `yaml:"escalate_window_ms" json:"escalate_window_ms"`
	WarnAfter        uint8  `yaml:"warn_after" json:"warn_after"`
	EscalateFactor   uint8  `yaml:"escalate_factor" json:"escalate_factor"`
	EscalateMax      uint8  `yaml:"escalate_max" json:"escalate_max"`
}

// PinMap names the board pins. MotorA/MotorB are {in1, in2} direction pairs.
type PinMap struct {
	MotorA       [2]int `yaml:"motor_a" json:"motor_a"`
	MotorB       [2]int `yaml:"motor_b" json:"motor_b"`
	PWM          int    `yaml:"pwm" json:"pwm"`
	PWMActiveLow bool   `yaml:"pwm_active_low" json:"pwm_active_low"`
	FrontLeft    int    `yaml:"front_left" json:"front_left"`
	FrontRight   int    `yaml:"front_right" json:"front_right"`
	Rear         int    `yaml:"rear" json:"rear"`
}

type DriveConfig struct {
	Period uint16 `yaml:"period" json:"period"` // PWM top; duty is 0..Period
	FreqHz uint32 `yaml:"freq_hz" json:"freq_hz"`
	Speed  uint16 `yaml:"speed" json:"speed"`

	Thresholds  Thresholds   `yaml:"thresholds" json:"thresholds"`
	ForwardHold Hold         `yaml:"forward_hold" json:"forward_hold"`
	TurnHold    Hold         `yaml:"turn_hold" json:"turn_hold"`
	Escape      EscapeConfig `yaml:"escape" json:"escape"`
	HoldPreempt bool         `yaml:"hold_preempt" json:"hold_preempt"`

	SettleMs  uint16 `yaml:"settle_ms" json:"settle_ms"`
	RampSteps uint16 `yaml:"ramp_steps" json:"ramp_steps"`
	RampMs    uint16 `yaml:"ramp_ms" json:"ramp_ms"`

	Seed    uint16        `yaml:"seed" json:"seed"`
	Reseed  ReseedMode    `yaml:"reseed" json:"reseed"`
	Entropy EntropySource `yaml:"entropy" json:"entropy"`

	SensorMode SensorMode `yaml:"sensor_mode" json:"sensor_mode"`
	PollMs     uint16     `yaml:"poll_ms" json:"poll_ms"`
	DebounceMs uint16     `yaml:"debounce_ms" json:"debounce_ms"`

	Pins PinMap `yaml:"pins" json:"pins"`
}

// DefaultDriveConfig matches the stock firmware: 1000-count period, duty
// 900, 60/20/20 forward/right/left split.
func DefaultDriveConfig() DriveConfig {
	return DriveConfig{
		Period:      1000,
		FreqHz:      1000,
		Speed:       900,
		Thresholds:  Thresholds{Forward: 60, Right: 80},
		ForwardHold: Hold{BaseMs: 1500, WindowMs: 100},
		TurnHold:    Hold{BaseMs: 300, WindowMs: 60},
		Escape: EscapeConfig{
			Policy:           ReverseThenTurn,
			Backing:          Hold{BaseMs: 400, WindowMs: 80},
			TurnHoldMs:       250,
			EscalateWindowMs: 1000,
			WarnAfter:        5,
			EscalateFactor:   1,
			EscalateMax:      4,
		},
		HoldPreempt: true,
		SettleMs:    30,
		Seed:        0xACE1,
		Reseed:      ReseedFree,
		Entropy:     EntropyLFSR,
		SensorMode:  SensorIRQ,
		PollMs:      5,
		Pins: PinMap{
			MotorA:     [2]int{2, 3},
			MotorB:     [2]int{4, 5},
			PWM:        6,
			FrontLeft:  7,
			FrontRight: 8,
			Rear:       9,
		},
	}
}

func DefaultConfig() Config {
	return Config{
		Heartbeat: HeartbeatConfig{IntervalS: 2},
		Drive:     DefaultDriveConfig(),
		Console:   ConsoleConfig{UART: "uart0", Baud: 115200},
	}
}

func invalid(msg string) error {
	return errcode.Wrap(errcode.InvalidConfig, "drive", msg, nil)
}

// Validate checks the caller obligations the core relies on.
func (c DriveConfig) Validate() error {
	switch {
	case c.Period == 0:
		return invalid("period must be > 0")
	case c.Speed > c.Period:
		return invalid("speed exceeds period")
	case c.Thresholds.Forward > c.Thresholds.Right || c.Thresholds.Right > 100:
		return invalid("thresholds must satisfy forward <= right <= 100")
	case c.Escape.Policy != ReverseThenTurn && c.Escape.Policy != DirectTurn:
		return invalid("unknown escape policy " + string(c.Escape.Policy))
	case c.Reseed != ReseedFree && c.Reseed != ReseedShrinking:
		return invalid("unknown reseed mode " + string(c.Reseed))
	case c.Entropy != EntropyLFSR && c.Entropy != EntropyCounter:
		return invalid("unknown entropy source " + string(c.Entropy))
	case c.SensorMode != SensorIRQ && c.SensorMode != SensorPoll:
		return invalid("unknown sensor mode " + string(c.SensorMode))
	case c.SensorMode == SensorPoll && c.PollMs == 0:
		return invalid("poll_ms must be > 0 in poll mode")
	case c.RampSteps > 0 && c.RampMs == 0:
		return invalid("ramp_ms must be > 0 when ramp_steps is set")
	}
	return nil
}
