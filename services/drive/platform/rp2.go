//go:build rp2040

package platform

import (
	"machine"

	"wanderbot-go/errcode"
	"wanderbot-go/services/drive/halcore"
	"wanderbot-go/services/drive/internal/motor"
	"wanderbot-go/types"
	"wanderbot-go/x/timex"
)

// -----------------------------------------------------------------------------
// GPIO
// -----------------------------------------------------------------------------

type rp2Pin struct {
	p machine.Pin
	n int
}

func newPin(n int) *rp2Pin { return &rp2Pin{p: machine.Pin(n), n: n} }

func (r *rp2Pin) Number() int { return r.n }

func (r *rp2Pin) ConfigureInput(pull halcore.Pull) error {
	var mode machine.PinMode
	switch pull {
	case halcore.PullUp:
		mode = machine.PinInputPullup
	case halcore.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }

func (r *rp2Pin) SetIRQ(edge halcore.Edge, handler func()) error {
	return r.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func toPinChange(e halcore.Edge) machine.PinChange {
	switch e {
	case halcore.EdgeRising:
		return machine.PinRising
	case halcore.EdgeFalling:
		return machine.PinFalling
	case halcore.EdgeBoth:
		return machine.PinToggle
	default:
		var zero machine.PinChange
		return zero
	}
}

// -----------------------------------------------------------------------------
// PWM
// -----------------------------------------------------------------------------

// Local interface to avoid depending on an unexported concrete type in machine.
type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Counter() uint32
	Set(channel uint8, value uint32)
}

func pwmGroupBySlice(slice uint8) pwmCtrl {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// rp2PWM is one slice channel scaled to a logical 0..top range. It also
// serves as the free-running counter for the counter entropy source.
type rp2PWM struct {
	pin   machine.Pin
	ctrl  pwmCtrl
	ch    uint8
	top   uint16
	hwTop uint32
}

func newPWM(n int) (*rp2PWM, error) {
	pin := machine.Pin(n)
	slice, err := machine.PWMPeripheral(pin)
	if err != nil {
		return nil, errcode.Wrap(errcode.UnknownPin, "platform", "pin has no pwm", err)
	}
	return &rp2PWM{pin: pin, ctrl: pwmGroupBySlice(slice)}, nil
}

func (p *rp2PWM) Configure(freqHz uint32, top uint16) error {
	if err := p.ctrl.Configure(machine.PWMConfig{Period: timex.PeriodFromHz(freqHz)}); err != nil {
		return err
	}
	ch, err := p.ctrl.Channel(p.pin)
	if err != nil {
		return err
	}
	p.ch, p.top, p.hwTop = ch, max(top, 1), p.ctrl.Top()
	return nil
}

func (p *rp2PWM) Set(level uint16) {
	if p.hwTop == 0 {
		return
	}
	level = min(level, p.top)
	p.ctrl.Set(p.ch, uint32(level)*p.hwTop/uint32(p.top))
}

func (p *rp2PWM) Count() uint32 { return p.ctrl.Counter() }

// -----------------------------------------------------------------------------
// Board
// -----------------------------------------------------------------------------

// DefaultHardware claims the pins in cfg.Pins on the RP2040.
func DefaultHardware(cfg types.DriveConfig) (halcore.Hardware, error) {
	pm := cfg.Pins
	pwm, err := newPWM(pm.PWM)
	if err != nil {
		return halcore.Hardware{}, err
	}
	drv, err := motor.NewPinDriver(motor.Params{
		A:         [2]halcore.GPIOPin{newPin(pm.MotorA[0]), newPin(pm.MotorA[1])},
		B:         [2]halcore.GPIOPin{newPin(pm.MotorB[0]), newPin(pm.MotorB[1])},
		PWM:       pwm,
		FreqHz:    cfg.FreqHz,
		Top:       cfg.Period,
		ActiveLow: pm.PWMActiveLow,
	})
	if err != nil {
		return halcore.Hardware{}, err
	}
	return halcore.Hardware{
		Motor:      drv,
		FrontLeft:  newPin(pm.FrontLeft),
		FrontRight: newPin(pm.FrontRight),
		Rear:       newPin(pm.Rear),
		Counter:    pwm,
	}, nil
}
