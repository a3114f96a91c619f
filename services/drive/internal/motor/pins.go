package motor

import (
	"wanderbot-go/errcode"
	"wanderbot-go/services/drive/halcore"
)

// PinDriver drives two H-bridge channels from four GPIO outputs and one PWM
// enable shared by both channels.
type PinDriver struct {
	dir       [2][2]halcore.GPIOPin // [channel]{in1, in2}
	pwm       halcore.PWM
	top       uint16
	activeLow bool
}

// Params for NewPinDriver. A and B are {in1, in2}.
type Params struct {
	A, B      [2]halcore.GPIOPin
	PWM       halcore.PWM
	FreqHz    uint32
	Top       uint16
	ActiveLow bool
}

// NewPinDriver configures outputs with both channels in the forward pairing
// and the enable at zero duty.
func NewPinDriver(p Params) (*PinDriver, error) {
	if p.PWM == nil || p.Top == 0 {
		return nil, errcode.Wrap(errcode.InvalidParams, "motor", "pwm and top required", nil)
	}
	for _, pair := range [][2]halcore.GPIOPin{p.A, p.B} {
		if pair[0] == nil || pair[1] == nil {
			return nil, errcode.Wrap(errcode.UnknownPin, "motor", "direction pin missing", nil)
		}
	}
	d := &PinDriver{
		dir:       [2][2]halcore.GPIOPin{p.A, p.B},
		pwm:       p.PWM,
		top:       p.Top,
		activeLow: p.ActiveLow,
	}
	if err := d.pwm.Configure(p.FreqHz, p.Top); err != nil {
		return nil, errcode.Wrap(errcode.Error, "motor", "pwm configure", err)
	}
	d.pwm.Set(d.toPhys(0))
	for _, pair := range d.dir {
		if err := pair[0].ConfigureOutput(true); err != nil {
			return nil, err
		}
		if err := pair[1].ConfigureOutput(false); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// --- logical<->physical mapping (invert if ActiveLow) ---

func (d *PinDriver) clamp(lvl uint16) uint16 {
	if lvl > d.top {
		return d.top
	}
	return lvl
}

func (d *PinDriver) toPhys(logical uint16) uint16 {
	l := d.clamp(logical)
	if !d.activeLow {
		return l
	}
	return d.top - l
}

// SetDirectionPair writes both pins of a channel, in2 first. The writes are
// not atomic: a forward/reverse flip passes through (true, true), which is
// brake on the H-bridge. That state is harmless only because callers hold
// duty at zero while changing direction, so neither state is driven.
func (d *PinDriver) SetDirectionPair(ch halcore.Channel, in1, in2 bool) {
	pair := d.dir[ch&1]
	pair[1].Set(in2)
	pair[0].Set(in1)
}

func (d *PinDriver) SetDuty(duty uint16) { d.pwm.Set(d.toPhys(duty)) }
