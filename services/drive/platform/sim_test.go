//go:build !rp2040

package platform

import (
	"testing"

	"wanderbot-go/services/drive/halcore"
	"wanderbot-go/types"
)

func TestSimPinFiresOnMatchingEdge(t *testing.T) {
	p := NewSimPin(7)
	_ = p.ConfigureInput(halcore.PullUp)
	if !p.Get() {
		t.Fatal("pull-up input should idle high")
	}
	var fired []bool
	_ = p.SetIRQ(halcore.EdgeFalling, func() { fired = append(fired, p.Get()) })

	p.Drive(false) // falling
	p.Drive(false) // no change
	p.Drive(true)  // rising, not selected
	p.Drive(false) // falling
	if len(fired) != 2 || fired[0] || fired[1] {
		t.Fatalf("handler calls %v", fired)
	}

	_ = p.ClearIRQ()
	p.Drive(true)
	p.Drive(false)
	if len(fired) != 2 {
		t.Fatal("handler ran after ClearIRQ")
	}
}

func TestSimPinDrivenBeforeConfigureKeepsLevel(t *testing.T) {
	p := NewSimPin(8)
	p.Drive(false)
	_ = p.ConfigureInput(halcore.PullUp)
	if p.Get() {
		t.Fatal("externally driven level must win over the pull")
	}
}

func TestSimHardwareWiresPinDriver(t *testing.T) {
	cfg := types.DefaultDriveConfig()
	hw, b, err := SimHardware(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if b.MotorA[0].Number() != cfg.Pins.MotorA[0] || b.Rear.Number() != cfg.Pins.Rear {
		t.Fatal("pin numbers not taken from the pin map")
	}
	// Forward pairing, zero duty after construction.
	if !b.MotorA[0].Get() || b.MotorA[1].Get() || b.PWM.Level() != 0 {
		t.Fatal("unexpected initial motor outputs")
	}

	hw.Motor.SetDirectionPair(halcore.ChannelB, false, true)
	hw.Motor.SetDuty(cfg.Speed)
	if b.MotorB[0].Get() || !b.MotorB[1].Get() {
		t.Fatal("channel B pair not applied")
	}
	if b.PWM.Level() != cfg.Speed {
		t.Fatalf("pwm level %d, want %d", b.PWM.Level(), cfg.Speed)
	}
	if c := hw.Counter.Count(); c > uint32(cfg.Period) {
		t.Fatalf("counter %d outside 0..%d", c, cfg.Period)
	}
}

func TestSimHardwareActiveLow(t *testing.T) {
	cfg := types.DefaultDriveConfig()
	cfg.Pins.PWMActiveLow = true
	hw, b, err := SimHardware(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if b.PWM.Level() != cfg.Period {
		t.Fatalf("idle active-low level %d, want %d", b.PWM.Level(), cfg.Period)
	}
	hw.Motor.SetDuty(cfg.Period)
	if b.PWM.Level() != 0 {
		t.Fatal("full duty should drive the pin to 0 when active-low")
	}
}
