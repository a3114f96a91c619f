// Package actuator turns abstract drive commands into direction pairs and a
// PWM duty on a halcore.MotorDriver.
package actuator

import (
	"sync"
	"time"

	"wanderbot-go/services/drive/halcore"
	"wanderbot-go/types"
	"wanderbot-go/x/mathx"
	"wanderbot-go/x/ramp"
	"wanderbot-go/x/timex"
)

// Observer receives every transition after it has been applied.
type Observer func(types.Command)

type Config struct {
	Period uint16
	// Settle is the mandatory zero-duty wait before any direction change.
	Settle time.Duration
	// RampSteps > 0 soft-starts the duty over RampDur.
	RampSteps uint16
	RampDur   time.Duration
}

type direction bool

const (
	fwd direction = true
	rev direction = false
)

// pair returns {in1, in2}; the two flags always differ.
func (d direction) pair() (bool, bool) {
	return bool(d), !bool(d)
}

// Actuator is the only writer of DriveState and duty.
type Actuator struct {
	cmdMu sync.Mutex // serialises whole commands (stop, settle, directions, duty)

	mu    sync.Mutex // guards the fields below
	state types.DriveState
	duty  uint16
	seq   uint32

	drv halcore.MotorDriver
	clk timex.Clock
	cfg Config
	obs Observer
}

// New puts both channels in the forward pairing at zero duty, state Stopped.
func New(drv halcore.MotorDriver, clk timex.Clock, cfg Config, obs Observer) *Actuator {
	if clk == nil {
		clk = timex.Real{}
	}
	a := &Actuator{drv: drv, clk: clk, cfg: cfg, obs: obs, state: types.Stopped}
	drv.SetDuty(0)
	a.setPairs(fwd, fwd)
	return a
}

func (a *Actuator) State() types.DriveState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Actuator) Duty() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.duty
}

// Stop zeroes the duty and waits out the settle delay.
func (a *Actuator) Stop() {
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()
	a.stop()
}

func (a *Actuator) Forward(duty uint16)   { a.drive(types.Forward, fwd, fwd, duty) }
func (a *Actuator) Reverse(duty uint16)   { a.drive(types.Reverse, rev, rev, duty) }
func (a *Actuator) TurnLeft(duty uint16)  { a.drive(types.TurningLeft, fwd, rev, duty) }
func (a *Actuator) TurnRight(duty uint16) { a.drive(types.TurningRight, rev, fwd, duty) }

// caller holds cmdMu
func (a *Actuator) stop() {
	a.mu.Lock()
	a.drv.SetDuty(0)
	a.duty = 0
	a.state = types.Stopped
	cmd := a.record()
	a.mu.Unlock()

	a.emit(cmd)
	timex.Wait(a.clk, a.cfg.Settle)
}

func (a *Actuator) drive(state types.DriveState, chA, chB direction, duty uint16) {
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()

	a.stop()
	duty = mathx.Clamp(duty, 0, a.cfg.Period)

	a.mu.Lock()
	a.setPairs(chA, chB)
	a.state = state
	if a.cfg.RampSteps == 0 {
		a.drv.SetDuty(duty)
		a.duty = duty
	}
	cmd := a.record()
	cmd.Duty = duty
	a.mu.Unlock()

	if a.cfg.RampSteps > 0 {
		tick := func(d time.Duration) bool { timex.Wait(a.clk, d); return true }
		ramp.Linear(0, duty, a.cfg.Period, a.cfg.RampDur, a.cfg.RampSteps, tick, func(lvl uint16) {
			a.mu.Lock()
			a.drv.SetDuty(lvl)
			a.duty = lvl
			a.mu.Unlock()
		})
	}
	a.emit(cmd)
}

// caller holds mu
func (a *Actuator) setPairs(chA, chB direction) {
	in1, in2 := chA.pair()
	a.drv.SetDirectionPair(halcore.ChannelA, in1, in2)
	in1, in2 = chB.pair()
	a.drv.SetDirectionPair(halcore.ChannelB, in1, in2)
}

// caller holds mu
func (a *Actuator) record() types.Command {
	a.seq++
	return types.Command{Seq: a.seq, State: a.state, Duty: a.duty, TS: timex.NowMs()}
}

func (a *Actuator) emit(c types.Command) {
	if a.obs != nil {
		a.obs(c)
	}
}
