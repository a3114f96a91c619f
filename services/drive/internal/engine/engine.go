// Package engine is the drive decision state machine: a baseline random walk
// interrupted by obstacle escapes.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"wanderbot-go/services/drive/internal/prng"
	"wanderbot-go/types"
	"wanderbot-go/x/timex"
)

// Actuator is the motion surface the engine commands.
type Actuator interface {
	Stop()
	Forward(duty uint16)
	Reverse(duty uint16)
	TurnLeft(duty uint16)
	TurnRight(duty uint16)
	State() types.DriveState
	Duty() uint16
}

// Sensors is the obstacle side of the engine.
type Sensors interface {
	// Pending is rung when an edge has been latched; it may be stale.
	Pending() <-chan struct{}
	// Take consumes latched edges; false when nothing is latched.
	Take() (types.ObstacleEvent, bool)
	IsRearClear() bool
}

type Config struct {
	Thresholds  types.Thresholds
	ForwardHold types.Hold
	TurnHold    types.Hold
	Escape      types.EscapeConfig
	// HoldPreempt lets an obstacle cut a baseline hold short. When false a
	// hold always runs to the end before the obstacle is handled.
	HoldPreempt bool
}

// ConfigFrom picks the engine fields out of a drive config.
func ConfigFrom(c types.DriveConfig) Config {
	return Config{
		Thresholds:  c.Thresholds,
		ForwardHold: c.ForwardHold,
		TurnHold:    c.TurnHold,
		Escape:      c.Escape,
		HoldPreempt: c.HoldPreempt,
	}
}

// Hooks are optional observers, called from the engine goroutine.
type Hooks struct {
	OnDecision func(types.Decision)
	OnObstacle func(types.ObstacleEvent)
}

type Engine struct {
	act   Actuator
	sens  Sensors
	rnd   prng.Source
	clk   timex.Clock
	cfg   Config
	hooks Hooks
	now   func() time.Time

	speed atomic.Uint32

	ticks     atomic.Uint32
	escapes   atomic.Uint32
	preempted atomic.Uint32
	streak    atomic.Uint32

	// engine goroutine only
	stashed    *types.ObstacleEvent
	lastEscape time.Time
}

func New(act Actuator, sens Sensors, rnd prng.Source, clk timex.Clock, speed uint16, cfg Config, hooks Hooks) *Engine {
	if clk == nil {
		clk = timex.Real{}
	}
	e := &Engine{act: act, sens: sens, rnd: rnd, clk: clk, cfg: cfg, hooks: hooks, now: time.Now}
	e.speed.Store(uint32(speed))
	return e
}

// SetSpeed replaces SpeedSetting; the caller keeps it within the PWM period.
// It takes effect at the next command.
func (e *Engine) SetSpeed(duty uint16) { e.speed.Store(uint32(duty)) }

func (e *Engine) Speed() uint16 { return uint16(e.speed.Load()) }

// Run is the scheduler loop. Obstacles are drained at every decision
// boundary; otherwise a baseline tick runs. It stops the motors and returns
// when ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	println("Info: [drive] engine running")
	for {
		if err := ctx.Err(); err != nil {
			e.act.Stop()
			println("Info: [drive] engine stopped")
			return err
		}
		if ev, ok := e.next(); ok {
			e.OnObstacle(ctx, ev)
			continue
		}
		e.Tick(ctx)
	}
}

func (e *Engine) next() (types.ObstacleEvent, bool) {
	if ev := e.stashed; ev != nil {
		e.stashed = nil
		return *ev, true
	}
	return e.sens.Take()
}

// Tick makes one baseline decision and holds it. The hold may be cut short by
// an obstacle (see Config.HoldPreempt); the interrupted action is dropped.
func (e *Engine) Tick(ctx context.Context) {
	e.ticks.Add(1)
	rnd := e.rnd.NextPercentage()
	speed := e.Speed()
	th := e.cfg.Thresholds

	var st types.DriveState
	var hold types.Hold
	switch {
	case rnd < th.Forward:
		e.act.Forward(speed)
		st, hold = types.Forward, e.cfg.ForwardHold
	case rnd < th.Right:
		e.act.TurnRight(speed)
		st, hold = types.TurningRight, e.cfg.TurnHold
	default:
		e.act.TurnLeft(speed)
		st, hold = types.TurningLeft, e.cfg.TurnHold
	}

	ms := e.holdMs(hold, 1)
	e.decided(types.Decision{Kind: types.DecideBaseline, Rnd: rnd, State: st, HoldMs: ms})
	e.wait(ctx, timex.Ms(ms), e.cfg.HoldPreempt)
}

// OnObstacle runs the escape manoeuvre to completion. Its holds ignore new
// edges; those stay latched and are handled as a fresh event afterwards.
func (e *Engine) OnObstacle(ctx context.Context, ev types.ObstacleEvent) {
	ev.RearClear = e.sens.IsRearClear()
	e.escapes.Add(1)
	streak := e.bumpStreak()
	if e.hooks.OnObstacle != nil {
		e.hooks.OnObstacle(ev)
	}
	println("Info: [drive] obstacle fl=", ev.FrontLeft, "fr=", ev.FrontRight, "rear_clear=", ev.RearClear)

	speed := e.Speed()
	if e.cfg.Escape.Policy != types.DirectTurn && ev.RearClear {
		e.act.Reverse(speed)
		ms := e.holdMs(e.cfg.Escape.Backing, e.escalation(streak))
		e.decided(types.Decision{Kind: types.DecideBacking, State: types.Reverse, HoldMs: ms})
		e.wait(ctx, timex.Ms(ms), false)
	}

	rnd := e.rnd.NextPercentage()
	st := types.TurningRight
	if rnd < 50 {
		st = types.TurningLeft
		e.act.TurnLeft(speed)
	} else {
		e.act.TurnRight(speed)
	}
	ms := e.cfg.Escape.TurnHoldMs
	e.decided(types.Decision{Kind: types.DecideEscapeTurn, Rnd: rnd, State: st, HoldMs: ms})
	e.wait(ctx, timex.Ms(ms), false)

	e.lastEscape = e.now()
}

// holdMs draws base + pct % window; a zero window is a fixed hold, no draw.
func (e *Engine) holdMs(h types.Hold, mult uint32) uint32 {
	ms := h.BaseMs
	if h.WindowMs > 0 {
		ms += uint32(e.rnd.NextPercentage()) % h.WindowMs
	}
	return ms * mult
}

// wait blocks for d. With preempt set, a latched obstacle ends the wait early
// and is stashed for Run; a stale doorbell is ignored.
func (e *Engine) wait(ctx context.Context, d time.Duration, preempt bool) {
	if d <= 0 {
		return
	}
	var bell <-chan struct{}
	if preempt {
		bell = e.sens.Pending()
	}
	after := e.clk.After(d)
	for {
		select {
		case <-ctx.Done():
			return
		case <-after:
			return
		case <-bell:
			if ev, ok := e.sens.Take(); ok {
				e.stashed = &ev
				e.preempted.Add(1)
				return
			}
		}
	}
}

func (e *Engine) bumpStreak() uint32 {
	win := timex.Ms(e.cfg.Escape.EscalateWindowMs)
	n := uint32(1)
	if !e.lastEscape.IsZero() && e.now().Sub(e.lastEscape) <= win {
		n = e.streak.Load() + 1
	}
	e.streak.Store(n)
	if w := uint32(e.cfg.Escape.WarnAfter); w > 0 && n >= w && n%w == 0 {
		println("Warn: [drive] escape streak", n, "- possible oscillation")
	}
	return n
}

// escalation is min(factor^(streak-1), max); factor <= 1 disables it.
func (e *Engine) escalation(streak uint32) uint32 {
	f, lim := uint32(e.cfg.Escape.EscalateFactor), uint32(e.cfg.Escape.EscalateMax)
	if f <= 1 || streak <= 1 {
		return 1
	}
	m := uint32(1)
	for i := uint32(1); i < streak && m < lim; i++ {
		m *= f
	}
	return min(m, max(lim, 1))
}

func (e *Engine) decided(d types.Decision) {
	if e.hooks.OnDecision != nil {
		d.TS = timex.NowMs()
		e.hooks.OnDecision(d)
	}
}

// Stats snapshots the engine counters. Coalesced is left to the caller.
func (e *Engine) Stats() types.DriveStats {
	return types.DriveStats{
		State:       e.act.State(),
		Duty:        e.act.Duty(),
		Speed:       e.Speed(),
		Ticks:       e.ticks.Load(),
		Escapes:     e.escapes.Load(),
		Preempted:   e.preempted.Load(),
		Consecutive: e.streak.Load(),
		TS:          timex.NowMs(),
	}
}
