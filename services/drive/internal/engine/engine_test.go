package engine

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"wanderbot-go/types"
)

// ---- fakes ----

type recActuator struct {
	mu    sync.Mutex
	calls []string
	state types.DriveState
	duty  uint16
}

func (a *recActuator) rec(name string, st types.DriveState, duty uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if name == "stop" {
		a.calls = append(a.calls, name)
	} else {
		a.calls = append(a.calls, fmt.Sprintf("%s(%d)", name, duty))
	}
	a.state, a.duty = st, duty
}

func (a *recActuator) Stop()              { a.rec("stop", types.Stopped, 0) }
func (a *recActuator) Forward(d uint16)   { a.rec("forward", types.Forward, d) }
func (a *recActuator) Reverse(d uint16)   { a.rec("reverse", types.Reverse, d) }
func (a *recActuator) TurnLeft(d uint16)  { a.rec("left", types.TurningLeft, d) }
func (a *recActuator) TurnRight(d uint16) { a.rec("right", types.TurningRight, d) }

func (a *recActuator) State() types.DriveState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *recActuator) Duty() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.duty
}

func (a *recActuator) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

// script returns scripted percentages; once exhausted it calls done and
// returns 0.
type script struct {
	mu    sync.Mutex
	vals  []uint8
	drawn int
	done  func()
}

func (s *script) NextBit() uint8 { return s.NextPercentage() & 1 }
func (s *script) NextPercentage() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawn < len(s.vals) {
		v := s.vals[s.drawn]
		s.drawn++
		return v
	}
	s.drawn++
	if s.done != nil {
		s.done()
	}
	return 0
}

type fakeSensors struct {
	mu        sync.Mutex
	bell      chan struct{}
	latched   *types.ObstacleEvent
	rearClear bool
}

func newFakeSensors(rearClear bool) *fakeSensors {
	return &fakeSensors{bell: make(chan struct{}, 1), rearClear: rearClear}
}

func (s *fakeSensors) trigger(ev types.ObstacleEvent) {
	s.mu.Lock()
	if s.latched == nil {
		s.latched = &ev
	} else {
		s.latched.FrontLeft = s.latched.FrontLeft || ev.FrontLeft
		s.latched.FrontRight = s.latched.FrontRight || ev.FrontRight
		s.latched.Coalesced++
	}
	s.mu.Unlock()
	s.ring()
}

func (s *fakeSensors) ring() {
	select {
	case s.bell <- struct{}{}:
	default:
	}
}

func (s *fakeSensors) Pending() <-chan struct{} { return s.bell }

func (s *fakeSensors) IsRearClear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rearClear
}

func (s *fakeSensors) Take() (types.ObstacleEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latched == nil {
		return types.ObstacleEvent{}, false
	}
	ev := *s.latched
	s.latched = nil
	return ev, true
}

// planClock fires immediately unless hook returns a channel for that call.
type planClock struct {
	mu    sync.Mutex
	waits []time.Duration
	hook  func(n int, d time.Duration) <-chan time.Time
}

func (c *planClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	n := len(c.waits)
	hook := c.hook
	c.mu.Unlock()
	if hook != nil {
		if ch := hook(n, d); ch != nil {
			return ch
		}
	}
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func (c *planClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

func testConfig() Config {
	return Config{
		Thresholds:  types.Thresholds{Forward: 60, Right: 80},
		ForwardHold: types.Hold{BaseMs: 1500, WindowMs: 100},
		TurnHold:    types.Hold{BaseMs: 300, WindowMs: 60},
		Escape: types.EscapeConfig{
			Policy:     types.ReverseThenTurn,
			Backing:    types.Hold{BaseMs: 400, WindowMs: 80},
			TurnHoldMs: 250,
		},
		HoldPreempt: true,
	}
}

type harness struct {
	e     *Engine
	act   *recActuator
	sens  *fakeSensors
	clk   *planClock
	src   *script
	decs  []types.Decision
	obsts []types.ObstacleEvent
}

func newHarness(cfg Config, rearClear bool, draws ...uint8) *harness {
	h := &harness{
		act:  &recActuator{},
		sens: newFakeSensors(rearClear),
		clk:  &planClock{},
		src:  &script{vals: draws},
	}
	h.e = New(h.act, h.sens, h.src, h.clk, 900, cfg, Hooks{
		OnDecision: func(d types.Decision) { h.decs = append(h.decs, d) },
		OnObstacle: func(ev types.ObstacleEvent) { h.obsts = append(h.obsts, ev) },
	})
	return h
}

func ms(v ...int) []time.Duration {
	out := make([]time.Duration, len(v))
	for i, x := range v {
		out[i] = time.Duration(x) * time.Millisecond
	}
	return out
}

func expectCalls(t *testing.T, got []string, want ...string) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("actuator calls = %v, want %v", got, want)
	}
}

// ---- baseline ----

func TestTickPartitionsDraw(t *testing.T) {
	cases := []struct {
		name     string
		rnd, rnd2 uint8
		call     string
		state    types.DriveState
		hold     int
	}{
		{"forward", 45, 30, "forward(900)", types.Forward, 1500 + 30},
		{"forward upper edge", 59, 99, "forward(900)", types.Forward, 1500 + 99},
		{"right", 75, 70, "right(900)", types.TurningRight, 300 + 70%60},
		{"right lower edge", 60, 0, "right(900)", types.TurningRight, 300},
		{"left", 80, 59, "left(900)", types.TurningLeft, 300 + 59},
		{"left upper edge", 99, 61, "left(900)", types.TurningLeft, 300 + 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(testConfig(), true, tc.rnd, tc.rnd2)
			h.e.Tick(context.Background())

			expectCalls(t, h.act.Calls(), tc.call)
			if got := h.clk.Waits(); !reflect.DeepEqual(got, ms(tc.hold)) {
				t.Fatalf("hold %v, want %dms", got, tc.hold)
			}
			if len(h.decs) != 1 || h.decs[0].Rnd != tc.rnd || h.decs[0].State != tc.state ||
				h.decs[0].Kind != types.DecideBaseline || h.decs[0].HoldMs != uint32(tc.hold) {
				t.Fatalf("decision %+v", h.decs)
			}
		})
	}
}

func TestZeroWindowIsFixedHoldWithoutDraw(t *testing.T) {
	cfg := testConfig()
	cfg.ForwardHold = types.Hold{BaseMs: 1000}
	h := newHarness(cfg, true, 10)
	h.e.Tick(context.Background())
	if h.src.drawn != 1 {
		t.Fatalf("drew %d values, want 1", h.src.drawn)
	}
	if got := h.clk.Waits(); !reflect.DeepEqual(got, ms(1000)) {
		t.Fatalf("hold %v", got)
	}
}

func TestSetSpeedAppliesToNextCommand(t *testing.T) {
	h := newHarness(testConfig(), true, 10, 0)
	h.e.SetSpeed(500)
	h.e.Tick(context.Background())
	expectCalls(t, h.act.Calls(), "forward(500)")
	if h.e.Speed() != 500 {
		t.Fatalf("Speed() = %d", h.e.Speed())
	}
}

// ---- escape ----

func TestEscapeRearBlockedTurnsDirectly(t *testing.T) {
	for _, c := range []struct {
		rnd  uint8
		call string
	}{{20, "left(900)"}, {80, "right(900)"}} {
		h := newHarness(testConfig(), false, c.rnd)
		h.e.OnObstacle(context.Background(), types.ObstacleEvent{FrontLeft: true})

		expectCalls(t, h.act.Calls(), c.call)
		if got := h.clk.Waits(); !reflect.DeepEqual(got, ms(250)) {
			t.Fatalf("waits %v, want only the turn hold", got)
		}
		if len(h.obsts) != 1 || h.obsts[0].RearClear {
			t.Fatalf("obstacle hook %+v", h.obsts)
		}
	}
}

func TestEscapeRearClearReversesThenTurns(t *testing.T) {
	h := newHarness(testConfig(), true, 10, 65)
	h.e.OnObstacle(context.Background(), types.ObstacleEvent{FrontRight: true})

	expectCalls(t, h.act.Calls(), "reverse(900)", "right(900)")
	if got := h.clk.Waits(); !reflect.DeepEqual(got, ms(400+10, 250)) {
		t.Fatalf("waits %v", got)
	}
	kinds := []types.DecisionKind{h.decs[0].Kind, h.decs[1].Kind}
	if kinds[0] != types.DecideBacking || kinds[1] != types.DecideEscapeTurn || h.decs[1].Rnd != 65 {
		t.Fatalf("decisions %+v", h.decs)
	}
}

func TestDirectTurnPolicyIgnoresRear(t *testing.T) {
	cfg := testConfig()
	cfg.Escape.Policy = types.DirectTurn
	h := newHarness(cfg, true, 49)
	h.e.OnObstacle(context.Background(), types.ObstacleEvent{FrontLeft: true})
	expectCalls(t, h.act.Calls(), "left(900)")
}

// An obstacle during a forward hold aborts the hold; the escape runs and the
// loop resumes with a fresh draw instead of the interrupted forward motion.
func TestRunObstacleMidForwardHold(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(testConfig(), true, 45, 30, 10, 20, 70, 5)
	h.src.done = cancel
	inHold := make(chan struct{})
	h.clk.hook = func(n int, _ time.Duration) <-chan time.Time {
		if n == 1 {
			close(inHold)
			return make(chan time.Time) // never fires
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- h.e.Run(ctx) }()

	select {
	case <-inHold:
	case <-time.After(time.Second):
		t.Fatal("engine never reached the forward hold")
	}
	h.sens.trigger(types.ObstacleEvent{FrontLeft: true})

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}

	calls := h.act.Calls()
	expectCalls(t, calls[:4], "forward(900)", "reverse(900)", "left(900)", "right(900)")
	if calls[len(calls)-1] != "stop" {
		t.Fatalf("Run should stop the motors on exit, calls %v", calls)
	}
	if got := h.clk.Waits()[:4]; !reflect.DeepEqual(got, ms(1530, 410, 250, 305)) {
		t.Fatalf("waits %v", got)
	}
	st := h.e.Stats()
	if st.Preempted != 1 || st.Escapes != 1 {
		t.Fatalf("stats %+v", st)
	}
}

func TestHoldWithoutPreemptRunsToEnd(t *testing.T) {
	cfg := testConfig()
	cfg.HoldPreempt = false
	h := newHarness(cfg, true, 45, 30)
	h.clk.hook = func(n int, _ time.Duration) <-chan time.Time {
		if n == 1 {
			h.sens.trigger(types.ObstacleEvent{FrontLeft: true})
		}
		return nil
	}
	h.e.Tick(context.Background())

	if h.e.stashed != nil || h.e.Stats().Preempted != 0 {
		t.Fatal("hold must not be preempted")
	}
	if _, ok := h.e.next(); !ok {
		t.Fatal("obstacle should still be latched after the hold")
	}
}

func TestStaleDoorbellDoesNotPreempt(t *testing.T) {
	h := newHarness(testConfig(), true, 45, 30)
	timer := make(chan time.Time, 1)
	h.clk.hook = func(n int, _ time.Duration) <-chan time.Time {
		h.sens.ring() // rung with nothing latched
		go func() {
			time.Sleep(5 * time.Millisecond)
			timer <- time.Time{}
		}()
		return timer
	}
	h.e.Tick(context.Background())
	if h.e.stashed != nil || h.e.Stats().Preempted != 0 {
		t.Fatal("stale doorbell must be ignored")
	}
}

// Edges arriving during an escape do not interleave with it; they are handled
// as a new escape once the first completes.
func TestEscapeIsNotInterleaved(t *testing.T) {
	h := newHarness(testConfig(), true, 10, 20, 30, 90)
	h.clk.hook = func(n int, _ time.Duration) <-chan time.Time {
		if n == 1 { // inside the first backing hold
			h.sens.trigger(types.ObstacleEvent{FrontRight: true})
		}
		return nil
	}
	ctx := context.Background()
	h.e.OnObstacle(ctx, types.ObstacleEvent{FrontLeft: true})
	expectCalls(t, h.act.Calls(), "reverse(900)", "left(900)")

	ev, ok := h.e.next()
	if !ok || !ev.FrontRight {
		t.Fatalf("second edge should be pending as a fresh event, got %+v %v", ev, ok)
	}
	h.e.OnObstacle(ctx, ev)
	expectCalls(t, h.act.Calls(), "reverse(900)", "left(900)", "reverse(900)", "right(900)")
}

func TestStreakAndEscalation(t *testing.T) {
	cfg := testConfig()
	cfg.Escape.Backing = types.Hold{BaseMs: 400}
	cfg.Escape.TurnHoldMs = 0
	cfg.Escape.EscalateWindowMs = 1000
	cfg.Escape.EscalateFactor = 2
	cfg.Escape.EscalateMax = 4
	cfg.Escape.WarnAfter = 3
	h := newHarness(cfg, true, 1, 1, 1, 1, 1)

	now := time.Unix(1000, 0)
	h.e.now = func() time.Time { return now }
	for i := 0; i < 4; i++ {
		h.e.OnObstacle(context.Background(), types.ObstacleEvent{FrontLeft: true})
		now = now.Add(500 * time.Millisecond)
	}
	if got := h.clk.Waits(); !reflect.DeepEqual(got, ms(400, 800, 1600, 1600)) {
		t.Fatalf("backing holds %v", got)
	}
	if h.e.Stats().Consecutive != 4 {
		t.Fatalf("streak %d", h.e.Stats().Consecutive)
	}

	now = now.Add(5 * time.Second) // quiet period resets the streak
	h.e.OnObstacle(context.Background(), types.ObstacleEvent{FrontLeft: true})
	if h.e.Stats().Consecutive != 1 {
		t.Fatalf("streak after quiet period %d", h.e.Stats().Consecutive)
	}
}

func TestEscalationDisabledByDefault(t *testing.T) {
	h := newHarness(testConfig(), true)
	for _, s := range []uint32{1, 2, 10} {
		if got := h.e.escalation(s); got != 1 {
			t.Fatalf("escalation(%d) = %d, want 1", s, got)
		}
	}
}

func TestConfigFrom(t *testing.T) {
	dc := types.DefaultDriveConfig()
	c := ConfigFrom(dc)
	if c.Thresholds != dc.Thresholds || c.Escape != dc.Escape || !c.HoldPreempt {
		t.Fatalf("ConfigFrom lost fields: %+v", c)
	}
}
