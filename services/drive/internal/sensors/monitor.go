// Package sensors watches the three active-low proximity sensors and turns
// front-sensor falling edges into single-slot obstacle events.
package sensors

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tinygo.org/x/drivers"

	"wanderbot-go/errcode"
	"wanderbot-go/services/drive/halcore"
	"wanderbot-go/types"
	"wanderbot-go/x/timex"
)

var _ drivers.Sensor = (*Monitor)(nil)

type Config struct {
	Mode     types.SensorMode
	Poll     time.Duration // poll mode sampling interval
	Debounce time.Duration // 0 = none
}

const (
	frontLeft = iota
	frontRight
)

// line is the per-sensor state touched from interrupt context; atomics only.
type line struct {
	pin      halcore.IRQPin
	armed    atomic.Bool // seen clear (high) since the last accepted edge
	latched  atomic.Bool // edge flag, cleared by Take
	lastEdge atomic.Int64
}

type Monitor struct {
	lines [2]*line
	rear  halcore.GPIOPin
	cfg   Config

	// Written by ISR; MUST NOT block the ISR:
	bell    chan struct{}
	pending atomic.Uint32 // edges since last Take

	edges     atomic.Uint32
	coalesced atomic.Uint32

	mu   sync.Mutex
	last types.SensorSample

	now func() int64 // ns; debounce clock
}

func New(fl, fr halcore.IRQPin, rear halcore.GPIOPin, cfg Config) (*Monitor, error) {
	if fl == nil || fr == nil || rear == nil {
		return nil, errcode.Wrap(errcode.UnknownPin, "sensors", "front and rear pins required", nil)
	}
	if cfg.Mode == types.SensorPoll && cfg.Poll <= 0 {
		return nil, errcode.Wrap(errcode.InvalidParams, "sensors", "poll interval required", nil)
	}
	m := &Monitor{
		lines: [2]*line{{pin: fl}, {pin: fr}},
		rear:  rear,
		cfg:   cfg,
		bell:  make(chan struct{}, 1),
		now:   func() int64 { return time.Now().UnixNano() },
	}
	for _, p := range []halcore.GPIOPin{fl, fr, rear} {
		if err := p.ConfigureInput(halcore.PullUp); err != nil {
			return nil, err
		}
	}
	// A line that starts low (obstacle present at boot) is not armed until
	// it reads clear once.
	for _, l := range m.lines {
		l.armed.Store(l.pin.Get())
	}
	return m, nil
}

// Start hooks the interrupts (or the poll worker) until ctx is done.
func (m *Monitor) Start(ctx context.Context) error {
	if m.cfg.Mode == types.SensorPoll {
		go m.pollLoop(ctx)
		return nil
	}
	for i, l := range m.lines {
		i, pin := i, l.pin
		// ISR handler: pin read + atomics + non-blocking send.
		if err := pin.SetIRQ(halcore.EdgeBoth, func() { m.observe(i, pin.Get()) }); err != nil {
			return err
		}
	}
	go func() {
		<-ctx.Done()
		for _, l := range m.lines {
			_ = l.pin.ClearIRQ()
		}
	}()
	return nil
}

func (m *Monitor) pollLoop(ctx context.Context) {
	tick := time.NewTicker(m.cfg.Poll)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			m.Poll()
		}
	}
}

// Poll samples both front lines once through the same edge logic the ISR uses.
func (m *Monitor) Poll() {
	for i, l := range m.lines {
		m.observe(i, l.pin.Get())
	}
}

// observe runs in interrupt context. level is electrical: low = obstacle.
func (m *Monitor) observe(i int, level bool) {
	l := m.lines[i]
	if level {
		l.armed.Store(true)
		return
	}
	if !l.armed.Swap(false) {
		return // still low since the last edge
	}
	if m.cfg.Debounce > 0 {
		now := m.now()
		if prev := l.lastEdge.Load(); prev != 0 && now-prev < int64(m.cfg.Debounce) {
			return
		}
		l.lastEdge.Store(now)
	}
	m.edges.Add(1)
	l.latched.Store(true)
	m.pending.Add(1)
	select {
	case m.bell <- struct{}{}:
	default: // already rung; the latched flag carries the edge
	}
}

// Pending is rung (single slot) whenever an edge has been latched.
func (m *Monitor) Pending() <-chan struct{} { return m.bell }

// Take consumes and clears the front edge flags. Edges from both lines since
// the previous Take fold into one event.
//
// Coalesced is approximate: an edge landing between the swaps below has its
// flag in this event and its count in the next Take, which finds no flag and
// drops it. The count can fall short, never over.
func (m *Monitor) Take() (types.ObstacleEvent, bool) {
	n := m.pending.Swap(0)
	fl := m.lines[frontLeft].latched.Swap(false)
	fr := m.lines[frontRight].latched.Swap(false)
	if !fl && !fr {
		return types.ObstacleEvent{}, false
	}
	ev := types.ObstacleEvent{FrontLeft: fl, FrontRight: fr, TS: timex.NowMs()}
	if n > 1 {
		ev.Coalesced = n - 1
		m.coalesced.Add(ev.Coalesced)
	}
	return ev, true
}

// IsRearClear polls the rear sensor; high means nothing behind.
func (m *Monitor) IsRearClear() bool { return m.rear.Get() }

// Sample reads all three lines now.
func (m *Monitor) Sample() types.SensorSample {
	return types.SensorSample{
		FrontLeft:  !m.lines[frontLeft].pin.Get(),
		FrontRight: !m.lines[frontRight].pin.Get(),
		Rear:       !m.rear.Get(),
	}
}

// Update implements drivers.Sensor; proximity counts as a distance reading.
func (m *Monitor) Update(which drivers.Measurement) error {
	if which&drivers.Distance == 0 {
		return nil
	}
	s := m.Sample()
	m.mu.Lock()
	m.last = s
	m.mu.Unlock()
	return nil
}

// Last returns the sample cached by the latest Update.
func (m *Monitor) Last() types.SensorSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Monitor) Edges() uint32     { return m.edges.Load() }
func (m *Monitor) Coalesced() uint32 { return m.coalesced.Load() }
