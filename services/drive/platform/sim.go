//go:build !rp2040

package platform

import (
	"sync"
	"time"

	"wanderbot-go/services/drive/halcore"
	"wanderbot-go/services/drive/internal/motor"
	"wanderbot-go/types"
	"wanderbot-go/x/timex"
)

// -----------------------------------------------------------------------------
// Simulated GPIO
// -----------------------------------------------------------------------------

// SimPin is an in-memory pin. Drive changes the level from outside (a sensor,
// a test) and runs the IRQ handler synchronously on a matching edge, the way
// an interrupt would.
type SimPin struct {
	n int

	mu      sync.Mutex
	level   bool
	driven  bool // level set from outside; pulls no longer apply
	edge    halcore.Edge
	handler func()
}

func NewSimPin(n int) *SimPin { return &SimPin{n: n} }

func (p *SimPin) Number() int { return p.n }

func (p *SimPin) ConfigureInput(pull halcore.Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.driven {
		p.level = pull == halcore.PullUp
	}
	return nil
}

func (p *SimPin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *SimPin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

func (p *SimPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *SimPin) SetIRQ(edge halcore.Edge, handler func()) error {
	p.mu.Lock()
	p.edge, p.handler = edge, handler
	p.mu.Unlock()
	return nil
}

func (p *SimPin) ClearIRQ() error {
	p.mu.Lock()
	p.edge, p.handler = halcore.EdgeNone, nil
	p.mu.Unlock()
	return nil
}

// Drive sets the electrical level from outside.
func (p *SimPin) Drive(level bool) {
	p.mu.Lock()
	prev := p.level
	p.level, p.driven = level, true
	h := p.handler
	fire := prev != level && edgeMatches(p.edge, level)
	p.mu.Unlock()
	if fire && h != nil {
		h()
	}
}

func edgeMatches(e halcore.Edge, rising bool) bool {
	switch e {
	case halcore.EdgeBoth:
		return true
	case halcore.EdgeRising:
		return rising
	case halcore.EdgeFalling:
		return !rising
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// Simulated PWM
// -----------------------------------------------------------------------------

// SimPWM keeps the last level and doubles as a free-running counter derived
// from the wall clock.
type SimPWM struct {
	mu      sync.Mutex
	freqHz  uint32
	top     uint16
	level   uint16
	started time.Time
}

func NewSimPWM() *SimPWM { return &SimPWM{started: time.Now()} }

func (p *SimPWM) Configure(freqHz uint32, top uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freqHz, p.top = freqHz, top
	return nil
}

func (p *SimPWM) Set(level uint16) {
	p.mu.Lock()
	p.level = min(level, p.top)
	p.mu.Unlock()
}

// Level is the physical level last written.
func (p *SimPWM) Level() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Count is the position inside the current PWM period, 0..top.
func (p *SimPWM) Count() uint32 {
	p.mu.Lock()
	period, top := timex.PeriodFromHz(p.freqHz), uint64(p.top)+1
	p.mu.Unlock()
	ns := uint64(time.Since(p.started))
	return uint32((ns % period) * top / period)
}

// -----------------------------------------------------------------------------
// Board
// -----------------------------------------------------------------------------

// SimBoard exposes the raw simulated pins behind a halcore.Hardware.
type SimBoard struct {
	MotorA, MotorB [2]*SimPin
	PWM            *SimPWM
	FrontLeft      *SimPin
	FrontRight     *SimPin
	Rear           *SimPin
}

// Block drives a sensor line low (obstacle present).
func (b *SimBoard) Block(p *SimPin) { p.Drive(false) }

// Clear drives a sensor line high.
func (b *SimBoard) Clear(p *SimPin) { p.Drive(true) }

// SimHardware builds a simulated board for the pin map in cfg, with the motor
// channels driven through a motor.PinDriver.
func SimHardware(cfg types.DriveConfig) (halcore.Hardware, *SimBoard, error) {
	pm := cfg.Pins
	b := &SimBoard{
		MotorA:     [2]*SimPin{NewSimPin(pm.MotorA[0]), NewSimPin(pm.MotorA[1])},
		MotorB:     [2]*SimPin{NewSimPin(pm.MotorB[0]), NewSimPin(pm.MotorB[1])},
		PWM:        NewSimPWM(),
		FrontLeft:  NewSimPin(pm.FrontLeft),
		FrontRight: NewSimPin(pm.FrontRight),
		Rear:       NewSimPin(pm.Rear),
	}
	drv, err := motor.NewPinDriver(motor.Params{
		A:         [2]halcore.GPIOPin{b.MotorA[0], b.MotorA[1]},
		B:         [2]halcore.GPIOPin{b.MotorB[0], b.MotorB[1]},
		PWM:       b.PWM,
		FreqHz:    cfg.FreqHz,
		Top:       cfg.Period,
		ActiveLow: pm.PWMActiveLow,
	})
	if err != nil {
		return halcore.Hardware{}, nil, err
	}
	return halcore.Hardware{
		Motor:      drv,
		FrontLeft:  b.FrontLeft,
		FrontRight: b.FrontRight,
		Rear:       b.Rear,
		Counter:    b.PWM,
	}, b, nil
}

// DefaultHardware on hosts is the simulated board.
func DefaultHardware(cfg types.DriveConfig) (halcore.Hardware, error) {
	hw, _, err := SimHardware(cfg)
	return hw, err
}
