// Package prng provides the cheap pseudo-random draws the drive engine uses
// to vary its behaviour. Nothing here is fit for security use.
package prng

import (
	"sync"

	"wanderbot-go/services/drive/halcore"
	"wanderbot-go/types"
)

// DefaultSeed replaces the all-zero state, which is a fixed point.
const DefaultSeed uint16 = 0xACE1

// Period is the sequence length of a maximal 16-bit LFSR.
const Period = 1<<16 - 1

// Source is what the engine draws from.
type Source interface {
	NextBit() uint8
	// NextPercentage returns a value in [0, 99].
	NextPercentage() uint8
}

// LFSR is a 16-bit Fibonacci shift register with taps at bits 0, 2, 3 and 5
// (x^16 + x^14 + x^13 + x^11 + 1).
type LFSR struct {
	mu     sync.Mutex
	state  uint16
	reseed types.ReseedMode
}

func NewLFSR(seed uint16, mode types.ReseedMode) *LFSR {
	l := &LFSR{reseed: mode}
	l.Seed(seed)
	return l
}

// Seed sets the register directly; zero is substituted with DefaultSeed.
func (l *LFSR) Seed(v uint16) {
	if v == 0 {
		v = DefaultSeed
	}
	l.mu.Lock()
	l.state = v
	l.mu.Unlock()
}

// State returns the current register value.
func (l *LFSR) State() uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// caller holds lock
func (l *LFSR) step() uint8 {
	s := l.state
	bit := (s ^ s>>2 ^ s>>3 ^ s>>5) & 1
	l.state = s>>1 | bit<<15
	return uint8(s & 1)
}

// NextBit advances one step and returns the bit shifted out.
func (l *LFSR) NextBit() uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.step()
}

// NextPercentage advances one step and reduces the new state modulo 100.
// In shrinking mode the register is then re-seeded with the drawn value.
func (l *LFSR) NextPercentage() uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.step()
	p := uint8(l.state % 100)
	if l.reseed == types.ReseedShrinking {
		l.state = uint16(p)
		if l.state == 0 {
			l.state = DefaultSeed
		}
	}
	return p
}

// CounterSource samples a free-running hardware counter instead of the LFSR.
// Draws are only as good as the timing jitter between calls.
type CounterSource struct {
	c halcore.Counter
}

func NewCounterSource(c halcore.Counter) *CounterSource { return &CounterSource{c: c} }

func (s *CounterSource) NextBit() uint8        { return uint8(s.c.Count() & 1) }
func (s *CounterSource) NextPercentage() uint8 { return uint8(s.c.Count() % 100) }
