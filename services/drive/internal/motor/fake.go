package motor

import (
	"sync"

	"wanderbot-go/services/drive/halcore"
)

// Call is one recorded MotorDriver call.
type Call struct {
	Op  string // "dir" | "duty"
	Ch  halcore.Channel
	In1 bool
	In2 bool
	// DutyAtWrite is the duty in force when a direction pair was written.
	DutyAtWrite uint16
	Duty        uint16
}

// Fake is an in-memory MotorDriver that records every call.
type Fake struct {
	mu    sync.Mutex
	pairs [2][2]bool
	duty  uint16
	calls []Call
}

func NewFake() *Fake {
	return &Fake{pairs: [2][2]bool{{true, false}, {true, false}}}
}

func (f *Fake) SetDirectionPair(ch halcore.Channel, in1, in2 bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs[ch&1] = [2]bool{in1, in2}
	f.calls = append(f.calls, Call{Op: "dir", Ch: ch, In1: in1, In2: in2, DutyAtWrite: f.duty})
}

func (f *Fake) SetDuty(duty uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.duty = duty
	f.calls = append(f.calls, Call{Op: "duty", Duty: duty})
}

// Pair returns the current {in1, in2} of a channel.
func (f *Fake) Pair(ch halcore.Channel) [2]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pairs[ch&1]
}

func (f *Fake) Duty() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duty
}

// Calls returns a copy of the call log.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Reset clears the call log.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}
