package ramp

import (
	"time"

	"wanderbot-go/x/mathx"
)

// Step sets the new logical level in [0..top].
type Step func(level uint16)

// Tick waits for d and reports whether to continue (false => cancelled).
type Tick func(d time.Duration) bool

// Linear drives the level from cur to to in evenly spaced integer steps,
// never exceeding top. steps==0 or dur==0 snaps to 'to'. It reports whether
// the final level was reached.
func Linear(cur, to, top uint16, dur time.Duration, steps uint16, tick Tick, set Step) bool {
	to = mathx.Min(to, top)
	if steps == 0 || dur <= 0 {
		set(to)
		return true
	}
	stepDur := dur / time.Duration(steps)
	if stepDur <= 0 {
		stepDur = time.Millisecond
	}

	d := int32(to) - int32(cur)
	st := int32(steps)
	acc := int32(0)
	lvl := int32(cur)
	for i := uint16(1); i < steps; i++ {
		if !tick(stepDur) {
			return false
		}
		acc += d
		inc := acc / st
		if inc != 0 {
			acc -= inc * st
			lvl = mathx.Clamp(lvl+inc, 0, int32(top))
			set(uint16(lvl))
		}
	}
	if !tick(stepDur) {
		return false
	}
	set(to)
	return true
}
