package timex

import (
	"context"
	"time"
)

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Ms converts a millisecond count from config into a Duration.
func Ms[T ~int | ~uint16 | ~uint32](ms T) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// PeriodFromHz returns a nanosecond period for a requested frequency.
// freqHz==0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz uint32) uint64 {
	if freqHz == 0 {
		freqHz = 1
	}
	return uint64(1_000_000_000 / uint64(freqHz))
}

// Clock is the single timing seam used by holds and settle delays.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// Real is the wall clock.
type Real struct{}

func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Wait blocks for d on c and cannot be cut short.
func Wait(c Clock, d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Sleep waits for d on c or until ctx is done. It reports whether the full
// duration elapsed.
func Sleep(ctx context.Context, c Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-c.After(d):
		return true
	}
}
