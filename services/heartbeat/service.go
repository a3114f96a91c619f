package heartbeat

import (
	"context"
	"time"

	"wanderbot-go/bus"
	"wanderbot-go/types"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicDriveStats      = bus.T("drive", "stats")
)

// Service prints a periodic liveness line carrying the latest drive stats.
type Service struct {
	// Interval until config/heartbeat arrives; 0 = 1s.
	Interval time.Duration
	// Beat replaces the printed line; st is nil before any drive/stats.
	Beat func(t time.Time, st *types.DriveStats)
}

func printBeat(t time.Time, st *types.DriveStats) {
	if st == nil {
		println("Info:", t.Format("15:04:05"), "Heartbeat")
		return
	}
	println("Info:", t.Format("15:04:05"), "Heartbeat",
		"state=", st.State.String(), "duty=", st.Duty,
		"ticks=", st.Ticks, "escapes=", st.Escapes, "streak=", st.Consecutive)
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)
	statsSub := conn.Subscribe(topicDriveStats)
	defer conn.Unsubscribe(statsSub)

	iv := s.Interval
	if iv <= 0 {
		iv = time.Second
	}
	tick := time.NewTicker(iv)
	defer tick.Stop()

	beat := s.Beat
	if beat == nil {
		beat = printBeat
	}
	var last *types.DriveStats

	// loop until context is cancelled, respond to tick, stats and config changes
	for {
		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			return
		case t := <-tick.C:
			beat(t, last)
		case msg := <-statsSub.Channel():
			if st, ok := msg.Payload.(types.DriveStats); ok {
				last = &st
			}
		case msg := <-cfgSub.Channel():
			hc, ok := msg.Payload.(types.HeartbeatConfig)
			if !ok || hc.IntervalS <= 0 {
				println("Warn: heartbeat ignoring config", msg.Topic.String())
				continue
			}
			tick.Reset(time.Duration(hc.IntervalS) * time.Second)
			println("Info:", "Heartbeat interval set to", hc.IntervalS, "seconds")
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
