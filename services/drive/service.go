// Package drive runs the navigation core as a bus service. It builds the
// actuator, obstacle monitor and decision engine from the first config/drive
// message and publishes what they do.
package drive

import (
	"context"
	"time"

	"tinygo.org/x/drivers"

	"wanderbot-go/bus"
	"wanderbot-go/errcode"
	"wanderbot-go/services/drive/halcore"
	"wanderbot-go/services/drive/internal/actuator"
	"wanderbot-go/services/drive/internal/engine"
	"wanderbot-go/services/drive/internal/prng"
	"wanderbot-go/services/drive/internal/sensors"
	"wanderbot-go/types"
	"wanderbot-go/x/timex"
)

var (
	TopicConfig   = bus.T("config", "drive")
	TopicState    = bus.T("drive", "state")
	TopicCommand  = bus.T("drive", "command")
	TopicDecision = bus.T("drive", "decision")
	TopicObstacle = bus.T("drive", "obstacle")
	TopicStats    = bus.T("drive", "stats")   // retained
	TopicSensors  = bus.T("drive", "sensors") // retained
)

type Options struct {
	// Clock times holds and settle delays; nil is the wall clock.
	Clock timex.Clock
	// StatsEvery is the period of drive/stats and drive/sensors; 0 = 1s.
	StatsEvery time.Duration
}

type Service struct {
	hw  halcore.Hardware
	opt Options

	conn   *bus.Connection
	eng    *engine.Engine
	mon    *sensors.Monitor
	period uint16
}

func New(hw halcore.Hardware, opt Options) *Service {
	if opt.Clock == nil {
		opt.Clock = timex.Real{}
	}
	if opt.StatsEvery <= 0 {
		opt.StatsEvery = time.Second
	}
	return &Service{hw: hw, opt: opt}
}

// Start launches the service loop. Driving begins once config/drive arrives.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.conn = conn
	// Subscribed before returning so a config published right after Start
	// is not missed.
	cfgSub := conn.Subscribe(TopicConfig)
	go s.serviceLoop(ctx, cfgSub)
	return nil
}

func (s *Service) serviceLoop(ctx context.Context, cfgSub *bus.Subscription) {
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	tick := time.NewTicker(s.opt.StatsEvery)
	defer tick.Stop()

	var engDone <-chan error
	for {
		select {
		case <-ctx.Done():
			if engDone != nil {
				<-engDone // engine has stopped the motors
				s.publishStats()
			}
			s.publishState("stopped", "context_cancelled", nil)
			println("Info: [drive] service stopping")
			return

		case msg := <-cfgSub.Channel():
			cfg, ok := msg.Payload.(types.DriveConfig)
			if !ok {
				s.publishState("error", "config_wrong_type", nil)
				continue
			}
			if s.eng != nil {
				if err := s.apply(cfg); err != nil {
					println("Error: [drive] config rejected:", err.Error())
					s.publishState("error", "config_rejected", err)
					continue
				}
				s.publishState("ready", "speed_updated", nil)
				continue
			}
			done, err := s.build(ctx, cfg)
			if err != nil {
				println("Error: [drive] start failed:", err.Error())
				s.publishState("error", "build_failed", err)
				continue
			}
			engDone = done
			s.publishState("ready", "running", nil)

		case <-tick.C:
			if s.eng != nil {
				s.publishStats()
			}
		}
	}
}

// build wires the core from cfg and starts the engine goroutine.
func (s *Service) build(ctx context.Context, cfg types.DriveConfig) (<-chan error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hw := s.hw
	if hw.Motor == nil {
		return nil, errcode.Wrap(errcode.UnknownDevice, "drive", "no motor driver", nil)
	}
	rnd, err := newSource(cfg, hw.Counter)
	if err != nil {
		return nil, err
	}
	mon, err := sensors.New(hw.FrontLeft, hw.FrontRight, hw.Rear, sensors.Config{
		Mode:     cfg.SensorMode,
		Poll:     timex.Ms(cfg.PollMs),
		Debounce: timex.Ms(cfg.DebounceMs),
	})
	if err != nil {
		return nil, err
	}
	act := actuator.New(hw.Motor, s.opt.Clock, actuator.Config{
		Period:    cfg.Period,
		Settle:    timex.Ms(cfg.SettleMs),
		RampSteps: cfg.RampSteps,
		RampDur:   timex.Ms(cfg.RampMs),
	}, func(c types.Command) {
		s.conn.PublishValue(TopicCommand, c, false)
	})
	if err := mon.Start(ctx); err != nil {
		return nil, err
	}

	s.mon, s.period = mon, cfg.Period
	s.eng = engine.New(act, mon, rnd, s.opt.Clock, cfg.Speed, engine.ConfigFrom(cfg), engine.Hooks{
		OnDecision: func(d types.Decision) { s.conn.PublishValue(TopicDecision, d, false) },
		OnObstacle: func(ev types.ObstacleEvent) { s.conn.PublishValue(TopicObstacle, ev, false) },
	})

	done := make(chan error, 1)
	go func() { done <- s.eng.Run(ctx) }()
	println("Info: [drive] started, speed", cfg.Speed, "of", cfg.Period)
	return done, nil
}

// apply takes a config update while running. Only the speed is live; the
// rest needs a restart.
func (s *Service) apply(cfg types.DriveConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Speed > s.period {
		return errcode.Wrap(errcode.InvalidParams, "drive", "speed exceeds running period", nil)
	}
	if cfg.Speed != s.eng.Speed() {
		s.eng.SetSpeed(cfg.Speed)
		println("Info: [drive] speed set to", cfg.Speed)
	}
	return nil
}

func newSource(cfg types.DriveConfig, c halcore.Counter) (prng.Source, error) {
	if cfg.Entropy == types.EntropyCounter {
		if c == nil {
			return nil, errcode.Wrap(errcode.Unsupported, "drive", "board has no counter for entropy", nil)
		}
		return prng.NewCounterSource(c), nil
	}
	return prng.NewLFSR(cfg.Seed, cfg.Reseed), nil
}

func (s *Service) publishStats() {
	st := s.eng.Stats()
	st.Coalesced = s.mon.Coalesced()
	s.conn.PublishValue(TopicStats, st, true)

	if err := s.mon.Update(drivers.Distance); err == nil {
		s.conn.PublishValue(TopicSensors, s.mon.Last(), true)
	}
}

func (s *Service) publishState(level, status string, err error) {
	pl := types.ServiceState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		pl.Error = err.Error()
	}
	s.conn.PublishValue(TopicState, pl, true)
}
