//go:build !rp2040

// sim runs the drive service against simulated pins and prints the bus
// trace. Obstacles are injected on a schedule; the console reads stdin.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"wanderbot-go/bus"
	"wanderbot-go/services/config"
	"wanderbot-go/services/console"
	"wanderbot-go/services/drive"
	"wanderbot-go/services/drive/platform"
	"wanderbot-go/services/heartbeat"
	"wanderbot-go/types"
	"wanderbot-go/x/timex"
)

func main() {
	var cfgPath string
	var every, run time.Duration
	var withConsole bool
	flag.StringVar(&cfgPath, "config", "", "YAML config file (default: embedded \"sim\")")
	flag.DurationVar(&every, "obstacle-every", 3*time.Second, "Obstacle injection period, 0 = none")
	flag.DurationVar(&run, "duration", 0, "Stop after this long, 0 = until interrupted")
	flag.BoolVar(&withConsole, "console", true, "Run the serial console on stdin/stdout")
	flag.Parse()

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		println("Error: [sim] config:", err.Error())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if run > 0 {
		ctx, cancel = context.WithTimeout(ctx, run)
		defer cancel()
	}

	hw, board, err := platform.SimHardware(cfg.Drive)
	if err != nil {
		println("Error: [sim] hardware:", err.Error())
		os.Exit(1)
	}

	b := bus.NewBus(32)
	trace := b.NewConnection("trace")
	sub := trace.Subscribe(bus.T("drive", "#"))

	svc := drive.New(hw, drive.Options{})
	_ = svc.Start(ctx, b.NewConnection("drive"))
	_ = (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat"))
	if withConsole {
		port, _ := console.OpenUART(cfg.Console)
		_ = console.New(port).Start(ctx, b.NewConnection("console"))
	}
	config.NewConfigServiceFrom(cfg).Start(ctx, b.NewConnection("config"))

	if every > 0 {
		go inject(ctx, board, every)
	}

	for {
		select {
		case <-ctx.Done():
			// let the drive service report its final state
			time.Sleep(100 * time.Millisecond)
			drainTrace(sub)
			return
		case m := <-sub.Channel():
			printTrace(m)
		}
	}
}

func loadConfig(path string) (types.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load("sim")
}

// inject cycles obstacles front-left, front-right, both; every third one
// also blocks the rear so the turn-only escape shows up.
func inject(ctx context.Context, b *platform.SimBoard, every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		var lines []*platform.SimPin
		switch n % 3 {
		case 0:
			lines = []*platform.SimPin{b.FrontLeft}
		case 1:
			lines = []*platform.SimPin{b.FrontRight}
		default:
			lines = []*platform.SimPin{b.FrontLeft, b.FrontRight, b.Rear}
		}
		println("Info: [sim] obstacle", n)
		for _, p := range lines {
			b.Block(p)
		}
		timex.Sleep(ctx, timex.Real{}, 150*time.Millisecond)
		for _, p := range lines {
			b.Clear(p)
		}
	}
}

func drainTrace(sub *bus.Subscription) {
	for {
		select {
		case m := <-sub.Channel():
			printTrace(m)
		default:
			return
		}
	}
}

func printTrace(m *bus.Message) {
	switch p := m.Payload.(type) {
	case types.Command:
		println("cmd     ", p.Seq, p.State.String(), p.Duty)
	case types.Decision:
		println("decide  ", p.Kind.String(), "rnd=", p.Rnd, p.State.String(), "hold_ms=", p.HoldMs)
	case types.ObstacleEvent:
		println("obstacle", "fl=", p.FrontLeft, "fr=", p.FrontRight, "rear_clear=", p.RearClear, "coalesced=", p.Coalesced)
	case types.ServiceState:
		println("state   ", p.Level, p.Status, p.Error)
	case types.DriveStats, types.SensorSample:
		// retained, shown by the heartbeat and console
	default:
		println("?       ", m.Topic.String())
	}
}
