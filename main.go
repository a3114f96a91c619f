package main

import (
	"context"
	"time"

	"wanderbot-go/bus"
	"wanderbot-go/services/config"
	"wanderbot-go/services/console"
	"wanderbot-go/services/drive"
	"wanderbot-go/services/drive/platform"
	"wanderbot-go/services/heartbeat"
)

const device = "pico"

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	cfg, err := config.Load(device)
	if err != nil {
		println("Error: [boot] config:", err.Error())
		halt()
	}

	hw, err := platform.DefaultHardware(cfg.Drive)
	if err != nil {
		println("Error: [boot] hardware:", err.Error())
		halt()
	}

	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, device)
	b := bus.NewBus(8)

	_ = (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat"))
	_ = drive.New(hw, drive.Options{}).Start(ctx, b.NewConnection("drive"))
	if cfg.Console.Enabled {
		if port, err := console.OpenUART(cfg.Console); err != nil {
			println("Warn: [boot] console:", err.Error())
		} else {
			_ = console.New(port).Start(ctx, b.NewConnection("console"))
		}
	}
	// Last, so every service sees the retained config on subscribe or live.
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	select {}
}

func halt() {
	for {
		time.Sleep(time.Hour)
	}
}
