package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wanderbot-go/bus"
	"wanderbot-go/errcode"
	"wanderbot-go/types"
)

func TestDecodeEmbeddedPicoMatchesDefaults(t *testing.T) {
	cfg, err := Load("pico")
	if err != nil {
		t.Fatal(err)
	}
	want := types.DefaultConfig()
	want.Console.Enabled = true
	if cfg != want {
		t.Fatalf("pico config\n got %+v\nwant %+v", cfg, want)
	}
}

func TestDecodeOverlaysDefaults(t *testing.T) {
	cfg, err := Decode([]byte("drive:\n  speed: 500\n  escape:\n    policy: direct_turn\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Drive.Speed != 500 || cfg.Drive.Escape.Policy != types.DirectTurn {
		t.Fatalf("overrides not applied: %+v", cfg.Drive)
	}
	if cfg.Drive.Period != 1000 || cfg.Drive.Escape.TurnHoldMs != 250 || cfg.Heartbeat.IntervalS != 2 {
		t.Fatal("defaults lost for omitted keys")
	}
}

func TestDecodeEmptyIsDefault(t *testing.T) {
	cfg, err := Decode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg != types.DefaultConfig() {
		t.Fatal("empty input should give the defaults")
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"syntax", "drive: [unclosed"},
		{"unknown key", "drive:\n  sped: 10\n"},
		{"speed above period", "drive:\n  speed: 2000\n"},
		{"bad policy", "drive:\n  escape:\n    policy: spin\n"},
		{"bad heartbeat", "heartbeat:\n  interval: 0\n"},
		{"bad uart", "console:\n  enabled: true\n  uart: uart7\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.yaml))
			if errcode.Of(err) != errcode.InvalidConfig {
				t.Fatalf("err = %v, want invalid_config", err)
			}
		})
	}
}

func TestLoadUnknownDevice(t *testing.T) {
	if _, err := Load("toaster"); errcode.Of(err) != errcode.UnknownDevice {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bot.yaml")
	if err := os.WriteFile(p, []byte("drive:\n  seed: 0x1234\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Drive.Seed != 0x1234 {
		t.Fatalf("seed = %#x", cfg.Drive.Seed)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should fail")
	}
}

func TestConfig_PublishEmbedded_RetainedPerKey(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "pico" {
			return nil, false
		}
		return []byte("heartbeat:\n  interval: 7\ndrive:\n  speed: 400\n"), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	svc := NewConfigService()

	ctx := context.WithValue(context.Background(), CtxDeviceKey, "pico")
	svc.Start(ctx, conn)

	// Subscribe; retained messages arrive on subscription or when published.
	sub := conn.Subscribe(bus.T(configPrefix, "#"))

	got := map[string]any{}
	deadline := time.After(600 * time.Millisecond)
	for len(got) < 3 {
		select {
		case m := <-sub.Channel():
			if len(m.Topic) != 2 || m.Topic[0] != configPrefix {
				t.Fatalf("unexpected topic %v", m.Topic)
			}
			got[m.Topic[1]] = m.Payload
		case <-deadline:
			t.Fatalf("expected 3 retained sections, got %v", got)
		}
	}

	if hb, ok := got["heartbeat"].(types.HeartbeatConfig); !ok || hb.IntervalS != 7 {
		t.Fatalf("heartbeat payload = %#v", got["heartbeat"])
	}
	if d, ok := got["drive"].(types.DriveConfig); !ok || d.Speed != 400 {
		t.Fatalf("drive payload = %#v", got["drive"])
	}
	if _, ok := got["console"].(types.ConsoleConfig); !ok {
		t.Fatalf("console payload = %#v", got["console"])
	}
}

func TestConfigServiceSourceOverride(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test-config")
	cfg := types.DefaultConfig()
	cfg.Drive.Speed = 123
	svc := NewConfigServiceFrom(cfg)
	svc.Start(context.Background(), conn)

	sub := conn.Subscribe(bus.T(configPrefix, "drive"))
	select {
	case m := <-sub.Channel():
		if m.Payload.(types.DriveConfig).Speed != 123 {
			t.Fatalf("payload %#v", m.Payload)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("no config/drive published")
	}
}
