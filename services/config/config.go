package config

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"wanderbot-go/bus"
	"wanderbot-go/errcode"
	"wanderbot-go/types"
)

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key used for device ID
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Decode parses YAML over types.DefaultConfig and validates the result.
// Unknown keys are rejected.
func Decode(raw []byte) (types.Config, error) {
	cfg := types.DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return types.Config{}, errcode.Wrap(errcode.InvalidConfig, "decode", "bad yaml", err)
	}
	if err := validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

func validate(cfg types.Config) error {
	if cfg.Heartbeat.IntervalS <= 0 {
		return errcode.Wrap(errcode.InvalidConfig, "heartbeat", "interval must be > 0", nil)
	}
	if cfg.Console.Enabled {
		if cfg.Console.UART != "uart0" && cfg.Console.UART != "uart1" {
			return errcode.Wrap(errcode.InvalidConfig, "console", "unknown uart "+cfg.Console.UART, nil)
		}
		if cfg.Console.Baud == 0 {
			return errcode.Wrap(errcode.InvalidConfig, "console", "baud must be > 0", nil)
		}
	}
	return cfg.Drive.Validate()
}

// Load resolves the embedded config for device.
func Load(device string) (types.Config, error) {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return types.Config{}, errcode.Wrap(errcode.UnknownDevice, "config", "no embedded config for device: "+device, nil)
	}
	return Decode(raw)
}

// LoadFile reads a YAML config from disk (host builds).
func LoadFile(path string) (types.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Config{}, errcode.Wrap(errcode.InvalidConfig, "config", path, err)
	}
	return Decode(raw)
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
	// Source, when set, is published instead of the embedded device config.
	Source *types.Config
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// NewConfigServiceFrom publishes cfg rather than an embedded device config.
func NewConfigServiceFrom(cfg types.Config) *ConfigService {
	return &ConfigService{Name: serviceName, Source: &cfg}
}

// Publish sends each section of cfg as a retained config/<section> message.
func Publish(conn *bus.Connection, cfg types.Config) {
	conn.PublishValue(bus.T(configPrefix, "heartbeat"), cfg.Heartbeat, true)
	conn.PublishValue(bus.T(configPrefix, "console"), cfg.Console, true)
	conn.PublishValue(bus.T(configPrefix, "drive"), cfg.Drive, true)
}

// publishConfig resolves the device config and publishes it as retained messages.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	if s.Source != nil {
		Publish(conn, *s.Source)
		return nil
	}
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errcode.Wrap(errcode.InvalidParams, "config", "missing device ID in context", nil)
	}
	cfg, err := Load(device)
	if err != nil {
		return err
	}
	Publish(conn, cfg)
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			println("Error: [config]", err.Error())
			return
		}
		println("Info: [config] published")
	}()
}
