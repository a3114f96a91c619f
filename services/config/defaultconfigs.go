package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw YAML for that device. Omitted keys keep types.DefaultConfig values.
// -----------------------------------------------------------------------------

const cfgPico = `
heartbeat:
  interval: 2

console:
  enabled: true
  uart: uart0
  baud: 115200

drive:
  period: 1000
  freq_hz: 1000
  speed: 900
  thresholds: {forward: 60, right: 80}
  forward_hold: {base_ms: 1500, window_ms: 100}
  turn_hold: {base_ms: 300, window_ms: 60}
  escape:
    policy: reverse_then_turn
    backing: {base_ms: 400, window_ms: 80}
    turn_hold_ms: 250
    escalate_window_ms: 1000
    warn_after: 5
    escalate_factor: 1
    escalate_max: 4
  hold_preempt: true
  settle_ms: 30
  seed: 0xACE1
  reseed: free
  entropy: lfsr
  sensor_mode: irq
  pins:
    motor_a: [2, 3]
    motor_b: [4, 5]
    pwm: 6
    front_left: 7
    front_right: 8
    rear: 9
`

// The host simulator polls its sensors and soft-starts the motors.
const cfgSim = `
heartbeat:
  interval: 5

drive:
  ramp_steps: 4
  ramp_ms: 40
  sensor_mode: poll
  poll_ms: 5
  debounce_ms: 10
`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"sim":  []byte(cfgSim),
}
