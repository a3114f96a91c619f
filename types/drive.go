package types

// ------------------------
// Drive state
// ------------------------

// DriveState is the motion the actuator is currently producing. Exactly one
// value is active; only the actuator writes it.
type DriveState uint8

const (
	Stopped DriveState = iota
	Forward
	Reverse
	TurningLeft
	TurningRight
)

func (s DriveState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	case TurningLeft:
		return "left"
	case TurningRight:
		return "right"
	default:
		return "unknown"
	}
}

// Command is one actuator transition, published on drive/command.
type Command struct {
	Seq   uint32     `json:"seq"`
	State DriveState `json:"state"`
	Duty  uint16     `json:"duty"`
	TS    int64      `json:"ts_ms"`
}

// ------------------------
// Decisions
// ------------------------

type DecisionKind uint8

const (
	DecideBaseline DecisionKind = iota // random forward/left/right pick
	DecideBacking                      // escape: reverse before turning
	DecideEscapeTurn                   // escape: random turn
)

func (k DecisionKind) String() string {
	switch k {
	case DecideBaseline:
		return "baseline"
	case DecideBacking:
		return "backing"
	case DecideEscapeTurn:
		return "escape_turn"
	default:
		return "unknown"
	}
}

// Decision records what the engine picked and why, published on drive/decision.
type Decision struct {
	Kind   DecisionKind `json:"kind"`
	Rnd    uint8        `json:"rnd"`
	State  DriveState   `json:"state"`
	HoldMs uint32       `json:"hold_ms"`
	TS     int64        `json:"ts_ms"`
}

// ------------------------
// Sensors
// ------------------------

// SensorSample holds logical obstacle flags (electrical low = obstacle).
type SensorSample struct {
	FrontLeft  bool `json:"front_left"`
	FrontRight bool `json:"front_right"`
	Rear       bool `json:"rear"`
}

// ObstacleEvent is one coalesced front obstacle, published on drive/obstacle.
type ObstacleEvent struct {
	FrontLeft  bool `json:"front_left"`
	FrontRight bool `json:"front_right"`
	// Coalesced counts extra edges folded into this event.
	Coalesced uint32 `json:"coalesced"`
	RearClear bool   `json:"rear_clear"`
	TS        int64  `json:"ts_ms"`
}

// ------------------------
// Stats (retained on drive/stats)
// ------------------------

type DriveStats struct {
	State       DriveState `json:"state"`
	Duty        uint16     `json:"duty"`
	Speed       uint16     `json:"speed"`
	Ticks       uint32     `json:"ticks"`
	Escapes     uint32     `json:"escapes"`
	Preempted   uint32     `json:"preempted"`
	Consecutive uint32     `json:"consecutive"`
	Coalesced   uint32     `json:"coalesced"`
	TS          int64      `json:"ts_ms"`
}

// ServiceState is the retained lifecycle state of a service ("<svc>/state").
type ServiceState struct {
	Level  string `json:"level"`  // "idle", "ready", "error", "stopped"
	Status string `json:"status"` // short code
	Error  string `json:"error,omitempty"`
	TS     int64  `json:"ts_ms"`
}
