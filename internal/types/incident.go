package types

// EventType enumerates the incident kinds the detector recognizes.
type EventType string

const (
	EventHardBraking EventType = "hard_braking"
	EventImpact      EventType = "impact"
	EventSwerve      EventType = "swerve"
)

// IncidentRecord is emitted when a threshold detector fires. It carries
// the raw samples buffered within CONTEXT_SECONDS before the trigger so
// a downstream consumer can review what led up to it; it is built when
// the detector fires, so no samples after the trigger are included.
type IncidentRecord struct {
	EventType        EventType     `json:"event_type"`
	Magnitude        float64       `json:"magnitude"`
	TriggerTimestamp float64       `json:"trigger_timestamp"`
	Threshold        float64       `json:"threshold"`
	Accel            []AccelSample `json:"accel"`
	Gyro             []GyroSample  `json:"gyro"`
	Gps              []GpsFix      `json:"gps"`

	// HeadingDeltaRad is the integrated heading change over the trigger
	// window, populated for swerve events. Supplemented from
	// original_source/motion_tracker_v2/rotation_detector.py's
	// cross-check between the gyro-threshold trigger and the actual
	// integrated rotation.
	HeadingDeltaRad float64 `json:"heading_delta_rad,omitempty"`
}
