package telemetry

import "time"

// CheckAuditEvent is the wire form of one classification call, shipped to
// the audit topic.
type CheckAuditEvent struct {
	Timestamp      time.Time `json:"@timestamp"`
	RequestID      string    `json:"request_id"`
	IP             string    `json:"ip,omitempty"`
	DeviceType     string    `json:"device_type,omitempty"`
	Browser        string    `json:"browser,omitempty"`
	IsAutomated    bool      `json:"is_automated"`
	IsHeadless     bool      `json:"is_headless"`
	IsFakeMobile   bool      `json:"is_fake_mobile"`
	MouseMoves     int       `json:"mouse_moves"`
	TouchEvents    int       `json:"touch_events"`
	Classification string    `json:"classification"`
	Score          int       `json:"score"`
	Reason         string    `json:"reason,omitempty"`
	Flags          []string  `json:"flags,omitempty"`
}
