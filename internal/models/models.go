package models

import "time"

// DeviceType is the closed set of device classes reported by the
// client-side collector.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceBot     DeviceType = "bot"
	DeviceUnknown DeviceType = "unknown"
)

// Device carries the collector's device classification plus the three
// independent automation flags. The engine trusts these as given; it does
// not re-derive them from the user agent.
type Device struct {
	Type         DeviceType `json:"type"`
	Browser      string     `json:"browser,omitempty"`
	OS           string     `json:"os,omitempty"`
	IsFakeMobile bool       `json:"isFakeMobile"`
	IsAutomated  bool       `json:"isAutomated"`
	IsHeadless   bool       `json:"isHeadless"`
}

type Screen struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	ColorDepth int     `json:"colorDepth,omitempty"`
	PixelRatio float64 `json:"pixelRatio,omitempty"`
}

type Hardware struct {
	Cores          int `json:"cores,omitempty"`
	MemoryGB       int `json:"memoryGb,omitempty"`
	MaxTouchPoints int `json:"maxTouchPoints,omitempty"`
}

// Fingerprint captures client-observed device signals, collected once per
// session. Canvas/WebGL hashes are opaque identity signals reserved for
// future fingerprint-reputation tracking; they are not scored today.
type Fingerprint struct {
	Device     Device   `json:"device"`
	Screen     Screen   `json:"screen"`
	Hardware   Hardware `json:"hardware"`
	UserAgent  string   `json:"userAgent"`
	Language   string   `json:"language,omitempty"`
	Timezone   string   `json:"timezone,omitempty"`
	CanvasHash string   `json:"canvasHash,omitempty"`
	WebGLHash  string   `json:"webglHash,omitempty"`
}

// BehaviorData is interaction telemetry accumulated over the client's
// observation window. All counters start at zero and are frozen before
// submission.
type BehaviorData struct {
	MouseMoves     int     `json:"mouseMoves"`
	MouseClicks    int     `json:"mouseClicks"`
	TouchEvents    int     `json:"touchEvents"`
	TouchTaps      int     `json:"touchTaps"`
	ScrollEvents   int     `json:"scrollEvents"`
	KeyPresses     int     `json:"keyPresses"`
	MouseDistance  float64 `json:"mouseDistance"`
	ScrollDistance float64 `json:"scrollDistance"`
	ActiveTimeMs   int64   `json:"activeTime"`
	TotalTimeMs    int64   `json:"totalTime"`
}

// IPReputation is the resolved trust classification for one IP address.
// Facet booleans are independent; conflicts are resolved by engine
// priority, never here. Immutable once returned by the resolver.
type IPReputation struct {
	IP              string `json:"ip"`
	IsVPN           bool   `json:"isVpn"`
	IsDatacenter    bool   `json:"isDatacenter"`
	IsMobileCarrier bool   `json:"isMobileCarrier"`
	IsProxy         bool   `json:"isProxy"`
	IsTor           bool   `json:"isTor"`
	ASN             *int   `json:"asn,omitempty"`
	Org             string `json:"org,omitempty"`
	ISP             string `json:"isp,omitempty"`
	Country         string `json:"country,omitempty"`
	Region          string `json:"region,omitempty"`
	City            string `json:"city,omitempty"`
	Cached          bool   `json:"cached"`
}

// Classification is the engine's verdict tier.
type Classification string

const (
	ClassGood Classification = "GOOD"
	ClassWarn Classification = "WARN"
	ClassBad  Classification = "BAD"
)

// FraudResult is the engine's verdict for one request. Score runs 0-100
// where 0 is certainly fraudulent. Flags list every diagnostic tag raised
// along the executed decision path, in order.
type FraudResult struct {
	Classification Classification `json:"classification"`
	Score          int            `json:"score"`
	Reason         string         `json:"reason"`
	Flags          []string       `json:"flags"`
	ProcessingTime time.Duration  `json:"processingTime"`
}

// CheckRequest is the inbound payload for one classification call. IP is
// optional; the transport layer derives it from forwarding headers when
// absent.
type CheckRequest struct {
	Fingerprint Fingerprint  `json:"fingerprint"`
	Behavior    BehaviorData `json:"behavior"`
	IP          string       `json:"ip,omitempty"`
}

// CheckResponse is the transport envelope around a FraudResult.
type CheckResponse struct {
	Success   bool         `json:"success"`
	Result    *FraudResult `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	RequestID string       `json:"requestId"`
}

// OverrideType distinguishes manual allow/deny list entries.
type OverrideType string

const (
	OverrideAllow OverrideType = "allow"
	OverrideDeny  OverrideType = "deny"
	OverrideNone  OverrideType = "none"
)

type OverrideEntry struct {
	IP        string       `json:"ip"`
	Type      OverrideType `json:"type"`
	Note      string       `json:"note,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// CheckRecord is the persisted audit row for one classification call.
type CheckRecord struct {
	RequestID      string         `json:"requestId"`
	IP             string         `json:"ip"`
	DeviceType     DeviceType     `json:"deviceType"`
	Browser        string         `json:"browser,omitempty"`
	IsAutomated    bool           `json:"isAutomated"`
	IsHeadless     bool           `json:"isHeadless"`
	IsFakeMobile   bool           `json:"isFakeMobile"`
	MouseMoves     int            `json:"mouseMoves"`
	TouchEvents    int            `json:"touchEvents"`
	Classification Classification `json:"classification"`
	Score          int            `json:"score"`
	Reason         string         `json:"reason"`
	Flags          []string       `json:"flags"`
	CreatedAt      time.Time      `json:"createdAt"`
}
