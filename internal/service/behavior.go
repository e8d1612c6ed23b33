package service

import (
	"github.com/adshield/fraudguard/internal/models"
)

// Interaction thresholds per device class. Desktop traffic is judged on
// pointer movement, touch devices on touch events.
const (
	mouseGoodThreshold = 40
	mouseWarnThreshold = 20
	touchGoodThreshold = 7
	touchWarnThreshold = 3
)

// BehaviorAssessment is the Behavior Analyzer's verdict for one request's
// interaction telemetry.
type BehaviorAssessment struct {
	Score          int
	Classification models.Classification
	Reason         string
	Flag           string // diagnostic tag, empty when fully organic
}

// AnalyzeBehavior maps raw interaction counts to a trust score, branching
// on device type. Bot and unknown device types short-circuit to BAD
// without consulting the counters.
func AnalyzeBehavior(deviceType models.DeviceType, b models.BehaviorData) BehaviorAssessment {
	switch deviceType {
	case models.DeviceDesktop:
		return assessPointer(b.MouseMoves)
	case models.DeviceMobile, models.DeviceTablet:
		return assessTouch(b.TouchEvents)
	case models.DeviceBot, models.DeviceUnknown:
		return BehaviorAssessment{
			Score:          0,
			Classification: models.ClassBad,
			Reason:         "Suspicious device type",
			Flag:           "suspicious_device_type",
		}
	default:
		// Unreachable with the closed device-type set; surface as a safe
		// default rather than a panic.
		return BehaviorAssessment{
			Score:          50,
			Classification: models.ClassWarn,
			Reason:         "Unrecognized device type",
			Flag:           "unknown_behavior",
		}
	}
}

func assessPointer(moves int) BehaviorAssessment {
	switch {
	case moves >= mouseGoodThreshold:
		return BehaviorAssessment{
			Score:          100,
			Classification: models.ClassGood,
			Reason:         "Normal pointer activity",
		}
	case moves >= mouseWarnThreshold:
		return BehaviorAssessment{
			Score:          60,
			Classification: models.ClassWarn,
			Reason:         "Low pointer movement",
			Flag:           "low_movement",
		}
	default:
		return BehaviorAssessment{
			Score:          40,
			Classification: models.ClassWarn,
			Reason:         "Very low pointer movement",
			Flag:           "very_low_movement",
		}
	}
}

func assessTouch(touches int) BehaviorAssessment {
	switch {
	case touches >= touchGoodThreshold:
		return BehaviorAssessment{
			Score:          100,
			Classification: models.ClassGood,
			Reason:         "Normal touch activity",
		}
	case touches >= touchWarnThreshold:
		return BehaviorAssessment{
			Score:          60,
			Classification: models.ClassWarn,
			Reason:         "Low touch activity",
			Flag:           "low_touch",
		}
	default:
		return BehaviorAssessment{
			Score:          40,
			Classification: models.ClassWarn,
			Reason:         "Very low touch activity",
			Flag:           "very_low_touch",
		}
	}
}
