package okr

// ConfidenceLabel buckets a single check-in's self-reported confidence.
//
// This is not the health tier used for list sorting; see insights.HealthTier,
// which uses a 70 threshold for High.
type ConfidenceLabel string

const (
	LabelHigh   ConfidenceLabel = "High"
	LabelMedium ConfidenceLabel = "Medium"
	LabelLow    ConfidenceLabel = "Low"
)

const (
	labelHighThreshold   = 75
	labelMediumThreshold = 40
)

// ConfidenceLabelFor labels a confidence value. Values outside 0-100 are
// accepted: above 100 is High, below 0 is Low.
func ConfidenceLabelFor(confidence float64) ConfidenceLabel {
	switch {
	case confidence >= labelHighThreshold:
		return LabelHigh
	case confidence >= labelMediumThreshold:
		return LabelMedium
	default:
		return LabelLow
	}
}

// Trend is the direction of confidence between two check-ins.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// TrendOf compares the confidence of the current and previous check-ins.
// Progress is ignored.
func TrendOf(current, previous *CheckIn) Trend {
	if current == nil || previous == nil {
		return TrendFlat
	}
	switch {
	case current.Confidence > previous.Confidence:
		return TrendUp
	case current.Confidence < previous.Confidence:
		return TrendDown
	default:
		return TrendFlat
	}
}
