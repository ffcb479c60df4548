package insights

import (
	"math"

	"okrtrack/internal/okr"
	"okrtrack/internal/okrstore"
)

const atRiskThreshold = 40

// latestConfidences returns the latest confidence of every id that has at
// least one check-in, in the order of ids.
func latestConfidences(r okrstore.Reader, ids []string) []float64 {
	var out []float64
	for _, id := range ids {
		if ci, ok := LatestCheckIn(r, id); ok {
			out = append(out, ci.Confidence)
		}
	}
	return out
}

// OverallConfidence averages the latest confidence of each OKR. OKRs without
// check-ins are left out entirely; an empty set yields 0.
func OverallConfidence(r okrstore.Reader, ids []string) int {
	values := latestConfidences(r, ids)
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return roundHalfUp(sum / float64(len(values)))
}

// AtRiskCount counts OKRs whose latest confidence is below 40.
func AtRiskCount(r okrstore.Reader, ids []string) int {
	n := 0
	for _, v := range latestConfidences(r, ids) {
		if v < atRiskThreshold {
			n++
		}
	}
	return n
}

// OnTrackCount counts OKRs whose latest confidence is 40 or more.
func OnTrackCount(r okrstore.Reader, ids []string) int {
	n := 0
	for _, v := range latestConfidences(r, ids) {
		if v >= atRiskThreshold {
			n++
		}
	}
	return n
}

// Summary bundles the roll-ups shown at the top of list views and exports.
type Summary struct {
	Total             int
	WithCheckIns      int
	OverallConfidence int
	AtRisk            int
	OnTrack           int
	Orphaned          int
	Closed            int
	Tiers             map[HealthTier]int
	Weekly            *WeeklyTrend
}

// Summarize computes every roll-up for the given OKR ids.
func Summarize(r okrstore.Reader, ids []string) Summary {
	s := Summary{
		Total:             len(ids),
		OverallConfidence: OverallConfidence(r, ids),
		AtRisk:            AtRiskCount(r, ids),
		OnTrack:           OnTrackCount(r, ids),
		Tiers:             make(map[HealthTier]int),
		Weekly:            WeeklyDelta(r, ids),
	}
	for _, id := range ids {
		if o, ok := r.OKR(id); ok {
			if o.IsOrphaned() {
				s.Orphaned++
			}
			if o.Status == okr.StatusClosed {
				s.Closed++
			}
		}
		if ci, ok := LatestCheckIn(r, id); ok {
			s.WithCheckIns++
			s.Tiers[HealthTierFor(ci.Confidence)]++
		}
	}
	return s
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
