package insights

import "sort"

// HealthTier buckets an OKR's latest confidence for list views and urgency
// sorting. Its High bar is 70, unlike the 75 used by okr.ConfidenceLabel for
// individual check-ins.
type HealthTier string

const (
	TierLow    HealthTier = "low"
	TierMedium HealthTier = "medium"
	TierHigh   HealthTier = "high"
)

const (
	tierHighThreshold   = 70
	tierMediumThreshold = 40
)

// HealthTierFor returns Low below 40, Medium for 40 through 69 and High from 70.
func HealthTierFor(confidence float64) HealthTier {
	switch {
	case confidence >= tierHighThreshold:
		return TierHigh
	case confidence >= tierMediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

func tierRank(t HealthTier) int {
	switch t {
	case TierLow:
		return 0
	case TierMedium:
		return 1
	default:
		return 2
	}
}

// SortByUrgency orders views most urgent first: by health tier, then by
// ascending confidence. OKRs without a check-in go last. The sort is stable.
func SortByUrgency(details []OKRWithDetails) {
	sort.SliceStable(details, func(i, j int) bool {
		ci, iok := details[i].LatestConfidence()
		cj, jok := details[j].LatestConfidence()
		if iok != jok {
			return iok
		}
		if !iok {
			return false
		}
		ti, tj := tierRank(HealthTierFor(ci)), tierRank(HealthTierFor(cj))
		if ti != tj {
			return ti < tj
		}
		return ci < cj
	})
}
