package insights

import (
	"math"

	"okrtrack/internal/okr"
)

// KeyResultPercent returns how far a key result has moved from its baseline
// toward its target, clamped to 0-100. Targets below the baseline count as
// reductions.
func KeyResultPercent(kr okr.KeyResult) float64 {
	return percentToTarget(kr.Baseline, kr.TargetValue, kr.CurrentValue)
}

// KeyResultsPercent averages KeyResultPercent over krs. It returns 0 for none.
func KeyResultsPercent(krs []okr.KeyResult) float64 {
	if len(krs) == 0 {
		return 0
	}
	var sum float64
	for _, kr := range krs {
		sum += KeyResultPercent(kr)
	}
	return sum / float64(len(krs))
}

func percentToTarget(baseline, target, current float64) float64 {
	if baseline == target {
		if current >= target {
			return 100
		}
		return 0
	}

	var progress float64
	if target > baseline {
		progress = (current - baseline) / (target - baseline)
	} else {
		progress = (baseline - current) / (baseline - target)
	}

	if math.IsNaN(progress) || math.IsInf(progress, 0) {
		return 0
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return progress * 100
}
