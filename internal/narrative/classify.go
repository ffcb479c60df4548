// Package narrative turns check-in histories into narrative buckets and
// quarter summary text.
package narrative

import (
	"sort"

	"okrtrack/internal/okr"
)

// Bucket is the narrative an OKR's quarter is told with.
type Bucket string

const (
	BucketSteadyHigh         Bucket = "steady_high"
	BucketPersistentlyAtRisk Bucket = "persistently_at_risk"
	BucketRecovered          Bucket = "recovered"
	BucketLateSurprise       Bucket = "late_surprise"
	BucketDidNotRecover      Bucket = "did_not_recover"
	BucketStruggledEarly     Bucket = "struggled_early"
	BucketInsufficientData   Bucket = "insufficient_data"
)

// Title is the heading used for a bucket in reports.
func (b Bucket) Title() string {
	switch b {
	case BucketSteadyHigh:
		return "Steady high"
	case BucketPersistentlyAtRisk:
		return "Persistently at risk"
	case BucketRecovered:
		return "Recovered"
	case BucketLateSurprise:
		return "Late surprise"
	case BucketDidNotRecover:
		return "Did not recover"
	case BucketStruggledEarly:
		return "Struggled early"
	case BucketInsufficientData:
		return "Insufficient data"
	}
	return string(b)
}

// Trajectory is the shape of one OKR's confidence over the quarter.
// First, Mid and Last come from the chronologically ordered check-ins, with
// Mid at index n/2 rounded down. LowIndex is the first index of the minimum.
type Trajectory struct {
	N        int
	First    float64
	Mid      float64
	Last     float64
	Low      float64
	LowIndex int
}

// lowInLastTwo reports whether the lowest point fell in the final two check-ins.
func (t Trajectory) lowInLastTwo() bool {
	return t.LowIndex >= t.N-2
}

// Rule is one step of the classifier. Rules are tried in order and the first
// match wins.
type Rule struct {
	Name   string
	Bucket Bucket
	Match  func(Trajectory) bool
}

// Rules is the classifier, in evaluation order.
var Rules = []Rule{
	{
		Name:   "high throughout",
		Bucket: BucketSteadyHigh,
		Match:  func(t Trajectory) bool { return t.Last >= 75 && t.First >= 60 },
	},
	{
		Name:   "low throughout",
		Bucket: BucketPersistentlyAtRisk,
		Match:  func(t Trajectory) bool { return t.Last < 40 && t.First < 50 },
	},
	{
		Name:   "dipped then rose",
		Bucket: BucketRecovered,
		Match:  func(t Trajectory) bool { return t.Mid < t.First && t.Last > t.Mid },
	},
	{
		Name:   "fell late from a high start",
		Bucket: BucketLateSurprise,
		Match:  func(t Trajectory) bool { return t.First >= 60 && t.Last < 50 && t.lowInLastTwo() },
	},
	{
		Name:   "fell from a high start",
		Bucket: BucketDidNotRecover,
		Match:  func(t Trajectory) bool { return t.First >= 60 && t.Last < 50 },
	},
	{
		Name:   "sharp early drop",
		Bucket: BucketStruggledEarly,
		Match:  func(t Trajectory) bool { return t.Mid < t.First-10 },
	},
	{
		Name:   "fallback high finish",
		Bucket: BucketSteadyHigh,
		Match:  func(t Trajectory) bool { return t.Last >= 60 },
	},
	{
		Name:   "fallback",
		Bucket: BucketStruggledEarly,
		Match:  func(Trajectory) bool { return true },
	},
}

// Classification is the result of classifying one check-in history.
type Classification struct {
	Bucket     Bucket
	Rule       string
	Trajectory Trajectory
}

// Chronological returns the check-ins oldest first. Check-ins sharing a
// date keep their relative order.
func Chronological(checkIns []okr.CheckIn) []okr.CheckIn {
	out := append([]okr.CheckIn(nil), checkIns...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// TrajectoryOf summarizes chronologically ordered check-ins. It needs at
// least one check-in.
func TrajectoryOf(ordered []okr.CheckIn) Trajectory {
	n := len(ordered)
	t := Trajectory{
		N:     n,
		First: ordered[0].Confidence,
		Mid:   ordered[n/2].Confidence,
		Last:  ordered[n-1].Confidence,
		Low:   ordered[0].Confidence,
	}
	for i, ci := range ordered {
		if ci.Confidence < t.Low {
			t.Low = ci.Confidence
			t.LowIndex = i
		}
	}
	return t
}

// Classify assigns a bucket to a check-in history in any order. Fewer than
// two check-ins is insufficient data.
func Classify(checkIns []okr.CheckIn) Classification {
	if len(checkIns) < 2 {
		c := Classification{Bucket: BucketInsufficientData}
		if len(checkIns) == 1 {
			c.Trajectory = TrajectoryOf(checkIns)
		}
		return c
	}
	t := TrajectoryOf(Chronological(checkIns))
	for _, rule := range Rules {
		if rule.Match(t) {
			return Classification{Bucket: rule.Bucket, Rule: rule.Name, Trajectory: t}
		}
	}
	// Unreachable: the last rule always matches.
	return Classification{Bucket: BucketStruggledEarly, Trajectory: t}
}
