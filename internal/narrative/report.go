package narrative

import (
	"fmt"
	"sort"
	"strings"

	"okrtrack/internal/insights"
	"okrtrack/internal/okr"
)

// Input is everything the generator needs for one quarter and scope.
type Input struct {
	Quarter    string
	ScopeLabel string
	OKRs       []insights.OKRWithDetails
	Summary    *insights.Summary
}

// Entry is one classified OKR.
type Entry struct {
	OKRID      string
	Objective  string
	OwnerName  string
	Bucket     Bucket
	Rule       string
	Trajectory Trajectory
}

// RootCauseCount is how often a root cause was cited across the quarter.
type RootCauseCount struct {
	Cause okr.RootCause
	Count int
}

// Report is the narrative for a quarter.
type Report struct {
	Quarter    string
	ScopeLabel string
	Entries    []Entry
	RootCauses []RootCauseCount
	Summary    *insights.Summary
}

// bucketOrder is the order buckets are presented in.
var bucketOrder = []Bucket{
	BucketSteadyHigh,
	BucketRecovered,
	BucketStruggledEarly,
	BucketLateSurprise,
	BucketDidNotRecover,
	BucketPersistentlyAtRisk,
	BucketInsufficientData,
}

// Generate classifies every OKR and tallies the root causes cited in their
// check-ins. Entries keep the input order.
func Generate(in Input) Report {
	rep := Report{
		Quarter:    in.Quarter,
		ScopeLabel: in.ScopeLabel,
		Summary:    in.Summary,
	}
	tally := make(map[okr.RootCause]int)
	for _, d := range in.OKRs {
		c := Classify(d.CheckIns)
		rep.Entries = append(rep.Entries, Entry{
			OKRID:      d.OKR.ID,
			Objective:  d.OKR.ObjectiveText,
			OwnerName:  d.OwnerName,
			Bucket:     c.Bucket,
			Rule:       c.Rule,
			Trajectory: c.Trajectory,
		})
		for _, ci := range d.CheckIns {
			if ci.RootCause != nil {
				tally[*ci.RootCause]++
			}
		}
	}

	for _, cause := range okr.RootCauses {
		if n := tally[cause]; n > 0 {
			rep.RootCauses = append(rep.RootCauses, RootCauseCount{Cause: cause, Count: n})
		}
	}
	sort.SliceStable(rep.RootCauses, func(i, j int) bool {
		return rep.RootCauses[i].Count > rep.RootCauses[j].Count
	})
	return rep
}

// ByBucket groups entries by bucket, keeping entry order within a bucket.
func (r Report) ByBucket() map[Bucket][]Entry {
	out := make(map[Bucket][]Entry)
	for _, e := range r.Entries {
		out[e.Bucket] = append(out[e.Bucket], e)
	}
	return out
}

// Text renders the report as plain text.
func (r Report) Text() string {
	var b strings.Builder

	title := fmt.Sprintf("%s narrative", okr.FormatQuarter(r.Quarter))
	if r.ScopeLabel != "" {
		title += ": " + r.ScopeLabel
	}
	b.WriteString(title + "\n")

	if s := r.Summary; s != nil {
		fmt.Fprintf(&b, "Overall confidence %d%% across %d OKRs (%d at risk, %d on track).\n",
			s.OverallConfidence, s.Total, s.AtRisk, s.OnTrack)
		if s.Weekly != nil {
			fmt.Fprintf(&b, "Week over week: %s.\n", describeDelta(s.Weekly.Delta))
		}
	}

	groups := r.ByBucket()
	for _, bucket := range bucketOrder {
		entries := groups[bucket]
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s (%d)\n", bucket.Title(), len(entries))
		for _, e := range entries {
			fmt.Fprintf(&b, "- %s%s\n", label(e), sentence(e))
		}
	}

	if len(r.RootCauses) > 0 {
		b.WriteString("\nRoot causes\n")
		for _, rc := range r.RootCauses {
			fmt.Fprintf(&b, "- %s: %d\n", strings.ReplaceAll(string(rc.Cause), "_", " "), rc.Count)
		}
	}
	return b.String()
}

func label(e Entry) string {
	if e.OwnerName == "" {
		return e.Objective
	}
	return fmt.Sprintf("%s (%s)", e.Objective, e.OwnerName)
}

func sentence(e Entry) string {
	t := e.Trajectory
	switch e.Bucket {
	case BucketSteadyHigh:
		switch {
		case t.Last > t.First:
			return fmt.Sprintf(": confidence finished at %s, up from %s.", pct(t.Last), pct(t.First))
		case t.Last < t.First:
			return fmt.Sprintf(": confidence finished at %s, down from %s.", pct(t.Last), pct(t.First))
		}
		return fmt.Sprintf(": confidence held level at %s.", pct(t.Last))
	case BucketPersistentlyAtRisk:
		return fmt.Sprintf(": confidence stayed low, from %s to %s.", pct(t.First), pct(t.Last))
	case BucketRecovered:
		return fmt.Sprintf(": dipped to %s before recovering to %s.", pct(t.Low), pct(t.Last))
	case BucketLateSurprise:
		return fmt.Sprintf(": started at %s and dropped to %s at the end of the quarter.", pct(t.First), pct(t.Last))
	case BucketDidNotRecover:
		return fmt.Sprintf(": fell from %s to a low of %s and finished at %s.", pct(t.First), pct(t.Low), pct(t.Last))
	case BucketStruggledEarly:
		return fmt.Sprintf(": started at %s, reached %s mid-quarter and finished at %s.", pct(t.First), pct(t.Mid), pct(t.Last))
	case BucketInsufficientData:
		return ": fewer than two check-ins."
	}
	return ""
}

func describeDelta(delta int) string {
	switch {
	case delta > 0:
		return fmt.Sprintf("up %d points", delta)
	case delta < 0:
		return fmt.Sprintf("down %d points", -delta)
	default:
		return "unchanged"
	}
}

func pct(v float64) string {
	return fmt.Sprintf("%g%%", v)
}
