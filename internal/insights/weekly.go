package insights

import (
	"sort"
	"time"

	"okrtrack/internal/okr"
	"okrtrack/internal/okrstore"
)

// WeeklyTrend compares average confidence between the two most recent weeks
// that have check-ins.
type WeeklyTrend struct {
	CurrentWeek     time.Time
	PreviousWeek    time.Time
	CurrentAverage  int
	PreviousAverage int
	Delta           int
}

// WeekStart returns the Sunday that starts the week containing date.
func WeekStart(date time.Time) time.Time {
	d := okr.DateOnly(date)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// WeeklyDelta groups the check-ins of ids into Sunday-aligned weeks and
// compares the two most recent weeks. It returns nil when the check-ins span
// fewer than two distinct dates or fewer than two weeks.
func WeeklyDelta(r okrstore.Reader, ids []string) *WeeklyTrend {
	type bucket struct {
		sum   float64
		count int
	}
	weeks := make(map[time.Time]*bucket)
	dates := make(map[time.Time]struct{})

	for _, id := range ids {
		for _, ci := range r.CheckInsFor(id) {
			day := okr.DateOnly(ci.Date)
			dates[day] = struct{}{}
			start := WeekStart(day)
			b, ok := weeks[start]
			if !ok {
				b = &bucket{}
				weeks[start] = b
			}
			b.sum += ci.Confidence
			b.count++
		}
	}
	if len(dates) < 2 || len(weeks) < 2 {
		return nil
	}

	starts := make([]time.Time, 0, len(weeks))
	for start := range weeks {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].After(starts[j]) })

	current, previous := weeks[starts[0]], weeks[starts[1]]
	trend := &WeeklyTrend{
		CurrentWeek:     starts[0],
		PreviousWeek:    starts[1],
		CurrentAverage:  roundHalfUp(current.sum / float64(current.count)),
		PreviousAverage: roundHalfUp(previous.sum / float64(previous.count)),
	}
	trend.Delta = trend.CurrentAverage - trend.PreviousAverage
	return trend
}
