package okr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfidenceLabelBoundaries(t *testing.T) {
	cases := []struct {
		confidence float64
		want       ConfidenceLabel
	}{
		{0, LabelLow},
		{39, LabelLow},
		{39.9, LabelLow},
		{40, LabelMedium},
		{74, LabelMedium},
		{75, LabelHigh},
		{100, LabelHigh},
		{150, LabelHigh},
		{-5, LabelLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ConfidenceLabelFor(tc.confidence), "confidence %v", tc.confidence)
	}
}

func TestConfidenceLabelFullRange(t *testing.T) {
	for c := 0; c <= 100; c++ {
		got := ConfidenceLabelFor(float64(c))
		switch {
		case c >= 75:
			require.Equal(t, LabelHigh, got, "c=%d", c)
		case c >= 40:
			require.Equal(t, LabelMedium, got, "c=%d", c)
		default:
			require.Equal(t, LabelLow, got, "c=%d", c)
		}
	}
}

func TestTrendOf(t *testing.T) {
	fifty := &CheckIn{Confidence: 50}
	sixty := &CheckIn{Confidence: 60}

	assert.Equal(t, TrendFlat, TrendOf(nil, sixty))
	assert.Equal(t, TrendFlat, TrendOf(sixty, nil))
	assert.Equal(t, TrendUp, TrendOf(sixty, fifty))
	assert.Equal(t, TrendDown, TrendOf(fifty, sixty))
	assert.Equal(t, TrendFlat, TrendOf(fifty, &CheckIn{Confidence: 50, Progress: 90}))
}

func TestQuarterArithmetic(t *testing.T) {
	next, err := NextQuarter("2025-Q4")
	require.NoError(t, err)
	assert.Equal(t, "2026-Q1", next)

	prev, err := PreviousQuarter("2025-Q1")
	require.NoError(t, err)
	assert.Equal(t, "2024-Q4", prev)

	next, err = NextQuarter("2025-Q2")
	require.NoError(t, err)
	assert.Equal(t, "2025-Q3", next)

	_, err = NextQuarter("2025-Q5")
	assert.ErrorIs(t, err, ErrInvalidQuarter)
	_, err = ParseQuarter("Q1 2025")
	assert.ErrorIs(t, err, ErrInvalidQuarter)
	_, err = ParseQuarter("25-Q1")
	require.ErrorIs(t, err, ErrInvalidQuarter)
	assert.Equal(t, `year in "25-Q1": invalid quarter`, err.Error())
}

func TestFormatQuarter(t *testing.T) {
	assert.Equal(t, "Q3 2025", FormatQuarter("2025-Q3"))
	assert.Equal(t, "garbage", FormatQuarter("garbage"))
}

func TestQuarterFor(t *testing.T) {
	assert.Equal(t, Quarter{Year: 2026, Num: 4}, QuarterFor(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, Quarter{Year: 2026, Num: 1}, QuarterFor(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)))
}

func TestNextCheckInDate(t *testing.T) {
	last := time.Date(2025, 12, 28, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), NextCheckInDate(last, CadenceWeekly))
	assert.Equal(t, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), NextCheckInDate(last, CadenceBiweekly))
}

func TestIsOrphaned(t *testing.T) {
	assert.False(t, OKR{Level: LevelProductArea}.IsOrphaned())
	assert.True(t, OKR{Level: LevelDomain}.IsOrphaned())
	assert.True(t, OKR{Level: LevelTeam}.IsOrphaned())
	assert.False(t, OKR{Level: LevelTeam, ParentOKRID: Ptr("p")}.IsOrphaned())
}

func TestValidParentLevel(t *testing.T) {
	assert.True(t, ValidParentLevel(LevelDomain, LevelTeam))
	assert.True(t, ValidParentLevel(LevelProductArea, LevelTeam))
	assert.True(t, ValidParentLevel(LevelProductArea, LevelDomain))
	assert.False(t, ValidParentLevel(LevelTeam, LevelDomain))
	assert.False(t, ValidParentLevel(LevelDomain, LevelDomain))
	assert.False(t, ValidParentLevel(LevelProductArea, LevelProductArea))
}
