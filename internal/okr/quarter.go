package okr

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// ErrInvalidQuarter is returned for values that are not "YYYY-Qn".
var ErrInvalidQuarter = errors.New("invalid quarter")

// Quarter is a parsed "YYYY-Qn" value.
type Quarter struct {
	Year int
	Num  int
}

// String renders the canonical "YYYY-Qn" form.
func (q Quarter) String() string {
	return fmt.Sprintf("%d-Q%d", q.Year, q.Num)
}

// Next returns the following quarter, rolling Q4 into Q1 of the next year.
func (q Quarter) Next() Quarter {
	if q.Num >= 4 {
		return Quarter{Year: q.Year + 1, Num: 1}
	}
	return Quarter{Year: q.Year, Num: q.Num + 1}
}

// Previous returns the preceding quarter, rolling Q1 back into Q4.
func (q Quarter) Previous() Quarter {
	if q.Num <= 1 {
		return Quarter{Year: q.Year - 1, Num: 4}
	}
	return Quarter{Year: q.Year, Num: q.Num - 1}
}

// ParseQuarter parses "YYYY-Qn".
func ParseQuarter(value string) (Quarter, error) {
	yearPart, numPart, ok := strings.Cut(strings.TrimSpace(value), "-Q")
	if !ok {
		return Quarter{}, errors.Wrapf(ErrInvalidQuarter, "%q (expected YYYY-Qn)", value)
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil || len(yearPart) != 4 {
		return Quarter{}, errors.Wrapf(ErrInvalidQuarter, "year in %q", value)
	}
	num, err := strconv.Atoi(numPart)
	if err != nil || num < 1 || num > 4 {
		return Quarter{}, errors.Wrapf(ErrInvalidQuarter, "number in %q", value)
	}
	return Quarter{Year: year, Num: num}, nil
}

// QuarterFor returns the calendar quarter containing t.
func QuarterFor(t time.Time) Quarter {
	return Quarter{Year: t.Year(), Num: (int(t.Month())-1)/3 + 1}
}

// FormatQuarter turns "YYYY-Qn" into "Qn YYYY". Unparseable input is returned as is.
func FormatQuarter(value string) string {
	q, err := ParseQuarter(value)
	if err != nil {
		return value
	}
	return fmt.Sprintf("Q%d %d", q.Num, q.Year)
}

// NextQuarter returns the quarter string after value.
func NextQuarter(value string) (string, error) {
	q, err := ParseQuarter(value)
	if err != nil {
		return "", err
	}
	return q.Next().String(), nil
}

// PreviousQuarter returns the quarter string before value.
func PreviousQuarter(value string) (string, error) {
	q, err := ParseQuarter(value)
	if err != nil {
		return "", err
	}
	return q.Previous().String(), nil
}

// NextCheckInDate adds a flat 7 or 14 days to the last check-in date.
// Unknown cadences are treated as weekly.
func NextCheckInDate(last time.Time, cadence Cadence) time.Time {
	days := 7
	if cadence == CadenceBiweekly {
		days = 14
	}
	return last.Add(time.Duration(days) * 24 * time.Hour)
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the calendar date format used for check-in dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
}
