// Package billing provides pure date arithmetic for subscription billing cycles.
package billing

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Remaining describes how much of the current billing cycle is left.
type Remaining struct {
	Days                int     // Calendar days until the cycle boundary (negative when past due)
	CycleLabel          string  // Normalized cycle label
	RemainingPercentage float64 // Fraction of the cycle remaining, capped at 1
}

// CycleLabel maps a billing cycle length in days to a display label.
// A zero or unrecognized length yields an empty label.
func CycleLabel(days int) string {
	if days == 0 {
		return ""
	}
	switch {
	case days >= 360:
		return "year"
	case days >= 180:
		return "half-year"
	case days >= 90:
		return "quarter"
	case days >= 30:
		return "month"
	case days == -1:
		return "one-time"
	}
	return fmt.Sprintf("%d days", days)
}

// NormalizeCycle resolves a free-form cycle label to its canonical form and
// the number of calendar months it spans. Unrecognized labels are returned
// as-is with a one-month span.
func NormalizeCycle(label string) (string, int) {
	switch strings.ToLower(label) {
	case "月", "m", "mo", "month", "monthly":
		return "month", 1
	case "季", "q", "qr", "quarter", "quarterly":
		return "quarter", 3
	case "半", "半年", "h", "half", "half-year", "semi-annually":
		return "half-year", 6
	case "年", "y", "yr", "year", "annual":
		return "year", 12
	}
	return label, 1
}

// Days computes the calendar-day difference between endDate and now.
// The result is rounded to the nearest day and may be negative.
func Days(endDate string, now time.Time) (int, error) {
	end, err := ParseDate(endDate)
	if err != nil {
		return 0, err
	}
	return int(math.Round(end.Sub(now).Hours() / 24)), nil
}

// CycleRemaining computes the days left in the current billing cycle and the
// remaining fraction of the cycle.
//
// Plans that do not auto-renew count down to endDate; the percentage is the
// remaining days over the full start-to-end span and may go negative once the
// plan has expired. Auto-renewing plans whose endDate is still ahead count
// down the same way against a 30-day-per-month cycle span. Auto-renewing
// plans already past endDate are projected forward to the next cycle boundary
// strictly after now.
//
// An error is reported when the cycle span is invalid or a required date does
// not parse; callers treat that as "no billing projection available".
func CycleRemaining(cycle, autoRenewal, startDate, endDate string, now time.Time) (Remaining, error) {
	label, months := NormalizeCycle(cycle)

	end, err := ParseDate(endDate)
	if err != nil {
		return Remaining{}, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}

	if autoRenewal != "1" {
		start, err := ParseDate(startDate)
		if err != nil {
			return Remaining{}, fmt.Errorf("invalid start date %q: %w", startDate, err)
		}
		days := roundDays(end.Sub(now))
		span := int(end.Sub(start).Hours() / 24)
		return Remaining{
			Days:                days,
			CycleLabel:          label,
			RemainingPercentage: capped(float64(days) / float64(span)),
		}, nil
	}

	if now.Before(end) {
		days := roundDays(end.Sub(now))
		return Remaining{
			Days:                days,
			CycleLabel:          label,
			RemainingPercentage: capped(float64(days) / float64(30*months)),
		}, nil
	}

	next, err := NextCycleBoundary(end, months, now)
	if err != nil {
		return Remaining{}, err
	}
	days := int(next.Sub(now).Hours()/24) + 1
	return Remaining{
		Days:                days,
		CycleLabel:          label,
		RemainingPercentage: capped(float64(days) / float64(30*months)),
	}, nil
}

// NextCycleBoundary repeatedly adds months to start until the result is
// strictly after ref, and returns that boundary. It fails fast when the cycle
// span is not positive or start is unset, so a bad cycle can never loop
// forever or yield a nonsense date.
func NextCycleBoundary(start time.Time, months int, ref time.Time) (time.Time, error) {
	if months <= 0 {
		return time.Time{}, fmt.Errorf("cycle span must be positive, got %d months", months)
	}
	if start.IsZero() {
		return time.Time{}, fmt.Errorf("cycle start date is unset")
	}

	next := start
	for !next.After(ref) {
		next = addMonths(next, months)
	}
	return next, nil
}

// addMonths advances t by the given number of calendar months, clamping the
// day of month to the target month's length (Jan 31 + 1 month = Feb 28/29).
func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	first := time.Date(year, month+time.Month(months), 1, hour, min, sec, t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func roundDays(d time.Duration) int {
	return int(math.Round(d.Hours() / 24))
}

func capped(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

// ParseDate accepts the timestamp formats Komari emits: RFC 3339 with or
// without fractional seconds, and plain dates.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}
