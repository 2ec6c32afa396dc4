package calculator

import (
	"fmt"
	"time"
)

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Days returns the start of each calendar day in the window.
func (w Window) Days() []time.Time {
	var days []time.Time
	for d := StartOfDay(w.Start); d.Before(w.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Period names accepted by PeriodWindow.
const (
	PeriodWeek      = "week"
	PeriodMonth     = "month"
	PeriodLastWeek  = "last_week"
	PeriodLastMonth = "last_month"
)

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns Monday 00:00 of t's ISO week.
func StartOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return StartOfDay(t).AddDate(0, 0, -offset)
}

// StartOfMonth returns the first day of t's month at midnight.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// MonthKey formats t as the YYYY-MM key budgets are stored under.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// through is the exclusive upper bound that still includes now at the
// one-second resolution the store keeps.
func through(now time.Time) time.Time {
	return now.Truncate(time.Second).Add(time.Second)
}

// MonthToDate is the current calendar month through now.
func MonthToDate(now time.Time) Window {
	return Window{Start: StartOfMonth(now), End: through(now)}
}

// WeekToDate is the current ISO week (from Monday) through now.
func WeekToDate(now time.Time) Window {
	return Window{Start: StartOfWeek(now), End: through(now)}
}

// DayToDate is the current calendar day through now.
func DayToDate(now time.Time) Window {
	return Window{Start: StartOfDay(now), End: through(now)}
}

// PeriodWindow resolves a reporting period name relative to now.
func PeriodWindow(period string, now time.Time) (Window, error) {
	switch period {
	case PeriodWeek:
		return WeekToDate(now), nil
	case PeriodMonth:
		return MonthToDate(now), nil
	case PeriodLastWeek:
		thisWeek := StartOfWeek(now)
		return Window{Start: thisWeek.AddDate(0, 0, -7), End: thisWeek}, nil
	case PeriodLastMonth:
		thisMonth := StartOfMonth(now)
		return Window{Start: thisMonth.AddDate(0, -1, 0), End: thisMonth}, nil
	default:
		return Window{}, fmt.Errorf("unknown period %q", period)
	}
}
