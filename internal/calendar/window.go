// Package calendar projects session records onto a 24-hour work-day
// timeline.
package calendar

import (
	"fmt"
	"time"
)

// DefaultStartHour is the local hour a work day starts and ends at.
const DefaultStartHour = 17

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowContaining returns the work day that contains t, in t's location.
func WindowContaining(t time.Time, startHour int) Window {
	anchor := time.Date(t.Year(), t.Month(), t.Day(), startHour, 0, 0, 0, t.Location())
	if t.Before(anchor) {
		return Window{Start: anchor.AddDate(0, 0, -1), End: anchor}
	}
	return Window{Start: anchor, End: anchor.AddDate(0, 0, 1)}
}

// WindowEndingOn returns the work day that ends at startHour on date's
// calendar day: startHour the previous day to startHour on date.
func WindowEndingOn(date time.Time, startHour int) Window {
	end := time.Date(date.Year(), date.Month(), date.Day(), startHour, 0, 0, 0, date.Location())
	return Window{Start: end.AddDate(0, 0, -1), End: end}
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Offset maps t to [0,1] across the window, clamped.
func (w Window) Offset(t time.Time) float64 {
	d := w.Duration()
	if d <= 0 {
		return 0
	}
	f := float64(t.Sub(w.Start)) / float64(d)
	return min(max(f, 0), 1)
}

// Label renders the window like "Mar 9, 2025, 5pm - Mar 10, 2025, 5pm".
func (w Window) Label() string {
	return fmt.Sprintf("%s, %s - %s, %s",
		w.Start.Format("Jan 2, 2006"), FormatClock(w.Start.Hour(), w.Start.Minute()),
		w.End.Format("Jan 2, 2006"), FormatClock(w.End.Hour(), w.End.Minute()))
}

// FormatClock renders a wall-clock time as "12am", "12pm", "9:30am" or
// "5:00pm".
func FormatClock(hour, minute int) string {
	switch {
	case hour == 0 && minute == 0:
		return "12am"
	case hour == 12 && minute == 0:
		return "12pm"
	case hour < 12:
		h := hour
		if h == 0 {
			h = 12
		}
		return fmt.Sprintf("%d:%02dam", h, minute)
	default:
		h := hour - 12
		if h == 0 {
			h = 12
		}
		return fmt.Sprintf("%d:%02dpm", h, minute)
	}
}

// FormatTotal renders a duration rounded to minutes as "45m" or "2h 5m".
func FormatTotal(d time.Duration) string {
	mins := int(d.Round(time.Minute) / time.Minute)
	if mins < 60 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dh %dm", mins/60, mins%60)
}
