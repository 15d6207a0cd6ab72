package schedule

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	slotStep = 30 // minutes
)

var (
	ErrInvalidDate = errors.New("invalid date format, use YYYY-MM-DD")
	ErrInvalidTime = errors.New("invalid time format, use HH:MM")
	ErrPastDate    = errors.New("cannot book appointments in the past")

	ErrSlotUnavailable = errors.New("time slot is not available")
)

type window struct {
	from, to int // minutes of day; to is inclusive when closed is true
	closed   bool
}

// windows are the bookable opening hours for a weekday. Mornings run 09:00 to
// 13:00 inclusive; afternoons start at 14:00 and close at 20:00, or 18:00 on
// Sundays, with the closing time itself not bookable.
func windows(day time.Weekday) []window {
	closing := 20 * 60
	if day == time.Sunday {
		closing = 18 * 60
	}
	return []window{
		{from: 9 * 60, to: 13 * 60, closed: true},
		{from: 14 * 60, to: closing},
	}
}

// AvailableSlots lists bookable HH:MM start times on date, minus booked ones.
// When date falls on the same calendar day as now, slots at or before the
// current minute are dropped too.
func AvailableSlots(date time.Time, booked []string, now time.Time) []string {
	taken := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}

	cutoff := -1
	if sameDay(date, now.In(date.Location())) {
		local := now.In(date.Location())
		cutoff = local.Hour()*60 + local.Minute()
	}

	var slots []string
	for _, w := range windows(date.Weekday()) {
		for m := w.from; m < w.to || (w.closed && m == w.to); m += slotStep {
			if m <= cutoff {
				continue
			}
			label := fmt.Sprintf("%02d:%02d", m/60, m%60)
			if _, ok := taken[label]; ok {
				continue
			}
			slots = append(slots, label)
		}
	}
	return slots
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseDate parses YYYY-MM-DD as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// CheckNotPast rejects dates before today in the date's location.
func CheckNotPast(date, now time.Time) error {
	today := StartOfDay(now.In(date.Location()))
	if date.Before(today) {
		return ErrPastDate
	}
	return nil
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ValidateTime accepts a zero-padded 24h HH:MM.
func ValidateTime(s string) error {
	if len(s) != len(TimeLayout) {
		return ErrInvalidTime
	}
	if _, err := time.Parse(TimeLayout, s); err != nil {
		return ErrInvalidTime
	}
	return nil
}

// At combines a YYYY-MM-DD date and HH:MM time into an instant in loc.
func At(date, hhmm string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	if err := ValidateTime(hhmm); err != nil {
		return time.Time{}, err
	}
	t, _ := time.Parse(TimeLayout, hhmm)
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// Label formats an instant as HH:MM in loc.
func Label(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimeLayout)
}
