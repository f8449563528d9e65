// Package markethours reports the NSE trading session. Ticks are accepted
// regardless of session; this is informational only.
package markethours

import (
	"fmt"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Session hours in IST.
const (
	OpenHour    = 9
	OpenMinute  = 15
	CloseHour   = 15
	CloseMinute = 30
)

// Phase of the trading day.
type Phase string

const (
	PhaseOpen    Phase = "open"
	PhasePreOpen Phase = "pre_open"
	PhaseClosed  Phase = "closed"
	PhaseHoliday Phase = "holiday"
	PhaseWeekend Phase = "weekend"
)

// Status is the session view served on /api/status.
type Status struct {
	Open     bool       `json:"open"`
	Phase    Phase      `json:"phase"`
	Holiday  string     `json:"holiday,omitempty"`
	NextOpen time.Time  `json:"next_open"`
	CloseAt  *time.Time `json:"close_at,omitempty"`
	Message  string     `json:"message"`
}

// Calendar decides session state against a holiday list.
type Calendar struct {
	holidays Holidays
}

// NewCalendar returns a calendar; nil holidays means weekends only.
func NewCalendar(h Holidays) *Calendar {
	if h == nil {
		h = Holidays{}
	}
	return &Calendar{holidays: h}
}

// Default is the NSE calendar.
func Default() *Calendar { return NewCalendar(NSE2026) }

// IsTradingDay reports whether t's IST date is a weekday and not a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	if wd := ist.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, holiday := c.holidays.Name(ist)
	return !holiday
}

// IsOpen reports whether t falls inside 09:15 to 15:30 IST on a trading day.
func (c *Calendar) IsOpen(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	ist := t.In(IST)
	return !ist.Before(openOn(ist)) && ist.Before(closeOn(ist))
}

// NextOpen returns the next session open strictly after t, or today's open
// when t is before it on a trading day.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	ist := t.In(IST)
	if c.IsTradingDay(ist) && ist.Before(openOn(ist)) {
		return openOn(ist)
	}
	d := ist
	for i := 0; i < 30; i++ {
		d = d.AddDate(0, 0, 1)
		if c.IsTradingDay(d) {
			return openOn(d)
		}
	}
	return openOn(ist.AddDate(0, 0, 1))
}

// Status summarises the session at t.
func (c *Calendar) Status(t time.Time) Status {
	ist := t.In(IST)
	st := Status{NextOpen: c.NextOpen(ist)}

	switch name, holiday := c.holidays.Name(ist); {
	case ist.Weekday() == time.Saturday || ist.Weekday() == time.Sunday:
		st.Phase = PhaseWeekend
	case holiday:
		st.Phase = PhaseHoliday
		st.Holiday = name
	case ist.Before(openOn(ist)):
		st.Phase = PhasePreOpen
	case ist.Before(closeOn(ist)):
		st.Phase = PhaseOpen
		st.Open = true
		closeAt := closeOn(ist)
		st.CloseAt = &closeAt
	default:
		st.Phase = PhaseClosed
	}

	if st.Open {
		st.Message = fmt.Sprintf("Market open, closes in %s", fmtDur(st.CloseAt.Sub(ist)))
	} else {
		st.Message = fmt.Sprintf("Market closed, opens %s %s (%s)",
			st.NextOpen.Weekday().String()[:3], st.NextOpen.Format("15:04"), fmtDur(st.NextOpen.Sub(ist)))
	}
	return st
}

func openOn(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, IST)
}

func closeOn(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), CloseHour, CloseMinute, 0, 0, IST)
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
