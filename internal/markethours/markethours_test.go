package markethours

import (
	"strings"
	"testing"
	"time"
)

func ist(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, IST)
}

func TestIsOpen(t *testing.T) {
	c := Default()
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", ist(2026, time.October, 14, 9, 14), false},
		{"at open", ist(2026, time.October, 14, 9, 15), true},
		{"midday", ist(2026, time.October, 14, 12, 0), true},
		{"last minute", ist(2026, time.October, 14, 15, 29), true},
		{"at close", ist(2026, time.October, 14, 15, 30), false},
		{"saturday", ist(2026, time.October, 17, 11, 0), false},
		{"holiday", ist(2026, time.October, 2, 11, 0), false},
		{"utc input", time.Date(2026, time.October, 14, 4, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsOpen(tt.at); got != tt.want {
				t.Errorf("IsOpen(%s) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestNextOpen(t *testing.T) {
	c := Default()

	if got, want := c.NextOpen(ist(2026, time.October, 14, 8, 0)), ist(2026, time.October, 14, 9, 15); !got.Equal(want) {
		t.Errorf("early morning: got %s, want %s", got, want)
	}
	// Friday after close rolls to Monday.
	if got, want := c.NextOpen(ist(2026, time.October, 16, 16, 0)), ist(2026, time.October, 19, 9, 15); !got.Equal(want) {
		t.Errorf("friday evening: got %s, want %s", got, want)
	}
	// Monday 19th after close skips the Dussehra holiday on the 20th.
	if got, want := c.NextOpen(ist(2026, time.October, 19, 16, 0)), ist(2026, time.October, 21, 9, 15); !got.Equal(want) {
		t.Errorf("before holiday: got %s, want %s", got, want)
	}
}

func TestStatus(t *testing.T) {
	c := Default()

	st := c.Status(ist(2026, time.October, 14, 13, 0))
	if !st.Open || st.Phase != PhaseOpen || st.CloseAt == nil {
		t.Fatalf("open status = %+v", st)
	}
	if !strings.Contains(st.Message, "2h30m") {
		t.Errorf("message = %q", st.Message)
	}

	st = c.Status(ist(2026, time.October, 2, 10, 0))
	if st.Open || st.Phase != PhaseHoliday || st.Holiday != "Mahatma Gandhi Jayanti" {
		t.Fatalf("holiday status = %+v", st)
	}

	phases := map[time.Time]Phase{
		ist(2026, time.October, 18, 10, 0): PhaseWeekend,
		ist(2026, time.October, 14, 7, 0):  PhasePreOpen,
		ist(2026, time.October, 14, 18, 0): PhaseClosed,
	}
	for at, want := range phases {
		if got := c.Status(at).Phase; got != want {
			t.Errorf("Status(%s).Phase = %s, want %s", at, got, want)
		}
	}
}

func TestCalendarWithoutHolidays(t *testing.T) {
	c := NewCalendar(nil)
	if !c.IsTradingDay(ist(2026, time.October, 2, 10, 0)) {
		t.Fatal("empty calendar should only close on weekends")
	}
}
