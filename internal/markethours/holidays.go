package markethours

import "time"

// Holidays is a set of exchange-closed dates keyed by "2006-01-02" in IST.
type Holidays map[string]string

// NSE2026 lists the NSE trading holidays for 2026.
var NSE2026 = Holidays{
	"2026-01-26": "Republic Day",
	"2026-02-17": "Mahashivratri",
	"2026-03-14": "Holi",
	"2026-03-31": "Id-ul-Fitr",
	"2026-04-02": "Ram Navami",
	"2026-04-06": "Mahavir Jayanti",
	"2026-04-10": "Good Friday",
	"2026-04-14": "Dr. Ambedkar Jayanti",
	"2026-05-01": "Maharashtra Day",
	"2026-06-07": "Bakri Id",
	"2026-07-06": "Muharram",
	"2026-08-15": "Independence Day",
	"2026-09-05": "Milad-un-Nabi",
	"2026-10-02": "Mahatma Gandhi Jayanti",
	"2026-10-20": "Dussehra",
	"2026-11-06": "Diwali Balipratipada",
	"2026-11-19": "Guru Nanak Jayanti",
	"2026-12-25": "Christmas",
}

// Name returns the holiday falling on t's IST date, if any.
func (h Holidays) Name(t time.Time) (string, bool) {
	name, ok := h[dateKey(t)]
	return name, ok
}

func dateKey(t time.Time) string {
	return t.In(IST).Format("2006-01-02")
}
