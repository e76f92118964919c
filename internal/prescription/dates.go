package prescription

import (
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ComputeEndDate derives a treatment end date from a start date in any of the
// spellings ParseDateLiberal accepts and a free-text duration like "10 days",
// "2 weeks" or "6 months". The duration must be exactly two tokens, amount
// then unit; anything else is not an error, the end date is simply unknown
// (ok=false). The end date is always ISO formatted.
func ComputeEndDate(startDate, duration string) (string, bool) {
	start, ok := ParseDateLiberal(startDate)
	if !ok {
		return "", false
	}

	parts := strings.Fields(strings.ToLower(strings.TrimSpace(duration)))
	if len(parts) != 2 {
		return "", false
	}
	amount, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", false
	}
	unit := parts[1]

	var end time.Time
	switch {
	case strings.Contains(unit, "month"):
		// Calendar month arithmetic keeping the day of month fixed. A day
		// that does not exist in the target month (Jan 31 + 1 month) means
		// the end date is undefined, not a rollover into the next month.
		month := int(start.Month()) + amount
		year := start.Year() + (month-1)/12
		month = (month-1)%12 + 1
		end = time.Date(year, time.Month(month), start.Day(), 0, 0, 0, 0, time.UTC)
		if end.Day() != start.Day() {
			return "", false
		}
	case strings.Contains(unit, "week"):
		end = start.AddDate(0, 0, 7*amount)
	case strings.Contains(unit, "day"):
		end = start.AddDate(0, 0, amount)
	default:
		return "", false
	}
	return end.Format(dateLayout), true
}

// ParseDateLiberal accepts the date spellings models actually emit.
func ParseDateLiberal(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{dateLayout, "02/01/2006", "2006/01/02", "02-01-2006", "January 2, 2006", "2 January 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
