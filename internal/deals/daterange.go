package deals

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the accepted date format for range bounds.
const DateLayout = "2006-01-02"

// DateRange is a createdate window, both bounds at midnight UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// DefaultRange returns [today - lookbackMonths, today + 1 day].
func DefaultRange(now time.Time, lookbackMonths int) DateRange {
	today := midnight(now)
	return DateRange{
		Start: today.AddDate(0, -lookbackMonths, 0),
		End:   today.AddDate(0, 0, 1),
	}
}

// ParseRange builds a range from YYYY-MM-DD strings. Empty bounds fall back
// to the default window.
func ParseRange(start, end string, now time.Time, lookbackMonths int) (DateRange, error) {
	r := DefaultRange(now, lookbackMonths)
	if start != "" {
		t, err := time.Parse(DateLayout, start)
		if err != nil {
			return DateRange{}, eris.Wrapf(err, "deals: invalid start date %q", start)
		}
		r.Start = t
	}
	if end != "" {
		t, err := time.Parse(DateLayout, end)
		if err != nil {
			return DateRange{}, eris.Wrapf(err, "deals: invalid end date %q", end)
		}
		r.End = t
	}
	if r.End.Before(r.Start) {
		return DateRange{}, eris.Errorf("deals: end date %s is before start date %s",
			r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	return r, nil
}

// StartMillis returns the start bound as epoch milliseconds.
func (r DateRange) StartMillis() string {
	return strconv.FormatInt(r.Start.UnixMilli(), 10)
}

// EndMillis returns the end bound as epoch milliseconds.
func (r DateRange) EndMillis() string {
	return strconv.FormatInt(r.End.UnixMilli(), 10)
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s-%s", r.Start.Format(DateLayout), r.End.Format(DateLayout))
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
