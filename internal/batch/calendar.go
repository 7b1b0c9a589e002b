package batch

import (
	"fmt"
	"strings"
	"time"
)

// Calendar decides which dates the clearing house settles on.
type Calendar interface {
	IsBusinessDay(d time.Time) bool
}

// DefaultWeekend is Friday and Saturday.
var DefaultWeekend = []time.Weekday{time.Friday, time.Saturday}

const holidayFormat = "2006-01-02"

// WeekendCalendar closes on fixed weekdays and listed holidays.
type WeekendCalendar struct {
	weekend  map[time.Weekday]bool
	holidays map[time.Time]bool
}

// NewWeekendCalendar builds a calendar from weekday names ("friday", "sat")
// and holiday dates in YYYY-MM-DD form. An empty weekend means DefaultWeekend.
func NewWeekendCalendar(weekend, holidays []string) (*WeekendCalendar, error) {
	c := &WeekendCalendar{
		weekend:  make(map[time.Weekday]bool),
		holidays: make(map[time.Time]bool),
	}
	if len(weekend) == 0 {
		for _, d := range DefaultWeekend {
			c.weekend[d] = true
		}
	}
	for _, name := range weekend {
		d, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		c.weekend[d] = true
	}
	for _, h := range holidays {
		t, err := time.Parse(holidayFormat, h)
		if err != nil {
			return nil, fmt.Errorf("parsing holiday %q: %w", h, err)
		}
		c.holidays[t] = true
	}
	return c, nil
}

// IsBusinessDay implements Calendar.
func (c *WeekendCalendar) IsBusinessDay(d time.Time) bool {
	d = Day(d)
	return !c.weekend[d.Weekday()] && !c.holidays[d]
}

// NextBusinessDay returns the first business day on or after d.
func NextBusinessDay(c Calendar, d time.Time) time.Time {
	d = Day(d)
	for i := 0; i < 366 && !c.IsBusinessDay(d); i++ {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func parseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if n == full || (len(n) >= 3 && strings.HasPrefix(full, n)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}
