package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a time of day, stored as seconds since midnight.
type ClockTime int

var clockPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])(?::([0-5][0-9]))?$`)

var (
	DefaultDayStart = ClockTime(9 * 3600)
	DefaultDayEnd   = ClockTime(17 * 3600)
)

const DateLayout = "2006-01-02"

// ParseClock accepts H:MM, HH:MM and HH:MM:SS.
func ParseClock(s string) (ClockTime, error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM or HH:MM:SS", s)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec := 0
	if m[3] != "" {
		sec, _ = strconv.Atoi(m[3])
	}
	return ClockTime(h*3600 + min*60 + sec), nil
}

// String renders the canonical HH:MM:SS form.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, (int(c)%3600)/60, int(c)%60)
}

// HHMM renders the display form used in slot listings.
func (c ClockTime) HHMM() string {
	return fmt.Sprintf("%02d:%02d", int(c)/3600, (int(c)%3600)/60)
}

// On places the clock time on the given date as a wall-clock reading in the
// date's location, so DST transitions do not shift it.
func (c ClockTime) On(date time.Time) time.Time {
	y, m, d := date.Date()
	h, min, sec := int(c)/3600, (int(c)%3600)/60, int(c)%60
	return time.Date(y, m, d, h, min, sec, 0, date.Location())
}

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// DateOf truncates t to midnight in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate reads YYYY-MM-DD as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
}
