package wire

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var shortDayNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
var longDayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
var shortMonthNames = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// FormatTime renders utcEpochSeconds as an RFC 1123 HTTP-date, e.g.
// "Sun, 06 Nov 1994 08:49:37 GMT" (spec section 4.A).
func FormatTime(utcEpochSeconds int64) string {
	t := time.Unix(utcEpochSeconds, 0).UTC()
	return fmt.Sprintf("%s, %02d %s %04d %02d:%02d:%02d GMT",
		shortDayNames[int(t.Weekday())], t.Day(), shortMonthNames[int(t.Month())-1], t.Year(),
		t.Hour(), t.Minute(), t.Second())
}

// ParseTime accepts RFC 1123, RFC 850 (two-digit year assumed 20xx), and
// asctime HTTP-date formats and returns the UTC epoch seconds (spec
// section 4.A). Any time zone other than GMT, or an out-of-range field,
// is an error.
func ParseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)

	if t, err := parseRFC1123(s); err == nil {
		return t, nil
	}
	if t, err := parseRFC850(s); err == nil {
		return t, nil
	}
	if t, err := parseAsctime(s); err == nil {
		return t, nil
	}
	return 0, fmt.Errorf("unrecognized HTTP-date: %q", s)
}

func monthIndex(name string) (int, bool) {
	for i, m := range shortMonthNames {
		if m == name {
			return i + 1, true
		}
	}
	return 0, false
}

func toUnix(year, month, day, hour, min, sec int) (int64, error) {
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("month out of range: %d", month)
	}
	if day < 1 || day > 31 {
		return 0, fmt.Errorf("day out of range: %d", day)
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 60 {
		return 0, fmt.Errorf("time of day out of range")
	}
	t := time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return 0, fmt.Errorf("invalid calendar date")
	}
	return t.Unix(), nil
}

// parseRFC1123 parses "Sun, 06 Nov 1994 08:49:37 GMT".
func parseRFC1123(s string) (int64, error) {
	var wd, mon, zone string
	var day, year, hh, mm, ss int
	n, err := fmt.Sscanf(s, "%3s, %2d %3s %4d %2d:%2d:%2d %3s", &wd, &day, &mon, &year, &hh, &mm, &ss, &zone)
	if err != nil || n != 8 {
		return 0, fmt.Errorf("not RFC1123")
	}
	if zone != "GMT" {
		return 0, fmt.Errorf("unsupported time zone %q", zone)
	}
	month, ok := monthIndex(mon)
	if !ok {
		return 0, fmt.Errorf("bad month %q", mon)
	}
	return toUnix(year, month, day, hh, mm, ss)
}

// parseRFC850 parses "Sunday, 06-Nov-94 08:49:37 GMT".
func parseRFC850(s string) (int64, error) {
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return 0, fmt.Errorf("not RFC850")
	}
	wd := s[:comma]
	found := false
	for _, name := range longDayNames {
		if name == wd {
			found = true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("not RFC850")
	}

	rest := strings.TrimSpace(s[comma+1:])
	var dayStr, mon, yearStr, zone string
	var hh, mm, ss int
	n, err := fmt.Sscanf(rest, "%2s-%3s-%2s %2d:%2d:%2d %3s", &dayStr, &mon, &yearStr, &hh, &mm, &ss, &zone)
	if err != nil || n != 7 {
		return 0, fmt.Errorf("not RFC850")
	}
	if zone != "GMT" {
		return 0, fmt.Errorf("unsupported time zone %q", zone)
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return 0, err
	}
	yy, err := strconv.Atoi(yearStr)
	if err != nil {
		return 0, err
	}
	month, ok := monthIndex(mon)
	if !ok {
		return 0, fmt.Errorf("bad month %q", mon)
	}
	return toUnix(2000+yy, month, day, hh, mm, ss)
}

// parseAsctime parses "Sun Nov  6 08:49:37 1994" (note the space-padded
// day-of-month).
func parseAsctime(s string) (int64, error) {
	var wd, mon, dayStr string
	var hh, mm, ss, year int
	n, err := fmt.Sscanf(s, "%3s %3s %2s %2d:%2d:%2d %4d", &wd, &mon, &dayStr, &hh, &mm, &ss, &year)
	if err != nil || n != 7 {
		return 0, fmt.Errorf("not asctime")
	}
	day, err := strconv.Atoi(strings.TrimSpace(dayStr))
	if err != nil {
		return 0, err
	}
	month, ok := monthIndex(mon)
	if !ok {
		return 0, fmt.Errorf("bad month %q", mon)
	}
	return toUnix(year, month, day, hh, mm, ss)
}
