package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	slotSplitRe = regexp.MustCompile(`\s*[–-]\s*`)
	slotTimeRe  = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})(?:\s*[ap]m)?`)
)

// ParseSlotStart reads the start of a free-text slot such as "10:30am - 10:45am"
// and places it on the calendar day of now. Slots carry no date and are always today.
func ParseSlotStart(slot string, now time.Time) (time.Time, bool) {
	s := strings.TrimSpace(slot)
	if s == "" {
		return time.Time{}, false
	}
	first := slotSplitRe.Split(s, 2)[0]
	m := slotTimeRe.FindStringSubmatch(first)
	if m == nil {
		return time.Time{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])

	lower := strings.ToLower(first)
	switch {
	case strings.Contains(lower, "pm") && hour < 12:
		hour += 12
	case strings.Contains(lower, "am") && hour == 12:
		hour = 0
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()), true
}
