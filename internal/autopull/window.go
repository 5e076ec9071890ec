package autopull

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// parseClockMinutes converts an "HH:MM" string to minutes since midnight.
func parseClockMinutes(clock string) (int, error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", clock)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", clock, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", clock, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("clock time %q out of range", clock)
	}
	return hours*60 + minutes, nil
}

// minutesOfDay returns t's minutes since midnight in t's location.
func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// withinWindow reports whether nowMinutes falls inside the daily posting
// window [start, end). A start at or past the end describes an overnight
// window wrapping midnight: [start, 24:00) plus [00:00, end).
func withinWindow(nowMinutes, startMinutes, endMinutes int) bool {
	if startMinutes < endMinutes {
		return nowMinutes >= startMinutes && nowMinutes < endMinutes
	}
	return nowMinutes >= startMinutes || nowMinutes < endMinutes
}

// nextWindowStart returns the next instant at which the posting window opens,
// strictly after now, in the given location.
func nextWindowStart(now time.Time, startMinutes int, loc *time.Location) time.Time {
	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(),
		startMinutes/60, startMinutes%60, 0, 0, loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
