package vesting

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseHHMM parses a 24-hour "HH:MM" time-of-day.
func ParseHHMM(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// ResolveFirstRun computes the UTC instant of the first vest.
//
// The cliff offset is applied in UTC, the result is moved into loc, and the
// configured wall-clock time-of-day overrides the local time. If that local
// instant is not strictly in the future it is pushed one calendar day, so a
// zero cliff with a time-of-day that already passed today fires tomorrow,
// and one with a time-of-day still ahead fires today.
//
// Date arithmetic uses calendar days (AddDate), not 24h durations: the local
// wall-clock time is authoritative across DST transitions.
func ResolveFirstRun(now time.Time, cliffDays, hour, minute int, loc *time.Location) time.Time {
	base := now.UTC().AddDate(0, 0, cliffDays)
	local := base.In(loc)

	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate.UTC()
}
