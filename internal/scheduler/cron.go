package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the classic 5-field form: minute, hour, day-of-month,
// month, day-of-week, with intervals, ranges, lists and wildcards.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateExpr rejects malformed cron expressions and unknown IANA
// timezones before a schedule row is created.
func ValidateExpr(expr, timezone string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return nil
}

// NextRun evaluates the expression in the schedule's timezone and returns
// the first firing strictly after from. DST transitions are handled by the
// location-aware evaluation; a schedule firing exactly at from never fires
// twice because the result is always later than from.
func NextRun(expr, timezone string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return schedule.Next(from.In(loc)), nil
}

// NextRuns previews the next n firings after from, for the schedule
// inspection endpoint.
func NextRuns(expr, timezone string, from time.Time, n int) ([]time.Time, error) {
	runs := make([]time.Time, 0, n)
	at := from
	for i := 0; i < n; i++ {
		next, err := NextRun(expr, timezone, at)
		if err != nil {
			return nil, err
		}
		runs = append(runs, next)
		at = next
	}
	return runs, nil
}
