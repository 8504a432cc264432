// Package schedule evaluates cron expressions. It is pure: no clock access,
// no jitter — the dispatch loop owns both.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts the standard 5-field form (minute hour dom month dow) plus
// the @every / @hourly style descriptors.
var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NextDue returns the first occurrence of expr strictly after the reference
// time. ok is false when the expression is malformed or cannot produce a
// future occurrence.
func NextDue(expr string, after time.Time) (time.Time, bool) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, false
	}
	next := sched.Next(after)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next.UTC(), true
}

// Validate rejects malformed expressions. A malformed schedule is a
// configuration error surfaced at job-creation time, never at dispatch time.
func Validate(expr string) error {
	sched, err := parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if sched.Next(time.Now()).IsZero() {
		return fmt.Errorf("cron expression %q has no future occurrence", expr)
	}
	return nil
}
