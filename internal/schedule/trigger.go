// Package schedule evaluates cron and interval triggers against the clock
// and hands due schedules to the dispatcher.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openfleet/maestro/internal/model"
)

// trigger is the in-memory firing state for one enabled schedule.
type trigger struct {
	schedule model.Schedule
	spec     string // fingerprint, detects edits across reconciles
	cron     cron.Schedule
	interval time.Duration
	next     time.Time
	inFlight bool
}

// newTrigger builds a trigger and computes its first firing time. Cron
// expressions use the standard five-field form. Interval schedules anchor
// at registration: the first firing lands one interval from now. A schedule
// with neither trigger is inert and yields a nil trigger, not an error; it
// only runs when asked to by hand.
func newTrigger(s model.Schedule, now time.Time) (*trigger, error) {
	t := &trigger{schedule: s, spec: s.TriggerSpec()}

	switch {
	case s.CronExpr != nil:
		sched, err := cron.ParseStandard(*s.CronExpr)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: parse cron %q: %w", s.Name, *s.CronExpr, err)
		}
		t.cron = sched
		t.next = sched.Next(now)
	case s.IntervalMinutes != nil:
		if *s.IntervalMinutes < 1 {
			return nil, fmt.Errorf("schedule %s: interval must be at least one minute", s.Name)
		}
		t.interval = time.Duration(*s.IntervalMinutes) * time.Minute
		t.next = now.Add(t.interval)
	default:
		return nil, nil
	}
	return t, nil
}

// advance moves the trigger past the given firing time.
func (t *trigger) advance(fired time.Time) {
	if t.cron != nil {
		t.next = t.cron.Next(fired)
		return
	}
	t.next = fired.Add(t.interval)
}

// due reports whether the trigger should fire at now.
func (t *trigger) due(now time.Time) bool {
	return !t.next.IsZero() && !now.Before(t.next)
}
