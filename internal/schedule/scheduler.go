package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfleet/maestro/internal/metrics"
	"github.com/openfleet/maestro/internal/model"
)

const (
	tickInterval      = 1 * time.Second
	reconcileInterval = 30 * time.Second
	misfireGrace      = 5 * time.Minute
)

// Source lists the schedules the scheduler should keep armed.
type Source interface {
	ListEnabled(ctx context.Context) ([]model.Schedule, error)
}

// Dispatcher starts a job for a due schedule.
type Dispatcher interface {
	DispatchScheduleRun(ctx context.Context, schedule model.Schedule, fireTime time.Time) error
}

// Scheduler keeps an in-memory trigger per enabled schedule, re-reads the
// schedule table every 30 seconds to pick up edits, and fires due triggers
// once per second. Edits take effect on the next reconcile; unchanged
// schedules keep their armed firing time across reconciles.
type Scheduler struct {
	source     Source
	dispatcher Dispatcher
	logger     zerolog.Logger
	now        func() time.Time

	mu       sync.Mutex
	triggers map[string]*trigger
}

// New creates a Scheduler.
func New(source Source, dispatcher Dispatcher, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		source:     source,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		now:        time.Now,
		triggers:   map[string]*trigger{},
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.reconcile(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial schedule load failed")
	}

	tick := time.NewTicker(tickInterval)
	defer tick.Stop()
	reconcile := time.NewTicker(reconcileInterval)
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reconcile.C:
			if err := s.reconcile(ctx); err != nil {
				s.logger.Error().Err(err).Msg("schedule reconcile failed")
			}
		case <-tick.C:
			s.fireDue(ctx)
		}
	}
}

// reconcile syncs the trigger set with the schedule table. A schedule whose
// trigger spec changed is re-armed from scratch; disabled or deleted
// schedules are dropped.
func (s *Scheduler) reconcile(ctx context.Context) error {
	schedules, err := s.source.ListEnabled(ctx)
	if err != nil {
		return err
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]bool{}
	for _, sched := range schedules {
		seen[sched.ID] = true

		existing, ok := s.triggers[sched.ID]
		if ok && existing.spec == sched.TriggerSpec() {
			// Keep the armed firing time, but pick up edits to the
			// non-trigger fields (firmware path, dry run, group).
			existing.schedule = sched
			continue
		}

		t, err := newTrigger(sched, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("schedule", sched.Name).Msg("skipping unparseable schedule")
			delete(s.triggers, sched.ID)
			continue
		}
		if t == nil {
			s.logger.Debug().Str("schedule", sched.Name).Msg("schedule has no trigger, manual runs only")
			delete(s.triggers, sched.ID)
			continue
		}
		s.triggers[sched.ID] = t
		s.logger.Info().Str("schedule", sched.Name).Time("next", t.next).Msg("schedule armed")
	}

	for id := range s.triggers {
		if !seen[id] {
			delete(s.triggers, id)
		}
	}
	return nil
}

// fireDue dispatches every due trigger. A firing that was missed by more
// than the grace window is dropped rather than run late; the trigger is
// re-armed for its next regular time.
func (s *Scheduler) fireDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.triggers {
		if !t.due(now) {
			continue
		}

		fireTime := t.next
		t.advance(now)

		if now.Sub(fireTime) > misfireGrace {
			metrics.ScheduleFirings.WithLabelValues("misfired").Inc()
			s.logger.Warn().
				Str("schedule", t.schedule.Name).
				Time("scheduled_for", fireTime).
				Msg("firing missed beyond grace window, dropped")
			continue
		}

		if t.inFlight {
			metrics.ScheduleFirings.WithLabelValues("coalesced").Inc()
			s.logger.Info().Str("schedule", t.schedule.Name).Msg("previous run still dispatching, coalesced")
			continue
		}

		t.inFlight = true
		metrics.ScheduleFirings.WithLabelValues("dispatched").Inc()
		// Reconcile rewrites t.schedule under the lock, so the goroutine
		// gets its own copy and only touches the trigger to clear inFlight.
		sched := t.schedule
		go s.dispatch(ctx, sched, fireTime)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, sched model.Schedule, fireTime time.Time) {
	defer func() {
		s.mu.Lock()
		if t, ok := s.triggers[sched.ID]; ok {
			t.inFlight = false
		}
		s.mu.Unlock()
	}()

	if err := s.dispatcher.DispatchScheduleRun(ctx, sched, fireTime); err != nil {
		s.logger.Error().Err(err).Str("schedule", sched.Name).Msg("dispatch failed")
		return
	}
	s.logger.Info().Str("schedule", sched.Name).Time("fire_time", fireTime).Msg("schedule dispatched")
}
