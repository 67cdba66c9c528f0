package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine counters. Schedule firings and misfires come from the trigger
// scheduler; task outcomes from the update workflow's recorder activities.
var (
	ScheduleFirings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "maestro",
		Name:      "schedule_firings_total",
		Help:      "Schedule trigger firings, by outcome (dispatched, coalesced, misfired)",
	}, []string{"outcome"})

	JobsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "maestro",
		Name:      "jobs_dispatched_total",
		Help:      "Update jobs handed to the workflow engine",
	})

	TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "maestro",
		Name:      "tasks_completed_total",
		Help:      "Per-host update tasks reaching a terminal status",
	}, []string{"status"})

	UpdatesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "maestro",
		Name:      "updates_in_flight",
		Help:      "Hosts currently holding an update lease",
	})
)
