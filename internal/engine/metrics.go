package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lumen_tasks_started_total",
		Help: "Total number of tasks started.",
	})

	tasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_tasks_finished_total",
		Help: "Total number of tasks finished, by terminal status.",
	}, []string{"status"})

	eventsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lumen_events_appended_total",
		Help: "Total number of events appended to task logs.",
	})
)
