// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Progress
	ProgressEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhub_progress_events_total",
			Help: "Total number of recorded learner events",
		},
		[]string{"event_type"},
	)

	BadgesUnlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhub_badges_unlocked_total",
			Help: "Total number of badge unlocks",
		},
		[]string{"badge"},
	)

	PersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhub_persist_failures_total",
			Help: "Total number of failed progress writes to the kv store",
		},
		[]string{"key"},
	)

	DirtyStores = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyhub_dirty_progress_stores",
			Help: "Progress stores whose latest state is not yet persisted",
		},
	)

	LoadedLearners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyhub_loaded_progress_stores",
			Help: "Progress stores held in memory",
		},
	)

	// Catalog
	CatalogLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhub_catalog_loads_total",
			Help: "Catalog load attempts by result",
		},
		[]string{"result"}, // "ok", "error"
	)

	CatalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyhub_catalog_resources",
			Help: "Number of resources in the loaded catalog",
		},
	)

	// Quiz
	QuizzesCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyhub_quizzes_completed_total",
			Help: "Total number of completed quiz sessions",
		},
	)

	QuizSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyhub_quiz_sessions_active",
			Help: "Quiz sessions currently held in memory",
		},
	)

	// Notifications
	NotifyConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyhub_notify_connections",
			Help: "Open notification websocket connections",
		},
	)
)
