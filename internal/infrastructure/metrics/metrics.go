// Package metrics exposes gamification activity as Prometheus metrics.
//
// The collector subscribes to every event on the bus, so the engine never
// talks to Prometheus directly.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campushub/gamification/internal/domain/shared"
)

const namespace = "gamification"

// Collector holds the gamification metrics.
type Collector struct {
	registry *prometheus.Registry

	pointsAwarded   *prometheus.CounterVec
	awards          *prometheus.CounterVec
	levelUps        prometheus.Counter
	achievements    *prometheus.CounterVec
	activityEvents  *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	handlerFailures *prometheus.CounterVec
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	ledgerDrift     prometheus.Gauge
}

// New creates a Collector on its own registry, including the Go and process
// collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		pointsAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points credited to users, by source.",
		}, []string{"source"}),
		awards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "awards_total",
			Help:      "Ledger entries written, by source.",
		}, []string{"source"}),
		levelUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_ups_total",
			Help:      "Level increases.",
		}),
		achievements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "achievements_unlocked_total",
			Help:      "Achievements unlocked, by achievement code.",
		}, []string{"code"}),
		activityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Activity events received, by type.",
		}, []string{"type"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "event_bus",
			Name:      "handler_duration_seconds",
			Help:      "Event handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "event_bus",
			Name:      "handler_failures_total",
			Help:      "Event handlers that returned an error or panicked.",
		}, []string{"event_type"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs, by job and status.",
		}, []string{"job", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Scheduled job latency.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		ledgerDrift: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_drifted_users",
			Help:      "Users whose cached totals or level disagreed with the ledger at the last reconciliation.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.pointsAwarded,
		c.awards,
		c.levelUps,
		c.achievements,
		c.activityEvents,
		c.handlerDuration,
		c.handlerFailures,
		c.jobRuns,
		c.jobDuration,
		c.ledgerDrift,
	)

	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Register subscribes the collector to every event on the bus.
func (c *Collector) Register(bus shared.EventSubscriber) error {
	if bus == nil {
		return errors.New("metrics: nil event bus")
	}
	return bus.SubscribeAll(c.Handle)
}

// Handle implements shared.EventHandler.
func (c *Collector) Handle(_ context.Context, event shared.Event) error {
	switch e := event.(type) {
	case shared.PointsAwardedEvent:
		c.awards.WithLabelValues(e.Source).Inc()
		c.pointsAwarded.WithLabelValues(e.Source).Add(float64(e.Points))
	case shared.LevelUpEvent:
		c.levelUps.Add(float64(e.NewLevel - e.OldLevel))
	case shared.AchievementUnlockedEvent:
		c.achievements.WithLabelValues(e.AchievementCode).Inc()
	case shared.ActivityEvent:
		c.activityEvents.WithLabelValues(string(e.EventType())).Inc()
	}
	return nil
}

// ObserveHandler records one handler execution. It satisfies
// messaging.HandlerObserver.
func (c *Collector) ObserveHandler(eventType shared.EventType, duration time.Duration, err error) {
	c.handlerDuration.WithLabelValues(string(eventType)).Observe(duration.Seconds())
	if err != nil {
		c.handlerFailures.WithLabelValues(string(eventType)).Inc()
	}
}

// ObserveJob records one scheduled job run.
func (c *Collector) ObserveJob(job string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.jobRuns.WithLabelValues(job, status).Inc()
	c.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// SetLedgerDrift publishes the drifted user count of the last reconciliation.
func (c *Collector) SetLedgerDrift(users int) {
	c.ledgerDrift.Set(float64(users))
}
