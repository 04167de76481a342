// Package metrics holds the Prometheus collectors for the monitoring backend.
//
// Every collector is registered on a caller-supplied registry rather than the
// global default, so each server (and each test) gets its own set.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "glucose_monitor"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	readings      *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	syncRuns      *prometheus.CounterVec
	syncAdded     prometheus.Counter
	assistant     *prometheus.CounterVec
	authAttempts  *prometheus.CounterVec
}

// New registers every collector on reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_recorded_total",
			Help:      "Glucose readings appended to the timeline, by source.",
		}, []string{"source"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Critical glucose alerts raised, by level.",
		}, []string{"level"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification delivery outcomes, by channel.",
		}, []string{"channel", "outcome"}),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Device sync runs, by outcome.",
		}, []string{"outcome"}),
		syncAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_readings_added_total",
			Help:      "Device readings inserted by sync merges.",
		}),
		assistant: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_requests_total",
			Help:      "Assistant completions, by outcome.",
		}, []string{"outcome"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Login and registration attempts, by kind and status.",
		}, []string{"kind", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.readings,
		m.alerts,
		m.notifications,
		m.syncRuns,
		m.syncAdded,
		m.assistant,
		m.authAttempts,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished request. route is the chi route pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ReadingRecorded(source string) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(source).Inc()
}

func (m *Metrics) AlertRaised(level string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(level).Inc()
}

func (m *Metrics) NotificationSent(channel, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, outcome).Inc()
}

// SyncRun counts one sync attempt. outcome is "ok", "not_connected",
// "provider_error" or "error".
func (m *Metrics) SyncRun(outcome string) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SyncReadingsAdded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.syncAdded.Add(float64(n))
}

func (m *Metrics) AssistantRequest(outcome string) {
	if m == nil {
		return
	}
	m.assistant.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AuthAttempt(kind, status string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(kind, status).Inc()
}
