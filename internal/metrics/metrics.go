// Package metrics exposes Prometheus collectors on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// XP application outcomes
const (
	ResultApplied   = "applied"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
)

// Metrics holds the server and engine collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	XPAwarded       *prometheus.CounterVec
	XPApplications  *prometheus.CounterVec
	RewardsUnlocked *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brightsteps",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brightsteps",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		XPAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brightsteps",
			Name:      "xp_awarded_total",
			Help:      "Total trait XP awarded, by trait ID.",
		}, []string{"trait"}),
		XPApplications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brightsteps",
			Name:      "xp_applications_total",
			Help:      "Completion events processed for XP, by result.",
		}, []string{"result"}),
		RewardsUnlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brightsteps",
			Name:      "rewards_unlocked_total",
			Help:      "Rewards newly earned by a completion, by reward type.",
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.XPAwarded,
		m.XPApplications,
		m.RewardsUnlocked,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// AddXP counts XP awarded to a trait, labelled by trait ID
func (m *Metrics) AddXP(traitID string, delta int) {
	if m == nil || delta <= 0 {
		return
	}
	m.XPAwarded.WithLabelValues(traitID).Add(float64(delta))
}

func (m *Metrics) XPApplication(result string) {
	if m == nil {
		return
	}
	m.XPApplications.WithLabelValues(result).Inc()
}

func (m *Metrics) RewardUnlocked(rewardType string) {
	if m == nil {
		return
	}
	m.RewardsUnlocked.WithLabelValues(rewardType).Inc()
}
