// Package metrics exposes Prometheus metrics for the real-time core.
// All methods are safe on a nil *Metrics so components can run without it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Connections        prometheus.Gauge
	OnlineUsers        prometheus.Gauge
	PushesTotal        *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	RemindersTotal     *prometheus.CounterVec
	ReminderRun        prometheus.Histogram
	EventsTotal        *prometheus.CounterVec

	registry *prometheus.Registry
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskhub_ws_connections",
			Help: "Open WebSocket connections.",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskhub_online_users",
			Help: "Users with a bound presence entry.",
		}),
		PushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhub_pushes_total",
				Help: "Server pushes by event name and outcome.",
			},
			[]string{"event", "outcome"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhub_notifications_total",
				Help: "Notifications persisted by type.",
			},
			[]string{"type"},
		),
		RemindersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhub_reminders_sent_total",
				Help: "Deadline reminders sent by threshold.",
			},
			[]string{"threshold"},
		),
		ReminderRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskhub_reminder_run_duration_seconds",
			Help:    "Duration of one deadline check.",
			Buckets: prometheus.DefBuckets,
		}),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhub_domain_events_total",
				Help: "Domain events consumed from NATS by type and result.",
			},
			[]string{"type", "result"},
		),
		registry: reg,
	}

	reg.MustRegister(m.Connections)
	reg.MustRegister(m.OnlineUsers)
	reg.MustRegister(m.PushesTotal)
	reg.MustRegister(m.NotificationsTotal)
	reg.MustRegister(m.RemindersTotal)
	reg.MustRegister(m.ReminderRun)
	reg.MustRegister(m.EventsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(n))
}

func (m *Metrics) SetOnlineUsers(n int) {
	if m == nil {
		return
	}
	m.OnlineUsers.Set(float64(n))
}

// RecordPush counts one push attempt; outcome is "delivered" or "dropped".
func (m *Metrics) RecordPush(event, outcome string) {
	if m == nil {
		return
	}
	m.PushesTotal.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) RecordNotification(notifType string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(notifType).Inc()
}

func (m *Metrics) RecordReminder(threshold string) {
	if m == nil {
		return
	}
	m.RemindersTotal.WithLabelValues(threshold).Inc()
}

func (m *Metrics) ObserveReminderRun(seconds float64) {
	if m == nil {
		return
	}
	m.ReminderRun.Observe(seconds)
}

func (m *Metrics) RecordEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(eventType, result).Inc()
}
