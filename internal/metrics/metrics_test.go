package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordPush("new_message", "delivered")
	m.RecordPush("new_message", "delivered")
	m.RecordReminder("24h")
	m.SetConnections(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PushesTotal.WithLabelValues("new_message", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemindersTotal.WithLabelValues("24h")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Connections))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPush("x", "dropped")
		m.RecordNotification("system")
		m.RecordReminder("1h")
		m.ObserveReminderRun(0.1)
		m.SetOnlineUsers(1)
		m.SetConnections(1)
		m.RecordEvent("task_assigned", "ok")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordNotification("task_assigned")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `taskhub_notifications_total{type="task_assigned"} 1`)
}
