package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncAttendance(true)
	m.IncAttendance(false)
	m.IncAttendance(false)
	m.IncGeofenceRejection()
	m.IncCollaboratorFailure("find_profile")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttendanceRecorded.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AttendanceRecorded.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeofenceRejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CollaboratorFailures.WithLabelValues("find_profile")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncAttendance(true)
		m.IncGeofenceRejection()
		m.IncRegistration("created")
		m.IncCollaboratorFailure("x")
		m.IncWebhookEvent("text")
		m.IncNotification("sent")
	})
}
