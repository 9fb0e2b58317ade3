package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	AttendanceRecorded   *prometheus.CounterVec
	GeofenceRejections   prometheus.Counter
	Registrations        *prometheus.CounterVec
	CollaboratorFailures *prometheus.CounterVec
	WebhookEvents        *prometheus.CounterVec
	NotificationsSent    *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AttendanceRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geoattend_attendance_recorded_total",
			Help: "Attendance events written to the ledger",
		}, []string{"first_time"}),
		GeofenceRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "geoattend_geofence_rejections_total",
			Help: "Location messages outside the geofence",
		}),
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geoattend_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),
		CollaboratorFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geoattend_collaborator_failures_total",
			Help: "Failed directory, ledger or session calls",
		}, []string{"op"}),
		WebhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geoattend_webhook_events_total",
			Help: "Inbound webhook events by type",
		}, []string{"type"}),
		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geoattend_notifications_sent_total",
			Help: "Push notifications by delivery status",
		}, []string{"status"}),
	}
}

func (m *Metrics) IncAttendance(firstTime bool) {
	if m == nil {
		return
	}
	m.AttendanceRecorded.WithLabelValues(strconv.FormatBool(firstTime)).Inc()
}

func (m *Metrics) IncGeofenceRejection() {
	if m == nil {
		return
	}
	m.GeofenceRejections.Inc()
}

func (m *Metrics) IncRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCollaboratorFailure(op string) {
	if m == nil {
		return
	}
	m.CollaboratorFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) IncWebhookEvent(kind string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncNotification(status string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(status).Inc()
}
