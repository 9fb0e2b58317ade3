package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("GEOFENCE_LAT", "35.681236")
	t.Setenv("GEOFENCE_LNG", "139.767125")
	t.Setenv("CHANNEL_SECRET", "secret")
	t.Setenv("CHANNEL_ACCESS_TOKEN", "token")
	t.Setenv("ADMIN_API_KEY", "admin")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.ListenPort())
	assert.Equal(t, 300.0, cfg.Fence().RadiusMeters)
	assert.Equal(t, 35.681236, cfg.Fence().Center.Lat)
	assert.Equal(t, 5*time.Second, cfg.CollaboratorTimeout)
	assert.Equal(t, "attendance", cfg.TriggerKeyword)
	assert.Equal(t, "memory", cfg.SessionBackend)
	assert.Zero(t, cfg.SessionTTL)
	assert.Equal(t, "9091", cfg.WorkerMetricsPort)
}

func TestLoadPortOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "10000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "10000", cfg.ListenPort())
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("GEOFENCE_LAT", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := App{
		GeofenceRadiusM:     300,
		CollaboratorTimeout: time.Second,
		TriggerKeyword:      "attendance",
		SessionBackend:      "memory",
		QueueBackend:        "redis",
		JWTSigningKey:       "k",
		Timezone:            "UTC",
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.GeofenceRadiusM = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.SessionBackend = "etcd"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Timezone = "Mars/Olympus"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Env = "production"
	bad.JWTSigningKey = "dev-signing-secret-change"
	assert.Error(t, bad.Validate())
}
