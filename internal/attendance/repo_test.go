package attendance_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoattend/internal/attendance"
	"geoattend/internal/store"
)

// newPostgresRepo connects to TEST_DATABASE_URL or skips.
func newPostgresRepo(t *testing.T) *attendance.Repository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := store.NewDB(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return attendance.NewRepository(db.Client)
}

func TestRepositoryRegisterAndAttend(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	participant := "U" + uuid.NewString()

	p, evt, err := repo.RegisterAndAttend(ctx, attendance.NewProfile{ParticipantID: participant, StudentID: "A12345", DisplayName: "Jane Doe"}, 10)
	require.NoError(t, err)
	assert.True(t, evt.FirstTime)
	assert.False(t, evt.OccurredAt.IsZero(), "occurred_at is assigned by the database")
	assert.Equal(t, p.ParticipantID, evt.ParticipantID)

	_, _, err = repo.RegisterAndAttend(ctx, attendance.NewProfile{ParticipantID: participant, StudentID: "A12345", DisplayName: "Jane Doe"}, 10)
	assert.ErrorIs(t, err, attendance.ErrProfileExists)

	_, err = repo.CreateProfile(ctx, attendance.NewProfile{ParticipantID: participant, StudentID: "A12345", DisplayName: "Jane Doe"})
	assert.ErrorIs(t, err, attendance.ErrProfileExists)

	found, err := repo.FindProfile(ctx, participant)
	require.NoError(t, err)
	require.NotNil(t, found)

	next, err := repo.AppendEvent(ctx, *found, 42)
	require.NoError(t, err)
	assert.False(t, next.FirstTime)

	cohort := "evening"
	tagged, err := repo.SetEventCohort(ctx, next.ID, &cohort)
	require.NoError(t, err)
	require.NotNil(t, tagged.Cohort)
	assert.Equal(t, cohort, *tagged.Cohort)

	_, err = repo.SetEventCohort(ctx, uuid.NewString(), &cohort)
	assert.ErrorIs(t, err, attendance.ErrNotFound)

	_, err = repo.SetEventCohort(ctx, "abc", &cohort)
	assert.ErrorIs(t, err, attendance.ErrNotFound)
}

func TestRepositoryListEventsWithoutLimitReturnsAll(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	participant := "U" + uuid.NewString()
	cohort := "bulk-" + uuid.NewString()

	p, err := repo.CreateProfile(ctx, attendance.NewProfile{ParticipantID: participant, StudentID: "S" + participant, DisplayName: "Bulk"})
	require.NoError(t, err)
	require.NoError(t, repo.SetCohort(ctx, participant, &cohort))
	p.Cohort = &cohort

	const total = 520
	for i := 0; i < total; i++ {
		_, err := repo.AppendEvent(ctx, p, float64(i))
		require.NoError(t, err)
	}

	all, err := repo.ListEvents(ctx, attendance.EventFilter{Cohort: cohort})
	require.NoError(t, err)
	assert.Len(t, all, total)

	page, err := repo.ListEvents(ctx, attendance.EventFilter{Cohort: cohort, Limit: 10, Offset: total - 5})
	require.NoError(t, err)
	assert.Len(t, page, 5)
}
