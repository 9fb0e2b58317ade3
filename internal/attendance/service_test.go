package attendance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceDailyEventsUsesLocalDay(t *testing.T) {
	ctx := context.Background()
	tokyo := time.FixedZone("JST", 9*60*60)
	// 2026-04-01 23:30 UTC is already 2026-04-02 in Tokyo.
	now := time.Date(2026, 4, 1, 23, 30, 0, 0, time.UTC)
	repo := NewMemoryRepository().WithClock(func() time.Time { return now })
	_, _, err := repo.RegisterAndAttend(ctx, NewProfile{ParticipantID: "U1", StudentID: "A1", DisplayName: "Jane"}, 1)
	require.NoError(t, err)

	svc := NewService(repo, tokyo)

	events, err := svc.DailyEvents(ctx, "2026-04-02", "")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = svc.DailyEvents(ctx, "2026-04-01", "")
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = svc.DailyEvents(ctx, "04/02/2026", "")
	assert.Error(t, err)
}

func TestServiceSetStudentCohort(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_, _, err := repo.RegisterAndAttend(ctx, NewProfile{ParticipantID: "U1", StudentID: "A1", DisplayName: "Jane"}, 1)
	require.NoError(t, err)
	svc := NewService(repo, time.UTC)

	cohort := "  evening "
	p, err := svc.SetStudentCohort(ctx, "A1", &cohort)
	require.NoError(t, err)
	require.NotNil(t, p.Cohort)
	assert.Equal(t, "evening", *p.Cohort)

	blank := " "
	p, err = svc.SetStudentCohort(ctx, "A1", &blank)
	require.NoError(t, err)
	assert.Nil(t, p.Cohort, "blank cohort clears the tag")

	_, err = svc.SetStudentCohort(ctx, "Z9", &cohort)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceNotifyTargetsDistinct(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository().WithClock(func() time.Time { return now })
	p, _, _ := repo.RegisterAndAttend(ctx, NewProfile{ParticipantID: "U1", StudentID: "A1", DisplayName: "Jane"}, 1)
	_, _ = repo.AppendEvent(ctx, p, 2)
	_, _, _ = repo.RegisterAndAttend(ctx, NewProfile{ParticipantID: "U2", StudentID: "B1", DisplayName: "Bob"}, 3)

	svc := NewService(repo, time.UTC)
	targets, err := svc.NotifyTargets(ctx, "2026-04-01", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, targets)
}

func TestServiceNotifyTargetsReturnsWholeDay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository().WithClock(func() time.Time { return now })
	const participants = 620
	for i := 0; i < participants; i++ {
		id := fmt.Sprintf("U%04d", i)
		_, _, err := repo.RegisterAndAttend(ctx, NewProfile{ParticipantID: id, StudentID: "S" + id, DisplayName: id}, 1)
		require.NoError(t, err)
	}

	svc := NewService(repo, time.UTC)
	targets, err := svc.NotifyTargets(ctx, "2026-04-01", "")
	require.NoError(t, err)
	assert.Len(t, targets, participants)

	events, err := svc.DailyEvents(ctx, "2026-04-01", "")
	require.NoError(t, err)
	assert.Len(t, events, participants)
}

// cohortRecorder fails the test if a cohort correction reaches the store.
type cohortRecorder struct {
	*MemoryRepository
	calls int
}

func (c *cohortRecorder) SetEventCohort(ctx context.Context, eventID string, cohort *string) (Event, error) {
	c.calls++
	return c.MemoryRepository.SetEventCohort(ctx, eventID, cohort)
}

func TestServiceCorrectEventCohortRejectsMalformedID(t *testing.T) {
	ctx := context.Background()
	store := &cohortRecorder{MemoryRepository: NewMemoryRepository()}
	svc := NewService(store, time.UTC)
	cohort := "morning"

	_, err := svc.CorrectEventCohort(ctx, "not-a-uuid", &cohort)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, store.calls, "malformed ids never reach the ledger")

	_, err = svc.CorrectEventCohort(ctx, "", &cohort)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
