package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Store for development and tests.
// A single mutex makes RegisterAndAttend atomic.
type MemoryRepository struct {
	mu       sync.Mutex
	now      func() time.Time
	profiles map[string]Profile
	events   []Event
}

// NewMemoryRepository creates an empty repository using the wall clock.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:      func() time.Time { return time.Now().UTC() },
		profiles: make(map[string]Profile),
	}
}

// WithClock replaces the ledger clock.
func (m *MemoryRepository) WithClock(now func() time.Time) *MemoryRepository {
	m.now = now
	return m
}

func (m *MemoryRepository) FindProfile(_ context.Context, participantID string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[participantID]
	if !ok {
		return nil, nil
	}
	p.Cohort = copyString(p.Cohort)
	return &p, nil
}

func (m *MemoryRepository) FindProfileByStudentID(_ context.Context, studentID string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *Profile
	for _, p := range m.profiles {
		if p.StudentID != studentID {
			continue
		}
		if found == nil || p.CreatedAt.Before(found.CreatedAt) {
			cp := p
			cp.Cohort = copyString(p.Cohort)
			found = &cp
		}
	}
	return found, nil
}

func (m *MemoryRepository) CreateProfile(_ context.Context, in NewProfile) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createProfileLocked(in)
}

func (m *MemoryRepository) createProfileLocked(in NewProfile) (Profile, error) {
	if _, ok := m.profiles[in.ParticipantID]; ok {
		return Profile{}, ErrProfileExists
	}
	p := Profile{
		ID:            uuid.NewString(),
		ParticipantID: in.ParticipantID,
		StudentID:     in.StudentID,
		DisplayName:   in.DisplayName,
		CreatedAt:     m.now(),
	}
	m.profiles[in.ParticipantID] = p
	return p, nil
}

func (m *MemoryRepository) SetCohort(_ context.Context, participantID string, cohort *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[participantID]
	if !ok {
		return ErrNotFound
	}
	p.Cohort = copyString(cohort)
	m.profiles[participantID] = p
	return nil
}

func (m *MemoryRepository) AppendEvent(_ context.Context, p Profile, distanceMeters float64) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(p, distanceMeters, false), nil
}

func (m *MemoryRepository) appendLocked(p Profile, distanceMeters float64, firstTime bool) Event {
	evt := Event{
		ID:             uuid.NewString(),
		ParticipantID:  p.ParticipantID,
		StudentID:      p.StudentID,
		DisplayName:    p.DisplayName,
		Cohort:         copyString(p.Cohort),
		DistanceMeters: distanceMeters,
		FirstTime:      firstTime,
		OccurredAt:     m.now(),
	}
	m.events = append(m.events, evt)
	return evt.clone()
}

func (m *MemoryRepository) RegisterAndAttend(_ context.Context, in NewProfile, distanceMeters float64) (Profile, Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.createProfileLocked(in)
	if err != nil {
		return Profile{}, Event{}, err
	}
	return p, m.appendLocked(p, distanceMeters, true), nil
}

func (m *MemoryRepository) ListEvents(_ context.Context, f EventFilter) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Event
	for _, evt := range m.events {
		if !f.From.IsZero() && evt.OccurredAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !evt.OccurredAt.Before(f.To) {
			continue
		}
		if f.Cohort != "" && (evt.Cohort == nil || *evt.Cohort != f.Cohort) {
			continue
		}
		res = append(res, evt.clone())
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].OccurredAt.Before(res[j].OccurredAt) })

	if f.Offset > 0 {
		if f.Offset >= len(res) {
			return nil, nil
		}
		res = res[f.Offset:]
	}
	if f.Limit > 0 && len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

func (m *MemoryRepository) SetEventCohort(_ context.Context, eventID string, cohort *string) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == eventID {
			m.events[i].Cohort = copyString(cohort)
			return m.events[i].clone(), nil
		}
	}
	return Event{}, ErrNotFound
}

// Counts reports stored profiles and events.
func (m *MemoryRepository) Counts() (profiles, events int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.profiles), len(m.events)
}

// clone detaches the returned event from the stored one.
func (e Event) clone() Event {
	e.Cohort = copyString(e.Cohort)
	return e
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
