package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service backs the admin surface with projections over the ledger.
type Service struct {
	store Store
	loc   *time.Location
}

// NewService creates a service; loc defines day boundaries for reports.
func NewService(store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc}
}

// Location is the time zone reports are computed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// DayRange returns the [start, end) instants of the local day named by date (YYYY-MM-DD).
func (s *Service) DayRange(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidInput, date)
	}
	return day, day.AddDate(0, 0, 1), nil
}

// DailyEvents lists the events of one local day, optionally restricted to a cohort.
func (s *Service) DailyEvents(ctx context.Context, date, cohort string) ([]Event, error) {
	from, to, err := s.DayRange(date)
	if err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, EventFilter{From: from, To: to, Cohort: strings.TrimSpace(cohort)})
}

// CorrectEventCohort retags a single event.
func (s *Service) CorrectEventCohort(ctx context.Context, eventID string, cohort *string) (Event, error) {
	if eventID == "" {
		return Event{}, fmt.Errorf("%w: event id required", ErrInvalidInput)
	}
	if _, err := uuid.Parse(eventID); err != nil {
		return Event{}, ErrNotFound
	}
	return s.store.SetEventCohort(ctx, eventID, normalizeCohort(cohort))
}

// SetStudentCohort retags the profile registered under studentID.
func (s *Service) SetStudentCohort(ctx context.Context, studentID string, cohort *string) (Profile, error) {
	p, err := s.store.FindProfileByStudentID(ctx, studentID)
	if err != nil {
		return Profile{}, err
	}
	if p == nil {
		return Profile{}, ErrNotFound
	}
	cohort = normalizeCohort(cohort)
	if err := s.store.SetCohort(ctx, p.ParticipantID, cohort); err != nil {
		return Profile{}, err
	}
	p.Cohort = cohort
	return *p, nil
}

// NotifyTargets returns the distinct participants that attended on date.
func (s *Service) NotifyTargets(ctx context.Context, date, cohort string) ([]string, error) {
	events, err := s.DailyEvents(ctx, date, cohort)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(events))
	var out []string
	for _, evt := range events {
		if _, ok := seen[evt.ParticipantID]; ok {
			continue
		}
		seen[evt.ParticipantID] = struct{}{}
		out = append(out, evt.ParticipantID)
	}
	return out, nil
}

func normalizeCohort(cohort *string) *string {
	if cohort == nil {
		return nil
	}
	v := strings.TrimSpace(*cohort)
	if v == "" {
		return nil
	}
	return &v
}
