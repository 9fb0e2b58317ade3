package attendance

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrProfileExists is returned when a participant already has a profile.
	ErrProfileExists = errors.New("profile already exists")
	// ErrNotFound is returned when a profile or event does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks caller mistakes such as a malformed date.
	ErrInvalidInput = errors.New("invalid input")
)

// Profile is the registered identity of a participant.
type Profile struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"-"`
	StudentID     string    `json:"student_id"`
	DisplayName   string    `json:"display_name"`
	Cohort        *string   `json:"cohort,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewProfile carries the fields collected during registration.
type NewProfile struct {
	ParticipantID string
	StudentID     string
	DisplayName   string
}

// Event is one recorded attendance. OccurredAt comes from the ledger clock.
type Event struct {
	ID             string
	ParticipantID  string
	StudentID      string
	DisplayName    string
	Cohort         *string
	DistanceMeters float64
	FirstTime      bool
	OccurredAt     time.Time
}

// EventFilter narrows ListEvents. Zero values disable a clause.
type EventFilter struct {
	From   time.Time
	To     time.Time
	Cohort string
	Limit  int
	Offset int
}

// Directory maps participants to their profiles.
type Directory interface {
	// FindProfile returns nil when the participant has no profile.
	FindProfile(ctx context.Context, participantID string) (*Profile, error)
	FindProfileByStudentID(ctx context.Context, studentID string) (*Profile, error)
	// CreateProfile returns ErrProfileExists when a profile is already present.
	CreateProfile(ctx context.Context, in NewProfile) (Profile, error)
	SetCohort(ctx context.Context, participantID string, cohort *string) error
}

// Ledger is the append-only attendance record.
type Ledger interface {
	AppendEvent(ctx context.Context, p Profile, distanceMeters float64) (Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]Event, error)
	// SetEventCohort is the only permitted mutation of a stored event.
	SetEventCohort(ctx context.Context, eventID string, cohort *string) (Event, error)
}

// Registrar creates a profile together with its first attendance event.
// Either both writes are visible or neither is; ErrProfileExists leaves
// nothing written.
type Registrar interface {
	RegisterAndAttend(ctx context.Context, in NewProfile, distanceMeters float64) (Profile, Event, error)
}

// Store is the full persistence port.
type Store interface {
	Directory
	Ledger
	Registrar
}
