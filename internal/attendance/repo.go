package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const eventColumns = `id, participant_id, student_id, display_name, cohort, distance_m, is_first_time, occurred_at`

const profileColumns = `id, participant_id, student_id, display_name, cohort, created_at`

// Repository persists profiles and attendance events in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	var cohort sql.NullString
	if err := row.Scan(&p.ID, &p.ParticipantID, &p.StudentID, &p.DisplayName, &cohort, &p.CreatedAt); err != nil {
		return Profile{}, err
	}
	p.Cohort = nullableString(cohort)
	return p, nil
}

func scanEvent(row rowScanner) (Event, error) {
	var evt Event
	var cohort sql.NullString
	if err := row.Scan(&evt.ID, &evt.ParticipantID, &evt.StudentID, &evt.DisplayName, &cohort, &evt.DistanceMeters, &evt.FirstTime, &evt.OccurredAt); err != nil {
		return Event{}, err
	}
	evt.Cohort = nullableString(cohort)
	return evt, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// FindProfile returns the profile for a participant, or nil.
func (r *Repository) FindProfile(ctx context.Context, participantID string) (*Profile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE participant_id = $1`, participantID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindProfileByStudentID returns the profile registered under a student id, or nil.
func (r *Repository) FindProfileByStudentID(ctx context.Context, studentID string) (*Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+` FROM profiles
		WHERE student_id = $1
		ORDER BY created_at
		LIMIT 1
	`, studentID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProfile inserts a profile; the unique key on participant_id rejects duplicates.
func (r *Repository) CreateProfile(ctx context.Context, in NewProfile) (Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO profiles (id, participant_id, student_id, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING `+profileColumns,
		uuid.NewString(), in.ParticipantID, in.StudentID, in.DisplayName)
	p, err := scanProfile(row)
	if isUniqueViolation(err) {
		return Profile{}, ErrProfileExists
	}
	return p, err
}

// SetCohort updates the cohort tag of a profile.
func (r *Repository) SetCohort(ctx context.Context, participantID string, cohort *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE profiles SET cohort = $2 WHERE participant_id = $1`, participantID, cohort)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendEvent writes a returning-participant attendance. occurred_at is set by the database.
func (r *Repository) AppendEvent(ctx context.Context, p Profile, distanceMeters float64) (Event, error) {
	return insertEvent(ctx, r.db, p, distanceMeters, false)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertEvent(ctx context.Context, q queryRower, p Profile, distanceMeters float64, firstTime bool) (Event, error) {
	row := q.QueryRowContext(ctx, `
		INSERT INTO attendance_events (id, participant_id, student_id, display_name, cohort, distance_m, is_first_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+eventColumns,
		uuid.NewString(), p.ParticipantID, p.StudentID, p.DisplayName, p.Cohort, distanceMeters, firstTime)
	return scanEvent(row)
}

// RegisterAndAttend creates the profile and its founding event in one transaction.
func (r *Repository) RegisterAndAttend(ctx context.Context, in NewProfile, distanceMeters float64) (Profile, Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Profile{}, Event{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO profiles (id, participant_id, student_id, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (participant_id) DO NOTHING
		RETURNING `+profileColumns,
		uuid.NewString(), in.ParticipantID, in.StudentID, in.DisplayName)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, Event{}, ErrProfileExists
	}
	if err != nil {
		return Profile{}, Event{}, fmt.Errorf("insert profile: %w", err)
	}

	evt, err := insertEvent(ctx, tx, p, distanceMeters, true)
	if err != nil {
		return Profile{}, Event{}, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Profile{}, Event{}, fmt.Errorf("commit: %w", err)
	}
	return p, evt, nil
}

// ListEvents returns events matching the filter, oldest first.
// A non-positive Limit returns every match.
func (r *Repository) ListEvents(ctx context.Context, f EventFilter) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM attendance_events`
	args := []any{}
	clauses := []string{}
	if !f.From.IsZero() {
		args = append(args, f.From)
		clauses = append(clauses, "occurred_at >= $"+strconv.Itoa(len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		clauses = append(clauses, "occurred_at < $"+strconv.Itoa(len(args)))
	}
	if f.Cohort != "" {
		args = append(args, f.Cohort)
		clauses = append(clauses, "cohort = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY occurred_at, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// SetEventCohort corrects the cohort tag of a recorded event.
func (r *Repository) SetEventCohort(ctx context.Context, eventID string, cohort *string) (Event, error) {
	// ids are UUID columns; anything else cannot match a row
	if _, err := uuid.Parse(eventID); err != nil {
		return Event{}, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance_events SET cohort = $2
		WHERE id = $1
		RETURNING `+eventColumns,
		eventID, cohort)
	evt, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	return evt, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
