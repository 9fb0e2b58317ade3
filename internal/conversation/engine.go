package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"geoattend/internal/attendance"
	"geoattend/internal/geo"
	"geoattend/internal/metrics"
	"geoattend/internal/session"
)

// Kind distinguishes inbound message payloads.
type Kind int

const (
	KindText Kind = iota + 1
	KindLocation
)

// Inbound is one authenticated, de-duplicated message from a participant.
type Inbound struct {
	Participant string
	Kind        Kind
	Text        string
	Location    geo.Point
}

// TextMessage builds a text inbound.
func TextMessage(participant, text string) Inbound {
	return Inbound{Participant: participant, Kind: KindText, Text: text}
}

// LocationMessage builds a location inbound.
func LocationMessage(participant string, lat, lng float64) Inbound {
	return Inbound{Participant: participant, Kind: KindLocation, Location: geo.Point{Lat: lat, Lng: lng}}
}

// Reply is an outbound message. AskLocation attaches a location-share choice.
type Reply struct {
	Text            string
	AskLocation     bool
	QuickReplyLabel string
}

// Records is the slice of the persistence port the engine needs.
type Records interface {
	FindProfile(ctx context.Context, participantID string) (*attendance.Profile, error)
	AppendEvent(ctx context.Context, p attendance.Profile, distanceMeters float64) (attendance.Event, error)
	RegisterAndAttend(ctx context.Context, in attendance.NewProfile, distanceMeters float64) (attendance.Profile, attendance.Event, error)
}

// Config is fixed for the process lifetime.
type Config struct {
	Fence       geo.Fence
	Trigger     string
	CallTimeout time.Duration
}

// Engine runs the per-participant registration and attendance dialogue.
type Engine struct {
	cfg      Config
	sessions session.Store
	records  Records
	locks    *session.KeyedMutex
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewEngine wires an engine. m and log may be nil.
func NewEngine(cfg Config, sessions session.Store, records Records, m *metrics.Metrics, log *slog.Logger) *Engine {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	cfg.Trigger = strings.TrimSpace(cfg.Trigger)
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		sessions: sessions,
		records:  records,
		locks:    session.NewKeyedMutex(),
		metrics:  m,
		log:      log.With("component", "conversation"),
	}
}

// Handle consumes one inbound message and returns the replies to send.
// Messages of the same participant are processed one at a time.
func (e *Engine) Handle(ctx context.Context, in Inbound) []Reply {
	if in.Participant == "" {
		return nil
	}
	unlock := e.locks.Lock(in.Participant)
	defer unlock()

	log := e.log.With("participant", in.Participant)

	st, ok, err := e.sessions.Get(ctx, in.Participant)
	if err != nil {
		return e.fail(log, "session_get", err)
	}
	if !ok {
		st = session.State{Phase: session.PhaseNone}
	}

	switch in.Kind {
	case KindText:
		return e.handleText(ctx, log, in, st)
	case KindLocation:
		return e.handleLocation(ctx, log, in, st)
	default:
		return nil
	}
}

func (e *Engine) isTrigger(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), e.cfg.Trigger)
}

func (e *Engine) handleText(ctx context.Context, log *slog.Logger, in Inbound, st session.State) []Reply {
	if e.isTrigger(in.Text) {
		return e.begin(ctx, log, in.Participant, st)
	}

	value := strings.TrimSpace(in.Text)
	switch st.Phase {
	case session.PhaseAwaitingStudentID:
		if value == "" {
			return []Reply{text(msgStudentIDRequired)}
		}
		next := session.State{Phase: session.PhaseAwaitingName, StudentID: value}
		if err := e.sessions.Set(ctx, in.Participant, next); err != nil {
			return e.fail(log, "session_set", err)
		}
		return []Reply{text(msgAskName)}

	case session.PhaseAwaitingName:
		if value == "" {
			return []Reply{text(msgNameRequired)}
		}
		next := session.State{Phase: session.PhaseAwaitingLocation, StudentID: st.StudentID, Name: value}
		if err := e.sessions.Set(ctx, in.Participant, next); err != nil {
			return e.fail(log, "session_set", err)
		}
		return []Reply{askLocation(msgAskLocation)}

	case session.PhaseAwaitingLocation:
		return []Reply{askLocation(msgAskLocation)}

	default:
		return []Reply{text(msgHelp(e.cfg.Trigger))}
	}
}

// begin handles the trigger command from any phase. A stale registration is
// overwritten so abandoned flows restart cleanly.
func (e *Engine) begin(ctx context.Context, log *slog.Logger, participant string, st session.State) []Reply {
	profile, err := e.findProfile(ctx, participant)
	if err != nil {
		return e.fail(log, "find_profile", err)
	}

	if profile != nil {
		if st.Phase != session.PhaseNone {
			if err := e.sessions.Clear(ctx, participant); err != nil {
				log.Warn("clear stale session failed", "error", err)
			}
		}
		return []Reply{askLocation(msgWelcomeBack(profile.DisplayName))}
	}

	if err := e.sessions.Set(ctx, participant, session.State{Phase: session.PhaseAwaitingStudentID}); err != nil {
		return e.fail(log, "session_set", err)
	}
	log.Debug("registration started")
	return []Reply{text(msgAskStudentID)}
}

func (e *Engine) handleLocation(ctx context.Context, log *slog.Logger, in Inbound, st session.State) []Reply {
	switch st.Phase {
	case session.PhaseAwaitingStudentID:
		return []Reply{text(msgAskStudentID)}
	case session.PhaseAwaitingName:
		return []Reply{text(msgAskName)}
	case session.PhaseAwaitingLocation:
		return e.completeRegistration(ctx, log, in, st)
	}

	profile, err := e.findProfile(ctx, in.Participant)
	if err != nil {
		return e.fail(log, "find_profile", err)
	}
	if profile == nil {
		return []Reply{text(msgNotRegistered(e.cfg.Trigger))}
	}

	inside, distance := e.cfg.Fence.Contains(in.Location)
	if !inside {
		return e.miss(log, distance)
	}

	if _, err := e.appendEvent(ctx, *profile, distance); err != nil {
		return e.fail(log, "append_event", err)
	}
	e.metrics.IncAttendance(false)
	log.Info("attendance recorded", "first_time", false, "distance_m", distance)
	return []Reply{text(msgRecorded(profile.DisplayName))}
}

// completeRegistration writes the profile and its first event atomically.
// The session is cleared whatever the write outcome.
func (e *Engine) completeRegistration(ctx context.Context, log *slog.Logger, in Inbound, st session.State) []Reply {
	inside, distance := e.cfg.Fence.Contains(in.Location)
	if !inside {
		return e.miss(log, distance)
	}

	defer func() {
		if err := e.sessions.Clear(ctx, in.Participant); err != nil {
			log.Warn("clear session failed", "error", err)
		}
	}()

	newProfile := attendance.NewProfile{
		ParticipantID: in.Participant,
		StudentID:     st.StudentID,
		DisplayName:   st.Name,
	}
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	profile, _, err := e.records.RegisterAndAttend(callCtx, newProfile, distance)
	switch {
	case err == nil:
		e.metrics.IncRegistration("created")
		e.metrics.IncAttendance(true)
		log.Info("attendance recorded", "first_time", true, "distance_m", distance)
		return []Reply{text(msgRegistered(profile.DisplayName))}

	case errors.Is(err, attendance.ErrProfileExists):
		e.metrics.IncRegistration("already_exists")
		log.Info("profile already exists, recording as returning participant")
		return e.attendExisting(ctx, log, in.Participant, distance)

	default:
		e.metrics.IncRegistration("failed")
		return e.fail(log, "register_and_attend", err)
	}
}

func (e *Engine) attendExisting(ctx context.Context, log *slog.Logger, participant string, distance float64) []Reply {
	profile, err := e.findProfile(ctx, participant)
	if err != nil {
		return e.fail(log, "find_profile", err)
	}
	if profile == nil {
		return e.fail(log, "find_profile", attendance.ErrNotFound)
	}
	if _, err := e.appendEvent(ctx, *profile, distance); err != nil {
		return e.fail(log, "append_event", err)
	}
	e.metrics.IncAttendance(false)
	log.Info("attendance recorded", "first_time", false, "distance_m", distance)
	return []Reply{text(msgAlreadyRegistered), text(msgRecorded(profile.DisplayName))}
}

func (e *Engine) findProfile(ctx context.Context, participant string) (*attendance.Profile, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	return e.records.FindProfile(callCtx, participant)
}

func (e *Engine) appendEvent(ctx context.Context, p attendance.Profile, distance float64) (attendance.Event, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	return e.records.AppendEvent(callCtx, p, distance)
}

func (e *Engine) miss(log *slog.Logger, distance float64) []Reply {
	e.metrics.IncGeofenceRejection()
	log.Info("location outside geofence", "distance_m", distance, "radius_m", e.cfg.Fence.RadiusMeters)
	return []Reply{askLocation(msgOutOfRange(distance))}
}

func (e *Engine) fail(log *slog.Logger, op string, err error) []Reply {
	e.metrics.IncCollaboratorFailure(op)
	log.Error("collaborator call failed", "op", op, "error", err)
	return []Reply{text(msgFailure(e.cfg.Trigger))}
}
