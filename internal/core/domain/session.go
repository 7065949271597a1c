package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionIDPrefix is the prefix for session IDs.
const SessionIDPrefix = "lsse-"

// LapIDPrefix is the prefix for lap IDs.
const LapIDPrefix = "llap-"

// Session represents one telemetry recording session.
type Session struct {
	// ID is the unique identifier. Format: lsse-{ulid_lowercase}.
	ID string `json:"session_id"`

	// CircuitName is the circuit being driven.
	CircuitName string `json:"circuit_name"`

	// VehicleName is the vehicle being driven.
	VehicleName string `json:"vehicle_name"`

	// GameMode is the session mode (e.g., "TIME_TRIAL", "RACE").
	GameMode string `json:"game_mode"`

	// StartedAt is the session start timestamp (Unix milliseconds).
	StartedAt int64 `json:"started_at"`

	// EndedAt is the session end timestamp (Unix milliseconds), zero
	// while the session is still running.
	EndedAt int64 `json:"ended_at,omitempty"`

	// LapCount is the number of laps completed so far.
	LapCount int `json:"lap_count"`

	// BestLapMillis is the best lap time in milliseconds, zero if no
	// lap has completed yet.
	BestLapMillis int64 `json:"best_lap_ms,omitempty"`
}

// NewSession creates a Session with a generated ID and start time.
func NewSession(circuit, vehicle, gameMode string) (*Session, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}
	if gameMode == "" {
		gameMode = "TIME_TRIAL"
	}
	return &Session{
		ID:          id,
		CircuitName: circuit,
		VehicleName: vehicle,
		GameMode:    gameMode,
		StartedAt:   time.Now().UnixMilli(),
	}, nil
}

// Active reports whether the session is still running.
func (s *Session) Active() bool {
	return s.EndedAt == 0
}

// End marks the session finished.
func (s *Session) End() {
	if s.EndedAt == 0 {
		s.EndedAt = time.Now().UnixMilli()
	}
}

// Duration returns the session duration. For an active session it is
// the time elapsed so far.
func (s *Session) Duration() time.Duration {
	end := s.EndedAt
	if end == 0 {
		end = time.Now().UnixMilli()
	}
	return time.Duration(end-s.StartedAt) * time.Millisecond
}

// Lap is one completed lap within a session.
type Lap struct {
	// ID is the unique identifier. Format: llap-{ulid_lowercase}.
	ID string `json:"lap_id"`

	// SessionID is the owning session.
	SessionID string `json:"session_id"`

	// Number is the 1-based lap number within the session.
	Number int `json:"lap_number"`

	// TimeMillis is the lap time in milliseconds.
	TimeMillis int64 `json:"lap_time_ms"`

	// IsBest reports whether this was the session best when completed.
	IsBest bool `json:"is_best"`

	// CompletedAt is the completion timestamp (Unix milliseconds).
	CompletedAt int64 `json:"completed_at"`
}

// NewLap creates a Lap with a generated ID and completion time.
func NewLap(sessionID string, number int, timeMillis int64) (*Lap, error) {
	id, err := generateID(LapIDPrefix)
	if err != nil {
		return nil, err
	}
	return &Lap{
		ID:          id,
		SessionID:   sessionID,
		Number:      number,
		TimeMillis:  timeMillis,
		CompletedAt: time.Now().UnixMilli(),
	}, nil
}

// SessionUpdate is the payload of a "session_update" event.
type SessionUpdate struct {
	Type    string   `json:"type"` // "session_started" or "session_stopped"
	Session *Session `json:"session,omitempty"`
}

// Session update types.
const (
	SessionStarted = "session_started"
	SessionStopped = "session_stopped"
)

// GenerateSessionID generates a new session ID.
func GenerateSessionID() (string, error) {
	return generateID(SessionIDPrefix)
}

// generateID produces a prefixed lowercase ULID.
func generateID(prefix string) (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return prefix + strings.ToLower(id.String()), nil
}
