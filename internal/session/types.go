// Package session keeps conversations alive across requests: it stores
// transcripts in SQLite and serializes the questions asked on one session.
package session

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session not found")

	// ErrBusy is returned when a session already has a question in flight.
	ErrBusy = errors.New("session is busy")
)

// Mode records how a turn was produced.
type Mode string

const (
	ModeQuery Mode = "query"
	ModeAgent Mode = "agent"
	ModeTool  Mode = "tool"
)

// Info describes a stored session.
type Info struct {
	ID        string    `json:"id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is one persisted question and answer.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Mode      Mode      `json:"mode"`
	Topic     string    `json:"topic,omitempty"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}
