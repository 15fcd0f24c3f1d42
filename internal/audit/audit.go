// Package audit records what happened to the notes corpus and which
// questions were answered, so operators can see when indexes were rebuilt
// and why a file was skipped.
package audit

import (
	"context"
	"time"
)

// ActorType identifies who performed an action.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Action describes what was done.
type Action string

const (
	ActionIngest     Action = "ingest"
	ActionExtractErr Action = "extract_failed"
	ActionReset      Action = "reset"
	ActionIndexBuild Action = "index_build"
	ActionQuery      Action = "query"
	ActionAgentRun   Action = "agent_run"
	ActionHistory    Action = "history_reset"
)

// Scope describes the level at which an action applies.
type Scope string

const (
	ScopeCorpus  Scope = "corpus"
	ScopeTopic   Scope = "topic"
	ScopeFile    Scope = "file"
	ScopeSession Scope = "session"
)

// Entry is a single audit trail record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ActorType ActorType `json:"actor_type"`
	ActorID   string    `json:"actor_id,omitempty"`
	Action    Action    `json:"action"`
	Scope     Scope     `json:"scope"`
	ScopeID   string    `json:"scope_id,omitempty"`
	Summary   string    `json:"summary"`
	Detail    string    `json:"detail,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Failed    bool      `json:"failed"`
}

// Recorder is the write side of the trail. Components that only need to
// append entries depend on this rather than on *Store.
type Recorder interface {
	Log(ctx context.Context, entry Entry) error
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Log(context.Context, Entry) error { return nil }
