package rag

import (
	"context"
	"fmt"

	"github.com/ziadkadry99/minutes/internal/audit"
	"github.com/ziadkadry99/minutes/internal/llm"
	"github.com/ziadkadry99/minutes/internal/logging"
)

// Session is one conversation. Its history is shared by every chain built
// from it. Callers must not run two questions on one session at a time.
type Session struct {
	id      string
	p       *Pipeline
	history *History
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// History returns the session history.
func (s *Session) History() *History { return s.history }

// Topics lists the topics that currently have an index.
func (s *Session) Topics() []string { return s.p.Topics() }

// Chain returns a chain over topic bound to this session's history.
func (s *Session) Chain(topic string) (*Chain, error) {
	return s.p.Chain(topic, s.history)
}

// Ask answers text over the global index.
func (s *Session) Ask(ctx context.Context, text string, onDelta llm.DeltaFunc) (*Answer, error) {
	return s.AskTopic(ctx, "", text, onDelta)
}

// AskTopic answers text over one topic index, or the global index when
// topic is empty.
func (s *Session) AskTopic(ctx context.Context, topic, text string, onDelta llm.DeltaFunc) (*Answer, error) {
	c, err := s.Chain(topic)
	if err != nil {
		return nil, err
	}
	a, err := c.Ask(ctx, text, onDelta)
	s.record(ctx, audit.ActionQuery, topic, text, err)
	return a, err
}

// ResetHistory clears the conversation.
func (s *Session) ResetHistory(ctx context.Context) {
	s.history.Reset()
	s.record(ctx, audit.ActionHistory, "", "history cleared", nil)
}

func (s *Session) record(ctx context.Context, action audit.Action, topic, summary string, err error) {
	e := audit.Entry{
		ActorType: audit.ActorUser,
		Action:    action,
		Scope:     audit.ScopeSession,
		ScopeID:   s.id,
		SessionID: s.id,
		Summary:   truncate(summary, 200),
	}
	if topic != "" {
		e.Detail = fmt.Sprintf("topic=%s", topic)
	}
	if err != nil {
		e.Failed = true
		e.Detail = err.Error()
	}
	if aerr := s.p.audit.Log(ctx, e); aerr != nil {
		s.p.logger.Warn("audit log failed", "action", action, logging.Err(aerr))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
