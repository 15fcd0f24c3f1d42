// Package rag answers questions over the topic indexes: it rewrites
// follow-up questions into standalone queries, retrieves chunks and asks the
// model to answer from them, keeping a conversation history per session.
package rag

import (
	"sync"
	"time"

	"github.com/ziadkadry99/minutes/internal/llm"
)

// Turn is one question and the answer given to it. Topic is empty for
// cross-topic questions.
type Turn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Topic     string    `json:"topic,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// History is an append-only conversation log shared by reference between a
// session's chains and the agent tools bound to them.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds one turn.
func (h *History) Append(t Turn) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, t)
}

// Turns returns a copy of the turns, oldest first.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Since returns the turns appended after the first n.
func (h *History) Since(n int) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n >= len(h.turns) {
		return nil
	}
	out := make([]Turn, len(h.turns)-n)
	copy(out, h.turns[n:])
	return out
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Reset drops every turn.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

// Messages renders turns as alternating user and assistant messages.
func Messages(turns []Turn) []llm.Message {
	msgs := make([]llm.Message, 0, 2*len(turns))
	for _, t := range turns {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: t.Question},
			llm.Message{Role: llm.RoleAssistant, Content: t.Answer},
		)
	}
	return msgs
}
