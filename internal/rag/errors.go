package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrUninitialized is returned by queries issued before the pipeline
	// reached the ready state, or after it failed.
	ErrUninitialized = errors.New("rag: pipeline is not initialized")

	// ErrNoTopics is returned by Initialize when no topic holds a document.
	ErrNoTopics = errors.New("rag: no topics with documents found")

	// ErrUnknownTopic is returned when a topic has no index.
	ErrUnknownTopic = errors.New("rag: unknown topic")
)

// RewriteError reports a failed query rewrite. The history is unchanged.
type RewriteError struct {
	Err error
}

func (e *RewriteError) Error() string { return fmt.Sprintf("rewriting query: %v", e.Err) }
func (e *RewriteError) Unwrap() error { return e.Err }

// SynthesisError reports a failed answer generation. The history is
// unchanged.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return fmt.Sprintf("synthesizing answer: %v", e.Err) }
func (e *SynthesisError) Unwrap() error { return e.Err }
