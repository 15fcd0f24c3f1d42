package rag

import (
	"context"
	"errors"
	"strings"

	"github.com/ziadkadry99/minutes/internal/llm"
)

var errBlankRewrite = errors.New("model returned an empty query")

// ModelSettings selects the model and sampling for one kind of call.
type ModelSettings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Rewriter turns a follow-up utterance into a query that can be understood
// without the conversation.
type Rewriter struct {
	provider llm.Provider
	settings ModelSettings
	language string
	usage    *llm.Usage
}

// NewRewriter creates a Rewriter. usage may be nil.
func NewRewriter(provider llm.Provider, settings ModelSettings, language string, usage *llm.Usage) *Rewriter {
	return &Rewriter{provider: provider, settings: settings, language: language, usage: usage}
}

// Rewrite returns the standalone form of utterance. With no prior turns the
// utterance is already standalone and is returned without a model call.
// Model failures are returned as *RewriteError; the raw utterance is never
// used as a fallback.
func (r *Rewriter) Rewrite(ctx context.Context, history []Turn, utterance string) (string, error) {
	if len(history) == 0 {
		return utterance, nil
	}

	msgs := make([]llm.Message, 0, 2*len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: rewritePrompt(r.language)})
	msgs = append(msgs, Messages(history)...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: utterance})

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Model:       r.settings.Model,
		Messages:    msgs,
		MaxTokens:   r.settings.MaxTokens,
		Temperature: r.settings.Temperature,
	})
	if err != nil {
		return "", &RewriteError{Err: err}
	}
	if r.usage != nil {
		r.usage.Add(resp)
	}

	q := strings.Trim(strings.TrimSpace(resp.Content), "\"'「」")
	q = strings.TrimSpace(q)
	if q == "" {
		return "", &RewriteError{Err: errBlankRewrite}
	}
	return q, nil
}
