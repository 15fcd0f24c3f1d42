package rag

import (
	"context"
	"errors"
	"strings"

	"github.com/ziadkadry99/minutes/internal/llm"
	"github.com/ziadkadry99/minutes/internal/vectordb"
)

var errBlankAnswer = errors.New("model returned an empty answer")

// Input is everything the synthesizer sees for one question.
type Input struct {
	Chunks     []vectordb.SearchResult
	History    []Turn
	Utterance  string
	Standalone string
}

// Synthesizer writes answers grounded in retrieved chunks.
type Synthesizer struct {
	provider llm.Provider
	settings ModelSettings
	language string
	usage    *llm.Usage
}

// NewSynthesizer creates a Synthesizer. usage may be nil.
func NewSynthesizer(provider llm.Provider, settings ModelSettings, language string, usage *llm.Usage) *Synthesizer {
	if language == "" {
		language = DefaultLanguage
	}
	return &Synthesizer{provider: provider, settings: settings, language: language, usage: usage}
}

// Synthesize answers in.Utterance from in.Chunks. With no chunks it returns
// a fixed cannot-answer text without calling the model. When the utterance
// asks for a character limit the answer is reshaped to honor it. onDelta,
// if set, receives the answer as it is produced; with a character limit it
// receives the final text once.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input, onDelta llm.DeltaFunc) (string, error) {
	limit, limited := CharLimit(in.Utterance)

	if len(in.Chunks) == 0 {
		answer := cannotAnswer(s.language)
		if limited {
			answer = ApplyCharLimit(answer, limit)
		}
		if err := emit(onDelta, answer); err != nil {
			return "", &SynthesisError{Err: err}
		}
		return answer, nil
	}

	msgs := make([]llm.Message, 0, 2*len(in.History)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: answerPrompt(s.language, in.Chunks)})
	msgs = append(msgs, Messages(in.History)...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: questionMessage(in.Utterance, in.Standalone)})

	req := llm.CompletionRequest{
		Model:       s.settings.Model,
		Messages:    msgs,
		MaxTokens:   s.settings.MaxTokens,
		Temperature: s.settings.Temperature,
	}

	var resp *llm.CompletionResponse
	var err error
	if onDelta != nil && !limited {
		resp, err = llm.Stream(ctx, s.provider, req, onDelta)
	} else {
		resp, err = s.provider.Complete(ctx, req)
	}
	if err != nil {
		return "", &SynthesisError{Err: err}
	}
	if s.usage != nil {
		s.usage.Add(resp)
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", &SynthesisError{Err: errBlankAnswer}
	}
	if limited {
		answer = ApplyCharLimit(answer, limit)
		if err := emit(onDelta, answer); err != nil {
			return "", &SynthesisError{Err: err}
		}
	}
	return answer, nil
}

func emit(onDelta llm.DeltaFunc, text string) error {
	if onDelta == nil {
		return nil
	}
	return onDelta(text)
}
