package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ziadkadry99/minutes/internal/llm"
	"github.com/ziadkadry99/minutes/internal/vectordb"
)

// Answer is the result of one successful question.
type Answer struct {
	Text       string                  `json:"answer"`
	Standalone string                  `json:"standalone_query"`
	Sources    []vectordb.SearchResult `json:"-"`
}

// Chain runs rewrite, retrieve and synthesize against one index and
// records the turn in its history.
type Chain struct {
	topic       string
	resolve     func() (vectordb.Retriever, error)
	rewriter    *Rewriter
	synthesizer *Synthesizer
	history     *History
	k           int
	logger      *slog.Logger
}

// Topic returns the topic the chain retrieves from, empty for the global
// index.
func (c *Chain) Topic() string { return c.topic }

// History returns the history the chain appends to.
func (c *Chain) History() *History { return c.history }

// Ask answers utterance. On success exactly one turn is appended to the
// history; on any failure none is.
func (c *Chain) Ask(ctx context.Context, utterance string, onDelta llm.DeltaFunc) (*Answer, error) {
	retriever, err := c.resolve()
	if err != nil {
		return nil, err
	}

	turns := c.history.Turns()
	standalone, err := c.rewriter.Rewrite(ctx, turns, utterance)
	if err != nil {
		return nil, err
	}

	results, err := retriever.Retrieve(ctx, standalone, c.k)
	if err != nil {
		return nil, fmt.Errorf("retrieving chunks: %w", err)
	}
	c.logger.Debug("retrieved chunks",
		"topic", c.topic,
		"query", standalone,
		"results", len(results))

	text, err := c.synthesizer.Synthesize(ctx, Input{
		Chunks:     results,
		History:    turns,
		Utterance:  utterance,
		Standalone: standalone,
	}, onDelta)
	if err != nil {
		return nil, err
	}

	c.history.Append(Turn{Question: utterance, Answer: text, Topic: c.topic})
	return &Answer{Text: text, Standalone: standalone, Sources: results}, nil
}
