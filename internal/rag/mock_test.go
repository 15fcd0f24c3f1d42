package rag

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ziadkadry99/minutes/internal/corpus"
	"github.com/ziadkadry99/minutes/internal/embeddings"
	"github.com/ziadkadry99/minutes/internal/indexer"
	"github.com/ziadkadry99/minutes/internal/ingest"
	"github.com/ziadkadry99/minutes/internal/llm"
	"github.com/ziadkadry99/minutes/internal/logging"
)

// scriptedProvider answers rewrite requests and answer requests with
// separate functions and records every request.
type scriptedProvider struct {
	mu      sync.Mutex
	calls   []llm.CompletionRequest
	rewrite func(req llm.CompletionRequest) (string, error)
	answer  func(req llm.CompletionRequest) (string, error)
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		rewrite: func(req llm.CompletionRequest) (string, error) {
			return lastUser(req) + " (standalone)", nil
		},
		answer: func(req llm.CompletionRequest) (string, error) {
			return firstContext(req), nil
		},
	}
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	var text string
	var err error
	if isRewrite(req) {
		text, err = p.rewrite(req)
	} else {
		text, err = p.answer(req)
	}
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Content: text, Model: "scripted"}, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func isRewrite(req llm.CompletionRequest) bool {
	if len(req.Messages) == 0 {
		return false
	}
	sys := req.Messages[0].Content
	return sys == rewritePromptJA || sys == rewritePromptEN
}

func lastUser(req llm.CompletionRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

// firstContext returns the text of the most similar chunk in the answer
// prompt, which plays the role of a perfectly grounded model.
func firstContext(req llm.CompletionRequest) string {
	sys := req.Messages[0].Content
	i := strings.Index(sys, "[1] ")
	if i < 0 {
		return "unknown"
	}
	rest := sys[i:]
	rest = rest[strings.Index(rest, "\n")+1:]
	if end := strings.Index(rest, "\n\n"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func writeNote(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func testLayout(root string) corpus.Layout {
	return corpus.Layout{
		Root:           root,
		ProcessedDir:   "processed",
		RawDir:         "raw",
		IndexDir:       ".db",
		ReservedPrefix: ".",
	}
}

func newTestPipeline(t *testing.T, root string, provider llm.Provider, opts Options) *Pipeline {
	t.Helper()
	opts.Tracker = ingest.NewTracker(ingest.Options{Layout: testLayout(root), Logger: logging.Discard()})
	b, err := indexer.NewBuilder(indexer.Options{
		Embedder: embeddings.NewHashEmbedder(256),
		Logger:   logging.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	opts.Builder = b
	opts.Provider = provider
	if opts.Language == "" {
		opts.Language = "English"
	}
	opts.Logger = logging.Discard()
	p, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// salesDevTree writes the two-topic corpus used by the scenario tests.
func salesDevTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeNote(t, root, "Sales/q1-review.txt", "Q1 review discusses lead generation")
	writeNote(t, root, "Dev/sprint.txt", "sprint planning notes")
	return root
}
