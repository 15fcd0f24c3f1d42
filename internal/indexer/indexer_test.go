package indexer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ziadkadry99/minutes/internal/audit"
	"github.com/ziadkadry99/minutes/internal/chunker"
	"github.com/ziadkadry99/minutes/internal/corpus"
	"github.com/ziadkadry99/minutes/internal/embeddings"
	"github.com/ziadkadry99/minutes/internal/logging"
)

// --- Mock Embedder ---

// mockEmbedder wraps the hash embedder, counts calls and fails any batch
// containing failOn.
type mockEmbedder struct {
	inner  *embeddings.HashEmbedder
	failOn string
	err    error
	calls  atomic.Int64
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{inner: embeddings.NewHashEmbedder(64)}
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)
	for _, t := range texts {
		if m.failOn != "" && strings.Contains(t, m.failOn) {
			if m.err != nil {
				return nil, m.err
			}
			return nil, errors.New("embedding service unavailable")
		}
	}
	return m.inner.Embed(ctx, texts)
}

func (m *mockEmbedder) Dimensions() int { return m.inner.Dimensions() }
func (m *mockEmbedder) Name() string    { return "mock" }

// --- Mock Reporter ---

type mockReporter struct {
	mu      sync.Mutex
	started int
	updates int
	done    bool
}

func (r *mockReporter) Start(total int) { r.started = total }
func (r *mockReporter) Update(int, string) {
	r.mu.Lock()
	r.updates++
	r.mu.Unlock()
}
func (r *mockReporter) Finish() { r.done = true }

type memRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memRecorder) Log(_ context.Context, e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func salesDev() map[string][]corpus.RawDocument {
	return map[string][]corpus.RawDocument{
		"Sales": {{Topic: "Sales", RelPath: "q1.txt", Content: "Q1 review discusses lead generation"}},
		"Dev":   {{Topic: "Dev", RelPath: "sprint.txt", Content: "Sprint 5 planning"}},
	}
}

func newTestBuilder(t *testing.T, emb embeddings.Embedder, opts Options) *Builder {
	t.Helper()
	c, err := chunker.New(20, 5)
	if err != nil {
		t.Fatal(err)
	}
	opts.Chunker = c
	opts.Embedder = emb
	opts.Logger = logging.Discard()
	b, err := NewBuilder(opts)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestBuildTopicsAndGlobal(t *testing.T) {
	emb := newMockEmbedder()
	rep := &mockReporter{}
	rec := &memRecorder{}
	b := newTestBuilder(t, emb, Options{Reporter: rep, Audit: rec, Concurrency: 2})

	set, report, err := b.Build(context.Background(), salesDev())
	if err != nil {
		t.Fatal(err)
	}

	if got := set.TopicNames(); len(got) != 2 || got[0] != "Dev" || got[1] != "Sales" {
		t.Fatalf("TopicNames() = %v", got)
	}
	sales, _ := set.Topic("Sales")
	dev, _ := set.Topic("Dev")
	if set.Global().Count() != sales.Count()+dev.Count() {
		t.Errorf("global has %d chunks, topics have %d+%d", set.Global().Count(), sales.Count(), dev.Count())
	}
	if report.GlobalChunks != set.Global().Count() {
		t.Errorf("report.GlobalChunks = %d", report.GlobalChunks)
	}
	if len(report.Errors) != 0 {
		t.Errorf("unexpected errors: %v", report.Errors)
	}

	// Each topic is embedded once; the global index reuses the vectors.
	if n := emb.calls.Load(); n != 2 {
		t.Errorf("Embed called %d times, want 2", n)
	}

	if rep.started != 2 || rep.updates != 2 || !rep.done {
		t.Errorf("reporter = %+v", rep)
	}
	if len(rec.entries) != 1 || rec.entries[0].Action != audit.ActionIndexBuild || rec.entries[0].Failed {
		t.Errorf("audit entries = %+v", rec.entries)
	}
}

func TestBuildTopicIsolation(t *testing.T) {
	b := newTestBuilder(t, newMockEmbedder(), Options{})
	set, _, err := b.Build(context.Background(), salesDev())
	if err != nil {
		t.Fatal(err)
	}
	dev, _ := set.Topic("Dev")
	results, err := dev.Retrieve(context.Background(), "lead generation", 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Chunk.Topic != "Dev" {
			t.Errorf("Dev index returned chunk from %s", r.Chunk.Topic)
		}
	}
}

func TestBuildFailedTopicDropped(t *testing.T) {
	emb := newMockEmbedder()
	emb.failOn = "Sprint"
	b := newTestBuilder(t, emb, Options{})

	set, report, err := b.Build(context.Background(), salesDev())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := set.Topic("Dev"); ok {
		t.Error("failed topic should not be registered")
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", report.Errors)
	}
	var be *BuildError
	if !errors.As(report.Errors[0], &be) || be.Topic != "Dev" {
		t.Errorf("expected BuildError for Dev, got %v", report.Errors[0])
	}
	if set.Global().Count() == 0 {
		t.Error("global index should still hold Sales chunks")
	}
	if m := b.NewManifest(report); len(m.Failed) != 1 || m.Failed[0] != "Dev" {
		t.Errorf("manifest failed = %v", m.Failed)
	}
}

func TestBuildEmpty(t *testing.T) {
	rec := &memRecorder{}
	b := newTestBuilder(t, newMockEmbedder(), Options{Audit: rec})

	tests := []struct {
		name string
		docs map[string][]corpus.RawDocument
	}{
		{"no topics", nil},
		{"whitespace only", map[string][]corpus.RawDocument{
			"Sales": {{Topic: "Sales", RelPath: "blank.txt", Content: "  \n "}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, _, err := b.Build(context.Background(), tt.docs)
			if !errors.Is(err, ErrEmptyIndex) {
				t.Fatalf("expected ErrEmptyIndex, got %v", err)
			}
			if set != nil {
				t.Error("expected nil set")
			}
		})
	}
	if len(rec.entries) != 2 || !rec.entries[0].Failed {
		t.Errorf("audit entries = %+v", rec.entries)
	}
}

func TestBuildAllTopicsFail(t *testing.T) {
	emb := newMockEmbedder()
	emb.failOn = " "
	b := newTestBuilder(t, emb, Options{})
	_, report, err := b.Build(context.Background(), salesDev())
	if !errors.Is(err, ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
	if len(report.Errors) != 2 {
		t.Errorf("expected 2 topic errors, got %d", len(report.Errors))
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := newTestBuilder(t, newMockEmbedder(), Options{})
	if _, _, err := b.Build(ctx, salesDev()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBatcherQuotaCircuitBreaker(t *testing.T) {
	emb := newMockEmbedder()
	emb.failOn = "x"
	emb.err = errors.New("429 quota exceeded")

	jobs := make([]topicJob, 5)
	for i := range jobs {
		jobs[i] = topicJob{
			topic:  string(rune('A' + i)),
			chunks: []corpus.Chunk{{ID: "c", Text: "x"}},
		}
	}
	var progressed atomic.Int64
	res := NewBatcher(1, emb, func(int, int, string) { progressed.Add(1) }).Process(context.Background(), jobs)

	if len(res.Errors) != 5 {
		t.Errorf("expected every topic to fail, got %d errors", len(res.Errors))
	}
	if n := emb.calls.Load(); n != 1 {
		t.Errorf("expected the breaker to stop after 1 call, got %d", n)
	}
	if progressed.Load() != 5 {
		t.Errorf("progress called %d times", progressed.Load())
	}
}

func TestBatcherSplitsLargeTopics(t *testing.T) {
	emb := newMockEmbedder()
	chunks := make([]corpus.Chunk, DefaultEmbedBatch*2+1)
	for i := range chunks {
		chunks[i] = corpus.Chunk{ID: "c", Text: "text"}
	}
	res := NewBatcher(1, emb, nil).Process(context.Background(), []topicJob{{topic: "T", chunks: chunks}})
	if res.Topics[0] == nil || len(res.Topics[0].vectors) != len(chunks) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if n := emb.calls.Load(); n != 3 {
		t.Errorf("Embed called %d times, want 3", n)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if m, err := LoadManifest(dir); err != nil || m != nil {
		t.Fatalf("LoadManifest on empty dir = %v, %v", m, err)
	}

	b := newTestBuilder(t, newMockEmbedder(), Options{})
	_, report, err := b.Build(context.Background(), salesDev())
	if err != nil {
		t.Fatal(err)
	}
	if err := b.NewManifest(report).Save(dir); err != nil {
		t.Fatal(err)
	}
	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.Embedder != "mock" || m.ChunkSize != 20 || m.ChunkOverlap != 5 || len(m.Topics) != 2 {
		t.Errorf("manifest = %+v", m)
	}
}

func TestNewBuilderRequiresEmbedder(t *testing.T) {
	if _, err := NewBuilder(Options{}); err == nil {
		t.Error("expected error without embedder")
	}
}
