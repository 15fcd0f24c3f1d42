package indexer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ziadkadry99/minutes/internal/corpus"
	"github.com/ziadkadry99/minutes/internal/embeddings"
)

// DefaultEmbedBatch caps the number of texts sent in one Embed call.
const DefaultEmbedBatch = 64

// topicJob is the work for one topic.
type topicJob struct {
	topic     string
	documents int
	chunks    []corpus.Chunk
}

// embedded is a topic whose chunks all received vectors.
type embedded struct {
	topicJob
	vectors [][]float32
}

// Batcher embeds topics concurrently with bounded parallelism.
type Batcher struct {
	concurrency int
	batchSize   int
	embedder    embeddings.Embedder
	onProgress  ProgressFunc
}

// NewBatcher creates a new Batcher with the given concurrency limit.
func NewBatcher(concurrency int, embedder embeddings.Embedder, onProgress ProgressFunc) *Batcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batcher{
		concurrency: concurrency,
		batchSize:   DefaultEmbedBatch,
		embedder:    embedder,
		onProgress:  onProgress,
	}
}

// BatchResult holds the embedded topics, indexed like the input jobs, and
// the per-topic errors. A nil slot means the topic failed.
type BatchResult struct {
	Topics []*embedded
	Errors []error
}

// Process embeds every job. Each goroutine writes only its own slot of
// Topics, so no topic can observe another's partial state.
func (b *Batcher) Process(ctx context.Context, jobs []topicJob) *BatchResult {
	total := len(jobs)
	result := &BatchResult{Topics: make([]*embedded, total)}
	if total == 0 {
		return result
	}

	// Circuit breaker: stop starting topics once the provider reports quota
	// exhaustion, every later call would fail the same way.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var quotaExhausted int64

	sem := make(chan struct{}, b.concurrency)
	var mu sync.Mutex
	var processed int64

	fail := func(topic string, err error) {
		mu.Lock()
		result.Errors = append(result.Errors, &BuildError{Topic: topic, Err: err})
		mu.Unlock()
	}
	progress := func(topic string) {
		count := atomic.AddInt64(&processed, 1)
		if b.onProgress != nil {
			b.onProgress(int(count), total, topic)
		}
	}

	var wg sync.WaitGroup
	for i, job := range jobs {
		if atomic.LoadInt64(&quotaExhausted) > 0 {
			fail(job.topic, fmt.Errorf("skipped (embedding quota exhausted)"))
			progress(job.topic)
			continue
		}

		select {
		case <-ctx.Done():
			fail(job.topic, ctx.Err())
			progress(job.topic)
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(slot int, j topicJob) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				fail(j.topic, err)
				progress(j.topic)
				return
			}
			vecs, err := b.embed(ctx, j.chunks)
			if err != nil {
				fail(j.topic, err)
				if isQuotaError(err) {
					atomic.StoreInt64(&quotaExhausted, 1)
					cancel()
				}
			} else {
				result.Topics[slot] = &embedded{topicJob: j, vectors: vecs}
			}
			progress(j.topic)
		}(i, job)
	}

	wg.Wait()
	return result
}

// embed sends the chunk texts in batches and checks the vector count.
func (b *Batcher) embed(ctx context.Context, chunks []corpus.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += b.batchSize {
		end := start + b.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i, ch := range chunks[start:end] {
			texts[i] = ch.Text
		}
		vecs, err := b.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedding chunks %d-%d: got %d vectors for %d texts", start, end-1, len(vecs), len(texts))
		}
		vectors = append(vectors, vecs...)
	}
	return vectors, nil
}

func isQuotaError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "RESOURCE_EXHAUSTED") || strings.Contains(s, "quota") || strings.Contains(s, "429")
}
