package vectordb

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"github.com/ziadkadry99/minutes/internal/corpus"
	"github.com/ziadkadry99/minutes/internal/embeddings"
)

// SearchResult pairs a chunk with its cosine similarity to the query.
type SearchResult struct {
	Chunk      corpus.Chunk
	Similarity float32
}

// Retriever is the read side of an index.
type Retriever interface {
	// Retrieve returns at most k chunks, most similar first. Equal
	// similarities are ordered by chunk ID so results are reproducible.
	Retrieve(ctx context.Context, query string, k int) ([]SearchResult, error)
	Count() int
}

var _ Retriever = (*Index)(nil)

// Index is one chromem collection of embedded chunks.
type Index struct {
	name     string
	col      *chromem.Collection
	embedder embeddings.Embedder
}

// Name returns the topic the index was built for, or GlobalName.
func (ix *Index) Name() string { return ix.name }

// Count returns the number of chunks in the index.
func (ix *Index) Count() int { return ix.col.Count() }

// Add stores chunks. vectors, when non-nil, must be parallel to chunks and
// are used as-is; otherwise the index embedder is called.
func (ix *Index) Add(ctx context.Context, chunks []corpus.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if vectors != nil && len(vectors) != len(chunks) {
		return fmt.Errorf("index %s: %d vectors for %d chunks", ix.name, len(vectors), len(chunks))
	}
	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = chromem.Document{
			ID:       ch.ID,
			Content:  ch.Text,
			Metadata: chunkMetadata(ch),
		}
		if vectors != nil {
			docs[i].Embedding = vectors[i]
		}
	}
	if err := ix.col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("index %s: %w", ix.name, err)
	}
	return nil
}

// Retrieve implements Retriever. An empty index yields no results and no
// error.
func (ix *Index) Retrieve(ctx context.Context, query string, k int) ([]SearchResult, error) {
	count := ix.col.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}

	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors", len(vecs))
	}

	// chromem orders by similarity only. Fetch everything and apply the
	// ID tie-break ourselves before cutting to k.
	results, err := ix.col.QueryEmbedding(ctx, vecs[0], count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query on %s: %w", ix.name, err)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			Chunk:      metadataChunk(r.ID, r.Content, r.Metadata),
			Similarity: r.Similarity,
		}
	}
	return out, nil
}

func chunkMetadata(ch corpus.Chunk) map[string]string {
	return map[string]string{
		"topic":  ch.Topic,
		"source": ch.SourcePath,
		"index":  strconv.Itoa(ch.Index),
	}
}

func metadataChunk(id, text string, m map[string]string) corpus.Chunk {
	idx, _ := strconv.Atoi(m["index"])
	return corpus.Chunk{
		ID:         id,
		Topic:      m["topic"],
		SourcePath: m["source"],
		Index:      idx,
		Text:       text,
	}
}
