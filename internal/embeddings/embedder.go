// Package embeddings turns chunk text into vectors for the topic indexes.
package embeddings

import "context"

// Embedder maps texts to vectors. Embed returns exactly one vector per
// input text, in input order; callers rely on this to pair vectors with
// chunks.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector size the embedder produces.
	Dimensions() int

	// Name identifies the model. It is stored with index snapshots so a
	// snapshot is never queried with a different model.
	Name() string
}

var (
	_ Embedder = (*OpenAIEmbedder)(nil)
	_ Embedder = (*OllamaEmbedder)(nil)
	_ Embedder = (*GoogleEmbedder)(nil)
	_ Embedder = (*HashEmbedder)(nil)
)
