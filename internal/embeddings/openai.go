package embeddings

import (
	"context"
	"fmt"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

// openAIMaxInputs is the largest input array the embeddings endpoint accepts.
const openAIMaxInputs = 2048

// OpenAIModel names an OpenAI embedding model.
type OpenAIModel string

const (
	ModelTextEmbedding3Small OpenAIModel = "text-embedding-3-small"
	ModelTextEmbedding3Large OpenAIModel = "text-embedding-3-large"
)

func (m OpenAIModel) dimensions() int {
	if m == ModelTextEmbedding3Large {
		return 3072
	}
	return 1536
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint, or any server that
// speaks the same protocol. Rate-limited and 5xx responses are retried
// with backoff.
type OpenAIEmbedder struct {
	client *openai.Client
	model  OpenAIModel
	retry  retryPolicy
}

// NewOpenAIEmbedder returns an embedder for api.openai.com.
func NewOpenAIEmbedder(apiKey string, model OpenAIModel) *OpenAIEmbedder {
	return newOpenAIEmbedder(openai.DefaultConfig(apiKey), model)
}

// NewOpenAICompatibleEmbedder returns an embedder for an OpenAI-compatible
// server at baseURL (e.g. "http://localhost:8000/v1").
func NewOpenAICompatibleEmbedder(baseURL, apiKey string, model OpenAIModel) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return newOpenAIEmbedder(cfg, model)
}

func newOpenAIEmbedder(cfg openai.ClientConfig, model OpenAIModel) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		retry:  defaultRetry,
	}
}

func (e *OpenAIEmbedder) Name() string    { return string(e.model) }
func (e *OpenAIEmbedder) Dimensions() int { return e.model.dimensions() }

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openAIMaxInputs {
		batch := texts[start:min(start+openAIMaxInputs, len(texts))]

		var resp openai.EmbeddingResponse
		err := e.retry.do(ctx, func() error {
			var err error
			resp, err = e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: batch,
				Model: openai.EmbeddingModel(e.model),
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(resp.Data), len(batch))
		}

		// The API echoes each input's position; do not trust array order.
		sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
		for _, d := range resp.Data {
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}
