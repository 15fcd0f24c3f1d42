package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	googleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// googleMaxBatch is the request limit of batchEmbedContents.
	googleMaxBatch = 100
)

// GoogleModel names a Gemini embedding model.
type GoogleModel string

const ModelGeminiEmbedding001 GoogleModel = "gemini-embedding-001"

// GoogleEmbedder calls the Gemini batchEmbedContents endpoint, up to 100
// texts per request.
type GoogleEmbedder struct {
	apiKey     string
	model      GoogleModel
	baseURL    string
	httpClient *http.Client
	retry      retryPolicy
}

// NewGoogleEmbedder returns an embedder authenticated with apiKey.
func NewGoogleEmbedder(apiKey string, model GoogleModel) *GoogleEmbedder {
	return &GoogleEmbedder{
		apiKey:     apiKey,
		model:      model,
		baseURL:    googleBaseURL,
		httpClient: &http.Client{},
		retry:      defaultRetry,
	}
}

func (e *GoogleEmbedder) Name() string { return string(e.model) }

// Dimensions is the default output size of gemini-embedding-001.
func (e *GoogleEmbedder) Dimensions() int { return 3072 }

type googleBatchRequest struct {
	Requests []googleEmbedRequest `json:"requests"`
}

type googleEmbedRequest struct {
	Model   string        `json:"model"`
	Content googleContent `json:"content"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleBatchResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

func (e *GoogleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	model := "models/" + string(e.model)
	for start := 0; start < len(texts); start += googleMaxBatch {
		batch := texts[start:min(start+googleMaxBatch, len(texts))]

		reqs := make([]googleEmbedRequest, len(batch))
		for i, t := range batch {
			reqs[i] = googleEmbedRequest{Model: model, Content: googleContent{Parts: []googlePart{{Text: t}}}}
		}
		body, err := json.Marshal(googleBatchRequest{Requests: reqs})
		if err != nil {
			return nil, fmt.Errorf("marshal google embed request: %w", err)
		}

		var result googleBatchResponse
		if err := e.retry.do(ctx, func() error { return e.post(ctx, body, &result) }); err != nil {
			return nil, err
		}
		if len(result.Embeddings) != len(batch) {
			return nil, fmt.Errorf("google embeddings: got %d vectors for %d texts", len(result.Embeddings), len(batch))
		}
		for i, emb := range result.Embeddings {
			if len(emb.Values) == 0 {
				return nil, fmt.Errorf("google embeddings: empty vector for text %d", start+i)
			}
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

func (e *GoogleEmbedder) post(ctx context.Context, body []byte, out *googleBatchResponse) error {
	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create google embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("google embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return newStatusError("google", resp, respBody)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode google embed response: %w", err)
	}
	return nil
}
