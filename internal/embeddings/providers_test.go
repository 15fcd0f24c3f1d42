package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var fastRetry = retryPolicy{maxRetries: 2, base: time.Millisecond, max: 5 * time.Millisecond}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("note %d", i)
	}
	return out
}

func TestOllamaEmbedderBatchesOneRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %s", req.Model)
		}
		resp := ollamaEmbedResponse{}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(i), 1})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nomic-embed-text", 2, srv.URL+"/")
	vecs, err := e.Embed(context.Background(), texts(5))
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("requests = %d, want 1", calls.Load())
	}
	if len(vecs) != 5 || vecs[3][0] != 3 {
		t.Errorf("vectors = %v", vecs)
	}
}

func TestOllamaEmbedderCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings":[[1,2]]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("m", 2, srv.URL)
	if _, err := e.Embed(context.Background(), texts(2)); err == nil {
		t.Fatal("expected error for missing vectors")
	}
}

func TestOllamaEmbedderRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"embeddings":[[1,0]]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("m", 2, srv.URL)
	e.retry = fastRetry
	if _, err := e.Embed(context.Background(), texts(1)); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("requests = %d, want 2", calls.Load())
	}
}

func TestGoogleEmbedderBatchEmbedContents(t *testing.T) {
	var sizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-embedding-001:batchEmbedContents" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "g-key" {
			t.Errorf("api key header = %q", got)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("key leaked into query: %s", r.URL.RawQuery)
		}
		var req googleBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		sizes = append(sizes, len(req.Requests))
		if req.Requests[0].Model != "models/gemini-embedding-001" {
			t.Errorf("model = %s", req.Requests[0].Model)
		}
		var b strings.Builder
		b.WriteString(`{"embeddings":[`)
		for i := range req.Requests {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(`{"values":[0.5,0.5]}`)
		}
		b.WriteString(`]}`)
		w.Write([]byte(b.String()))
	}))
	defer srv.Close()

	e := NewGoogleEmbedder("g-key", ModelGeminiEmbedding001)
	e.baseURL = srv.URL
	vecs, err := e.Embed(context.Background(), texts(150))
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 150 {
		t.Errorf("got %d vectors", len(vecs))
	}
	if len(sizes) != 2 || sizes[0] != 100 || sizes[1] != 50 {
		t.Errorf("batch sizes = %v, want [100 50]", sizes)
	}
}

func TestGoogleEmbedderRetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"server error retried", http.StatusInternalServerError, 3},
		{"bad request not retried", http.StatusBadRequest, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			e := NewGoogleEmbedder("k", ModelGeminiEmbedding001)
			e.baseURL = srv.URL
			e.retry = fastRetry
			_, err := e.Embed(context.Background(), texts(1))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), fmt.Sprint(tt.status)) {
				t.Errorf("error %q does not carry the status", err)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("requests = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestOpenAIEmbedderRetriesAndOrders(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
			return
		}
		// Out of order on purpose.
		w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAICompatibleEmbedder(srv.URL, "sk-test", ModelTextEmbedding3Small)
	e.retry = fastRetry
	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("requests = %d, want 2", calls.Load())
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors not in input order: %v", vecs)
	}
}

func TestOpenAIEmbedderGivesUpOnPersistentRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	e := NewOpenAICompatibleEmbedder(srv.URL, "sk-test", ModelTextEmbedding3Small)
	e.retry = fastRetry
	_, err := e.Embed(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("expected error")
	}
	// The indexer's quota breaker matches on the status code.
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error %q lost the status code", err)
	}
	if calls.Load() != int32(fastRetry.maxRetries+1) {
		t.Errorf("requests = %d", calls.Load())
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := retryPolicy{maxRetries: 5, base: time.Hour, max: time.Hour}
	calls := 0
	err := p.do(ctx, func() error {
		calls++
		cancel()
		return &statusError{provider: "test", code: http.StatusServiceUnavailable}
	})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter("3"); d != 3*time.Second {
		t.Errorf("seconds form = %s", d)
	}
	if d := parseRetryAfter(""); d != 0 {
		t.Errorf("empty = %s", d)
	}
	if d := parseRetryAfter("soon"); d != 0 {
		t.Errorf("garbage = %s", d)
	}
}
