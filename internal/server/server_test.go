package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/minutes/internal/agent"
	"github.com/ziadkadry99/minutes/internal/audit"
	"github.com/ziadkadry99/minutes/internal/corpus"
	"github.com/ziadkadry99/minutes/internal/db"
	"github.com/ziadkadry99/minutes/internal/embeddings"
	"github.com/ziadkadry99/minutes/internal/indexer"
	"github.com/ziadkadry99/minutes/internal/ingest"
	"github.com/ziadkadry99/minutes/internal/llm"
	"github.com/ziadkadry99/minutes/internal/logging"
	"github.com/ziadkadry99/minutes/internal/rag"
	"github.com/ziadkadry99/minutes/internal/session"
)

// groundedModel answers with the first retrieved chunk, passes rewrites
// through and drives the agent to DevRAG once.
type groundedModel struct{}

func (groundedModel) Name() string { return "grounded" }

func (groundedModel) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	sys := req.Messages[0].Content
	last := req.Messages[len(req.Messages)-1].Content
	switch {
	case strings.HasPrefix(sys, "Answer the following question"):
		if strings.Contains(last, "Observation:") {
			return &llm.CompletionResponse{Content: "Final Answer: the team planned a sprint"}, nil
		}
		return &llm.CompletionResponse{Content: "Action: DevRAG\nAction Input: sprint"}, nil
	case strings.Contains(sys, "[1] "):
		rest := sys[strings.Index(sys, "[1] "):]
		rest = rest[strings.Index(rest, "\n")+1:]
		if end := strings.Index(rest, "\n\n"); end >= 0 {
			rest = rest[:end]
		}
		return &llm.CompletionResponse{Content: rest}, nil
	}
	return &llm.CompletionResponse{Content: last}, nil
}

type testEnv struct {
	srv      *Server
	pipeline *rag.Pipeline
}

func setup(t *testing.T, initialize bool) *testEnv {
	t.Helper()
	root := t.TempDir()
	for rel, content := range map[string]string{
		"Sales/q1-review.txt": "Q1 review discusses lead generation",
		"Dev/sprint.txt":      "sprint planning notes",
	} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	auditStore := audit.NewStore(database)

	layout := corpus.Layout{Root: root, ProcessedDir: "processed", RawDir: "raw", IndexDir: ".db", ReservedPrefix: "."}
	b, err := indexer.NewBuilder(indexer.Options{Embedder: embeddings.NewHashEmbedder(256), Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	p, err := rag.New(rag.Options{
		Tracker:  ingest.NewTracker(ingest.Options{Layout: layout, Logger: logging.Discard()}),
		Builder:  b,
		Provider: groundedModel{},
		Language: "English",
		Audit:    auditStore,
		Logger:   logging.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if initialize {
		if _, err := p.Initialize(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	m := session.NewManager(p, session.NewStore(database), agent.Config{
		Topics:   []string{"Sales", "Dev"},
		Language: "English",
		Audit:    auditStore,
		Logger:   logging.Discard(),
	}, logging.Discard())
	return &testEnv{
		srv:      New(Config{Port: 0}, p, m, auditStore, logging.Discard()),
		pipeline: p,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) newSession(t *testing.T) string {
	t.Helper()
	w := e.do(t, "POST", "/api/sessions", map[string]string{"label": "test"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", w.Code, w.Body.String())
	}
	var info session.Info
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	return info.ID
}

func TestHealthCheck(t *testing.T) {
	env := setup(t, false)
	w := env.do(t, "GET", "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" || body["state"] != "uninitialized" {
		t.Errorf("body = %v", body)
	}
}

func TestCORSHeaders(t *testing.T) {
	env := setup(t, false)
	env.srv = New(Config{AllowAll: true}, env.pipeline, nil, nil, logging.Discard())

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestTopics(t *testing.T) {
	env := setup(t, true)
	w := env.do(t, "GET", "/api/topics", nil)
	var body struct {
		State  string   `json:"state"`
		Topics []string `json:"topics"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.State != "ready" || len(body.Topics) != 2 || body.Topics[0] != "Dev" {
		t.Errorf("body = %+v", body)
	}
}

func TestQueryBeforeInitialize(t *testing.T) {
	env := setup(t, false)
	id := env.newSession(t)
	w := env.do(t, "POST", "/api/sessions/"+id+"/query", questionRequest{Question: "anything"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestQueryFlow(t *testing.T) {
	env := setup(t, true)
	id := env.newSession(t)

	w := env.do(t, "POST", "/api/sessions/"+id+"/query", questionRequest{Question: "What did the sales discussion cover?"})
	if w.Code != http.StatusOK {
		t.Fatalf("query: %d %s", w.Code, w.Body.String())
	}
	var ans answerResponse
	if err := json.Unmarshal(w.Body.Bytes(), &ans); err != nil {
		t.Fatal(err)
	}
	if ans.Answer != "Q1 review discusses lead generation" {
		t.Errorf("answer = %q", ans.Answer)
	}
	if len(ans.Sources) == 0 || ans.Sources[0].Topic != "Sales" {
		t.Errorf("sources = %+v", ans.Sources)
	}

	w = env.do(t, "GET", "/api/sessions/"+id+"/turns", nil)
	var turns []session.Turn
	json.Unmarshal(w.Body.Bytes(), &turns)
	if len(turns) != 1 || turns[0].Mode != session.ModeQuery {
		t.Errorf("turns = %+v", turns)
	}

	w = env.do(t, "DELETE", "/api/sessions/"+id+"/history", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("reset: %d", w.Code)
	}
	w = env.do(t, "GET", "/api/sessions/"+id+"/turns", nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("turns after reset = %s", w.Body.String())
	}

	w = env.do(t, "GET", "/api/audit?action=query", nil)
	var entries []audit.Entry
	json.Unmarshal(w.Body.Bytes(), &entries)
	if len(entries) != 1 || entries[0].SessionID != id {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestQueryErrors(t *testing.T) {
	env := setup(t, true)
	id := env.newSession(t)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"unknown session", "/api/sessions/nope/query", questionRequest{Question: "q"}, http.StatusNotFound},
		{"empty question", "/api/sessions/" + id + "/query", questionRequest{Question: "  "}, http.StatusBadRequest},
		{"unknown topic", "/api/sessions/" + id + "/query", questionRequest{Question: "q", Topic: "HR"}, http.StatusBadRequest},
		{"bad json", "/api/sessions/" + id + "/query", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", tt.path, tt.body)
			if w.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestAgentEndpoint(t *testing.T) {
	env := setup(t, true)
	id := env.newSession(t)

	w := env.do(t, "POST", "/api/sessions/"+id+"/agent", questionRequest{Question: "What did the dev team plan?"})
	if w.Code != http.StatusOK {
		t.Fatalf("agent: %d %s", w.Code, w.Body.String())
	}
	var res agent.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Answer != "the team planned a sprint" || len(res.ToolsUsed) != 1 || res.ToolsUsed[0] != "DevRAG" {
		t.Errorf("result = %+v", res)
	}
	if res.Steps[0].Observation != "sprint planning notes" {
		t.Errorf("observation = %q", res.Steps[0].Observation)
	}
}

func TestSearch(t *testing.T) {
	env := setup(t, true)

	w := env.do(t, "GET", "/api/search?q=lead+generation&topic=Sales&k=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search: %d %s", w.Code, w.Body.String())
	}
	var results []sourceJSON
	json.Unmarshal(w.Body.Bytes(), &results)
	if len(results) != 1 || results[0].Text != "Q1 review discusses lead generation" {
		t.Errorf("results = %+v", results)
	}

	if w := env.do(t, "GET", "/api/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing q: %d", w.Code)
	}
	if w := env.do(t, "GET", "/api/search?q=x&k=0", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad k: %d", w.Code)
	}
}

func TestWebSocketChat(t *testing.T) {
	env := setup(t, true)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(chatRequest{Type: "query", Content: "What did the sales discussion cover?"}); err != nil {
		t.Fatal(err)
	}

	var frames []chatResponse
	for {
		var resp chatResponse
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		frames = append(frames, resp)
		if resp.Type == "answer" || resp.Type == "error" {
			break
		}
	}
	if frames[0].Type != "session" || frames[0].SessionID == "" {
		t.Fatalf("first frame = %+v", frames[0])
	}
	last := frames[len(frames)-1]
	if last.Type != "answer" || last.Content != "Q1 review discusses lead generation" {
		t.Errorf("last frame = %+v", last)
	}
	var streamed strings.Builder
	for _, f := range frames {
		if f.Type == "delta" {
			streamed.WriteString(f.Content)
		}
	}
	if streamed.String() != last.Content {
		t.Errorf("deltas %q do not add up to the answer", streamed.String())
	}

	if err := conn.WriteJSON(chatRequest{Type: "bogus", SessionID: last.SessionID, Content: "x"}); err != nil {
		t.Fatal(err)
	}
	var resp chatResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Type != "error" || resp.Status != http.StatusBadRequest {
		t.Errorf("unknown type frame = %+v", resp)
	}
}
