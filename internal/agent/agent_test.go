package agent

import (
	"context"
	"errors"
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
	"github.com/ziadkadry99/minutes/internal/rag"
)

// fakeModel plays both the agent and the topic chains. Agent calls are
// answered by script, chain calls with the first context chunk.
type fakeModel struct {
	mu        sync.Mutex
	script    func(step int, req llm.CompletionRequest) string
	chainErr  error
	agentReqs []llm.CompletionRequest
	chainReqs []llm.CompletionRequest
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sys := req.Messages[0].Content
	if strings.HasPrefix(sys, "Answer the following question") {
		m.agentReqs = append(m.agentReqs, req)
		return &llm.CompletionResponse{Content: m.script(len(m.agentReqs), req)}, nil
	}
	m.chainReqs = append(m.chainReqs, req)
	if m.chainErr != nil {
		return nil, m.chainErr
	}
	if i := strings.Index(sys, "[1] "); i >= 0 {
		rest := sys[i:]
		rest = rest[strings.Index(rest, "\n")+1:]
		if end := strings.Index(rest, "\n\n"); end >= 0 {
			rest = rest[:end]
		}
		return &llm.CompletionResponse{Content: rest}, nil
	}
	// Rewrite request.
	return &llm.CompletionResponse{Content: req.Messages[len(req.Messages)-1].Content}, nil
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

// readySession builds a pipeline over a Sales/Dev corpus and returns a
// fresh session on it.
func readySession(t *testing.T, model llm.Provider) *rag.Session {
	t.Helper()
	root := t.TempDir()
	writeNote(t, root, "Sales/q1-review.txt", "Q1 review discusses lead generation")
	writeNote(t, root, "Dev/sprint.txt", "sprint planning notes")

	layout := corpus.Layout{Root: root, ProcessedDir: "processed", RawDir: "raw", IndexDir: ".db", ReservedPrefix: "."}
	b, err := indexer.NewBuilder(indexer.Options{Embedder: embeddings.NewHashEmbedder(256), Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	p, err := rag.New(rag.Options{
		Tracker:  ingest.NewTracker(ingest.Options{Layout: layout, Logger: logging.Discard()}),
		Builder:  b,
		Provider: model,
		Language: "English",
		Logger:   logging.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return p.NewSession()
}

func testConfig(topics ...string) Config {
	return Config{Topics: topics, Language: "English", Logger: logging.Discard()}
}

func TestNewBindsEnumeratedTopics(t *testing.T) {
	model := &fakeModel{}
	s := readySession(t, model)

	a, err := New(model, s, testConfig("Sales", "Dev", "Ｄｅｖ", "HR"))
	if err != nil {
		t.Fatal(err)
	}
	tools := a.Tools()
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %+v", tools)
	}
	if tools[0].Name != "SalesRAG" || tools[1].Name != "DevRAG" {
		t.Errorf("tools = %s, %s", tools[0].Name, tools[1].Name)
	}
	if !strings.Contains(tools[1].Description, "Dev meeting notes") {
		t.Errorf("description = %q", tools[1].Description)
	}
}

func TestNewFullWidthTopicMatchesFolder(t *testing.T) {
	model := &fakeModel{}
	a, err := New(model, readySession(t, model), testConfig("Ｓａｌｅｓ"))
	if err != nil {
		t.Fatal(err)
	}
	if tools := a.Tools(); len(tools) != 1 || tools[0].Name != "SalesRAG" || tools[0].Topic != "Sales" {
		t.Errorf("tools = %+v", tools)
	}
}

func TestNewNoTools(t *testing.T) {
	model := &fakeModel{}
	_, err := New(model, readySession(t, model), testConfig("HR", "Legal"))
	if !errors.Is(err, ErrNoTools) {
		t.Errorf("expected ErrNoTools, got %v", err)
	}
}

func TestRunRoutesToDev(t *testing.T) {
	model := &fakeModel{}
	model.script = func(step int, req llm.CompletionRequest) string {
		if step == 1 {
			return " The question is about development work.\nAction: DevRAG\nAction Input: What was planned?"
		}
		obs := req.Messages[1].Content
		obs = obs[strings.LastIndex(obs, "Observation: ")+len("Observation: "):]
		obs = obs[:strings.Index(obs, "\n")]
		return " I now know the final answer\nFinal Answer: " + obs
	}
	s := readySession(t, model)
	a, err := New(model, s, testConfig("Sales", "Dev"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := a.Run(context.Background(), "What did the development team plan?")
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "sprint planning notes" {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(res.ToolsUsed) != 1 || res.ToolsUsed[0] != "DevRAG" {
		t.Errorf("tools used = %v", res.ToolsUsed)
	}
	if res.Steps[0].Thought != "The question is about development work." {
		t.Errorf("thought = %q", res.Steps[0].Thought)
	}

	for _, req := range model.chainReqs {
		if strings.Contains(req.Messages[0].Content, "Sales/") {
			t.Error("Sales notes reached the model")
		}
	}

	turns := s.History().Turns()
	if len(turns) != 1 || turns[0].Topic != "Dev" || turns[0].Question != "What was planned?" {
		t.Errorf("history = %+v", turns)
	}

	req := model.agentReqs[0]
	if len(req.Stop) != 1 || req.Stop[0] != "\nObservation:" {
		t.Errorf("stop = %q", req.Stop)
	}
	if !strings.Contains(req.Messages[0].Content, "[SalesRAG, DevRAG]") {
		t.Errorf("system prompt lacks tool names: %q", req.Messages[0].Content)
	}
}

func TestRunDirectAnswerAppendsOneTurn(t *testing.T) {
	model := &fakeModel{script: func(int, llm.CompletionRequest) string {
		return " No tool is needed.\nFinal Answer: Hello."
	}}
	s := readySession(t, model)
	a, _ := New(model, s, testConfig("Sales", "Dev"))

	res, err := a.Run(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "Hello." || len(res.ToolsUsed) != 0 {
		t.Errorf("result = %+v", res)
	}
	turns := s.History().Turns()
	if len(turns) != 1 || turns[0].Answer != "Hello." {
		t.Errorf("history = %+v", turns)
	}
}

func TestRunUnknownToolGetsCorrected(t *testing.T) {
	model := &fakeModel{script: func(step int, req llm.CompletionRequest) string {
		if step == 1 {
			return " Let me ask HR.\nAction: HRRAG\nAction Input: hiring"
		}
		return " I cannot look that up.\nFinal Answer: Unknown."
	}}
	s := readySession(t, model)
	a, _ := New(model, s, testConfig("Sales", "Dev"))

	res, err := a.Run(context.Background(), "How is hiring going?")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Steps) != 1 || !strings.Contains(res.Steps[0].Observation, "HRRAG is not a valid tool") {
		t.Errorf("steps = %+v", res.Steps)
	}
	if !strings.Contains(model.agentReqs[1].Messages[1].Content, "try one of [SalesRAG, DevRAG]") {
		t.Error("corrective observation not sent back to the model")
	}
	if s.History().Len() != 1 {
		t.Errorf("history has %d turns", s.History().Len())
	}
}

func TestRunStepBudget(t *testing.T) {
	model := &fakeModel{script: func(int, llm.CompletionRequest) string {
		return " Again.\nAction: SalesRAG\nAction Input: lead generation"
	}}
	s := readySession(t, model)
	cfg := testConfig("Sales", "Dev")
	cfg.MaxSteps = 3
	a, _ := New(model, s, cfg)

	_, err := a.Run(context.Background(), "loop forever")
	if !errors.Is(err, ErrStepBudget) {
		t.Fatalf("expected ErrStepBudget, got %v", err)
	}
	if len(model.agentReqs) != 3 {
		t.Errorf("expected 3 model calls, got %d", len(model.agentReqs))
	}
	if !strings.Contains(model.agentReqs[2].Messages[1].Content, "You must respond with a Final Answer now.") {
		t.Error("last step was not told to answer")
	}
	if s.History().Len() != 2 {
		t.Errorf("each tool call should append one turn, got %d", s.History().Len())
	}
}

func TestRunToolFailurePropagates(t *testing.T) {
	model := &fakeModel{script: func(int, llm.CompletionRequest) string {
		return "Action: DevRAG\nAction Input: sprint"
	}}
	s := readySession(t, model)
	a, _ := New(model, s, testConfig("Dev"))
	s.History().Append(rag.Turn{Question: "earlier", Answer: "x"})
	model.chainErr = errors.New("rate limited")

	_, err := a.Run(context.Background(), "What was planned?")
	var rerr *rag.RewriteError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RewriteError, got %v", err)
	}
	if s.History().Len() != 1 {
		t.Errorf("failed tool call changed history: %d turns", s.History().Len())
	}
}

func TestRunLaterToolFailureKeepsEarlierTurns(t *testing.T) {
	model := &fakeModel{}
	model.script = func(step int, _ llm.CompletionRequest) string {
		if step == 1 {
			return "Action: SalesRAG\nAction Input: lead generation"
		}
		model.chainErr = errors.New("rate limited")
		return "Action: DevRAG\nAction Input: sprint"
	}
	s := readySession(t, model)
	a, err := New(model, s, testConfig("Sales", "Dev"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.Run(context.Background(), "Compare sales and dev")
	var rerr *rag.RewriteError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RewriteError, got %v", err)
	}
	turns := s.History().Turns()
	if len(turns) != 1 {
		t.Fatalf("history has %d turns, want the one completed tool call", len(turns))
	}
	if turns[0].Topic != "Sales" || turns[0].Question != "lead generation" {
		t.Errorf("kept turn = %+v", turns[0])
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		out  string
		want decision
	}{
		{
			" Check dev.\nAction: DevRAG\nAction Input: \"sprint goals\"",
			decision{thought: "Check dev.", action: "DevRAG", input: "sprint goals"},
		},
		{
			"Thought: done\nFinal Answer: 営業会議ではリード獲得を議論した。",
			decision{thought: "done", final: "営業会議ではリード獲得を議論した。"},
		},
		{
			"Action: SalesRAG\nAction Input: q1\nFinal Answer: too early",
			decision{action: "SalesRAG", input: "q1"},
		},
		{
			"just some text",
			decision{thought: "just some text"},
		},
	}
	for _, tt := range tests {
		if got := parse(tt.out); got != tt.want {
			t.Errorf("parse(%q) = %+v, want %+v", tt.out, got, tt.want)
		}
	}
}

func TestCutAtObservation(t *testing.T) {
	got := cutAtObservation("Action: DevRAG\nAction Input: x\nObservation: invented")
	if got != "Action: DevRAG\nAction Input: x" {
		t.Errorf("got %q", got)
	}
}
