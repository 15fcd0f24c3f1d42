// Package agent routes a question to the topic whose notes can answer it.
// Each topic index is exposed to the model as a tool named "<topic>RAG" and
// the model picks tools in a ReAct loop until it can give a final answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ziadkadry99/minutes/internal/audit"
	"github.com/ziadkadry99/minutes/internal/llm"
	"github.com/ziadkadry99/minutes/internal/logging"
	"github.com/ziadkadry99/minutes/internal/rag"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxSteps bounds the model calls of one run.
const DefaultMaxSteps = 8

var (
	// ErrNoTools is returned by New when no enumerated topic has an index.
	ErrNoTools = errors.New("agent: no topic matches an indexed folder")

	// ErrStepBudget is returned when the model still wants a tool after
	// its last allowed step.
	ErrStepBudget = errors.New("agent: step budget exhausted before a final answer")
)

// Chains is what the agent needs from a conversation: the indexed topics,
// a chain per topic and the shared history. *rag.Session implements it.
type Chains interface {
	Topics() []string
	Chain(topic string) (*rag.Chain, error)
	History() *rag.History
}

// Config configures an Agent.
type Config struct {
	// Topics is the enumerated theme set. Only these become tools.
	Topics []string

	Model       string
	Temperature float64
	MaxTokens   int
	MaxSteps    int
	Language    string

	// OnStep, if set, is called after every tool step.
	OnStep func(Step)

	Usage  *llm.Usage
	Audit  audit.Recorder
	Logger *slog.Logger
}

// Tool is one topic chain exposed to the model.
type Tool struct {
	Name        string
	Topic       string
	Description string
	chain       *rag.Chain
}

// Step is one Thought / Action / Observation round.
type Step struct {
	Thought     string `json:"thought,omitempty"`
	Action      string `json:"action"`
	ActionInput string `json:"action_input"`
	Observation string `json:"observation"`
}

// Result is the outcome of a run.
type Result struct {
	Answer    string   `json:"answer"`
	Steps     []Step   `json:"steps"`
	ToolsUsed []string `json:"tools_used"`
}

// Agent answers questions by delegating to topic tools.
type Agent struct {
	provider llm.Provider
	chains   Chains
	cfg      Config
	tools    []Tool
	byName   map[string]*Tool
	logger   *slog.Logger
}

// New binds a tool for every enumerated topic whose NFKC form matches an
// indexed topic. When two enumerated topics map to the same folder the
// first one wins.
func New(provider llm.Provider, chains Chains, cfg Config) (*Agent, error) {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Language == "" {
		cfg.Language = rag.DefaultLanguage
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.Nop{}
	}
	a := &Agent{
		provider: provider,
		chains:   chains,
		cfg:      cfg,
		byName:   make(map[string]*Tool),
		logger:   logging.OrDefault(cfg.Logger),
	}

	indexed := make(map[string]string)
	for _, t := range chains.Topics() {
		key := norm.NFKC.String(t)
		if prev, dup := indexed[key]; dup {
			a.logger.Warn("topic folders normalise to the same name", "kept", prev, "skipped", t)
			continue
		}
		indexed[key] = t
	}

	bound := make(map[string]string)
	for _, theme := range cfg.Topics {
		folder, ok := indexed[norm.NFKC.String(theme)]
		if !ok {
			a.logger.Info("no indexed folder for topic", "topic", theme)
			continue
		}
		if first, dup := bound[folder]; dup {
			a.logger.Warn("topic already bound", "topic", theme, "folder", folder, "bound_by", first)
			continue
		}
		chain, err := chains.Chain(folder)
		if err != nil {
			return nil, fmt.Errorf("binding topic %s: %w", folder, err)
		}
		bound[folder] = theme
		a.tools = append(a.tools, Tool{
			Name:        folder + "RAG",
			Topic:       folder,
			Description: toolDescription(cfg.Language, folder),
			chain:       chain,
		})
	}
	if len(a.tools) == 0 {
		return nil, ErrNoTools
	}
	for i := range a.tools {
		a.byName[a.tools[i].Name] = &a.tools[i]
	}
	return a, nil
}

// Tools returns the bound tools in enumeration order.
func (a *Agent) Tools() []Tool {
	out := make([]Tool, len(a.tools))
	copy(out, a.tools)
	return out
}

func (a *Agent) toolNames() []string {
	names := make([]string, len(a.tools))
	for i, t := range a.tools {
		names[i] = t.Name
	}
	return names
}

// lookup finds a tool by exact name, then by NFKC form so a model that
// echoes a full-width variant still reaches the tool.
func (a *Agent) lookup(name string) (*Tool, bool) {
	if t, ok := a.byName[name]; ok {
		return t, true
	}
	key := norm.NFKC.String(name)
	for i := range a.tools {
		if norm.NFKC.String(a.tools[i].Name) == key {
			return &a.tools[i], true
		}
	}
	return nil, false
}

// Run answers query. Every tool call appends exactly one turn through its
// chain. When the model answers without any tool the final answer is
// appended as a single turn instead. A failing tool call aborts the run
// and appends nothing, but turns of tool calls that completed earlier in
// the same run are kept.
func (a *Agent) Run(ctx context.Context, query string) (*Result, error) {
	res, err := a.run(ctx, query)
	a.record(ctx, query, res, err)
	return res, err
}

func (a *Agent) run(ctx context.Context, query string) (*Result, error) {
	system := systemPrompt(a.cfg.Language, a.tools)
	var scratch strings.Builder
	res := &Result{}

	for i := range a.cfg.MaxSteps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		last := i == a.cfg.MaxSteps-1

		resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
			Model: a.cfg.Model,
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: system},
				{Role: llm.RoleUser, Content: userPrompt(query, scratch.String())},
			},
			MaxTokens:   a.cfg.MaxTokens,
			Temperature: a.cfg.Temperature,
			Stop:        []string{stopSequence},
		})
		if err != nil {
			return nil, fmt.Errorf("agent step %d: %w", i+1, err)
		}
		if a.cfg.Usage != nil {
			a.cfg.Usage.Add(resp)
		}

		out := cutAtObservation(resp.Content)
		a.logger.Debug("agent step", "step", i+1, "output", out)
		d := parse(out)

		switch {
		case d.final != "" && d.action == "":
			res.Answer = d.final
			if len(res.ToolsUsed) == 0 {
				a.chains.History().Append(rag.Turn{Question: query, Answer: d.final})
			}
			return res, nil
		case d.action == "" && last:
			// No usable format on the forced last step: take the text as
			// the answer rather than failing.
			res.Answer = strings.TrimSpace(out)
			if res.Answer == "" {
				return nil, ErrStepBudget
			}
			if len(res.ToolsUsed) == 0 {
				a.chains.History().Append(rag.Turn{Question: query, Answer: res.Answer})
			}
			return res, nil
		case last:
			return nil, ErrStepBudget
		}

		step := Step{Thought: d.thought, Action: d.action, ActionInput: d.input}
		switch {
		case d.action == "":
			step.Observation = formatHint(a.cfg.Language)
		default:
			tool, ok := a.lookup(d.action)
			if !ok {
				step.Observation = unknownTool(a.cfg.Language, d.action, a.toolNames())
				break
			}
			input := d.input
			if input == "" {
				input = query
			}
			ans, err := tool.chain.Ask(ctx, input, nil)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", tool.Name, err)
			}
			step.Action = tool.Name
			step.Observation = ans.Text
			res.ToolsUsed = append(res.ToolsUsed, tool.Name)
		}
		res.Steps = append(res.Steps, step)
		if a.cfg.OnStep != nil {
			a.cfg.OnStep(step)
		}

		scratch.WriteString(out)
		scratch.WriteString("\nObservation: ")
		scratch.WriteString(step.Observation)
		if i == a.cfg.MaxSteps-2 {
			scratch.WriteString("\n")
			scratch.WriteString(finishNow(a.cfg.Language))
		}
		scratch.WriteString("\nThought:")
	}
	return nil, ErrStepBudget
}

func (a *Agent) record(ctx context.Context, query string, res *Result, err error) {
	e := audit.Entry{
		ActorType: audit.ActorUser,
		Action:    audit.ActionAgentRun,
		Scope:     audit.ScopeSession,
		Summary:   query,
	}
	if s, ok := a.chains.(interface{ ID() string }); ok {
		e.ScopeID = s.ID()
		e.SessionID = s.ID()
	}
	if res != nil {
		e.Detail = "tools=" + strings.Join(res.ToolsUsed, ",")
	}
	if err != nil {
		e.Failed = true
		e.Detail = err.Error()
	}
	if aerr := a.cfg.Audit.Log(ctx, e); aerr != nil {
		a.logger.Warn("audit log failed", logging.Err(aerr))
	}
}
