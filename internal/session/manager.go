package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ziadkadry99/minutes/internal/agent"
	"github.com/ziadkadry99/minutes/internal/llm"
	"github.com/ziadkadry99/minutes/internal/logging"
	"github.com/ziadkadry99/minutes/internal/rag"
)

// Manager hands out conversations over one pipeline. Sessions live in
// memory and, when a store is configured, their turns are written to it
// and restored on first use after a restart.
type Manager struct {
	pipeline *rag.Pipeline
	store    *Store
	agentCfg agent.Config
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	busy      sync.Mutex
	sess      *rag.Session
	persisted int
}

// NewManager creates a Manager. store may be nil for memory-only sessions.
func NewManager(p *rag.Pipeline, store *Store, agentCfg agent.Config, logger *slog.Logger) *Manager {
	return &Manager{
		pipeline: p,
		store:    store,
		agentCfg: agentCfg,
		logger:   logging.OrDefault(logger),
		sessions: make(map[string]*entry),
	}
}

// Create starts a new session.
func (m *Manager) Create(ctx context.Context, label string) (*Info, error) {
	var info *Info
	if m.store != nil {
		var err error
		if info, err = m.store.CreateSession(ctx, label); err != nil {
			return nil, err
		}
	} else {
		info = &Info{ID: uuid.New().String(), Label: label}
	}

	m.mu.Lock()
	m.sessions[info.ID] = &entry{sess: m.pipeline.RestoreSession(info.ID, rag.NewHistory())}
	m.mu.Unlock()
	return info, nil
}

// get returns the live session, restoring it from the store if needed.
func (m *Manager) get(ctx context.Context, id string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		return e, nil
	}
	if m.store == nil {
		return nil, ErrNotFound
	}
	info, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrNotFound
	}
	turns, err := m.store.Turns(ctx, id)
	if err != nil {
		return nil, err
	}
	h := rag.NewHistory()
	for _, t := range turns {
		h.Append(rag.Turn{Question: t.Question, Answer: t.Answer, Topic: t.Topic, CreatedAt: t.CreatedAt})
	}
	e := &entry{sess: m.pipeline.RestoreSession(id, h), persisted: len(turns)}
	m.sessions[id] = e
	m.logger.Debug("restored session", "session", id, "turns", len(turns))
	return e, nil
}

// acquire returns the session locked for one question.
func (m *Manager) acquire(ctx context.Context, id string) (*entry, error) {
	e, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.busy.TryLock() {
		return nil, ErrBusy
	}
	return e, nil
}

// Query answers text on the session, over one topic or all of them when
// topic is empty.
func (m *Manager) Query(ctx context.Context, id, topic, text string, onDelta llm.DeltaFunc) (*rag.Answer, error) {
	e, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer e.busy.Unlock()

	a, err := e.sess.AskTopic(ctx, topic, text, onDelta)
	m.persist(ctx, e, func(rag.Turn) Mode { return ModeQuery })
	return a, err
}

// Agent runs the topic-routing agent on the session. onStep, if set,
// receives every tool step.
func (m *Manager) Agent(ctx context.Context, id, text string, onStep func(agent.Step)) (*agent.Result, error) {
	e, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer e.busy.Unlock()

	cfg := m.agentCfg
	cfg.OnStep = onStep
	if cfg.Usage == nil {
		cfg.Usage = m.pipeline.Usage()
	}
	if cfg.Logger == nil {
		cfg.Logger = m.logger
	}
	ag, err := agent.New(m.pipeline.Provider(), e.sess, cfg)
	if err != nil {
		return nil, err
	}
	res, err := ag.Run(ctx, text)
	m.persist(ctx, e, func(t rag.Turn) Mode {
		if t.Topic != "" {
			return ModeTool
		}
		return ModeAgent
	})
	return res, err
}

// Reset clears the session history and its stored turns.
func (m *Manager) Reset(ctx context.Context, id string) error {
	e, err := m.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer e.busy.Unlock()

	e.sess.ResetHistory(ctx)
	e.persisted = 0
	if m.store != nil {
		if _, err := m.store.DeleteTurns(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Turns returns the session transcript.
func (m *Manager) Turns(ctx context.Context, id string) ([]Turn, error) {
	e, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.store != nil {
		return m.store.Turns(ctx, id)
	}
	hist := e.sess.History().Turns()
	out := make([]Turn, len(hist))
	for i, t := range hist {
		mode := ModeQuery
		if t.Topic != "" {
			mode = ModeTool
		}
		out[i] = Turn{
			SessionID: id,
			Seq:       i + 1,
			Mode:      mode,
			Topic:     t.Topic,
			Question:  t.Question,
			Answer:    t.Answer,
			CreatedAt: t.CreatedAt,
		}
	}
	return out, nil
}

// persist writes the turns appended since the last call. Store failures
// are logged and retried on the next call; the answer is not lost.
func (m *Manager) persist(ctx context.Context, e *entry, mode func(rag.Turn) Mode) {
	fresh := e.sess.History().Since(e.persisted)
	if m.store == nil {
		e.persisted += len(fresh)
		return
	}
	for _, t := range fresh {
		_, err := m.store.AddTurn(context.WithoutCancel(ctx), Turn{
			SessionID: e.sess.ID(),
			Mode:      mode(t),
			Topic:     t.Topic,
			Question:  t.Question,
			Answer:    t.Answer,
			CreatedAt: t.CreatedAt,
		})
		if err != nil {
			m.logger.Warn("persisting turn failed", "session", e.sess.ID(), logging.Err(err))
			return
		}
		e.persisted++
	}
}

