package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/minutes/internal/agent"
	"github.com/ziadkadry99/minutes/internal/logging"
	"github.com/ziadkadry99/minutes/internal/rag"
	"github.com/ziadkadry99/minutes/internal/session"
	"github.com/ziadkadry99/minutes/internal/vectordb"
)

type questionRequest struct {
	Question string `json:"question"`
	Topic    string `json:"topic,omitempty"`
}

type sourceJSON struct {
	Topic      string  `json:"topic"`
	Source     string  `json:"source"`
	Chunk      int     `json:"chunk"`
	Similarity float32 `json:"similarity"`
	Text       string  `json:"text,omitempty"`
}

type answerResponse struct {
	SessionID  string       `json:"session_id"`
	Answer     string       `json:"answer"`
	Standalone string       `json:"standalone_query"`
	Sources    []sourceJSON `json:"sources"`
}

func sources(results []vectordb.SearchResult, withText bool) []sourceJSON {
	out := make([]sourceJSON, len(results))
	for i, r := range results {
		out[i] = sourceJSON{
			Topic:      r.Chunk.Topic,
			Source:     r.Chunk.SourcePath,
			Chunk:      r.Chunk.Index,
			Similarity: r.Similarity,
		}
		if withText {
			out[i].Text = r.Chunk.Text
		}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state, _ := s.pipeline.State()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "state": state.String()})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	state, err := s.pipeline.State()
	resp := map[string]any{
		"state":  state.String(),
		"topics": nonNil(s.pipeline.Topics()),
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	k := 0
	if v := q.Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = n
	}
	results, err := s.pipeline.Search(r.Context(), q.Get("topic"), query, k)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sources(results, true))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Label string `json:"label"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	info, err := s.sessions.Create(r.Context(), body.Label)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (questionRequest, bool) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return req, false
	}
	return req, true
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	a, err := s.sessions.Query(r.Context(), id, req.Topic, req.Question, nil)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{
		SessionID:  id,
		Answer:     a.Text,
		Standalone: a.Standalone,
		Sources:    sources(a.Sources, false),
	})
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	res, err := s.sessions.Agent(r.Context(), chi.URLParam(r, "id"), req.Question, nil)
	if err != nil {
		s.fail(w, err)
		return
	}
	if res.Steps == nil {
		res.Steps = []agent.Step{}
	}
	res.ToolsUsed = nonNil(res.ToolsUsed)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleResetHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Reset(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	turns, err := s.sessions.Turns(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if turns == nil {
		turns = []session.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var rerr *rag.RewriteError
	var serr *rag.SynthesisError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rag.ErrUninitialized),
		errors.Is(err, session.ErrBusy),
		errors.Is(err, agent.ErrNoTools):
		return http.StatusConflict
	case errors.Is(err, rag.ErrUnknownTopic):
		return http.StatusBadRequest
	case errors.As(err, &rerr), errors.As(err, &serr), errors.Is(err, agent.ErrStepBudget):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "status", status, logging.Err(err))
	}
	writeError(w, status, err.Error())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
