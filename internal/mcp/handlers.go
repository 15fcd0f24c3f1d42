package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/minutes/internal/rag"
	"github.com/ziadkadry99/minutes/internal/vectordb"
)

const defaultSearchLimit = 5

// handleListTopics lists the indexed topics.
func (s *Server) handleListTopics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report := s.pipeline.BuildReport()
	if report == nil || len(report.Topics) == 0 {
		return mcp.NewToolResultText(notReady), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d topic(s):\n", len(report.Topics))
	for _, ts := range report.Topics {
		fmt.Fprintf(&sb, "- %s (%d documents, %d chunks)\n", ts.Topic, ts.Documents, ts.Chunks)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleAsk answers a question over every topic.
func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	return s.ask(ctx, "", question)
}

// handleAskTopic answers a question from one topic.
func (s *Server) handleAskTopic(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic, err := request.RequireString("topic")
	if err != nil || topic == "" {
		return mcp.NewToolResultError("missing required parameter: topic"), nil
	}
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	return s.ask(ctx, topic, question)
}

func (s *Server) ask(ctx context.Context, topic, question string) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.session.AskTopic(ctx, topic, question, nil)
	if err != nil {
		return mcp.NewToolResultError(describe(err)), nil
	}

	var sb strings.Builder
	sb.WriteString(a.Text)
	if len(a.Sources) > 0 {
		sb.WriteString("\n\nSources:\n")
		for _, r := range a.Sources {
			fmt.Fprintf(&sb, "- %s/%s#%d (similarity: %.4f)\n", r.Chunk.Topic, r.Chunk.SourcePath, r.Chunk.Index, r.Similarity)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleSearchNotes runs raw retrieval.
func (s *Server) handleSearchNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := s.pipeline.Search(ctx, request.GetString("topic", ""), query, limit)
	if err != nil {
		return mcp.NewToolResultError(describe(err)), nil
	}
	return mcp.NewToolResultText(vectordb.FormatResults(results)), nil
}

// handleResetHistory clears the shared conversation.
func (s *Server) handleResetHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.ResetHistory(ctx)
	return mcp.NewToolResultText("Conversation history cleared."), nil
}

const notReady = "The meeting notes are not indexed. Run `minutes ingest` or restart `minutes mcp` after adding notes."

func describe(err error) string {
	switch {
	case errors.Is(err, rag.ErrUninitialized):
		return notReady
	case errors.Is(err, rag.ErrUnknownTopic):
		return fmt.Sprintf("%v. Call list_topics to see the available topics.", err)
	}
	return fmt.Sprintf("request failed: %v", err)
}
