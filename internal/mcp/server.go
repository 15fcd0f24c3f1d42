package mcp

import (
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/minutes/internal/rag"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the meeting notes to MCP clients.
// All questions share one conversation so follow-ups resolve against
// earlier answers.
type Server struct {
	pipeline *rag.Pipeline
	mcp      *server.MCPServer

	mu      sync.Mutex // one question at a time on the shared session
	session *rag.Session
}

// NewServer creates a new MCP server. The pipeline should already be
// initialized so ask_topic can list the topics it accepts.
func NewServer(p *rag.Pipeline) *Server {
	s := &Server{
		pipeline: p,
		session:  p.DefaultSession(),
	}

	s.mcp = server.NewMCPServer(
		"minutes",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(listTopicsTool, s.handleListTopics)
	s.mcp.AddTool(askTool, s.handleAsk)
	s.mcp.AddTool(askTopicTool(s.pipeline.Topics()), s.handleAskTopic)
	s.mcp.AddTool(searchNotesTool, s.handleSearchNotes)
	s.mcp.AddTool(resetHistoryTool, s.handleResetHistory)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
