// Package mcp exposes cached agent profiles to MCP clients.
package mcp

import (
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/hyoka/internal/service/profiles"
)

// Server wraps the MCP server with Hyoka's profile service.
type Server struct {
	mcpServer *mcpserver.MCPServer
	profiles  *profiles.Service
	logger    *slog.Logger
}

// New creates a new MCP server with all read-only tools, resources and
// prompts registered.
func New(svc *profiles.Service, logger *slog.Logger, version string) *Server {
	s := &Server{
		profiles: svc,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"hyoka",
		version,
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithInstructions(serverInstructions),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport binding.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

const serverInstructions = `Hyoka aggregates agent reputation and bounty earnings.

Profiles are served from a cache refreshed at most once a minute. Use
hyoka_list_agents to rank agents, hyoka_get_agent for one agent's full
profile and history, and hyoka_get_reputation when you need the registry's
current view of an address rather than the cached one.`

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
