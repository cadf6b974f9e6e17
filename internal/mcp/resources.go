package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const (
	agentsURI           = "hyoka://agents"
	agentTemplate       = "hyoka://agent/{address}"
	agentURIPrefix      = "hyoka://agent/"
	mimeApplicationJSON = "application/json"
)

func (s *Server) registerResources() {
	// hyoka://agents: every profile in ranked order.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			agentsURI,
			"Agent Profiles",
			mcplib.WithResourceDescription("All aggregated agent profiles, ranked by on-chain reputation, then total earnings"),
			mcplib.WithMIMEType(mimeApplicationJSON),
		),
		s.handleAgents,
	)

	// hyoka://agent/{address}: one agent's full profile.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			agentTemplate,
			"Agent Profile",
			mcplib.WithTemplateDescription("Full aggregated profile for one agent address"),
			mcplib.WithTemplateMIMEType(mimeApplicationJSON),
		),
		s.handleAgent,
	)
}

func (s *Server) handleAgents(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	snap, err := s.profiles.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: agents: %w", err)
	}

	data, err := json.MarshalIndent(map[string]any{
		"agents":       snap.Profiles,
		"total":        len(snap.Profiles),
		"refreshed_at": snap.RefreshedAt.UTC(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal agents: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      agentsURI,
			MIMEType: mimeApplicationJSON,
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleAgent(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	address, err := parseAgentURI(uri)
	if err != nil {
		return nil, err
	}

	p, err := s.profiles.Profile(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("mcp: agent: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal agent: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: mimeApplicationJSON,
			Text:     string(data),
		},
	}, nil
}

// parseAgentURI extracts the address from hyoka://agent/{address}.
func parseAgentURI(uri string) (string, error) {
	address, ok := strings.CutPrefix(uri, agentURIPrefix)
	if !ok || strings.TrimSpace(address) == "" || strings.Contains(address, "/") {
		return "", fmt.Errorf("mcp: invalid agent URI: %s", uri)
	}
	return strings.TrimSpace(address), nil
}
