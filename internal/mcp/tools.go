package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/hyoka/internal/ctxutil"
	"github.com/ashita-ai/hyoka/internal/model"
	"github.com/ashita-ai/hyoka/internal/service/profiles"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

func (s *Server) registerTools() {
	// hyoka_list_agents: ranked profiles from the cache.
	s.mcpServer.AddTool(
		mcplib.NewTool("hyoka_list_agents",
			mcplib.WithDescription(`List agents ranked by on-chain reputation score, then total bounty earnings.

WHEN TO USE: To find candidates for work or to see who is most active.
Each entry is compact: use hyoka_get_agent for full history and feedback.

Data is cached for up to a minute.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum number of agents to return"),
				mcplib.Min(1),
				mcplib.Max(maxListLimit),
				mcplib.DefaultNumber(defaultListLimit),
			),
			mcplib.WithNumber("min_reputation",
				mcplib.Description("Only return agents whose on-chain reputation score is at least this value"),
				mcplib.Min(0),
			),
		),
		s.handleListAgents,
	)

	// hyoka_get_agent: one cached profile.
	s.mcpServer.AddTool(
		mcplib.NewTool("hyoka_get_agent",
			mcplib.WithDescription(`Get one agent's full profile: earnings, completion rate, tags,
recent on-chain feedback and bounty history.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("address",
				mcplib.Description("The agent's wallet address (case-insensitive)"),
				mcplib.Required(),
			),
		),
		s.handleGetAgent,
	)

	// hyoka_get_reputation: live registry read.
	s.mcpServer.AddTool(
		mcplib.NewTool("hyoka_get_reputation",
			mcplib.WithDescription(`Read an address's reputation score and feedback directly from the
on-chain registry, bypassing the profile cache.

An address the registry has never seen returns a zero score and no feedback.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("address",
				mcplib.Description("The wallet address to read from the registry"),
				mcplib.Required(),
			),
		),
		s.handleGetReputation,
	)
}

func (s *Server) handleListAgents(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	limit := max(1, min(request.GetInt("limit", defaultListLimit), maxListLimit))
	minRep := request.GetFloat("min_reputation", 0)
	if minRep < 0 {
		return errorResult("min_reputation must be non-negative"), nil
	}

	snap, err := s.profiles.Snapshot(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load profiles: %v", err)), nil
	}

	agents := make([]map[string]any, 0, min(limit, len(snap.Profiles)))
	total := 0
	for _, p := range snap.Profiles {
		if float64(p.OnChainReputation) < minRep {
			continue
		}
		total++
		if len(agents) < limit {
			agents = append(agents, compactProfile(p))
		}
	}

	return jsonResult(map[string]any{
		"agents":       agents,
		"total":        total,
		"refreshed_at": snap.RefreshedAt.UTC(),
	})
}

func (s *Server) handleGetAgent(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	address, bad := addressArg(request)
	if bad != nil {
		return bad, nil
	}

	p, err := s.profiles.Profile(ctx, address)
	if errors.Is(err, profiles.ErrNotFound) {
		return errorResult(fmt.Sprintf("no profile for %s: the address has no bounty activity and no enumerated on-chain footprint", address)), nil
	}
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load profile: %v", err)), nil
	}
	return jsonResult(p)
}

func (s *Server) handleGetReputation(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	address, bad := addressArg(request)
	if bad != nil {
		return bad, nil
	}

	rep := s.profiles.Reputation(ctx, address)
	s.logger.Debug("mcp: live reputation read", "address", model.NormalizeAddress(address),
		"score", rep.ReputationScore, "feedback", len(rep.Feedback),
		"request_id", ctxutil.RequestIDFromContext(ctx))
	return jsonResult(rep)
}

// addressArg returns the trimmed address argument, or an error result when
// it is blank.
func addressArg(request mcplib.CallToolRequest) (string, *mcplib.CallToolResult) {
	address := strings.TrimSpace(request.GetString("address", ""))
	if address == "" {
		return "", errorResult("address is required")
	}
	return address, nil
}
