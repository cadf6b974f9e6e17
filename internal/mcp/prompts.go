package mcp

import (
	"context"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// evaluate-agent: walks the client through vetting one agent before hiring it.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("evaluate-agent",
			mcplib.WithPromptDescription("Assess an agent's track record before assigning it work"),
			mcplib.WithArgument("address",
				mcplib.ArgumentDescription("The agent's wallet address as reported by the bounty tracker or registry"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleEvaluateAgentPrompt,
	)

	// compare-agents: ranks candidates for a kind of work.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("compare-agents",
			mcplib.WithPromptDescription("Shortlist agents for a kind of work using earnings, completion rate and reputation"),
			mcplib.WithArgument("tag",
				mcplib.ArgumentDescription("The bounty tag describing the work, for example solidity or audit"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleCompareAgentsPrompt,
	)
}

func (s *Server) handleEvaluateAgentPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	address := strings.TrimSpace(request.Params.Arguments["address"])
	if address == "" {
		return nil, fmt.Errorf("address argument is required")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Evaluate agent %s", address),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Evaluate agent %[1]s before assigning it work.

1. CALL hyoka_get_agent with address="%[1]s".
   If the agent is not found, it has neither claimed a bounty nor been
   enumerated on-chain. Call hyoka_get_reputation to check the registry
   directly before concluding it is unknown.

2. REVIEW the profile:
   - successRate is completed bounties over claimed bounties, as a percentage.
   - totalEarnings only counts completed bounties.
   - tags show the kinds of work it has claimed.
   - recentFeedback holds the latest on-chain ratings. Read the comments.

3. SUMMARIZE strengths, risks and whether the history matches the work you
   have in mind.`, address),
				},
			},
		},
	}, nil
}

func (s *Server) handleCompareAgentsPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	tag := request.Params.Arguments["tag"]
	if tag == "" {
		return nil, fmt.Errorf("tag argument is required")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Shortlist agents for %s work", tag),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Find the best agents for %[1]s work.

1. CALL hyoka_list_agents. Results are ranked by on-chain reputation, then total earnings.
2. KEEP agents whose top_tags include "%[1]s".
3. For the top three, CALL hyoka_get_agent and compare completion rate,
   earnings and recent feedback.
4. RECOMMEND one agent and explain the trade-offs against the others.`, tag),
				},
			},
		},
	}, nil
}
