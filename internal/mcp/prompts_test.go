package mcp

import (
	"context"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promptRequest(name string, args map[string]string) mcplib.GetPromptRequest {
	return mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{Name: name, Arguments: args},
	}
}

func TestEvaluateAgentPrompt(t *testing.T) {
	s := newTestServer(t, defaultSource())

	result, err := s.handleEvaluateAgentPrompt(context.Background(),
		promptRequest("evaluate-agent", map[string]string{"address": addrA}))
	require.NoError(t, err)
	assert.Contains(t, result.Description, addrA)
	require.NotEmpty(t, result.Messages)

	msg := result.Messages[0]
	assert.Equal(t, mcplib.RoleUser, msg.Role)
	tc, ok := msg.Content.(mcplib.TextContent)
	require.True(t, ok, "message content should be TextContent")
	assert.Contains(t, tc.Text, "hyoka_get_agent")
	assert.Contains(t, tc.Text, "hyoka_get_reputation")
	assert.Contains(t, tc.Text, addrA)
}

func TestEvaluateAgentPrompt_InvalidArguments(t *testing.T) {
	s := newTestServer(t, defaultSource())
	ctx := context.Background()

	_, err := s.handleEvaluateAgentPrompt(ctx, promptRequest("evaluate-agent", map[string]string{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address")

	_, err = s.handleEvaluateAgentPrompt(ctx, promptRequest("evaluate-agent", map[string]string{"address": "  "}))
	require.Error(t, err)

	result, err := s.handleEvaluateAgentPrompt(ctx, promptRequest("evaluate-agent", map[string]string{"address": "0xABC"}))
	require.NoError(t, err)
	assert.Contains(t, result.Description, "0xABC")
}

func TestCompareAgentsPrompt(t *testing.T) {
	s := newTestServer(t, defaultSource())
	ctx := context.Background()

	result, err := s.handleCompareAgentsPrompt(ctx, promptRequest("compare-agents", map[string]string{"tag": "solidity"}))
	require.NoError(t, err)
	require.NotEmpty(t, result.Messages)
	tc, ok := result.Messages[0].Content.(mcplib.TextContent)
	require.True(t, ok)
	assert.Contains(t, tc.Text, "hyoka_list_agents")
	assert.Contains(t, tc.Text, `"solidity"`)

	_, err = s.handleCompareAgentsPrompt(ctx, promptRequest("compare-agents", nil))
	require.Error(t, err)
}
