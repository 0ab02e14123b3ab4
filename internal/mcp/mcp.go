// Package mcp provides the HSR assistant MCP server, registering its tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hsr-assistant/hsrdriver"
	"github.com/hsr-assistant/hsrdriver/internal/history"
	"github.com/hsr-assistant/hsrdriver/internal/task"
)

//go:embed instructions.md
var Instructions string

// ToolName is the name of the assistant control tool.
const ToolName = "hsr_assistant"

// ToolDescription is shared by every façade that publishes the tool.
const ToolDescription = "Run, wait for or stop a March7thAssistant task in Honkai: Star Rail and read its logs."

// Controller executes hsr_assistant actions.
type Controller interface {
	Call(ctx context.Context, action string, runConfig json.RawMessage) (string, error)
}

// handler holds shared dependencies for all tool handlers.
type handler struct {
	ctl   Controller
	store history.Store
}

// NewServer creates an MCP server with the HSR assistant tools registered.
func NewServer(ctl Controller, store history.Store) *mcp.Server {
	h := &handler{ctl: ctl, store: store}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "tool-hsr-assistant", Version: hsrdriver.Version}, mcpOpts)

	// Registered raw so that malformed run configs reach the handler and come
	// back as text, like any other validation failure.
	s.AddTool(&mcp.Tool{
		Name:        ToolName,
		Description: ToolDescription,
		InputSchema: task.Schema(),
	}, h.assistantHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "hsr_history",
		Description: `List recently finished hsr_assistant runs, or show one run's logs.

Without run_id, returns one line per run: id, task, outcome, start time and duration.
With run_id, returns the logs that run ended with.`,
	}, h.historyHandler)

	return s
}

type assistantArgs struct {
	Action    string          `json:"action"`
	RunConfig json.RawMessage `json:"run_config,omitempty"`
}

func (h *handler) assistantHandler(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args assistantArgs
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		res, _, _ := errorResult(fmt.Sprintf("Error calling %s: %v", ToolName, err))
		return res, nil
	}

	text, err := h.ctl.Call(ctx, args.Action, args.RunConfig)
	if err != nil {
		slog.WarnContext(ctx, "hsr_assistant call rejected", "action", args.Action, "error", err)
		res, _, _ := errorResult(fmt.Sprintf("Error calling %s: %v", ToolName, err))
		return res, nil
	}
	res, _, _ := textResult(text)
	return res, nil
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
