package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hsr-assistant/hsrdriver/internal/history"
)

type historyParams struct {
	RunID string `json:"run_id,omitempty" jsonschema:"the run ID from a previous hsr_history listing; omit to list runs"`
}

func (h *handler) historyHandler(ctx context.Context, req *mcp.CallToolRequest, params historyParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return textResult(formatHistory(h.store.List()))
	}

	rec, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}
	return textResult(fmt.Sprintf("Run: %s (%s, %s)\n%s", rec.ID, rec.Task, rec.Outcome, rec.Transcript))
}

func formatHistory(recs []*history.Record) string {
	if len(recs) == 0 {
		return "No finished runs."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d recent run(s), most recent first:\n", len(recs))
	for _, r := range recs {
		fmt.Fprintf(&b, "%s\n", r.Summary())
	}
	return b.String()
}
