package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type receiptParams struct {
	ID string `json:"id" jsonschema:"Receipt ID returned by write_file."`
}

func (h *handler) receiptHandler(ctx context.Context, req *mcp.CallToolRequest, params receiptParams) (*mcp.CallToolResult, any, error) {
	r, err := h.store.Load(params.ID)
	if err != nil {
		return errorResult(fmt.Sprintf("receipt %s not found: %v", params.ID, err))
	}
	return textResult(r.Format())
}
