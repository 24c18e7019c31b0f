package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/tofile/internal/capture"
	"github.com/deixis/tofile/internal/receipt"
)

type writeParams struct {
	Path    string `json:"path" jsonschema:"Target file, relative to the workspace root or absolute inside it."`
	Content string `json:"content" jsonschema:"Text to write verbatim. An empty string creates an empty file."`
}

func (h *handler) writeHandler(ctx context.Context, req *mcp.CallToolRequest, params writeParams) (*mcp.CallToolResult, any, error) {
	target, err := h.currentWorkspace().Resolve(params.Path)
	if err != nil {
		return errorResult(fmt.Sprintf("Error writing file: %v", err))
	}

	res, err := h.capturer.Capture(ctx, target, strings.NewReader(params.Content))
	h.metrics.Observe(res, err)
	if err != nil {
		h.log.Warn().Err(err).Str("path", target).Msg("write_file failed")
		return errorResult(formatCaptureError(err))
	}

	// Save the receipt for the receipt tool; the file is written either way.
	if err := h.store.Save(receipt.FromResult(res, h.now())); err != nil {
		h.log.Warn().Err(err).Str("id", res.ID).Msg("saving receipt")
	}
	h.log.Info().Str("path", target).Int64("bytes", res.Bytes).Str("id", res.ID).Msg("file written")

	return textResult(fmt.Sprintf("%s\nReceipt: %s\n", res, res.ID))
}

func formatCaptureError(err error) string {
	var ce *capture.Error
	if !errors.As(err, &ce) {
		return fmt.Sprintf("Error writing file: %v", err)
	}
	if ce.Stage == capture.StageRead {
		return fmt.Sprintf("Error reading content: %v", ce.Err)
	}
	return fmt.Sprintf("Error writing file: %v", ce.Err)
}
