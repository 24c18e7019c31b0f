// Package mcp provides the tofile MCP server, registering the file-writing
// tools and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/deixis/tofile"
	"github.com/deixis/tofile/internal/capture"
	"github.com/deixis/tofile/internal/metrics"
	"github.com/deixis/tofile/internal/receipt"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	capturer *capture.Capturer
	store    receipt.Store
	metrics  *metrics.Recorder // nil disables metrics
	log      zerolog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	workspace capture.Workspace
}

// NewServer creates an MCP server with all tofile tools registered.
// Writes are confined to workspace until the client reports a root.
func NewServer(c *capture.Capturer, store receipt.Store, workspace string, opts ...ServerOption) *mcp.Server {
	so := serverOptions{log: zerolog.Nop()}
	for _, o := range opts {
		o(&so)
	}

	h := &handler{
		capturer:  c,
		store:     store,
		metrics:   so.metrics,
		log:       so.log,
		now:       time.Now,
		workspace: capture.Workspace{Root: workspace},
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "tofile", Version: tofile.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "write_file",
		Description: `Write text content to a file in the workspace, creating or truncating it.

The path is relative to the workspace root (or absolute inside it). Parent directories
are not created. Returns the on-disk size and a receipt ID for the receipt tool.`,
	}, h.writeHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "receipt",
		Description: "Look up a previous write_file call by receipt ID: path, size, SHA-256 and time.",
	}, h.receiptHandler)

	return s
}

// ServerOption configures the tofile MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	metrics *metrics.Recorder
	log     zerolog.Logger
}

// WithMetrics records every write on r.
func WithMetrics(r *metrics.Recorder) ServerOption {
	return func(o *serverOptions) {
		o.metrics = r
	}
}

// WithLogger sets the server's logger.
func WithLogger(l zerolog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.log = l
	}
}

// updateWorkspaceFromRoots queries the client for MCP roots and moves the
// workspace to the first file root, if any.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		h.log.Debug().Err(err).Msg("listing roots")
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	uri := roots.Roots[0].URI
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		h.log.Debug().Str("uri", uri).Msg("ignoring non-file root")
		return
	}

	h.mu.Lock()
	h.workspace = capture.Workspace{Root: u.Path}
	h.mu.Unlock()
	h.log.Info().Str("workspace", u.Path).Msg("workspace set from client root")
}

func (h *handler) currentWorkspace() capture.Workspace {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.workspace
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
