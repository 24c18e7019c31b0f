package mcp

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deixis/tofile/internal/capture"
	"github.com/deixis/tofile/internal/metrics"
	"github.com/deixis/tofile/internal/receipt"
)

// setup creates a tofile MCP server + client over in-memory transports,
// confined to workspaceDir.
func setup(t *testing.T, workspaceDir string, opts ...ServerOption) *mcp.ClientSession {
	t.Helper()
	return setupWithRoots(t, workspaceDir, nil, opts...)
}

// setupWithRoots is setup with a client that advertises roots.
func setupWithRoots(t *testing.T, workspaceDir string, roots []*mcp.Root, opts ...ServerOption) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	store := receipt.NewLRUStore(5, receipt.NewDiskStore(t.TempDir()))
	server := NewServer(&capture.Capturer{}, store, workspaceDir, opts...)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	require.NoError(t, err, "server.Connect")

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	if len(roots) > 0 {
		client.AddRoots(roots...)
	}
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err, "client.Connect")

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})

	return cs
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool(%s)", name)
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var receiptLine = regexp.MustCompile(`Receipt: ([0-9a-f-]{36})`)

// --- write_file ---

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	cs := setup(t, dir)

	res := callTool(t, cs, "write_file", map[string]any{"path": "notes.txt", "content": "hello\n"})
	text := resultText(res)
	require.False(t, res.IsError, text)

	path := filepath.Join(dir, "notes.txt")
	assert.Contains(t, text, "✓ Created: "+path+" (6 bytes)")
	assert.Regexp(t, receiptLine, text)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestWriteFile_EmptyContent(t *testing.T) {
	dir := t.TempDir()
	cs := setup(t, dir)

	res := callTool(t, cs, "write_file", map[string]any{"path": "empty.txt", "content": ""})
	require.False(t, res.IsError, resultText(res))
	assert.Contains(t, resultText(res), "(0 bytes)")
}

func TestWriteFile_OutsideWorkspace(t *testing.T) {
	cs := setup(t, t.TempDir())

	res := callTool(t, cs, "write_file", map[string]any{"path": "../escape.txt", "content": "x"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "Error writing file:")
	assert.Contains(t, resultText(res), "outside workspace")
}

func TestWriteFile_MissingParent(t *testing.T) {
	dir := t.TempDir()
	cs := setup(t, dir)

	res := callTool(t, cs, "write_file", map[string]any{"path": "no/such/dir.txt", "content": "x"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "Error writing file:")

	_, err := os.Stat(filepath.Join(dir, "no"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteFile_RecordsMetrics(t *testing.T) {
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	cs := setup(t, t.TempDir(), WithMetrics(rec))

	callTool(t, cs, "write_file", map[string]any{"path": "a.txt", "content": "abc"})
	callTool(t, cs, "write_file", map[string]any{"path": "missing/b.txt", "content": "abc"})

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Captures.WithLabelValues(metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Captures.WithLabelValues(metrics.OutcomeWriteError)))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.BytesWritten))
}

func TestWriteFile_SymlinkOutsideWorkspace(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))
	cs := setup(t, dir)

	res := callTool(t, cs, "write_file", map[string]any{"path": "link/escaped.txt", "content": "hello"})
	assert.True(t, res.IsError, resultText(res))
	assert.Contains(t, resultText(res), "outside workspace")

	_, err := os.Stat(filepath.Join(outside, "escaped.txt"))
	assert.True(t, os.IsNotExist(err))
}

// --- roots ---

func TestRoots_FileRootBecomesWorkspace(t *testing.T) {
	initial := t.TempDir()
	root := t.TempDir()
	cs := setupWithRoots(t, initial, []*mcp.Root{{URI: "file://" + root}})

	// The root is applied after initialization, so poll until a write
	// inside it is accepted.
	target := filepath.Join(root, "abs.txt")
	require.Eventually(t, func() bool {
		res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
			Name:      "write_file",
			Arguments: map[string]any{"path": target, "content": "abs"},
		})
		return err == nil && !res.IsError
	}, 5*time.Second, 20*time.Millisecond)

	res := callTool(t, cs, "write_file", map[string]any{"path": "rel.txt", "content": "rel"})
	require.False(t, res.IsError, resultText(res))

	data, err := os.ReadFile(filepath.Join(root, "rel.txt"))
	require.NoError(t, err)
	assert.Equal(t, "rel", string(data))

	_, err = os.Stat(filepath.Join(initial, "rel.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRoots_NonFileRootIgnored(t *testing.T) {
	initial := t.TempDir()
	var logs syncBuffer
	log := zerolog.New(&logs).Level(zerolog.DebugLevel)
	cs := setupWithRoots(t, initial, []*mcp.Root{{URI: "https://example.com/repo"}}, WithLogger(log))

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "ignoring non-file root")
	}, 5*time.Second, 20*time.Millisecond)

	res := callTool(t, cs, "write_file", map[string]any{"path": "kept.txt", "content": "x"})
	require.False(t, res.IsError, resultText(res))

	_, err := os.Stat(filepath.Join(initial, "kept.txt"))
	assert.NoError(t, err)
}

// --- receipt ---

func TestReceipt(t *testing.T) {
	dir := t.TempDir()
	cs := setup(t, dir)

	res := callTool(t, cs, "write_file", map[string]any{"path": "r.txt", "content": "receipt me"})
	m := receiptLine.FindStringSubmatch(resultText(res))
	require.Len(t, m, 2, resultText(res))

	res = callTool(t, cs, "receipt", map[string]any{"id": m[1]})
	text := resultText(res)
	require.False(t, res.IsError, text)
	assert.Contains(t, text, "Path:    "+filepath.Join(dir, "r.txt"))
	assert.Contains(t, text, "Bytes:   10")
	assert.Contains(t, text, "SHA-256: ")
}

func TestReceipt_Unknown(t *testing.T) {
	cs := setup(t, t.TempDir())

	res := callTool(t, cs, "receipt", map[string]any{"id": "00000000-0000-0000-0000-000000000000"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "not found")
}

func TestListTools(t *testing.T) {
	cs := setup(t, t.TempDir())

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"write_file", "receipt"}, names)
}

func TestFormatCaptureError(t *testing.T) {
	assert.Equal(t, "Error reading content: stream did not contain valid UTF-8",
		formatCaptureError(&capture.Error{Stage: capture.StageRead, Err: capture.ErrInvalidUTF8}))
	assert.Equal(t, "Error writing file: context canceled",
		formatCaptureError(&capture.Error{Stage: capture.StageWrite, Err: context.Canceled}))
}
