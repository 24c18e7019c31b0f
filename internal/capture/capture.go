// Package capture buffers an input stream in memory and writes it verbatim
// to a named file, reporting the resulting on-disk size.
package capture

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMode is the permission used for created files before the umask.
const DefaultMode os.FileMode = 0o666

// Capturer reads an entire stream and writes it to a file.
// The zero value is ready to use: default mode, no input cap, no logging.
type Capturer struct {
	Mode     os.FileMode     // 0 means DefaultMode
	MaxInput int64           // bytes; 0 means unlimited
	Log      *zerolog.Logger // nil discards
}

// Capture reads all of r, checks that it is valid UTF-8, writes it to path
// (creating or truncating the file) and re-reads the file size.
//
// Read failures leave path untouched. A write that fails part way leaves
// whatever reached the disk in place.
func (c *Capturer) Capture(ctx context.Context, path string, r io.Reader) (*Result, error) {
	log := c.logger().With().Str("path", path).Logger()

	buf, err := c.read(r)
	if err != nil {
		log.Debug().Err(err).Msg("read failed")
		return nil, &Error{Stage: StageRead, Path: path, Err: err}
	}
	log.Debug().Int("bytes", len(buf)).Msg("input buffered")

	if err := ctx.Err(); err != nil {
		return nil, &Error{Stage: StageWrite, Path: path, Err: err}
	}

	if err := os.WriteFile(path, buf, c.mode()); err != nil {
		log.Debug().Err(err).Msg("write failed")
		return nil, &Error{Stage: StageWrite, Path: path, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Stage: StageWrite, Path: path, Err: fmt.Errorf("querying size: %w", err)}
	}

	sum := sha256.Sum256(buf)
	res := &Result{
		ID:     uuid.New().String(),
		Path:   path,
		Bytes:  info.Size(),
		SHA256: hex.EncodeToString(sum[:]),
	}
	log.Debug().Str("id", res.ID).Int64("size", res.Bytes).Msg("file written")
	return res, nil
}

// read buffers r completely, enforcing MaxInput and UTF-8 validity.
func (c *Capturer) read(r io.Reader) ([]byte, error) {
	src := r
	if c.MaxInput > 0 {
		// One extra byte tells an input of exactly MaxInput from a longer one.
		src = io.LimitReader(r, c.MaxInput+1)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(src); err != nil {
		return nil, err
	}
	if c.MaxInput > 0 && int64(buf.Len()) > c.MaxInput {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrInputTooLarge, c.MaxInput)
	}
	if !utf8.Valid(buf.Bytes()) {
		return nil, ErrInvalidUTF8
	}
	return buf.Bytes(), nil
}

func (c *Capturer) mode() os.FileMode {
	if c.Mode == 0 {
		return DefaultMode
	}
	return c.Mode
}

func (c *Capturer) logger() *zerolog.Logger {
	if c.Log == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return c.Log
}
