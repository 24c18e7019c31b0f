// Package receipt records completed captures so they can be looked up
// later by ID.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/deixis/tofile/internal/capture"
)

// Store persists and retrieves receipts.
type Store interface {
	Save(r *Receipt) error
	Load(id string) (*Receipt, error)
}

// Receipt is the stored record of one capture.
type Receipt struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Bytes     int64     `json:"bytes"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}

// FromResult builds a receipt for res stamped with now.
func FromResult(res *capture.Result, now time.Time) *Receipt {
	return &Receipt{
		ID:        res.ID,
		Path:      res.Path,
		Bytes:     res.Bytes,
		SHA256:    res.SHA256,
		CreatedAt: now.UTC(),
	}
}

// Format renders the receipt as human-readable text.
func (r *Receipt) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Receipt: %s\n", r.ID)
	fmt.Fprintf(&b, "Path:    %s\n", r.Path)
	fmt.Fprintf(&b, "Bytes:   %d\n", r.Bytes)
	fmt.Fprintf(&b, "SHA-256: %s\n", r.SHA256)
	fmt.Fprintf(&b, "Created: %s\n", r.CreatedAt.Format(time.RFC3339))
	return b.String()
}
