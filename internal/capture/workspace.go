package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Workspace confines capture targets to a root directory.
type Workspace struct {
	Root string
}

// Resolve resolves path relative to the workspace root and validates that
// it stays within it. Absolute paths are accepted when they are inside Root.
// Symlinks in the parent directory and in the final element are followed,
// and the location they lead to must also be inside Root.
func (w Workspace) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	var target string
	if filepath.IsAbs(path) {
		target = filepath.Clean(path)
	} else {
		target = filepath.Clean(filepath.Join(w.Root, path))
	}

	rel, err := filepath.Rel(w.Root, target)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if rel == "." {
		return "", fmt.Errorf("path %q is the workspace root", path)
	}
	if escapes(rel) {
		return "", fmt.Errorf("path %q is outside workspace %q", path, w.Root)
	}

	if err := w.checkLinks(path, target); err != nil {
		return "", err
	}
	return target, nil
}

// checkLinks follows symlinks on the way to target and rejects any that
// lead outside the root.
func (w Workspace) checkLinks(path, target string) error {
	root, err := filepath.EvalSymlinks(w.Root)
	if err != nil {
		return fmt.Errorf("resolving workspace: %w", err)
	}

	dir, err := filepath.EvalSymlinks(filepath.Dir(target))
	if errors.Is(err, fs.ErrNotExist) {
		// Missing parent: the write fails on its own and creates nothing.
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	if !within(root, dir) {
		return fmt.Errorf("path %q is outside workspace %q", path, w.Root)
	}

	info, err := os.Lstat(target)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return nil
	}
	dest, err := filepath.EvalSymlinks(target)
	if err != nil {
		// A dangling link would create its target wherever it points.
		return fmt.Errorf("path %q is a symlink that cannot be resolved: %w", path, err)
	}
	if !within(root, dest) || dest == root {
		return fmt.Errorf("path %q is outside workspace %q", path, w.Root)
	}
	return nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && !escapes(rel)
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
