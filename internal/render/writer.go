package render

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteTree materializes a rendered tree into a local directory.
// With clean set, the directory is emptied first so stale files from a
// previous render cannot survive.
func WriteTree(dir string, tree Tree, clean bool) error {
	if clean {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clean output directory: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, path := range tree.Paths() {
		target := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return fmt.Errorf("create directory for %s: %w", path, err)
		}
		if err := os.WriteFile(target, tree[path], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	return nil
}
