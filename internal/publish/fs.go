package publish

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fenrik/blogpub/internal/render"
)

// FSUploader writes the tree to a local directory. It backs the build and
// preview commands and stands in for blob storage in tests.
type FSUploader struct {
	dir   string
	prune bool
}

// NewFSUploader creates a filesystem uploader targeting dir.
func NewFSUploader(dir string, prune bool) *FSUploader {
	return &FSUploader{dir: dir, prune: prune}
}

// Upload mirrors the tree into the target directory.
func (u *FSUploader) Upload(ctx context.Context, tree render.Tree) (Summary, error) {
	var summary Summary

	for _, path := range tree.Paths() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		data := tree[path]
		target := filepath.Join(u.dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return summary, fmt.Errorf("create directory for %s: %w", path, err)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return summary, fmt.Errorf("write %s: %w", path, err)
		}
		summary.Files++
		summary.Bytes += int64(len(data))
	}

	if u.prune {
		pruned, err := u.pruneStale(tree)
		if err != nil {
			return summary, err
		}
		summary.Pruned = pruned
	}

	return summary, nil
}

func (u *FSUploader) pruneStale(tree render.Tree) (int, error) {
	pruned := 0
	err := filepath.WalkDir(u.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(u.dir, path)
		if err != nil {
			return err
		}
		if _, ok := tree[filepath.ToSlash(rel)]; ok {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("delete stale file %s: %w", rel, err)
		}
		pruned++
		return nil
	})
	if err != nil {
		return pruned, err
	}
	return pruned, nil
}

// Close implements Uploader.
func (u *FSUploader) Close() error { return nil }
