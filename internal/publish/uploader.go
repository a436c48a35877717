// Package publish uploads a rendered tree to the deployment target.
//
// The target's contents are wholly overwritten by each successful run: every
// file of the tree is uploaded, and (when pruning is enabled) remote objects
// absent from the tree are removed afterwards. There is no retry and no
// rollback; an incomplete upload fails the run and leaves the previously
// deployed site to whatever state the tool reached.
package publish

import (
	"context"

	"github.com/fenrik/blogpub/internal/render"
)

// Uploader synchronizes a rendered tree to a deployment target.
type Uploader interface {
	// Upload writes every file of the tree to the target, overwriting
	// existing objects, then prunes stale objects if supported/enabled.
	Upload(ctx context.Context, tree render.Tree) (Summary, error)

	// Close releases any resources held by the uploader.
	Close() error
}

// Summary describes a completed upload.
type Summary struct {
	Files  int
	Bytes  int64
	Pruned int
}
