package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/fenrik/blogpub/internal/config"
	"github.com/fenrik/blogpub/internal/logfields"
	"github.com/fenrik/blogpub/internal/render"
)

// AzureUploader uploads a rendered tree to an Azure blob container configured
// as a static website host (typically the "$web" container).
type AzureUploader struct {
	client    *azblob.Client
	container string
	prune     bool
}

// NewAzureUploader authenticates against the storage account. The credential
// bundle is environment-supplied: AZURE_STORAGE_CONNECTION_STRING wins when
// set, otherwise the default credential chain (service principal variables,
// workload identity, CLI session) is used.
func NewAzureUploader(cfg config.StorageConfig) (*AzureUploader, error) {
	if cfg.Container == "" {
		return nil, fmt.Errorf("storage.container is required")
	}

	var client *azblob.Client
	if connStr := os.Getenv("AZURE_STORAGE_CONNECTION_STRING"); connStr != "" {
		c, err := azblob.NewClientFromConnectionString(connStr, nil)
		if err != nil {
			return nil, fmt.Errorf("authenticate with connection string: %w", err)
		}
		client = c
	} else {
		if cfg.Account == "" {
			return nil, fmt.Errorf("storage.account is required when no connection string is set")
		}
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("build credential chain: %w", err)
		}
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.Account)
		c, err := azblob.NewClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("create blob client: %w", err)
		}
		client = c
	}

	return &AzureUploader{client: client, container: cfg.Container, prune: cfg.Prune}, nil
}

// Upload overwrites the container with the rendered tree. Files are uploaded
// in sorted path order; the first failed upload aborts the run. When pruning
// is enabled, blobs not present in the tree are deleted after all uploads
// succeeded, so a failed run never deletes anything.
func (u *AzureUploader) Upload(ctx context.Context, tree render.Tree) (Summary, error) {
	var summary Summary

	for _, path := range tree.Paths() {
		data := tree[path]
		ct := contentType(path)
		_, err := u.client.UploadBuffer(ctx, u.container, path, data, &azblob.UploadBufferOptions{
			HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &ct},
		})
		if err != nil {
			return summary, fmt.Errorf("upload %s: %w", path, err)
		}
		summary.Files++
		summary.Bytes += int64(len(data))
		slog.Debug("Blob uploaded", logfields.Path(path), slog.Int("bytes", len(data)))
	}

	if u.prune {
		pruned, err := u.pruneStale(ctx, tree)
		if err != nil {
			return summary, err
		}
		summary.Pruned = pruned
	}

	slog.Info("Container synchronized",
		slog.String("container", u.container),
		slog.Int("files", summary.Files),
		slog.Int64("bytes", summary.Bytes),
		slog.Int("pruned", summary.Pruned))
	return summary, nil
}

func (u *AzureUploader) pruneStale(ctx context.Context, tree render.Tree) (int, error) {
	pruned := 0
	pager := u.client.NewListBlobsFlatPager(u.container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return pruned, fmt.Errorf("list container blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			name := *item.Name
			if _, ok := tree[name]; ok {
				continue
			}
			if _, err := u.client.DeleteBlob(ctx, u.container, name, nil); err != nil {
				return pruned, fmt.Errorf("delete stale blob %s: %w", name, err)
			}
			pruned++
			slog.Debug("Stale blob pruned", logfields.Path(name))
		}
	}
	return pruned, nil
}

// Close implements Uploader. The azblob client holds no closable resources.
func (u *AzureUploader) Close() error { return nil }
