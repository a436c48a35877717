// Package git fetches the content repository and its nested content modules.
package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/fenrik/blogpub/internal/config"
	"github.com/fenrik/blogpub/internal/logfields"
)

// Client handles Git operations for a run.
type Client struct {
	workspaceDir string
}

// NewClient creates a new Git client with the specified workspace directory.
func NewClient(workspaceDir string) *Client {
	return &Client{workspaceDir: workspaceDir}
}

// FetchContent clones or updates the content repository and every nested
// content module into the workspace, returning the content root path.
// Module checkouts land inside the content tree at their configured paths,
// so the loader sees a single merged content tree.
func (c *Client) FetchContent(ctx context.Context, content config.ContentConfig, incremental bool) (string, error) {
	rootPath, err := c.fetchRepository(ctx, content.Repository, filepath.Join(c.workspaceDir, content.Repository.Name), incremental)
	if err != nil {
		return "", err
	}

	for _, mod := range content.Modules {
		target := filepath.Join(rootPath, filepath.FromSlash(mod.Path))
		if _, err := c.fetchRepository(ctx, mod, target, incremental); err != nil {
			return "", fmt.Errorf("content module %s: %w", mod.Name, err)
		}
	}

	return rootPath, nil
}

func (c *Client) fetchRepository(ctx context.Context, repo config.Repository, path string, incremental bool) (string, error) {
	if incremental {
		if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
			slog.Debug("Updating existing repository", logfields.Name(repo.Name), logfields.Path(path))
			return c.updateExistingRepo(ctx, path, repo)
		}
		slog.Debug("Repository doesn't exist, cloning", logfields.Name(repo.Name))
	}
	return c.cloneRepository(ctx, repo, path)
}

func (c *Client) cloneRepository(ctx context.Context, repo config.Repository, path string) (string, error) {
	slog.Debug("Cloning repository", logfields.URL(repo.URL), logfields.Name(repo.Name), slog.String("branch", repo.Branch), logfields.Path(path))

	if err := os.RemoveAll(path); err != nil {
		return "", fmt.Errorf("failed to remove existing directory: %w", err)
	}

	cloneOptions := &git.CloneOptions{
		URL: repo.URL,
	}
	if repo.Branch != "" {
		cloneOptions.ReferenceName = plumbing.ReferenceName("refs/heads/" + repo.Branch)
		cloneOptions.SingleBranch = true
	}
	if repo.Auth != nil {
		auth, err := c.authentication(repo.Auth)
		if err != nil {
			return "", fmt.Errorf("failed to setup authentication: %w", err)
		}
		cloneOptions.Auth = auth
	}

	repository, err := git.PlainCloneContext(ctx, path, false, cloneOptions)
	if err != nil {
		return "", fmt.Errorf("failed to clone repository %s: %w", repo.URL, err)
	}

	if ref, err := repository.Head(); err == nil {
		slog.Info("Repository cloned",
			logfields.Name(repo.Name),
			logfields.URL(repo.URL),
			slog.String("commit", ref.Hash().String()[:8]))
	} else {
		slog.Info("Repository cloned", logfields.Name(repo.Name), logfields.URL(repo.URL))
	}

	return path, nil
}

func (c *Client) updateExistingRepo(ctx context.Context, path string, repo config.Repository) (string, error) {
	repository, err := git.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}

	worktree, err := repository.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	pullOptions := &git.PullOptions{
		RemoteName: "origin",
	}
	if repo.Auth != nil {
		auth, err := c.authentication(repo.Auth)
		if err != nil {
			return "", fmt.Errorf("failed to setup authentication: %w", err)
		}
		pullOptions.Auth = auth
	}

	err = worktree.PullContext(ctx, pullOptions)
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return "", fmt.Errorf("failed to pull repository %s: %w", repo.URL, err)
	}

	if err == git.NoErrAlreadyUpToDate {
		slog.Info("Repository already up to date", logfields.Name(repo.Name))
	} else if ref, herr := repository.Head(); herr == nil {
		slog.Info("Repository updated",
			logfields.Name(repo.Name),
			slog.String("commit", ref.Hash().String()[:8]))
	}

	return path, nil
}

// Head returns the current HEAD commit hash of a checkout.
func Head(path string) (string, error) {
	repository, err := git.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}
	ref, err := repository.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// authentication creates a transport auth method based on config.
func (c *Client) authentication(auth *config.AuthConfig) (transport.AuthMethod, error) {
	switch auth.Type {
	case "none", "":
		return nil, nil // public repository

	case "ssh":
		keyPath := auth.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		publicKeys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key from %s: %w", keyPath, err)
		}
		return publicKeys, nil

	case "token":
		if auth.Token == "" {
			return nil, fmt.Errorf("token authentication requires a token")
		}
		return &http.BasicAuth{
			Username: "token", // GitHub/GitLab use "token" as username
			Password: auth.Token,
		}, nil

	case "basic":
		if auth.Username == "" || auth.Password == "" {
			return nil, fmt.Errorf("basic authentication requires username and password")
		}
		return &http.BasicAuth{
			Username: auth.Username,
			Password: auth.Password,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported authentication type: %s", auth.Type)
	}
}
