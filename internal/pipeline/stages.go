package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fenrik/blogpub/internal/content"
	"github.com/fenrik/blogpub/internal/git"
	"github.com/fenrik/blogpub/internal/linkcheck"
	"github.com/fenrik/blogpub/internal/logfields"
	"github.com/fenrik/blogpub/internal/render"
	"github.com/fenrik/blogpub/internal/theme"
)

// Stage names a pipeline stage.
type Stage string

const (
	StagePrepare Stage = "prepare"
	StageFetch   Stage = "fetch"
	StageLoad    Stage = "load"
	StageRender  Stage = "render"
	StageVerify  Stage = "verify"
	StagePublish Stage = "publish"
)

// StageFn executes one stage against the run state.
type StageFn func(ctx context.Context, st *State) error

// StageDef pairs a stage name with its implementation.
type StageDef struct {
	Name Stage
	Fn   StageFn
}

// DefaultStages returns the full publish sequence. When the state has no
// uploader the publish stage is omitted (render-only build).
func DefaultStages(st *State) []StageDef {
	stages := []StageDef{
		{StagePrepare, stagePrepare},
		{StageFetch, stageFetch},
		{StageLoad, stageLoad},
		{StageRender, stageRender},
		{StageVerify, stageVerify},
	}
	if st.Uploader != nil {
		stages = append(stages, StageDef{StagePublish, stagePublish})
	}
	return stages
}

func stagePrepare(_ context.Context, st *State) error {
	return st.Workspace.Create()
}

func stageFetch(ctx context.Context, st *State) error {
	client := git.NewClient(st.Workspace.Path())
	root, err := client.FetchContent(ctx, st.Cfg.Content, st.Incremental)
	if err != nil {
		return err
	}
	st.ContentRoot = root

	if commit, err := git.Head(root); err == nil {
		st.Commit = commit
		st.Report.Commit = commit
	}
	return nil
}

func stageLoad(_ context.Context, st *State) error {
	loader := content.NewLoader(st.ContentRoot, st.Cfg.Content.Dir)
	entries, err := loader.Load()
	if err != nil {
		return err
	}
	st.Entries = entries
	st.Report.Entries = len(entries)
	for _, e := range entries {
		if e.Draft {
			st.Report.Drafts++
		}
	}

	if about := st.Cfg.Site.AboutPath; about != "" {
		path := filepath.Join(st.ContentRoot, filepath.FromSlash(about))
		entry, err := content.ParseFile(path, about)
		if err != nil {
			return fmt.Errorf("about page %s: %w", about, err)
		}
		st.About = entry
	}
	return nil
}

func stageRender(_ context.Context, st *State) error {
	// Content repositories may ship their own theme under themes/<name>;
	// it is resolved against this run's checkout, never cached.
	th, err := theme.Resolve(st.Cfg.Site.Theme, st.ContentRoot)
	if err != nil {
		return err
	}
	st.Report.ThemeName = th.Name()
	st.Report.ThemeVersion = th.Version()

	tree, err := render.New(st.Cfg.Site).Render(th, st.Entries, st.About)
	if err != nil {
		return err
	}

	if st.Cfg.Output.Minify {
		if err := render.Minify(tree); err != nil {
			return err
		}
	}

	st.Tree = tree
	st.Report.Files = len(tree)
	return nil
}

func stageVerify(_ context.Context, st *State) error {
	svc := linkcheck.NewService(st.Cfg.Site.BaseURL)
	svc.Reporter = st.LinkReporter

	broken, err := svc.Check(st.Tree)
	if err != nil {
		return err
	}
	if len(broken) > 0 {
		for _, b := range broken {
			slog.Error("Broken internal link", logfields.Path(b.SourcePath), logfields.URL(b.Href))
		}
		summaries := make([]string, 0, len(broken))
		for _, b := range broken {
			summaries = append(summaries, b.String())
		}
		return fmt.Errorf("%d broken internal links: %s", len(broken), strings.Join(summaries, "; "))
	}
	return nil
}

func stagePublish(ctx context.Context, st *State) error {
	summary, err := st.Uploader.Upload(ctx, st.Tree)
	if err != nil {
		return err
	}
	st.Report.UploadedFiles = summary.Files
	st.Report.UploadedBytes = summary.Bytes
	st.Report.PrunedBlobs = summary.Pruned
	st.Recorder.ObserveUpload(summary.Files, summary.Bytes)
	return nil
}
