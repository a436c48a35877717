package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fenrik/blogpub/internal/config"
	"github.com/fenrik/blogpub/internal/daemon"
	"github.com/fenrik/blogpub/internal/eventstore"
	"github.com/fenrik/blogpub/internal/linkcheck"
	"github.com/fenrik/blogpub/internal/logfields"
	"github.com/fenrik/blogpub/internal/metrics"
	"github.com/fenrik/blogpub/internal/pipeline"
	"github.com/fenrik/blogpub/internal/preview"
	"github.com/fenrik/blogpub/internal/publish"
	"github.com/fenrik/blogpub/internal/render"
	"github.com/fenrik/blogpub/internal/version"
	"github.com/fenrik/blogpub/internal/workspace"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"blogpub.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Publish struct {
		Incremental bool `short:"i" help:"Reuse an existing checkout instead of a fresh clone"`
	} `cmd:"" help:"Fetch content, render the site and upload it to blob storage"`

	Build struct {
		Output string `short:"o" help:"Output directory for the rendered site (overrides config)"`
	} `cmd:"" help:"Fetch content and render the site to a local directory without uploading"`

	Preview struct {
		Dir    string `short:"d" help:"Local content directory to serve" default:"."`
		Listen string `short:"l" help:"Listen address" default:"localhost:8473"`
		Drafts bool   `help:"Render draft entries too"`
	} `cmd:"" help:"Serve a local content directory with live rebuild on change"`

	Daemon struct {
	} `cmd:"" help:"Run continuously, publishing on webhook pushes and on schedule"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Version struct {
	} `cmd:"" help:"Print version information"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	switch kctx.Command() {
	case "publish":
		err = withConfig(runPublish)
	case "build":
		err = withConfig(func(ctx context.Context, cfg *config.Config) error {
			return runBuild(ctx, cfg, CLI.Build.Output)
		})
	case "preview":
		err = withConfig(runPreview)
	case "daemon":
		err = withConfig(runDaemon)
	case "init":
		err = config.Init(CLI.Config, CLI.Init.Force)
	case "version":
		fmt.Printf("blogpub %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	default:
		err = fmt.Errorf("unknown command: %s", kctx.Command())
	}

	if err != nil {
		slog.Error("Command failed", logfields.Error(err))
		os.Exit(1)
	}
}

// withConfig loads the configuration and hands it to fn together with a
// signal-aware context.
func withConfig(fn func(ctx context.Context, cfg *config.Config) error) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, cfg)
}

func runPublish(ctx context.Context, cfg *config.Config) error {
	return executePublish(ctx, cfg, CLI.Publish.Incremental, nil, metrics.NoopRecorder{})
}

// executePublish runs one full publish pipeline: fetch, load, render, verify,
// upload. Shared by the publish command and the daemon.
func executePublish(ctx context.Context, cfg *config.Config, incremental bool, events eventstore.Store, recorder metrics.Recorder) error {
	st := pipeline.NewState(uuid.NewString(), cfg)
	st.Incremental = incremental
	st.Events = events
	st.Recorder = recorder
	// Incremental runs need the checkout to survive between runs.
	if incremental {
		st.Workspace = workspace.NewPersistentManager("", "blogpub-checkout")
	} else {
		st.Workspace = workspace.NewManager("")
	}
	defer func() {
		if err := st.Workspace.Cleanup(); err != nil {
			slog.Warn("Failed to clean up workspace", logfields.Error(err))
		}
	}()

	uploader, err := publish.NewAzureUploader(cfg.Storage)
	if err != nil {
		return fmt.Errorf("create uploader: %w", err)
	}
	st.Uploader = uploader
	defer func() { _ = uploader.Close() }()

	if cfg.Links.NATSURL != "" {
		reporter, err := linkcheck.NewNATSReporter(cfg.Links)
		if err != nil {
			slog.Warn("Link reporting disabled", logfields.Error(err))
		} else {
			st.LinkReporter = reporter
			defer func() { _ = reporter.Close() }()
		}
	}

	return pipeline.Run(ctx, st, pipeline.DefaultStages(st))
}

func runBuild(ctx context.Context, cfg *config.Config, outputOverride string) error {
	outputDir := cfg.Output.Directory
	if outputOverride != "" {
		outputDir = outputOverride
	}
	if outputDir == "" {
		outputDir = "./site"
	}

	st := pipeline.NewState(uuid.NewString(), cfg)
	st.Workspace = workspace.NewManager("")
	defer func() {
		if err := st.Workspace.Cleanup(); err != nil {
			slog.Warn("Failed to clean up workspace", logfields.Error(err))
		}
	}()

	if err := pipeline.Run(ctx, st, pipeline.DefaultStages(st)); err != nil {
		return err
	}

	if err := render.WriteTree(outputDir, st.Tree, cfg.Output.Clean); err != nil {
		return fmt.Errorf("write site: %w", err)
	}
	slog.Info("Site written", logfields.Path(outputDir), slog.Int("files", len(st.Tree)))
	return nil
}

func runPreview(ctx context.Context, cfg *config.Config) error {
	srv, err := preview.New(cfg, CLI.Preview.Dir, CLI.Preview.Drafts)
	if err != nil {
		return err
	}
	return srv.Run(ctx, CLI.Preview.Listen)
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusRecorder(registry)

	var events eventstore.Store
	if cfg.Daemon.DataDir != "" {
		if err := os.MkdirAll(cfg.Daemon.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		store, err := eventstore.NewSQLiteStore(filepath.Join(cfg.Daemon.DataDir, "events.db"))
		if err != nil {
			return fmt.Errorf("open event store: %w", err)
		}
		events = store
		defer func() { _ = store.Close() }()
	}

	run := func(ctx context.Context, reason string) error {
		slog.Info("Starting publish run", slog.String("reason", reason))
		return executePublish(ctx, cfg, false, events, recorder)
	}

	d, err := daemon.New(cfg.Daemon, run, registry)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
