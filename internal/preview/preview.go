// Package preview serves a locally rendered site from memory and rebuilds it
// whenever the content directory changes. Nothing touches disk or cloud
// storage; it exists for writing posts before pushing them.
package preview

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fenrik/blogpub/internal/config"
	"github.com/fenrik/blogpub/internal/content"
	"github.com/fenrik/blogpub/internal/logfields"
	"github.com/fenrik/blogpub/internal/render"
	"github.com/fenrik/blogpub/internal/theme"
)

const rebuildDebounce = 300 * time.Millisecond

// Server renders the site from a local content tree and serves it over HTTP.
type Server struct {
	cfg        *config.Config
	contentDir string
	drafts     bool

	mu      sync.RWMutex
	tree    render.Tree
	lastErr error
}

// New creates a preview server for a local content directory. With drafts set,
// draft entries are rendered too; a real publish never does that.
func New(cfg *config.Config, contentDir string, drafts bool) (*Server, error) {
	abs, err := filepath.Abs(contentDir)
	if err != nil {
		return nil, fmt.Errorf("resolve content dir: %w", err)
	}
	if st, err := os.Stat(abs); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("content dir not found or not a directory: %s", abs)
	}
	return &Server{cfg: cfg, contentDir: abs, drafts: drafts}, nil
}

// Run builds once, starts watching and serving, and blocks until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.rebuild()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := addDirsRecursive(watcher, s.contentDir); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		err := httpServer.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		serverErr <- err
	}()
	slog.Info("Preview server listening", slog.String("addr", addr), logfields.Path(s.contentDir))

	var timerMu sync.Mutex
	var timer *time.Timer
	trigger := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(rebuildDebounce, s.rebuild)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutting down preview server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Warn("Preview server shutdown incomplete", logfields.Error(err))
			}
			return nil
		case err := <-serverErr:
			return err
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(watcher, ev, trigger)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (s *Server) handleEvent(watcher *fsnotify.Watcher, ev fsnotify.Event, trigger func()) {
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return
	}

	// New directories need to be watched too.
	if ev.Op.Has(fsnotify.Create) {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			_ = addDirsRecursive(watcher, ev.Name)
		}
	}

	if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) ||
		ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		trigger()
	}
}

// rebuild renders the content tree from scratch and swaps it in atomically.
// A failed rebuild keeps the last good tree serving.
func (s *Server) rebuild() {
	tree, err := s.build()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		slog.Warn("Rebuild failed", logfields.Error(err))
		s.lastErr = err
		return
	}
	s.lastErr = nil
	s.tree = tree
	slog.Info("Site rebuilt", slog.Int("files", len(tree)))
}

func (s *Server) build() (render.Tree, error) {
	loader := content.NewLoader(s.contentDir, s.cfg.Content.Dir)
	entries, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if s.drafts {
		// Entries are never mutated after loading; show drafts via copies.
		shown := make([]*content.Entry, len(entries))
		for i, e := range entries {
			c := *e
			c.Draft = false
			shown[i] = &c
		}
		entries = shown
	}

	var about *content.Entry
	if p := s.cfg.Site.AboutPath; p != "" {
		about, err = content.ParseFile(filepath.Join(s.contentDir, filepath.FromSlash(p)), p)
		if err != nil {
			return nil, fmt.Errorf("about page %s: %w", p, err)
		}
	}

	th, err := theme.Resolve(s.cfg.Site.Theme, s.contentDir)
	if err != nil {
		return nil, err
	}
	return render.New(s.cfg.Site).Render(th, entries, about)
}

// ServeHTTP maps URL paths to the in-memory tree.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	tree := s.tree
	lastErr := s.lastErr
	s.mu.RUnlock()

	if tree == nil {
		msg := "site has not been built yet"
		if lastErr != nil {
			msg = lastErr.Error()
		}
		http.Error(w, msg, http.StatusServiceUnavailable)
		return
	}

	p := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if p == "" || p == "." {
		p = "index.html"
	}

	body, ok := tree[p]
	if !ok {
		if alt, found := tree[p+"/index.html"]; found {
			body = alt
		} else {
			http.NotFound(w, r)
			return
		}
	}

	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	_, _ = w.Write(body)
}

func addDirsRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}
