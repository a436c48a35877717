package theme

import (
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// dirTheme is a theme loaded from a directory, typically one shipped inside
// the content repository. Expected layout:
//
//	<dir>/templates/*.tmpl
//	<dir>/assets/...      (optional)
//	<dir>/VERSION         (optional, defaults to "0")
type dirTheme struct {
	name    string
	version string
	dir     string
}

// LoadDir loads a theme from a directory. The theme is not registered:
// directory themes belong to one run's checkout, and caching them across runs
// would hold paths that no longer exist once the workspace is cleaned up.
func LoadDir(name, dir string) (Theme, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("theme directory not found: %s", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "templates", "*.tmpl"))
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("theme %q has no templates under %s", name, dir)
	}

	version := "0"
	if raw, err := os.ReadFile(filepath.Join(dir, "VERSION")); err == nil {
		version = strings.TrimSpace(string(raw))
	}

	return &dirTheme{name: name, version: version, dir: dir}, nil
}

// Resolve returns the theme to render with. A themes/<name> directory inside
// the content root takes precedence over a built-in registration and is loaded
// fresh, so repeated runs always see the checkout they just fetched.
func Resolve(name, contentRoot string) (Theme, error) {
	if contentRoot != "" {
		dir := filepath.Join(contentRoot, "themes", name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return LoadDir(name, dir)
		}
	}
	return Lookup(name)
}

func (t *dirTheme) Name() string    { return t.name }
func (t *dirTheme) Version() string { return t.version }

func (t *dirTheme) Templates() (*template.Template, error) {
	tmpl, err := template.New(t.name).Funcs(Funcs()).ParseGlob(filepath.Join(t.dir, "templates", "*.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("parse theme %q templates: %w", t.name, err)
	}
	for _, required := range []string{"index", "post", "tag", "about"} {
		if tmpl.Lookup(required) == nil {
			return nil, fmt.Errorf("theme %q is missing the %q layout", t.name, required)
		}
	}
	return tmpl, nil
}

func (t *dirTheme) Assets() fs.FS {
	assetsDir := filepath.Join(t.dir, "assets")
	if info, err := os.Stat(assetsDir); err != nil || !info.IsDir() {
		return nil
	}
	return os.DirFS(assetsDir)
}
