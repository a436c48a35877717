// Package theme provides the template/styling bundles applied to all content
// during rendering.
//
// Themes register in a process-wide registry so rendering can stay free of
// per-theme conditionals. An unknown theme name is a render-stage failure.
package theme

import (
	"fmt"
	"html/template"
	"io/fs"
	"sync"
)

// Theme is a named bundle of page layouts and static assets.
type Theme interface {
	// Name is the identifier used in site.theme config.
	Name() string

	// Version identifies the theme revision; it is stamped into run reports
	// so a deployed site can be traced to the exact layouts that built it.
	Version() string

	// Templates returns the parsed layout set. The set must define the named
	// templates "index", "post", "tag" and "about".
	Templates() (*template.Template, error)

	// Assets holds static files copied verbatim into the output tree under
	// assets/. May be nil for themes without assets.
	Assets() fs.FS
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Theme{}
)

// Register registers a Theme implementation. Duplicate names are ignored.
func Register(t Theme) {
	if t == nil {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[t.Name()]; exists {
		return
	}
	registry[t.Name()] = t
}

// Lookup returns the registered theme with the given name.
func Lookup(name string) (Theme, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown theme %q", name)
	}
	return t, nil
}

// Names returns the registered theme names, for diagnostics.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
