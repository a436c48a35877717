package preview

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenrik/blogpub/internal/config"
)

func previewConfig() *config.Config {
	return &config.Config{
		Site: config.SiteConfig{
			Title:   "Preview Blog",
			BaseURL: "http://localhost:8473",
			Theme:   "plain",
		},
		Content: config.ContentConfig{Dir: "posts"},
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func builtServer(t *testing.T, drafts bool) *Server {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "posts/hello.md", "---\ntitle: Hello\ndate: 2024-01-01\n---\nHi there.\n")
	writeFile(t, root, "posts/wip.md", "---\ntitle: WIP Post\ndate: 2024-02-02\ndraft: true\n---\nNot yet.\n")

	srv, err := New(previewConfig(), root, drafts)
	require.NoError(t, err)
	srv.rebuild()
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServeHTTP_IndexServed(t *testing.T) {
	srv := builtServer(t, false)

	w := get(t, srv, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Preview Blog")
}

func TestServeHTTP_PostPageWithAndWithoutTrailingSlash(t *testing.T) {
	srv := builtServer(t, false)

	assert.Equal(t, http.StatusOK, get(t, srv, "/posts/hello/").Code)
	assert.Equal(t, http.StatusOK, get(t, srv, "/posts/hello").Code)
}

func TestServeHTTP_UnknownPath_NotFound(t *testing.T) {
	srv := builtServer(t, false)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/posts/nope/").Code)
}

func TestServeHTTP_DraftsHiddenByDefault(t *testing.T) {
	srv := builtServer(t, false)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/posts/wip/").Code)
}

func TestServeHTTP_DraftsFlagShowsDrafts(t *testing.T) {
	srv := builtServer(t, true)

	w := get(t, srv, "/posts/wip/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Not yet.")
}

func TestServeHTTP_DraftsMode_IsPerServerView(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "posts/hello.md", "---\ntitle: Hello\ndate: 2024-01-01\n---\nHi there.\n")
	writeFile(t, root, "posts/wip.md", "---\ntitle: WIP Post\ndate: 2024-02-02\ndraft: true\n---\nNot yet.\n")

	withDrafts, err := New(previewConfig(), root, true)
	require.NoError(t, err)
	withDrafts.rebuild()

	// A drafts-enabled build must not disturb what a regular build of the
	// same content sees.
	without, err := New(previewConfig(), root, false)
	require.NoError(t, err)
	without.rebuild()

	assert.Equal(t, http.StatusOK, get(t, withDrafts, "/posts/wip/").Code)
	assert.Equal(t, http.StatusNotFound, get(t, without, "/posts/wip/").Code)
}

func TestServeHTTP_BeforeFirstBuild_ServiceUnavailable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "posts/x.md", "---\ntitle: X\ndate: 2024-01-01\n---\nx\n")
	srv, err := New(previewConfig(), root, false)
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv, "/").Code)
}

func TestNew_MissingDirectory_ReturnsError(t *testing.T) {
	_, err := New(previewConfig(), filepath.Join(t.TempDir(), "ghost"), false)
	require.Error(t, err)
}

func TestRebuild_BrokenContent_KeepsLastGoodTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "posts/ok.md", "---\ntitle: OK\ndate: 2024-01-01\n---\nfine\n")

	srv, err := New(previewConfig(), root, false)
	require.NoError(t, err)
	srv.rebuild()
	require.Equal(t, http.StatusOK, get(t, srv, "/posts/ok/").Code)

	writeFile(t, root, "posts/broken.md", "---\ntitle: Broken\nno closing")
	srv.rebuild()

	// Old tree still serves.
	assert.Equal(t, http.StatusOK, get(t, srv, "/posts/ok/").Code)
}
