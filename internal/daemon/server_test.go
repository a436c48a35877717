package daemon

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenrik/blogpub/internal/daemon/events"
)

func newTestServer(registry *prometheus.Registry) *Server {
	bus := events.NewBus()
	return NewServer("localhost:0", NewWebhookHandler(bus, "main", ""), registry)
}

func TestServer_Healthz_ReportsOK(t *testing.T) {
	srv := newTestServer(nil)

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServer_Metrics_OnlyWithRegistry(t *testing.T) {
	withReg := newTestServer(prometheus.NewRegistry())
	rec := httptest.NewRecorder()
	withReg.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	without := newTestServer(nil)
	rec = httptest.NewRecorder()
	without.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Webhook_RejectsGet(t *testing.T) {
	srv := newTestServer(nil)

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
