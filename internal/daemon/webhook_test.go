package daemon

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenrik/blogpub/internal/daemon/events"
)

const pushBody = `{"ref":"refs/heads/main","after":"abc123"}`

func subscribeRequests(t *testing.T, bus *events.Bus) <-chan events.PublishRequested {
	t.Helper()
	ch, unsub := events.Subscribe[events.PublishRequested](bus, 4)
	t.Cleanup(unsub)
	return ch
}

func expectRequest(t *testing.T, ch <-chan events.PublishRequested) events.PublishRequested {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("expected PublishRequested event")
		return events.PublishRequested{}
	}
}

func expectNoRequest(t *testing.T, ch <-chan events.PublishRequested) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Fatalf("unexpected PublishRequested: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func githubPush(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	r.Header.Set("X-GitHub-Event", "push")
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestWebhook_GitHubPushToConfiguredBranch_RequestsPublish(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch := subscribeRequests(t, bus)

	h := NewWebhookHandler(bus, "main", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, githubPush(pushBody))

	assert.Equal(t, http.StatusAccepted, w.Code)
	evt := expectRequest(t, ch)
	assert.Equal(t, "webhook", evt.Source)
	assert.Equal(t, "refs/heads/main", evt.Ref)
	assert.Equal(t, "abc123", evt.Commit)
}

func TestWebhook_PushToOtherBranch_Ignored(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch := subscribeRequests(t, bus)

	h := NewWebhookHandler(bus, "main", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, githubPush(`{"ref":"refs/heads/feature","after":"abc"}`))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "branch filtered")
	expectNoRequest(t, ch)
}

func TestWebhook_NonPushEvent_Ignored(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch := subscribeRequests(t, bus)

	r := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
	r.Header.Set("X-GitHub-Event", "ping")

	h := NewWebhookHandler(bus, "main", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusAccepted, w.Code)
	expectNoRequest(t, ch)
}

func TestWebhook_GetMethod_Rejected(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	h := NewWebhookHandler(bus, "main", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestWebhook_ValidGitHubSignature_Accepted(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch := subscribeRequests(t, bus)

	secret := "hunter2"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(pushBody))
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	r := githubPush(pushBody)
	r.Header.Set("X-Hub-Signature-256", sig)

	h := NewWebhookHandler(bus, "main", secret)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusAccepted, w.Code)
	expectRequest(t, ch)
}

func TestWebhook_InvalidSignature_Unauthorized(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch := subscribeRequests(t, bus)

	r := githubPush(pushBody)
	r.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")

	h := NewWebhookHandler(bus, "main", "hunter2")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	expectNoRequest(t, ch)
}

func TestWebhook_MissingSignatureWithSecret_Unauthorized(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	h := NewWebhookHandler(bus, "main", "hunter2")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, githubPush(pushBody))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhook_GitLabTokenHeader_Accepted(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch := subscribeRequests(t, bus)

	r := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(pushBody))
	r.Header.Set("X-Gitlab-Event", "Push Hook")
	r.Header.Set("X-Gitlab-Token", "hunter2")

	h := NewWebhookHandler(bus, "main", "hunter2")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusAccepted, w.Code)
	evt := expectRequest(t, ch)
	assert.Contains(t, evt.Reason, "gitlab")
}

func TestWebhook_ForgejoPush_Accepted(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch := subscribeRequests(t, bus)

	r := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(pushBody))
	r.Header.Set("X-Forgejo-Event", "push")

	h := NewWebhookHandler(bus, "main", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusAccepted, w.Code)
	evt := expectRequest(t, ch)
	assert.Contains(t, evt.Reason, "forgejo")
}

func TestWebhook_InvalidJSON_BadRequest(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	h := NewWebhookHandler(bus, "main", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, githubPush("{not json"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefMatchesBranch(t *testing.T) {
	assert.True(t, refMatchesBranch("refs/heads/main", "main"))
	assert.True(t, refMatchesBranch("main", "main"))
	assert.False(t, refMatchesBranch("refs/heads/dev", "main"))
	assert.False(t, refMatchesBranch("refs/tags/v1", "main"))
}

func TestWorker_RunsSeriallyAndReportsRunning(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	worker := NewWorker(bus, func(ctx context.Context, reason string) error {
		close(started)
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()
	<-worker.Ready()

	require.False(t, worker.Running())
	require.NoError(t, bus.Publish(ctx, events.PublishNow{LastReason: "test"}))

	<-started
	assert.True(t, worker.Running())

	close(release)
	require.Eventually(t, func() bool { return !worker.Running() }, time.Second, 10*time.Millisecond)
}
