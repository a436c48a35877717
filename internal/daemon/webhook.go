package daemon

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fenrik/blogpub/internal/daemon/events"
	"github.com/fenrik/blogpub/internal/logfields"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler receives push webhooks from GitHub, GitLab and
// Forgejo/Gitea, filters them on branch, and turns them into
// PublishRequested events.
type WebhookHandler struct {
	bus    *events.Bus
	branch string
	secret string
}

func NewWebhookHandler(bus *events.Bus, branch, secret string) *WebhookHandler {
	return &WebhookHandler{bus: bus, branch: branch, secret: secret}
}

// pushPayload covers the fields shared by GitHub, GitLab and Forgejo push
// payloads that we care about.
type pushPayload struct {
	Ref   string `json:"ref"`
	After string `json:"after"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	if !h.authorized(r, body) {
		slog.Warn("Webhook rejected: bad signature", slog.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	source, event := forgeEvent(r)
	if event != "push" {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored", "reason": "not a push event"})
		return
	}

	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}

	if h.branch != "" && !refMatchesBranch(payload.Ref, h.branch) {
		slog.Debug("Webhook ignored: branch filter",
			slog.String("ref", payload.Ref),
			slog.String("branch", h.branch))
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored", "reason": "branch filtered"})
		return
	}

	evt := events.PublishRequested{
		Source:      "webhook",
		Reason:      source + " push to " + payload.Ref,
		Ref:         payload.Ref,
		Commit:      payload.After,
		RequestedAt: time.Now(),
	}
	if err := h.bus.Publish(r.Context(), evt); err != nil {
		slog.Error("Failed to publish webhook event", logfields.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	slog.Info("Webhook accepted",
		slog.String("source", source),
		slog.String("ref", payload.Ref),
		slog.String("commit", payload.After))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// authorized validates the webhook secret. GitHub and Forgejo send an HMAC
// over the body; GitLab sends the secret verbatim in a token header. With no
// secret configured every request passes.
func (h *WebhookHandler) authorized(r *http.Request, body []byte) bool {
	if h.secret == "" {
		return true
	}

	if token := r.Header.Get("X-Gitlab-Token"); token != "" {
		return hmac.Equal([]byte(token), []byte(h.secret))
	}

	sig := r.Header.Get("X-Hub-Signature-256")
	if !strings.HasPrefix(sig, "sha256=") {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.TrimPrefix(sig, "sha256=")), []byte(expected))
}

// forgeEvent identifies the forge and the event kind from the request headers.
func forgeEvent(r *http.Request) (source, event string) {
	if e := r.Header.Get("X-GitHub-Event"); e != "" {
		return "github", e
	}
	if e := r.Header.Get("X-Gitlab-Event"); e != "" {
		// GitLab uses "Push Hook" rather than "push".
		if strings.EqualFold(e, "Push Hook") {
			return "gitlab", "push"
		}
		return "gitlab", e
	}
	if e := r.Header.Get("X-Forgejo-Event"); e != "" {
		return "forgejo", e
	}
	if e := r.Header.Get("X-Gitea-Event"); e != "" {
		return "gitea", e
	}
	return "unknown", ""
}

func refMatchesBranch(ref, branch string) bool {
	return ref == "refs/heads/"+branch || ref == branch
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
