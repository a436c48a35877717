package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyRepo       = "repository"
	KeyModule     = "content_module"
	KeyEntry      = "entry"
	KeyTheme      = "theme"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyName       = "name"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr      { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr    { return slog.String(KeyStage, name) }
func DurationMS(d time.Duration) slog.Attr {
	return slog.Int64(KeyDurationMS, d.Milliseconds())
}
func Repository(r string) slog.Attr  { return slog.String(KeyRepo, r) }
func Module(m string) slog.Attr      { return slog.String(KeyModule, m) }
func Entry(slug string) slog.Attr    { return slog.String(KeyEntry, slug) }
func Theme(name string) slog.Attr    { return slog.String(KeyTheme, name) }
func Path(p string) slog.Attr        { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr         { return slog.String(KeyURL, u) }
func Name(n string) slog.Attr        { return slog.String(KeyName, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
