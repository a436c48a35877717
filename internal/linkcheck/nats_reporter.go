package linkcheck

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fenrik/blogpub/internal/config"
)

// NATSReporter publishes broken-link reports to a NATS subject so an external
// consumer (notifier, dashboard) can pick them up. It is optional wiring: the
// verify stage fails the run on broken links regardless of reporting.
type NATSReporter struct {
	conn    *nats.Conn
	subject string
}

// brokenLinkEvent is the wire form of a report.
type brokenLinkEvent struct {
	BrokenLink
	Timestamp time.Time `json:"timestamp"`
}

// NewNATSReporter connects to NATS using the link configuration.
func NewNATSReporter(cfg config.LinkConfig) (*NATSReporter, error) {
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("links.nats_url is not configured")
	}

	conn, err := nats.Connect(cfg.NATSURL, nats.Name("blogpub-linkcheck"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Info("NATS reporter initialized", "url", cfg.NATSURL, "subject", cfg.Subject)
	return &NATSReporter{conn: conn, subject: cfg.Subject}, nil
}

// ReportBrokenLink publishes one broken-link event.
func (r *NATSReporter) ReportBrokenLink(link BrokenLink) error {
	data, err := json.Marshal(brokenLinkEvent{BrokenLink: link, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.conn.Publish(r.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (r *NATSReporter) Close() error {
	if r.conn != nil {
		if err := r.conn.Drain(); err != nil {
			return err
		}
	}
	return nil
}
