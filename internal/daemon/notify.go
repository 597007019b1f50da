package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/themekit/internal/config"
	"git.home.luguber.info/inful/themekit/internal/daemon/events"
	"git.home.luguber.info/inful/themekit/internal/ferrors"
)

// Notifier publishes build completions to NATS JetStream so external
// consumers (CI dashboards, chat bots) can react to theme builds.
type Notifier struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
	logger  *slog.Logger
}

// buildNotification is the published wire format.
type buildNotification struct {
	Domain     string    `json:"domain"`
	BuildID    string    `json:"build_id"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewNotifier connects to NATS. Returns nil (and no error) when notification
// is not configured.
func NewNotifier(cfg config.NotifyConfig, logger *slog.Logger) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to connect to NATS").
			WithContext("url", cfg.URL).Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to create JetStream context").Build()
	}

	logger.Info("build notifier connected", slog.String("url", cfg.URL), slog.String("subject", cfg.Subject))
	return &Notifier{conn: conn, js: js, subject: cfg.Subject, logger: logger}, nil
}

// Publish sends one completed build. Failures are logged, not fatal; a flaky
// broker must not stall the build loop.
func (n *Notifier) Publish(ctx context.Context, done events.BuildCompleted) {
	if n == nil {
		return
	}

	note := buildNotification{
		Domain:     string(done.Domain),
		BuildID:    done.BuildID,
		Status:     done.Status,
		Error:      done.Error,
		DurationMS: done.Duration.Milliseconds(),
		FinishedAt: done.FinishedAt,
	}
	data, err := json.Marshal(note)
	if err != nil {
		n.logger.Error("failed to marshal build notification", slog.Any("error", err))
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := n.js.Publish(pubCtx, n.subject, data); err != nil {
		n.logger.Warn("failed to publish build notification", slog.Any("error", err))
		return
	}
	n.logger.Debug("published build notification",
		slog.String("build_id", done.BuildID), slog.String("status", done.Status))
}

// Close closes the NATS connection.
func (n *Notifier) Close() {
	if n == nil || n.conn == nil {
		return
	}
	n.conn.Close()
}
