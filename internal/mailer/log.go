package mailer

import (
	"context"
	"log/slog"
)

// LogTransport only logs what would be sent. Used for dry runs.
type LogTransport struct {
	log *slog.Logger
}

var _ Transport = (*LogTransport)(nil)

func NewLogTransport(log *slog.Logger) *LogTransport {
	if log == nil {
		log = slog.Default()
	}
	return &LogTransport{log: log.With("component", "mailer")}
}

func (t *LogTransport) Send(_ context.Context, m Message) error {
	if err := m.validate(); err != nil {
		return err
	}
	size := 0
	for _, a := range m.Attachments {
		size += len(a.Content)
	}
	t.log.Info("Dry run, message not sent",
		"recipient", m.To,
		"subject", m.Subject,
		"attachments", len(m.Attachments),
		"bytes", size)
	return nil
}
