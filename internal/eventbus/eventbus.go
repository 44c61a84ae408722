// Package eventbus mirrors context messages to a NATS JetStream stream so
// other services can follow a workout as it happens.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/claude/spotter/internal/contextevent"
)

// SubjectPrefix is the subject namespace of published messages.
const SubjectPrefix = "spotter.events"

// Bus publishes context messages to JetStream.
type Bus struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
}

// Connect dials NATS and ensures the stream exists.
func Connect(ctx context.Context, url, stream string, log *slog.Logger) (*Bus, error) {
	nc, err := nats.Connect(url, nats.Name("spotter"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{SubjectPrefix + ".>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	log.Info("nats connected", "url", url, "stream", stream)
	return &Bus{nc: nc, js: js, stream: stream}, nil
}

// Subject returns the subject a message with the given event name is
// published on. Characters NATS treats specially are replaced.
func Subject(event string) string {
	if event == "" {
		event = "notice"
	}
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, event)
	return SubjectPrefix + "." + clean
}

// Publish sends msg as JSON.
func (b *Bus) Publish(ctx context.Context, msg contextevent.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	subject := Subject(msg.Event)
	if _, err := b.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection.
func (b *Bus) Close() error {
	return b.nc.Drain()
}
