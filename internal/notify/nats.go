package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Ad1th/Poster-Website/pkg/messaging"
)

var _ Notifier = (*NATS)(nil)

// Bus is the messaging transport the NATS notifier runs on.
type Bus interface {
	messaging.Publisher
	messaging.Subscriber
}

// NATS carries change notifications between processes over a NATS subject.
type NATS struct {
	bus     Bus
	subject string
	logger  *slog.Logger
}

// NewNATS publishes on subject, or on Channel when subject is empty.
func NewNATS(bus Bus, subject string, logger *slog.Logger) *NATS {
	if subject == "" {
		subject = Channel
	}
	return &NATS{bus: bus, subject: subject, logger: logger.With("component", "notify")}
}

func (n *NATS) Publish(ctx context.Context, change Change) error {
	if err := n.bus.Publish(ctx, subjectEvent{Change: change, subject: n.subject}); err != nil {
		return fmt.Errorf("failed to publish catalog change: %w", err)
	}
	return nil
}

// Subscribe decodes every message on the subject. Malformed payloads still
// trigger the handler with an empty Change, since receivers re-fetch anyway.
func (n *NATS) Subscribe(ctx context.Context, handler Handler) (func(), error) {
	return n.bus.Subscribe(ctx, n.subject, func(ctx context.Context, _ string, data []byte) {
		var change Change
		if err := json.Unmarshal(data, &change); err != nil {
			n.logger.WarnContext(ctx, "Malformed catalog change payload", "error", err)
			change = Change{}
		}
		handler(ctx, change)
	})
}

type subjectEvent struct {
	Change
	subject string
}

func (e subjectEvent) Subject() string {
	return e.subject
}
