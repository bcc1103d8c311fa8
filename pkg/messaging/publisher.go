// Package messaging defines the transport-neutral publish/subscribe contract.
package messaging

import (
	"context"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Handler receives the raw payload of one message.
type Handler func(ctx context.Context, subject string, data []byte)

// Subscriber delivers messages published on subject to handler until the
// returned cancel function is called.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)
}
