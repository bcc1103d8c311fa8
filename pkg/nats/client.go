// Package nats adapts a NATS connection to the messaging contracts.
package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NewClient connects to url. The connection reconnects on its own; callers own Close/Drain.
func NewClient(url, name string, timeout time.Duration) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}
