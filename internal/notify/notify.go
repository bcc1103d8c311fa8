// Package notify tells other open views that the catalog changed so they can
// reload it. Delivery is best effort and the payload is informational only:
// receivers always re-fetch from the backend.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Ad1th/Poster-Website/internal/poster"
)

// Channel is the fixed name every view publishes and subscribes on.
const Channel = "posters.catalog.changed"

// Op names the mutation that triggered a change.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpToggle Op = "toggle"
	OpReload Op = "reload"
)

// Change is the notification payload.
type Change struct {
	Origin string    `json:"origin"`
	Op     Op        `json:"op"`
	ID     poster.ID `json:"id,omitempty"`
	At     time.Time `json:"at"`
}

// Subject implements messaging.Event.
func (c Change) Subject() string {
	return Channel
}

// Payload implements messaging.Event.
func (c Change) Payload() ([]byte, error) {
	return json.Marshal(c)
}

// Handler reacts to a change notification.
type Handler func(ctx context.Context, change Change)

// Notifier is the publish/subscribe channel shared by views.
type Notifier interface {
	Publish(ctx context.Context, change Change) error
	Subscribe(ctx context.Context, handler Handler) (unsubscribe func(), err error)
}
