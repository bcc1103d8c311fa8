package catalog

import (
	"context"
	"fmt"

	"github.com/Ad1th/Poster-Website/internal/notify"
)

// Watch reloads store whenever another view reports a change. Changes published
// by store itself are ignored because it reloaded before publishing.
func Watch(ctx context.Context, store *Store, notifier notify.Notifier) (func(), error) {
	unsubscribe, err := notifier.Subscribe(ctx, func(ctx context.Context, change notify.Change) {
		if change.Origin != "" && change.Origin == store.Origin() {
			return
		}
		store.logger.DebugContext(ctx, "Catalog changed elsewhere, reloading", "origin", change.Origin, "op", change.Op)
		_ = store.Load(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("watch catalog changes: %w", err)
	}
	return unsubscribe, nil
}
