// Package catalog holds one view's in-memory copy of the poster catalog and
// routes every mutation through the remote backend.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Ad1th/Poster-Website/internal/imageprep"
	"github.com/Ad1th/Poster-Website/internal/notify"
	"github.com/Ad1th/Poster-Website/internal/poster"
	"github.com/Ad1th/Poster-Website/internal/remote"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Backend is the remote source of truth.
type Backend interface {
	List(ctx context.Context) ([]poster.Entry, error)
	Create(ctx context.Context, in poster.NewEntry) (poster.Entry, error)
	Update(ctx context.Context, id poster.ID, patch poster.Patch) error
	Delete(ctx context.Context, id poster.ID) error
	UploadImage(ctx context.Context, data []byte, contentType, targetKey string) (remote.UploadResult, error)
	DeleteImage(ctx context.Context, storageKey string) error
}

// Snapshotter receives a copy of every successfully loaded catalog.
type Snapshotter interface {
	SaveSnapshot(entries []poster.Entry, at time.Time) error
}

// Store is safe for concurrent use. entries is only ever replaced wholesale by
// Load; mutations are not serialized, so the visible state is whatever the most
// recently completed Load returned.
type Store struct {
	backend  Backend
	notifier notify.Notifier
	mirror   Snapshotter
	limits   imageprep.Limits
	origin   string
	now      func() time.Time
	logger   *slog.Logger

	mutations metric.Int64Counter

	mu          sync.RWMutex
	entries     []poster.Entry
	lastLoadErr error
}

type Option func(*Store)

// WithNotifier publishes a change after every completed mutation.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithMirror copies every loaded catalog to m.
func WithMirror(m Snapshotter) Option {
	return func(s *Store) { s.mirror = m }
}

// WithImageLimits bounds uploads accepted by UploadImage.
func WithImageLimits(l imageprep.Limits) Option {
	return func(s *Store) { s.limits = l }
}

// WithOrigin sets the identifier stamped on published changes.
func WithOrigin(origin string) Option {
	return func(s *Store) { s.origin = origin }
}

func NewStore(backend Backend, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		origin:  uuid.NewString(),
		now:     time.Now,
		logger:  logger.With("component", "catalog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	meter := otel.Meter("github.com/Ad1th/Poster-Website/internal/catalog")
	counter, err := meter.Int64Counter("poster_catalog_mutations",
		metric.WithDescription("Completed catalog mutations by operation"))
	if err != nil {
		s.logger.Warn("failed to create mutation counter", "error", err)
	}
	s.mutations = counter
	return s
}

// Origin identifies this store in change notifications.
func (s *Store) Origin() string {
	return s.origin
}

// Load fetches the whole catalog. On failure the entries are emptied and the
// error is recorded: the view shows "unavailable", never stale data.
func (s *Store) Load(ctx context.Context) error {
	entries, err := s.backend.List(ctx)

	s.mu.Lock()
	if err != nil {
		s.entries = nil
		s.lastLoadErr = err
	} else {
		s.entries = entries
		s.lastLoadErr = nil
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load catalog", "error", err)
		return fmt.Errorf("load catalog: %w", err)
	}
	s.logger.DebugContext(ctx, "Catalog loaded", "count", len(entries))
	if s.mirror != nil {
		if err := s.mirror.SaveSnapshot(entries, s.now()); err != nil {
			s.logger.WarnContext(ctx, "Failed to mirror catalog snapshot", "error", err)
		}
	}
	return nil
}

// Entries returns a copy of the current entries in backend order.
func (s *Store) Entries() []poster.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Entry looks up one entry in the current in-memory set.
func (s *Store) Entry(id poster.ID) (poster.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return poster.Entry{}, false
}

// LastLoadError is the error of the most recent Load, or nil if it succeeded.
func (s *Store) LastLoadError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLoadErr
}

// Create validates in, creates it remotely and reloads.
func (s *Store) Create(ctx context.Context, in poster.NewEntry) (poster.Entry, error) {
	if err := in.Validate(); err != nil {
		return poster.Entry{}, err
	}
	created, err := s.backend.Create(ctx, in)
	if err != nil {
		return poster.Entry{}, fmt.Errorf("create poster: %w", err)
	}
	s.afterMutation(ctx, notify.OpCreate, created.ID)
	return created, nil
}

// Update validates patch, applies it remotely and reloads.
func (s *Store) Update(ctx context.Context, id poster.ID, patch poster.Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if err := s.backend.Update(ctx, id, patch); err != nil {
		return fmt.Errorf("update poster %s: %w", id, err)
	}
	s.afterMutation(ctx, notify.OpUpdate, id)
	return nil
}

// ToggleAvailability flips is_available based on the in-memory value. An id that
// is not loaded is a no-op: a concurrent writer may have deleted it.
func (s *Store) ToggleAvailability(ctx context.Context, id poster.ID) error {
	entry, ok := s.Entry(id)
	if !ok {
		s.logger.InfoContext(ctx, "Toggle skipped, poster not loaded", "id", id)
		return nil
	}
	if err := s.backend.Update(ctx, id, poster.Availability(!entry.IsAvailable)); err != nil {
		return fmt.Errorf("toggle poster %s: %w", id, err)
	}
	s.afterMutation(ctx, notify.OpToggle, id)
	return nil
}

// Delete removes the record, then best-effort removes its stored image. A failed
// image cleanup is logged and never fails the delete.
func (s *Store) Delete(ctx context.Context, id poster.ID) error {
	entry, found := s.Entry(id)
	if err := s.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete poster %s: %w", id, err)
	}
	if found && entry.HasImagePath() {
		if err := s.backend.DeleteImage(ctx, entry.ImagePath); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete poster image", "id", id, "key", entry.ImagePath, "error", err)
		}
	}
	s.afterMutation(ctx, notify.OpDelete, id)
	return nil
}

// UploadImage checks and stores an image under a key derived from filename.
// It does not touch the catalog.
func (s *Store) UploadImage(ctx context.Context, filename string, data []byte) (remote.UploadResult, error) {
	img, err := imageprep.Prepare(data, s.limits)
	if err != nil {
		return remote.UploadResult{}, err
	}
	if img.Resized {
		s.logger.InfoContext(ctx, "Downscaled upload", "filename", filename, "width", img.Width, "height", img.Height)
	}
	key := remote.StorageKey(s.now(), filename)
	result, err := s.backend.UploadImage(ctx, img.Data, img.ContentType, key)
	if err != nil {
		return remote.UploadResult{}, fmt.Errorf("upload image: %w", err)
	}
	return result, nil
}

// afterMutation reloads and tells other views. The mutation already happened,
// so neither step can fail it: a failed reload is visible through LastLoadError.
func (s *Store) afterMutation(ctx context.Context, op notify.Op, id poster.ID) {
	if s.mutations != nil {
		s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", string(op))))
	}
	if err := s.Load(ctx); err != nil {
		s.logger.WarnContext(ctx, "Reload after mutation failed", "op", op, "id", id, "error", err)
	}
	if s.notifier == nil {
		return
	}
	change := notify.Change{Origin: s.origin, Op: op, ID: id, At: s.now().UTC()}
	if err := s.notifier.Publish(ctx, change); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish catalog change", "op", op, "error", err)
	}
}
