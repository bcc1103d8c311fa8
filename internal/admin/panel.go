// Package admin exposes the catalog mutations reserved for an authenticated
// administrator.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	catalogerrors "github.com/Ad1th/Poster-Website/internal/errors"
	"github.com/Ad1th/Poster-Website/internal/poster"
	"github.com/Ad1th/Poster-Website/internal/remote"
	"github.com/Ad1th/Poster-Website/pkg/auth"
)

// Catalog is the part of catalog.Store the panel drives.
type Catalog interface {
	Load(ctx context.Context) error
	Entries() []poster.Entry
	Entry(id poster.ID) (poster.Entry, bool)
	LastLoadError() error
	Create(ctx context.Context, in poster.NewEntry) (poster.Entry, error)
	Update(ctx context.Context, id poster.ID, patch poster.Patch) error
	ToggleAvailability(ctx context.Context, id poster.ID) error
	Delete(ctx context.Context, id poster.ID) error
	UploadImage(ctx context.Context, filename string, data []byte) (remote.UploadResult, error)
}

// ImageRemover deletes an orphaned upload.
type ImageRemover interface {
	DeleteImage(ctx context.Context, storageKey string) error
}

// SessionChecker validates a session token.
type SessionChecker interface {
	Check(ctx context.Context, session auth.Session) error
}

// ImageFile is an image to upload alongside a new poster.
type ImageFile struct {
	Filename string
	Data     []byte
}

// Panel performs admin operations for one session.
type Panel struct {
	catalog Catalog
	images  ImageRemover
	session auth.Session
	checker SessionChecker
	now     func() time.Time
	logger  *slog.Logger
}

// NewPanel refuses to build a panel for a session the checker rejects.
func NewPanel(ctx context.Context, catalog Catalog, images ImageRemover, session auth.Session, checker SessionChecker, logger *slog.Logger) (*Panel, error) {
	if err := checker.Check(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", catalogerrors.ErrUnauthorized, err)
	}
	return &Panel{
		catalog: catalog,
		images:  images,
		session: session,
		checker: checker,
		now:     time.Now,
		logger:  logger.With("component", "admin"),
	}, nil
}

func (p *Panel) authorize() error {
	if !p.session.Valid(p.now()) {
		return catalogerrors.ErrUnauthorized
	}
	return nil
}

// Posters reloads and returns the catalog.
func (p *Panel) Posters(ctx context.Context) ([]poster.Entry, error) {
	if err := p.authorize(); err != nil {
		return nil, err
	}
	if err := p.catalog.Load(ctx); err != nil {
		return nil, err
	}
	return p.catalog.Entries(), nil
}

// AddPoster uploads image (if any), then creates the poster pointing at it. An
// image uploaded for a poster that then fails to be created is removed again.
func (p *Panel) AddPoster(ctx context.Context, in poster.NewEntry, image *ImageFile) (poster.Entry, error) {
	if err := p.authorize(); err != nil {
		return poster.Entry{}, err
	}
	if err := in.Validate(); err != nil {
		return poster.Entry{}, err
	}
	if image != nil && (in.ImageURL != "" || in.ImagePath != "") {
		return poster.Entry{}, catalogerrors.NewValidationError("image_url", "a poster with an uploaded image has no other image source")
	}
	var uploaded string
	if image != nil {
		result, err := p.catalog.UploadImage(ctx, image.Filename, image.Data)
		if err != nil {
			return poster.Entry{}, err
		}
		uploaded = result.StorageKey
		in.ImagePath = result.StorageKey
	}
	created, err := p.catalog.Create(ctx, in)
	if err != nil {
		if uploaded != "" && p.images != nil {
			if cleanupErr := p.images.DeleteImage(ctx, uploaded); cleanupErr != nil {
				p.logger.WarnContext(ctx, "Failed to remove orphaned upload", "key", uploaded, "error", cleanupErr)
			}
		}
		return poster.Entry{}, err
	}
	return created, nil
}

// UploadImage stores an image without attaching it to any poster.
func (p *Panel) UploadImage(ctx context.Context, image ImageFile) (remote.UploadResult, error) {
	if err := p.authorize(); err != nil {
		return remote.UploadResult{}, err
	}
	return p.catalog.UploadImage(ctx, image.Filename, image.Data)
}

func (p *Panel) UpdatePoster(ctx context.Context, id poster.ID, patch poster.Patch) error {
	if err := p.authorize(); err != nil {
		return err
	}
	return p.catalog.Update(ctx, id, patch)
}

// ReplaceImage uploads a new image and points the poster at it, clearing any
// external image URL. The previous stored image is removed on a best-effort basis.
func (p *Panel) ReplaceImage(ctx context.Context, id poster.ID, image ImageFile) (remote.UploadResult, error) {
	if err := p.authorize(); err != nil {
		return remote.UploadResult{}, err
	}
	if err := p.catalog.Load(ctx); err != nil {
		return remote.UploadResult{}, err
	}
	current, ok := p.catalog.Entry(id)
	if !ok {
		return remote.UploadResult{}, fmt.Errorf("poster %s: %w", id, catalogerrors.ErrPosterNotFound)
	}
	result, err := p.catalog.UploadImage(ctx, image.Filename, image.Data)
	if err != nil {
		return remote.UploadResult{}, err
	}
	key, noURL := result.StorageKey, ""
	if err := p.catalog.Update(ctx, id, poster.Patch{ImagePath: &key, ImageURL: &noURL}); err != nil {
		return remote.UploadResult{}, err
	}
	if current.HasImagePath() && current.ImagePath != key && p.images != nil {
		if err := p.images.DeleteImage(ctx, current.ImagePath); err != nil {
			p.logger.WarnContext(ctx, "Failed to remove replaced image", "key", current.ImagePath, "error", err)
		}
	}
	return result, nil
}

func (p *Panel) ToggleAvailability(ctx context.Context, id poster.ID) error {
	if err := p.authorize(); err != nil {
		return err
	}
	return p.catalog.ToggleAvailability(ctx, id)
}

func (p *Panel) DeletePoster(ctx context.Context, id poster.ID) error {
	if err := p.authorize(); err != nil {
		return err
	}
	return p.catalog.Delete(ctx, id)
}
