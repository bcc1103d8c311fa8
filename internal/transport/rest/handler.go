// Package rest provides the HTTP handlers of the storefront and admin views.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	catalogerrors "github.com/Ad1th/Poster-Website/internal/errors"
	"github.com/Ad1th/Poster-Website/internal/poster"
	"github.com/Ad1th/Poster-Website/internal/remote"
	"github.com/Ad1th/Poster-Website/internal/resolver"
	"github.com/Ad1th/Poster-Website/pkg/auth"
	"github.com/Ad1th/Poster-Website/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Catalog is the view's catalog store.
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

// ImageResolver picks display images and walks their fallback chain.
type ImageResolver interface {
	Initial(entry poster.Entry) resolver.Resolution
	Resolve(entry poster.Entry) resolver.Resolution
	Fail(id poster.ID) (resolver.Resolution, bool)
	Tracked(entry poster.Entry) bool
	Watch(ctx context.Context, entry poster.Entry, load resolver.LoadFunc) resolver.Resolution
}

// SessionIssuer exchanges the admin secret for a session and verifies it later.
type SessionIssuer interface {
	auth.Verifier
	Login(secret string) (auth.Session, error)
}

type Handler struct {
	catalog        Catalog
	images         ImageResolver
	probe          resolver.LoadFunc
	sessions       SessionIssuer
	currency       string
	maxUploadBytes int64
	logger         *slog.Logger
}

// Options carries the view settings of a Handler.
type Options struct {
	Currency       string
	MaxUploadBytes int64
}

// NewHandler wires the handlers. probe checks whether a candidate image loads.
func NewHandler(catalog Catalog, images ImageResolver, probe resolver.LoadFunc, sessions SessionIssuer, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		catalog:        catalog,
		images:         images,
		probe:          probe,
		sessions:       sessions,
		currency:       opts.Currency,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the storefront, admin and health routes.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/v1/posters", func(r chi.Router) {
		r.Get("/", h.ListPosters)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetPoster)
			r.Get("/image", h.ResolveImage)
			r.Post("/image/failure", h.ReportImageFailure)
		})
	})
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Post("/session", h.Login)
		r.Group(func(r chi.Router) {
			r.Use(web.AuthMiddleware(h.sessions, h.logger))
			r.Post("/posters", h.CreatePoster)
			r.Patch("/posters/{id}", h.UpdatePoster)
			r.Post("/posters/{id}/toggle", h.TogglePoster)
			r.Delete("/posters/{id}", h.DeletePoster)
			r.Post("/images", h.UploadImage)
			r.Post("/reload", h.Reload)
		})
	})
	r.Get("/healthz", h.HealthCheck)
}

// HealthCheck reports liveness and whether the catalog is currently loaded.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	catalogState := "loaded"
	if h.catalog.LastLoadError() != nil {
		catalogState = "unavailable"
	}
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{
		"status":  "ok",
		"catalog": catalogState,
		"entries": len(h.catalog.Entries()),
	})
}

// respondOperationError maps a catalog error to a status code and a transient,
// user-facing message.
func (h *Handler) respondOperationError(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, err error) {
	var validation *catalogerrors.ValidationError
	var upload *catalogerrors.UploadError
	var transport *catalogerrors.TransportError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", validation.Fields)
		web.RespondValidationErrors(w, mLogger, validation.Fields)
		return
	case errors.Is(err, catalogerrors.ErrPosterNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalogerrors.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.As(err, &upload), errors.As(err, &transport):
		status = http.StatusBadGateway
	}
	mLogger.ErrorContext(r.Context(), "Catalog operation failed", "status", status, "error", err)
	web.RespondError(w, mLogger, status, catalogerrors.UserMessage(err))
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
