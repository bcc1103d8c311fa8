package rest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Ad1th/Poster-Website/internal/poster"
	"github.com/Ad1th/Poster-Website/internal/resolver"
	"github.com/Ad1th/Poster-Website/pkg/web"
	"github.com/shopspring/decimal"
)

// unavailableMessage is shown when the catalog could not be loaded.
const unavailableMessage = "Failed to load posters. Please try again later."

// PosterView is an entry as the storefront renders it.
type PosterView struct {
	ID          poster.ID           `json:"id"`
	Name        string              `json:"name"`
	Quantity    int                 `json:"quantity"`
	Price       decimal.NullDecimal `json:"price"`
	PriceLabel  string              `json:"price_label"`
	IsAvailable bool                `json:"is_available"`
	InStock     bool                `json:"in_stock"`
	Image       resolver.Resolution `json:"image"`
	CreatedAt   time.Time           `json:"created_at"`
}

func (h *Handler) toView(e poster.Entry) PosterView {
	return PosterView{
		ID:          e.ID,
		Name:        e.Name,
		Quantity:    e.Quantity,
		Price:       e.Price,
		PriceLabel:  e.PriceLabel(h.currency),
		IsAvailable: e.IsAvailable,
		InStock:     e.InStock(),
		Image:       h.images.Initial(e),
		CreatedAt:   e.CreatedAt,
	}
}

// ListPosters returns the catalog, newest first. If the last load failed it is
// retried once; a second failure is reported as 503, never as an empty list.
func (h *Handler) ListPosters(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	inStockOnly, _, ok := web.ParseOptionalBool(r, w, mLogger, "in_stock")
	if !ok {
		return
	}
	if h.catalog.LastLoadError() != nil {
		if err := h.catalog.Load(r.Context()); err != nil {
			mLogger.WarnContext(r.Context(), "Catalog unavailable", "error", err)
			web.RespondError(w, mLogger, http.StatusServiceUnavailable, unavailableMessage)
			return
		}
	}
	entries := h.catalog.Entries()
	views := make([]PosterView, 0, len(entries))
	for _, e := range entries {
		if inStockOnly && !e.InStock() {
			continue
		}
		views = append(views, h.toView(e))
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved poster list", "count", len(views))
	web.RespondJSON(w, mLogger, http.StatusOK, views)
}

// GetPoster returns one entry from the loaded catalog.
func (h *Handler) GetPoster(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, h.toView(entry))
}

// ResolveImage probes the fallback chain server-side and returns the first
// candidate that loads, or the placeholder.
func (h *Handler) ResolveImage(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	res := h.images.Watch(r.Context(), entry, h.probe)
	web.RespondJSON(w, mLogger, http.StatusOK, res)
}

// ReportImageFailure records that the current candidate failed to load in the
// browser and returns the next one to try.
func (h *Handler) ReportImageFailure(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if !h.images.Tracked(entry) {
		h.images.Resolve(entry)
	}
	next, _ := h.images.Fail(entry.ID)
	web.RespondJSON(w, mLogger, http.StatusOK, next)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (poster.Entry, bool) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return poster.Entry{}, false
	}
	if h.catalog.LastLoadError() != nil {
		web.RespondError(w, mLogger, http.StatusServiceUnavailable, unavailableMessage)
		return poster.Entry{}, false
	}
	entry, found := h.catalog.Entry(poster.ID(id))
	if !found {
		mLogger.WarnContext(r.Context(), "Poster not found", "ID", id)
		web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Poster with ID %s not found", id))
		return poster.Entry{}, false
	}
	return entry, true
}
