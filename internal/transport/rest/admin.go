package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	catalogerrors "github.com/Ad1th/Poster-Website/internal/errors"
	"github.com/Ad1th/Poster-Website/internal/poster"
	"github.com/Ad1th/Poster-Website/pkg/auth"
	"github.com/Ad1th/Poster-Website/pkg/web"
)

// uploadField is the multipart field carrying the image file.
const uploadField = "file"

type loginRequest struct {
	Secret string `json:"secret"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login exchanges the admin secret for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	session, err := h.sessions.Login(req.Secret)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidSecret) {
			mLogger.WarnContext(r.Context(), "Rejected admin login")
			web.RespondError(w, mLogger, http.StatusUnauthorized, "Invalid password!")
			return
		}
		mLogger.ErrorContext(r.Context(), "Error issuing admin session", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, catalogerrors.UserMessage(err))
		return
	}
	mLogger.InfoContext(r.Context(), "Admin session issued", "expires_at", session.ExpiresAt)
	web.RespondJSON(w, mLogger, http.StatusOK, loginResponse{Token: session.Token, ExpiresAt: session.ExpiresAt})
}

// CreatePoster adds a catalog entry.
func (h *Handler) CreatePoster(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var in poster.NewEntry
	if !decodeBody(w, r, mLogger, &in) {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to create poster", "name", in.Name)
	created, err := h.catalog.Create(r.Context(), in)
	if err != nil {
		h.respondOperationError(w, r, mLogger, err)
		return
	}
	mLogger.InfoContext(r.Context(), "Poster created successfully", "ID", created.ID)
	web.RespondJSON(w, mLogger, http.StatusCreated, created)
}

// UpdatePoster applies a partial update and returns the reloaded entry.
func (h *Handler) UpdatePoster(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	var patch poster.Patch
	if !decodeBody(w, r, mLogger, &patch) {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to update poster", "ID", id)
	if err := h.catalog.Update(r.Context(), poster.ID(id), patch); err != nil {
		h.respondOperationError(w, r, mLogger, err)
		return
	}
	mLogger.InfoContext(r.Context(), "Poster updated successfully", "ID", id)
	h.respondEntry(w, mLogger, poster.ID(id))
}

// TogglePoster flips the availability flag of a loaded entry.
func (h *Handler) TogglePoster(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	if err := h.catalog.ToggleAvailability(r.Context(), poster.ID(id)); err != nil {
		h.respondOperationError(w, r, mLogger, err)
		return
	}
	mLogger.InfoContext(r.Context(), "Poster availability toggled", "ID", id)
	h.respondEntry(w, mLogger, poster.ID(id))
}

// DeletePoster removes an entry and its stored image.
func (h *Handler) DeletePoster(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	if err := h.catalog.Delete(r.Context(), poster.ID(id)); err != nil {
		h.respondOperationError(w, r, mLogger, err)
		return
	}
	mLogger.InfoContext(r.Context(), "Poster deleted successfully", "ID", id)
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage stores a multipart image and returns its storage key and public URL.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	if h.maxUploadBytes > 0 {
		// multipart framing needs headroom over the file limit
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			web.RespondError(w, mLogger, http.StatusRequestEntityTooLarge, "Image is too large")
			return
		}
		mLogger.WarnContext(r.Context(), "Missing upload file", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Please select an image file")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error reading upload", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid upload")
		return
	}
	result, err := h.catalog.UploadImage(r.Context(), header.Filename, data)
	if err != nil {
		h.respondOperationError(w, r, mLogger, err)
		return
	}
	mLogger.InfoContext(r.Context(), "Image uploaded successfully", "key", result.StorageKey)
	web.RespondJSON(w, mLogger, http.StatusCreated, result)
}

// Reload refetches the catalog from the backend.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	if err := h.catalog.Load(r.Context()); err != nil {
		mLogger.ErrorContext(r.Context(), "Catalog reload failed", "error", err)
		web.RespondError(w, mLogger, http.StatusServiceUnavailable, unavailableMessage)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]int{"count": len(h.catalog.Entries())})
}

// respondEntry writes the entry as reloaded after a mutation. The reload may
// have failed, which is not an error of the mutation.
func (h *Handler) respondEntry(w http.ResponseWriter, logger *slog.Logger, id poster.ID) {
	entry, ok := h.catalog.Entry(id)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	web.RespondJSON(w, logger, http.StatusOK, entry)
}

func decodeBody(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
