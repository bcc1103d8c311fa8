package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	catalogerrors "github.com/Ad1th/Poster-Website/internal/errors"
	"github.com/Ad1th/Poster-Website/internal/poster"
	"github.com/Ad1th/Poster-Website/internal/remote"
	"github.com/Ad1th/Poster-Website/internal/resolver"
	"github.com/Ad1th/Poster-Website/pkg/auth"
	"github.com/Ad1th/Poster-Website/pkg/config"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminSecret = "let-me-in"

// mockCatalog is a mock implementation of the Catalog interface
type mockCatalog struct {
	entries  []poster.Entry
	loadErr  error
	reloadFn func() error
	created  poster.Entry
	uploaded remote.UploadResult
	error    error

	lastPatch  poster.Patch
	lastUpload []byte
	deleted    []poster.ID
}

func (m *mockCatalog) Load(context.Context) error {
	if m.reloadFn != nil {
		m.loadErr = m.reloadFn()
	}
	return m.loadErr
}

func (m *mockCatalog) Entries() []poster.Entry {
	if m.loadErr != nil {
		return nil
	}
	return m.entries
}

func (m *mockCatalog) Entry(id poster.ID) (poster.Entry, bool) {
	for _, e := range m.Entries() {
		if e.ID == id {
			return e, true
		}
	}
	return poster.Entry{}, false
}

func (m *mockCatalog) LastLoadError() error { return m.loadErr }

func (m *mockCatalog) Create(_ context.Context, in poster.NewEntry) (poster.Entry, error) {
	if err := in.Validate(); err != nil {
		return poster.Entry{}, err
	}
	if m.error != nil {
		return poster.Entry{}, m.error
	}
	return m.created, nil
}

func (m *mockCatalog) Update(_ context.Context, _ poster.ID, patch poster.Patch) error {
	m.lastPatch = patch
	return m.error
}

func (m *mockCatalog) ToggleAvailability(_ context.Context, id poster.ID) error {
	if m.error != nil {
		return m.error
	}
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].IsAvailable = !m.entries[i].IsAvailable
		}
	}
	return nil
}

func (m *mockCatalog) Delete(_ context.Context, id poster.ID) error {
	if m.error != nil {
		return m.error
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockCatalog) UploadImage(_ context.Context, _ string, data []byte) (remote.UploadResult, error) {
	m.lastUpload = data
	if m.error != nil {
		return remote.UploadResult{}, m.error
	}
	return m.uploaded, nil
}

type secretChecker string

func (s secretChecker) Verify(secret string) bool { return secret == string(s) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var layout = remote.StorageLayout{BaseURL: "https://example.supabase.co", Bucket: "images"}

func sampleEntries() []poster.Entry {
	return []poster.Entry{
		{
			ID: "2", Name: "Dune", Quantity: 3, IsAvailable: true,
			Price:     decimal.NewNullDecimal(decimal.RequireFromString("499")),
			ImagePath: "posters/1_dune.jpg", ImageURL: "https://cdn.example.com/dune.jpg",
		},
		{ID: "1", Name: "Alien", Quantity: 0, IsAvailable: true},
	}
}

func newTestHandler(t *testing.T, catalog *mockCatalog, probe resolver.LoadFunc) *chi.Mux {
	t.Helper()
	if probe == nil {
		probe = func(context.Context, string) error { return nil }
	}
	sessions := auth.NewSessionIssuer(secretChecker(adminSecret), config.AuthConfig{
		SigningKey: strings.Repeat("k", 32),
		Issuer:     "poster-admin",
		SessionTTL: time.Hour,
	})
	h := NewHandler(catalog, resolver.New(layout, time.Second, discardLogger()), probe, sessions,
		Options{Currency: "₹", MaxUploadBytes: 1 << 20}, discardLogger())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func serve(r http.Handler, method, target string, body io.Reader, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func login(t *testing.T, r http.Handler) string {
	t.Helper()
	rr := serve(r, http.MethodPost, "/api/v1/admin/session", strings.NewReader(`{"secret":"`+adminSecret+`"}`), "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHandler_ListPosters(t *testing.T) {
	// given
	r := newTestHandler(t, &mockCatalog{entries: sampleEntries()}, nil)

	// when
	rr := serve(r, http.MethodGet, "/api/v1/posters", nil, "")

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	var views []PosterView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Len(t, views, 2)

	assert.Equal(t, poster.ID("2"), views[0].ID)
	assert.Equal(t, "₹499", views[0].PriceLabel)
	assert.True(t, views[0].InStock)
	assert.Equal(t, resolver.SourceStorage, views[0].Image.Source)
	assert.Equal(t, "https://example.supabase.co/storage/v1/object/public/images/posters/1_dune.jpg", views[0].Image.URL)

	assert.Equal(t, "Price TBD", views[1].PriceLabel)
	assert.False(t, views[1].InStock, "available but zero quantity is out of stock")
	assert.Equal(t, resolver.SourcePlaceholder, views[1].Image.Source)
	assert.True(t, views[1].Image.Terminal)
}

func TestHandler_ListPostersInStockFilter(t *testing.T) {
	r := newTestHandler(t, &mockCatalog{entries: sampleEntries()}, nil)

	rr := serve(r, http.MethodGet, "/api/v1/posters?in_stock=true", nil, "")

	require.Equal(t, http.StatusOK, rr.Code)
	var views []PosterView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Dune", views[0].Name)

	rr = serve(r, http.MethodGet, "/api/v1/posters?in_stock=maybe", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_ListPostersUnavailable(t *testing.T) {
	tests := []struct {
		name       string
		catalog    *mockCatalog
		wantStatus int
	}{
		{
			name: "retry fails",
			catalog: &mockCatalog{
				entries:  sampleEntries(),
				loadErr:  errors.New("connection refused"),
				reloadFn: func() error { return errors.New("still down") },
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "retry recovers",
			catalog: &mockCatalog{
				entries:  sampleEntries(),
				loadErr:  errors.New("connection refused"),
				reloadFn: func() error { return nil },
			},
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestHandler(t, tt.catalog, nil)

			rr := serve(r, http.MethodGet, "/api/v1/posters", nil, "")

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.JSONEq(t, `{"error":"Failed to load posters. Please try again later."}`, rr.Body.String())
			}
		})
	}
}

func TestHandler_GetPosterNotFound(t *testing.T) {
	r := newTestHandler(t, &mockCatalog{entries: sampleEntries()}, nil)

	rr := serve(r, http.MethodGet, "/api/v1/posters/42", nil, "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Poster with ID 42 not found"}`, rr.Body.String())
}

func TestHandler_ReportImageFailureWalksChain(t *testing.T) {
	// given
	r := newTestHandler(t, &mockCatalog{entries: sampleEntries()}, nil)
	next := func() resolver.Resolution {
		rr := serve(r, http.MethodPost, "/api/v1/posters/2/image/failure", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
		var res resolver.Resolution
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		return res
	}

	// when
	first := next()
	second := next()
	third := next()

	// then
	assert.Equal(t, resolver.SourceURL, first.Source)
	assert.Equal(t, "https://cdn.example.com/dune.jpg", first.URL)
	assert.Equal(t, 1, first.Attempt)
	assert.False(t, first.Terminal)

	assert.Equal(t, resolver.SourcePlaceholder, second.Source)
	assert.True(t, second.Terminal)
	assert.Equal(t, resolver.Placeholder, second.URL)

	assert.Equal(t, resolver.SourcePlaceholder, third.Source, "detached chain keeps the placeholder")
}

func TestHandler_ReportImageFailureRestartsChainAfterImageChange(t *testing.T) {
	// given
	catalog := &mockCatalog{entries: sampleEntries()}
	r := newTestHandler(t, catalog, nil)
	for range 2 {
		require.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/api/v1/posters/2/image/failure", nil, "").Code)
	}
	catalog.entries[0].ImagePath = "posters/2_dune-new.jpg"
	catalog.entries[0].ImageURL = "https://cdn.example.com/dune-new.jpg"

	// when
	rr := serve(r, http.MethodPost, "/api/v1/posters/2/image/failure", nil, "")

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	var res resolver.Resolution
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, resolver.SourceURL, res.Source)
	assert.Equal(t, "https://cdn.example.com/dune-new.jpg", res.URL)
	assert.False(t, res.Terminal)
}

func TestHandler_ResolveImageKeepsSettledChains(t *testing.T) {
	// given
	var probed []string
	probe := func(_ context.Context, url string) error {
		probed = append(probed, url)
		return errors.New("404")
	}
	r := newTestHandler(t, &mockCatalog{entries: sampleEntries()}, probe)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/posters/2/image", nil, "").Code)
	require.Len(t, probed, 2)

	// when
	rr := serve(r, http.MethodGet, "/api/v1/posters/2/image", nil, "")
	failure := serve(r, http.MethodPost, "/api/v1/posters/2/image/failure", nil, "")

	// then
	var res, next resolver.Resolution
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.NoError(t, json.Unmarshal(failure.Body.Bytes(), &next))
	assert.Equal(t, resolver.SourcePlaceholder, res.Source)
	assert.Len(t, probed, 2, "placeholder is not probed again")
	assert.Equal(t, resolver.SourcePlaceholder, next.Source)
}

func TestHandler_ResolveImage(t *testing.T) {
	// given
	var probed []string
	probe := func(_ context.Context, url string) error {
		probed = append(probed, url)
		if strings.Contains(url, "/storage/") {
			return errors.New("404")
		}
		return nil
	}
	r := newTestHandler(t, &mockCatalog{entries: sampleEntries()}, probe)

	// when
	rr := serve(r, http.MethodGet, "/api/v1/posters/2/image", nil, "")

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	var res resolver.Resolution
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, resolver.SourceURL, res.Source)
	assert.Len(t, probed, 2)
}

func TestHandler_Login(t *testing.T) {
	r := newTestHandler(t, &mockCatalog{}, nil)

	rr := serve(r, http.MethodPost, "/api/v1/admin/session", strings.NewReader(`{"secret":"wrong"}`), "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid password!"}`, rr.Body.String())

	rr = serve(r, http.MethodPost, "/api/v1/admin/session", strings.NewReader(`{`), "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.NotEmpty(t, login(t, r))
}

func TestHandler_AdminRoutesRequireSession(t *testing.T) {
	r := newTestHandler(t, &mockCatalog{entries: sampleEntries()}, nil)

	tests := []struct {
		method, target, token, wantError string
	}{
		{http.MethodPost, "/api/v1/admin/posters", "", "Unauthorized: missing bearer token"},
		{http.MethodDelete, "/api/v1/admin/posters/2", "garbage", "Unauthorized: invalid or expired session"},
		{http.MethodPost, "/api/v1/admin/reload", "", "Unauthorized: missing bearer token"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rr := serve(r, tt.method, tt.target, strings.NewReader(`{}`), tt.token)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.JSONEq(t, `{"error":"`+tt.wantError+`"}`, rr.Body.String())
		})
	}
}

func TestHandler_CreatePoster(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		catalog    *mockCatalog
		wantStatus int
		wantBody   string
	}{
		{
			name:       "created",
			body:       `{"name":"Dune","quantity":3,"price":499,"is_available":true}`,
			catalog:    &mockCatalog{created: poster.Entry{ID: "7", Name: "Dune", Quantity: 3, IsAvailable: true}},
			wantStatus: http.StatusCreated,
			wantBody:   `{"id":"7","name":"Dune","quantity":3,"price":null,"is_available":true,"created_at":"0001-01-01T00:00:00Z"}`,
		},
		{
			name:       "validation error",
			body:       `{"name":"  ","quantity":-1}`,
			catalog:    &mockCatalog{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "both image sources",
			body:       `{"name":"Dune","image_path":"posters/1_dune.jpg","image_url":"https://cdn.example.com/dune.jpg"}`,
			catalog:    &mockCatalog{created: poster.Entry{ID: "7"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"validation_errors":{"image_url":"must not be set together with image_path"}}`,
		},
		{
			name:       "malformed body",
			body:       `{"name":`,
			catalog:    &mockCatalog{},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid request body"}`,
		},
		{
			name: "backend unavailable",
			body: `{"name":"Dune","quantity":3}`,
			catalog: &mockCatalog{error: &catalogerrors.TransportError{
				Op: "create", StatusCode: http.StatusInternalServerError, Body: "boom",
			}},
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"The catalog service is unavailable. Please try again later."}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			r := newTestHandler(t, tt.catalog, nil)
			token := login(t, r)

			// when
			rr := serve(r, http.MethodPost, "/api/v1/admin/posters", strings.NewReader(tt.body), token)

			// then
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rr.Body.String())
			}
			if tt.name == "validation error" {
				var resp map[string]map[string]string
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Contains(t, resp["validation_errors"], "name")
				assert.Contains(t, resp["validation_errors"], "quantity")
			}
		})
	}
}

func TestHandler_UpdateAndToggle(t *testing.T) {
	// given
	catalog := &mockCatalog{entries: sampleEntries()}
	r := newTestHandler(t, catalog, nil)
	token := login(t, r)

	// when
	rr := serve(r, http.MethodPatch, "/api/v1/admin/posters/2", strings.NewReader(`{"quantity":9}`), token)

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, catalog.lastPatch.Quantity)
	assert.Equal(t, 9, *catalog.lastPatch.Quantity)

	// when
	rr = serve(r, http.MethodPost, "/api/v1/admin/posters/2/toggle", nil, token)

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	var entry poster.Entry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entry))
	assert.False(t, entry.IsAvailable)
}

func TestHandler_UpdateNotFound(t *testing.T) {
	catalog := &mockCatalog{error: catalogerrors.ErrPosterNotFound}
	r := newTestHandler(t, catalog, nil)
	token := login(t, r)

	rr := serve(r, http.MethodPatch, "/api/v1/admin/posters/99", strings.NewReader(`{"quantity":1}`), token)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Poster not found."}`, rr.Body.String())
}

func TestHandler_DeletePoster(t *testing.T) {
	catalog := &mockCatalog{entries: sampleEntries()}
	r := newTestHandler(t, catalog, nil)
	token := login(t, r)

	rr := serve(r, http.MethodDelete, "/api/v1/admin/posters/2", nil, token)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []poster.ID{"2"}, catalog.deleted)
}

func TestHandler_UploadImage(t *testing.T) {
	// given
	catalog := &mockCatalog{uploaded: remote.UploadResult{
		StorageKey: "posters/1_dune.png",
		PublicURL:  "https://example.supabase.co/storage/v1/object/public/images/posters/1_dune.png",
	}}
	r := newTestHandler(t, catalog, nil)
	token := login(t, r)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "dune.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("image-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	// when
	r.ServeHTTP(rr, req)

	// then
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, []byte("image-bytes"), catalog.lastUpload)
	var result remote.UploadResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, "posters/1_dune.png", result.StorageKey)
}

func TestHandler_UploadImageFailure(t *testing.T) {
	catalog := &mockCatalog{error: &catalogerrors.UploadError{
		Key: "posters/1_dune.png", Primary: errors.New("400"), Fallback: errors.New("400"),
	}}
	r := newTestHandler(t, catalog, nil)
	token := login(t, r)

	rr := serve(r, http.MethodPost, "/api/v1/admin/images", strings.NewReader("not multipart"), token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "dune.png")
	_, _ = part.Write([]byte("x"))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"Image upload failed. Please try again."}`, rec.Body.String())
}

func TestHandler_HealthCheck(t *testing.T) {
	r := newTestHandler(t, &mockCatalog{entries: sampleEntries()}, nil)

	rr := serve(r, http.MethodGet, "/healthz", nil, "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","catalog":"loaded","entries":2}`, rr.Body.String())
}
