// Package remote talks to the catalog backend: a PostgREST table for poster
// records and an object-storage bucket for poster images.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"time"

	catalogerrors "github.com/Ad1th/Poster-Website/internal/errors"
	"github.com/Ad1th/Poster-Website/internal/poster"
	"github.com/Ad1th/Poster-Website/pkg/client/breaker"
	"github.com/Ad1th/Poster-Website/pkg/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	maxResponseBytes = 10 << 20
	maxErrorBody     = 512
)

// UploadResult identifies a stored image.
type UploadResult struct {
	StorageKey string `json:"storage_key"`
	PublicURL  string `json:"public_url"`
}

// Client performs exactly one remote round trip per operation and caches nothing.
type Client struct {
	http     *http.Client
	tableURL string
	layout   StorageLayout
	readKey  string
	writeKey string
	now      func() time.Time
	logger   *slog.Logger

	uploadFallbacks metric.Int64Counter
}

// NewHTTPClient builds the transport shared by the catalog client and the image
// prober: otel tracing, optionally behind a circuit breaker. There is no client
// timeout; catalog calls are bounded only by the caller's context.
func NewHTTPClient(cb config.CircuitBreakerConfig, logger *slog.Logger) *http.Client {
	var rt http.RoundTripper = http.DefaultTransport
	if cb.Enabled {
		rt = breaker.NewTransport("catalog-backend", cb, rt, logger)
	}
	return &http.Client{Transport: otelhttp.NewTransport(rt)}
}

func NewClient(cfg config.CatalogConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	meter := otel.Meter("github.com/Ad1th/Poster-Website/internal/remote")
	fallbacks, err := meter.Int64Counter("poster_upload_fallbacks",
		metric.WithDescription("Uploads that needed the base64 fallback strategy"))
	if err != nil {
		logger.Warn("failed to create upload fallback counter", "error", err)
	}
	return &Client{
		http:            httpClient,
		tableURL:        cfg.BaseURL + "/rest/v1/" + url.PathEscape(cfg.Table),
		layout:          StorageLayout{BaseURL: cfg.BaseURL, Bucket: cfg.Bucket},
		readKey:         cfg.AnonKey,
		writeKey:        cfg.WriteKey(),
		now:             time.Now,
		logger:          logger.With("component", "remote"),
		uploadFallbacks: fallbacks,
	}
}

// Layout exposes the storage URL conventions used by this client.
func (c *Client) Layout() StorageLayout {
	return c.layout
}

// List returns every entry, newest first. A failure means "catalog unavailable",
// never "catalog empty".
func (c *Client) List(ctx context.Context) ([]poster.Entry, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")
	body, err := c.do(ctx, "list posters", http.MethodGet, c.tableURL+"?"+q.Encode(), c.readKey, nil, nil)
	if err != nil {
		return nil, err
	}
	entries := make([]poster.Entry, 0)
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &catalogerrors.TransportError{Op: "list posters", Err: fmt.Errorf("decode response: %w", err)}
	}
	return entries, nil
}

// Create inserts a record and returns the row the backend stored.
func (c *Client) Create(ctx context.Context, in poster.NewEntry) (poster.Entry, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return poster.Entry{}, fmt.Errorf("encode poster: %w", err)
	}
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Prefer", "return=representation")
	body, err := c.do(ctx, "create poster", http.MethodPost, c.tableURL, c.writeKey, bytes.NewReader(payload), headers)
	if err != nil {
		return poster.Entry{}, err
	}
	var rows []poster.Entry
	if err := json.Unmarshal(body, &rows); err != nil {
		// a single object instead of an array is also acceptable
		var row poster.Entry
		if errObj := json.Unmarshal(body, &row); errObj != nil {
			return poster.Entry{}, &catalogerrors.TransportError{Op: "create poster", Err: fmt.Errorf("decode response: %w", err)}
		}
		rows = []poster.Entry{row}
	}
	if len(rows) == 0 || rows[0].ID == "" {
		return poster.Entry{}, &catalogerrors.TransportError{Op: "create poster", Err: errors.New("backend did not return the stored row")}
	}
	return rows[0], nil
}

type patchBody struct {
	poster.Patch
	UpdatedAt string `json:"updated_at"`
}

// Update applies a partial patch and stamps updated_at with the current time.
func (c *Client) Update(ctx context.Context, id poster.ID, patch poster.Patch) error {
	payload, err := json.Marshal(patchBody{Patch: patch, UpdatedAt: c.now().UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Prefer", "return=minimal")
	_, err = c.do(ctx, "update poster", http.MethodPatch, c.rowURL(id), c.writeKey, bytes.NewReader(payload), headers)
	return err
}

func (c *Client) Delete(ctx context.Context, id poster.ID) error {
	_, err := c.do(ctx, "delete poster", http.MethodDelete, c.rowURL(id), c.writeKey, nil, nil)
	return err
}

// UploadImage stores data under targetKey. The multipart upload is tried first;
// on any failure the same bytes are sent once more as base64 inside a JSON body.
// Only when both fail is an *errors.UploadError returned.
func (c *Client) UploadImage(ctx context.Context, data []byte, contentType, targetKey string) (UploadResult, error) {
	key := c.layout.NormalizeKey(targetKey)
	result := UploadResult{StorageKey: key, PublicURL: c.layout.PublicURL(key)}

	primaryErr := c.uploadMultipart(ctx, data, contentType, key)
	if primaryErr == nil {
		return result, nil
	}
	c.logger.WarnContext(ctx, "multipart upload failed, retrying as base64", "key", key, "error", primaryErr)
	if c.uploadFallbacks != nil {
		c.uploadFallbacks.Add(ctx, 1)
	}

	fallbackErr := c.uploadBase64(ctx, data, contentType, key)
	if fallbackErr == nil {
		return result, nil
	}
	return UploadResult{}, &catalogerrors.UploadError{Key: key, Primary: primaryErr, Fallback: fallbackErr}
}

func (c *Client) uploadMultipart(ctx context.Context, data []byte, contentType, key string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, path.Base(key)))
	partHeader.Set("Content-Type", contentType)
	part, err := mw.CreatePart(partHeader)
	if err != nil {
		return fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}
	headers := http.Header{}
	headers.Set("Content-Type", mw.FormDataContentType())
	_, err = c.do(ctx, "upload image", http.MethodPost, c.layout.ObjectURL(key), c.writeKey, &buf, headers)
	return err
}

type base64Upload struct {
	File        string `json:"file"`
	ContentType string `json:"contentType"`
}

func (c *Client) uploadBase64(ctx context.Context, data []byte, contentType, key string) error {
	payload, err := json.Marshal(base64Upload{File: base64.StdEncoding.EncodeToString(data), ContentType: contentType})
	if err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	_, err = c.do(ctx, "upload image (base64)", http.MethodPost, c.layout.ObjectURL(key), c.writeKey, bytes.NewReader(payload), headers)
	return err
}

// DeleteImage removes a stored object. Errors are returned; deciding whether
// they matter is the caller's business.
func (c *Client) DeleteImage(ctx context.Context, storageKey string) error {
	_, err := c.do(ctx, "delete image", http.MethodDelete, c.layout.ObjectURL(storageKey), c.writeKey, nil, nil)
	return err
}

func (c *Client) rowURL(id poster.ID) string {
	q := url.Values{}
	q.Set("id", "eq."+id.String())
	return c.tableURL + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, op, method, target, key string, body io.Reader, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &catalogerrors.TransportError{Op: op, Err: err}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &catalogerrors.TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &catalogerrors.TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &catalogerrors.TransportError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
	}
	c.logger.DebugContext(ctx, "remote call completed", "op", op, "status", resp.StatusCode)
	return data, nil
}
