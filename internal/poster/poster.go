// Package poster defines the catalog entry model shared by every view.
package poster

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ID is the backend-assigned identifier. The backend may encode it as a JSON
// number or a string; it is always carried as an opaque string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("poster id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Entry is one catalog record as stored by the remote backend.
type Entry struct {
	ID          ID                  `json:"id"`
	Name        string              `json:"name"`
	Quantity    int                 `json:"quantity"`
	Price       decimal.NullDecimal `json:"price"`
	IsAvailable bool                `json:"is_available"`
	ImagePath   string              `json:"image_path,omitempty"`
	ImageURL    string              `json:"image_url,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at,omitzero"`
}

// wireEntry mirrors the nullable columns of the posters table.
type wireEntry struct {
	ID          ID                  `json:"id"`
	Name        string              `json:"name"`
	Quantity    *int                `json:"quantity"`
	Price       decimal.NullDecimal `json:"price"`
	IsAvailable *bool               `json:"is_available"`
	ImagePath   *string             `json:"image_path"`
	ImageURL    *string             `json:"image_url"`
	CreatedAt   *string             `json:"created_at"`
	UpdatedAt   *string             `json:"updated_at"`
}

// UnmarshalJSON reads a backend row. A null or missing quantity is 0 and blank
// image references are treated as unset.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	created, err := parseTimestamp(w.CreatedAt)
	if err != nil {
		return fmt.Errorf("created_at: %w", err)
	}
	updated, err := parseTimestamp(w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updated_at: %w", err)
	}
	*e = Entry{
		ID:          w.ID,
		Name:        w.Name,
		Quantity:    deref(w.Quantity),
		Price:       w.Price,
		IsAvailable: deref(w.IsAvailable),
		ImagePath:   strings.TrimSpace(deref(w.ImagePath)),
		ImageURL:    strings.TrimSpace(deref(w.ImageURL)),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	return nil
}

// InStock reports whether the entry can be offered for purchase. Availability
// alone is not enough: the quantity must also be positive.
func (e Entry) InStock() bool {
	return e.IsAvailable && e.Quantity > 0
}

// PriceLabel renders the price with the currency symbol, or "Price TBD".
func (e Entry) PriceLabel(currency string) string {
	if !e.Price.Valid {
		return "Price TBD"
	}
	return currency + e.Price.Decimal.String()
}

func (e Entry) HasImagePath() bool {
	return e.ImagePath != ""
}

func (e Entry) HasImageURL() bool {
	return e.ImageURL != ""
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(raw *string) (time.Time, error) {
	if raw == nil || *raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, *raw); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(*raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", *raw)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
