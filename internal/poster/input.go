package poster

import (
	"errors"
	"reflect"
	"strings"

	catalogerrors "github.com/Ad1th/Poster-Website/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewEntry is the admin input for creating a poster.
type NewEntry struct {
	Name        string              `json:"name" validate:"required,max=200"`
	Quantity    int                 `json:"quantity" validate:"gte=0"`
	Price       decimal.NullDecimal `json:"price"`
	IsAvailable bool                `json:"is_available"`
	ImagePath   string              `json:"image_path,omitempty"`
	ImageURL    string              `json:"image_url,omitempty" validate:"omitempty,url"`
}

// Validate trims the text fields and checks the input. It returns a
// *errors.ValidationError describing every failing field.
func (n *NewEntry) Validate() error {
	n.Name = strings.TrimSpace(n.Name)
	n.ImagePath = strings.TrimSpace(n.ImagePath)
	n.ImageURL = strings.TrimSpace(n.ImageURL)
	extra := priceField(n.Price)
	if n.ImagePath != "" && n.ImageURL != "" {
		extra = withField(extra, "image_url", bothSourcesMessage)
	}
	return check(n, extra)
}

const bothSourcesMessage = "must not be set together with image_path"

// Patch is a partial update. Nil fields are left untouched by the backend; an
// empty ImagePath or ImageURL clears that image source.
type Patch struct {
	Name        *string              `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Quantity    *int                 `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Price       *decimal.NullDecimal `json:"price,omitempty"`
	IsAvailable *bool                `json:"is_available,omitempty"`
	ImagePath   *string              `json:"image_path,omitempty"`
	ImageURL    *string              `json:"image_url,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *Patch) IsEmpty() bool {
	return p.Name == nil && p.Quantity == nil && p.Price == nil &&
		p.IsAvailable == nil && p.ImagePath == nil && p.ImageURL == nil
}

// Validate trims the text fields and checks the patch. A patch that sets one
// image source to a non-empty value also clears the other, so an entry never
// ends up with both.
func (p *Patch) Validate() error {
	p.Name = trimmed(p.Name)
	p.ImagePath = trimmed(p.ImagePath)
	p.ImageURL = trimmed(p.ImageURL)
	if p.IsEmpty() {
		return catalogerrors.NewValidationError("patch", "at least one field is required")
	}
	var price decimal.NullDecimal
	if p.Price != nil {
		price = *p.Price
	}
	extra := priceField(price)
	if p.Name != nil && *p.Name == "" {
		extra = withField(extra, "name", "must not be blank")
	}
	setPath := p.ImagePath != nil && *p.ImagePath != ""
	setURL := p.ImageURL != nil && *p.ImageURL != ""
	if setURL {
		if err := validate.Var(*p.ImageURL, "url"); err != nil {
			extra = withField(extra, "image_url", "failed on rule: url")
		}
	}
	switch {
	case setPath && setURL:
		extra = withField(extra, "image_url", bothSourcesMessage)
	case setPath && p.ImageURL == nil:
		p.ImageURL = new(string)
	case setURL && p.ImagePath == nil:
		p.ImagePath = new(string)
	}
	return check(p, extra)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func withField(fields map[string]string, name, message string) map[string]string {
	if fields == nil {
		fields = make(map[string]string)
	}
	fields[name] = message
	return fields
}

func priceField(price decimal.NullDecimal) map[string]string {
	if price.Valid && price.Decimal.IsNegative() {
		return map[string]string{"price": "must not be negative"}
	}
	return nil
}

func check(s any, extra map[string]string) error {
	fields := make(map[string]string)
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return err
		}
		for _, fieldErr := range validationErrors {
			fields[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
		}
	}
	for k, v := range extra {
		fields[k] = v
	}
	if len(fields) == 0 {
		return nil
	}
	return &catalogerrors.ValidationError{Fields: fields}
}

// Availability builds the patch that sets only is_available.
func Availability(available bool) Patch {
	return Patch{IsAvailable: &available}
}
