// Package imageprep checks uploaded poster images and shrinks oversized ones
// before they are sent to object storage.
package imageprep

import (
	"bytes"
	"fmt"
	"net/http"

	catalogerrors "github.com/Ad1th/Poster-Website/internal/errors"
	"github.com/disintegration/imaging"
)

const jpegQuality = 85

// Limits bounds an accepted upload.
type Limits struct {
	MaxBytes     int64
	MaxDimension int
}

// Image is an upload ready to be stored.
type Image struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	Resized     bool
}

var formats = map[string]imaging.Format{
	"image/jpeg": imaging.JPEG,
	"image/png":  imaging.PNG,
	"image/gif":  imaging.GIF,
}

// Prepare validates data and downscales it so neither side exceeds
// limits.MaxDimension. The content type is sniffed from the bytes; the declared
// type from the client is not trusted. Failures are *errors.ValidationError.
func Prepare(data []byte, limits Limits) (Image, error) {
	if len(data) == 0 {
		return Image{}, catalogerrors.NewValidationError("image", "file is empty")
	}
	if limits.MaxBytes > 0 && int64(len(data)) > limits.MaxBytes {
		return Image{}, catalogerrors.NewValidationError("image", fmt.Sprintf("file is larger than %d bytes", limits.MaxBytes))
	}

	contentType := http.DetectContentType(data)
	if contentType == "image/webp" {
		// stored as-is, there is no webp encoder to resize with
		return Image{Data: data, ContentType: contentType}, nil
	}
	format, ok := formats[contentType]
	if !ok {
		return Image{}, catalogerrors.NewValidationError("image", fmt.Sprintf("unsupported file type %s", contentType))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, catalogerrors.NewValidationError("image", "file is not a valid image")
	}
	bounds := img.Bounds()
	out := Image{Data: data, ContentType: contentType, Width: bounds.Dx(), Height: bounds.Dy()}
	if limits.MaxDimension <= 0 || (out.Width <= limits.MaxDimension && out.Height <= limits.MaxDimension) {
		return out, nil
	}

	resized := imaging.Fit(img, limits.MaxDimension, limits.MaxDimension, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(jpegQuality)); err != nil {
		return Image{}, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return Image{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Width:       resized.Bounds().Dx(),
		Height:      resized.Bounds().Dy(),
		Resized:     true,
	}, nil
}
