package imageprep

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	catalogerrors "github.com/Ad1th/Poster-Website/internal/errors"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encoded(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 51, G: 65, B: 85, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func TestPrepare_KeepsSmallImage(t *testing.T) {
	// given
	data := encoded(t, 300, 400, imaging.PNG)

	// when
	out, err := Prepare(data, Limits{MaxBytes: 1 << 20, MaxDimension: 2000})

	// then
	require.NoError(t, err)
	assert.False(t, out.Resized)
	assert.Equal(t, data, out.Data)
	assert.Equal(t, "image/png", out.ContentType)
	assert.Equal(t, 300, out.Width)
	assert.Equal(t, 400, out.Height)
}

func TestPrepare_DownscalesLargeImage(t *testing.T) {
	// given
	data := encoded(t, 1200, 600, imaging.JPEG)

	// when
	out, err := Prepare(data, Limits{MaxDimension: 300})

	// then
	require.NoError(t, err)
	assert.True(t, out.Resized)
	assert.Equal(t, "image/jpeg", out.ContentType)
	decoded, _, err := image.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 300, decoded.Bounds().Dx())
	assert.Equal(t, 150, decoded.Bounds().Dy())
}

func TestPrepare_DownscaleKeepsFormat(t *testing.T) {
	// given
	data := encoded(t, 800, 800, imaging.PNG)

	// when
	out, err := Prepare(data, Limits{MaxDimension: 200})

	// then
	require.NoError(t, err)
	assert.True(t, out.Resized)
	assert.Equal(t, "image/png", out.ContentType)
	_, format, err := image.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestPrepare_Rejects(t *testing.T) {
	testCases := []struct {
		name   string
		data   []byte
		limits Limits
	}{
		{name: "empty", data: nil},
		{name: "too large", data: bytes.Repeat([]byte{0xff}, 2048), limits: Limits{MaxBytes: 1024}},
		{name: "not an image", data: []byte("%PDF-1.7 definitely not a poster")},
		{name: "truncated png", data: encoded(t, 10, 10, imaging.PNG)[:20]},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Prepare(tc.data, tc.limits)

			var verr *catalogerrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, "image")
		})
	}
}
