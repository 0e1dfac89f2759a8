package imaging_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-site/pkg/sitecontent"
	"github.com/tendant/simple-site/pkg/sitecontent/imaging"
)

var _ sitecontent.Transformer = (*imaging.Transformer)(nil)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTransform_Dimensions(t *testing.T) {
	tr := imaging.New()
	ctx := context.Background()

	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{name: "wide image shrinks to fit width", width: 3000, height: 1000, wantW: 1920, wantH: 640},
		{name: "tall image shrinks to fit height", width: 1000, height: 2160, wantW: 500, wantH: 1080},
		{name: "small image is never enlarged", width: 100, height: 100, wantW: 100, wantH: 100},
		{name: "exact fit is unchanged", width: 1920, height: 1080, wantW: 1920, wantH: 1080},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tr.Transform(ctx, bytes.NewReader(pngBytes(t, tt.width, tt.height)), sitecontent.DefaultConstraints)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, result.Width)
			assert.Equal(t, tt.wantH, result.Height)
			assert.Equal(t, "image/jpeg", result.MimeType)

			decoded, err := jpeg.Decode(bytes.NewReader(result.Data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, decoded.Bounds().Dx())
			assert.Equal(t, tt.wantH, decoded.Bounds().Dy())
		})
	}
}

func TestTransform_TransparencyFlattenedToWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	result, err := imaging.New().Transform(context.Background(), &buf, sitecontent.DefaultConstraints)
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)
	r, g, b, _ := decoded.At(5, 5).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestTransform_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not an image", func(t *testing.T) {
		_, err := imaging.New().Transform(ctx, strings.NewReader("definitely not an image"), sitecontent.DefaultConstraints)
		assert.Error(t, err)
	})

	t.Run("pixel budget", func(t *testing.T) {
		tr := imaging.New()
		tr.MaxPixels = 100
		_, err := tr.Transform(ctx, bytes.NewReader(pngBytes(t, 20, 20)), sitecontent.DefaultConstraints)
		assert.ErrorIs(t, err, imaging.ErrTooManyPixels)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := imaging.New().Transform(cctx, bytes.NewReader(pngBytes(t, 20, 20)), sitecontent.DefaultConstraints)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTransform_ZeroValueTransformer(t *testing.T) {
	tr := &imaging.Transformer{}

	result, err := tr.Transform(context.Background(), bytes.NewReader(pngBytes(t, 400, 200)), sitecontent.Constraints{MaxWidth: 100, MaxHeight: 100})
	require.NoError(t, err)
	assert.Equal(t, 100, result.Width)
	assert.Equal(t, 50, result.Height)
	assert.Equal(t, "image/jpeg", result.MimeType)

	decoded, err := jpeg.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())
}
