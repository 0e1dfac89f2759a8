// Package imaging normalizes uploaded images: it fits them inside a bounding
// box without upscaling and re-encodes them as JPEG.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/nfnt/resize"
	"github.com/tendant/simple-site/pkg/sitecontent"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels rejects images whose decoded size would exceed this many
// pixels before any pixel data is allocated.
const DefaultMaxPixels = 50_000_000

// ErrTooManyPixels is returned for images larger than the pixel budget
var ErrTooManyPixels = errors.New("image dimensions too large")

// Transformer implements sitecontent.Transformer with nfnt/resize.
// The zero value works: no pixel budget, nearest-neighbor scaling and a
// white background.
type Transformer struct {
	MaxPixels     int
	Interpolation resize.InterpolationFunction
	Background    color.Color
}

// New creates a transformer with Lanczos3 interpolation and a white
// background for flattening transparency
func New() *Transformer {
	return &Transformer{
		MaxPixels:     DefaultMaxPixels,
		Interpolation: resize.Lanczos3,
		Background:    color.White,
	}
}

// Transform decodes the image, shrinks it to fit constraints preserving aspect
// ratio (never enlarging), and encodes it as JPEG at constraints.Quality.
func (t *Transformer) Transform(ctx context.Context, reader io.Reader, constraints sitecontent.Constraints) (*sitecontent.TransformResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}
	if t.MaxPixels > 0 && cfg.Width*cfg.Height > t.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", format, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	maxWidth, maxHeight := constraints.MaxWidth, constraints.MaxHeight
	if maxWidth <= 0 {
		maxWidth = sitecontent.DefaultConstraints.MaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = sitecontent.DefaultConstraints.MaxHeight
	}
	// Thumbnail returns img untouched when it already fits
	resized := resize.Thumbnail(uint(maxWidth), uint(maxHeight), img, t.Interpolation)
	flat := t.flatten(resized)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	quality := constraints.Quality
	if quality <= 0 || quality > 100 {
		quality = sitecontent.DefaultConstraints.Quality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	bounds := flat.Bounds()
	return &sitecontent.TransformResult{
		Data:     buf.Bytes(),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		MimeType: "image/jpeg",
	}, nil
}

// flatten paints img over the background so transparent pixels do not turn
// black in the JPEG output.
func (t *Transformer) flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	background := t.Background
	if background == nil {
		background = color.White
	}

	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}
