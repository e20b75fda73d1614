package imageprocessor

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
	// Registers the WebP decoder with image.Decode.
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxDimension bounds the longest edge of a normalized photo.
	DefaultMaxDimension = 1024
	// DefaultJPEGQuality is the baseline JPEG quality for re-encoded photos.
	DefaultJPEGQuality = 80
	// FormatJPEG is the only output format.
	FormatJPEG = "jpg"
)

// ErrEmptyImage is returned for zero-length input.
var ErrEmptyImage = errors.New("image payload is empty")

// Result is a normalized photo.
type Result struct {
	Data   []byte
	Width  int
	Height int
	Format string
}

// Normalizer exposes the subset of image handling used by the submission flow.
type Normalizer interface {
	Normalize(ctx context.Context, imageBytes []byte) (*Result, error)
}

// ImagingNormalizer fits images inside a square bound, honouring EXIF
// orientation, and re-encodes them as baseline JPEG.
type ImagingNormalizer struct {
	maxDimension int
	quality      int
}

// NewImagingNormalizer falls back to the defaults for non-positive arguments.
func NewImagingNormalizer(maxDimension, quality int) *ImagingNormalizer {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &ImagingNormalizer{maxDimension: maxDimension, quality: quality}
}

func (n *ImagingNormalizer) Normalize(ctx context.Context, imageBytes []byte) (*Result, error) {
	if len(imageBytes) == 0 {
		return nil, ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(imageBytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	// Fit never enlarges; smaller images are only re-encoded.
	fitted := imaging.Fit(img, n.maxDimension, n.maxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(n.quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	bounds := fitted.Bounds()
	return &Result{
		Data:   buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: FormatJPEG,
	}, nil
}
