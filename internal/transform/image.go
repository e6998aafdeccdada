package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
)

// ImageEncoder re-encodes raster images.
type ImageEncoder interface {
	// Optimize decodes src and re-encodes it in the format implied by ext
	// (".jpg", ".jpeg" or ".png").
	Optimize(src []byte, ext string) ([]byte, error)
	// WebP decodes src and encodes it as WebP.
	WebP(src []byte) ([]byte, error)
}

// ImageOptions tunes the raster encoders.
type ImageOptions struct {
	JPEGQuality int
}

// RasterEncoder implements ImageEncoder with imaging and nativewebp.
type RasterEncoder struct {
	opts ImageOptions
}

// NewImageEncoder creates a RasterEncoder. A zero quality means 75.
func NewImageEncoder(opts ImageOptions) *RasterEncoder {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 75
	}
	return &RasterEncoder{opts: opts}
}

// Optimize implements ImageEncoder.
func (e *RasterEncoder) Optimize(src []byte, ext string) ([]byte, error) {
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, fmt.Errorf("unsupported image type %q: %w", ext, err)
	}
	if format != imaging.JPEG && format != imaging.PNG {
		return nil, fmt.Errorf("unsupported image type %q", ext)
	}

	img, err := decode(src)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = imaging.Encode(&buf, img, format,
		imaging.JPEGQuality(e.opts.JPEGQuality),
		imaging.PNGCompressionLevel(png.BestCompression),
	)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// WebP implements ImageEncoder.
func (e *RasterEncoder) WebP(src []byte) ([]byte, error) {
	img, err := decode(src)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(src []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
