package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Processor normalizes arbitrary raster input into a bounded JPEG suitable
// for sending to the recognition endpoint.
type Processor struct {
	maxSide int
	quality int
}

func NewProcessor() *Processor {
	return &Processor{maxSide: MaxLongestSide, quality: NormalizedJpegQuality}
}

// TargetDimensions applies the size policy: if the longest side exceeds
// maxSide both sides are scaled by maxSide/longest and rounded; otherwise the
// input dimensions are returned unchanged.
func TargetDimensions(width, height, maxSide int) Dimensions {
	longest := maxInt(width, height)
	if longest <= maxSide {
		return Dimensions{Width: width, Height: height}
	}
	scale := float64(maxSide) / float64(longest)
	newWidth := int(math.Round(float64(width) * scale))
	newHeight := int(math.Round(float64(height) * scale))
	return Dimensions{Width: maxInt(1, newWidth), Height: maxInt(1, newHeight)}
}

// Normalize decodes raw, bounds it to MaxLongestSide and re-encodes it as
// JPEG. every failure, including a panic inside a decoder, comes back as an
// error.
func (p *Processor) Normalize(raw []byte) (out NormalizedImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = NormalizedImage{}
			err = fmt.Errorf("%w: processor panic: %v", ErrDecode, r)
		}
	}()

	if len(raw) == 0 {
		return NormalizedImage{}, fmt.Errorf("%w: empty input", ErrDecode)
	}
	if _, ok := SniffImage(raw); !ok {
		return NormalizedImage{}, fmt.Errorf("%w: unrecognized image format", ErrDecode)
	}

	// the header is checked first so a tiny compressed file cannot claim a
	// pixel buffer that exhausts memory
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return NormalizedImage{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return NormalizedImage{}, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", ErrDecode, cfg.Width, cfg.Height, MaxSourcePixels)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return NormalizedImage{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if format == "jpeg" {
		img = applyOrientation(img, readOrientation(raw))
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return NormalizedImage{}, fmt.Errorf("%w: invalid image dimensions %dx%d", ErrDecode, bounds.Dx(), bounds.Dy())
	}

	target := TargetDimensions(bounds.Dx(), bounds.Dy(), p.maxSide)
	if target.Width != bounds.Dx() || target.Height != bounds.Dy() {
		img = imaging.Resize(img, target.Width, target.Height, imaging.Linear)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return NormalizedImage{}, fmt.Errorf("jpeg encoding failed: %w", err)
	}

	return NormalizedImage{
		Data:         buf.Bytes(),
		Width:        target.Width,
		Height:       target.Height,
		SourceFormat: format,
	}, nil
}

// NormalizeAsync runs Normalize on its own goroutine. the channel receives
// exactly one result and is then closed; if ctx ends first the result carries
// ctx.Err().
func (p *Processor) NormalizeAsync(ctx context.Context, raw []byte) <-chan NormalizeResult {
	out := make(chan NormalizeResult, 1)
	go func() {
		defer close(out)
		if err := ctx.Err(); err != nil {
			out <- NormalizeResult{Err: err}
			return
		}
		done := make(chan NormalizeResult, 1)
		go func() {
			img, err := p.Normalize(raw)
			done <- NormalizeResult{Image: img, Err: err}
		}()
		select {
		case res := <-done:
			out <- res
		case <-ctx.Done():
			out <- NormalizeResult{Err: ctx.Err()}
		}
	}()
	return out
}
