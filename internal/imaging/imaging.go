// Package imaging turns uploaded photos into the JPEG data URIs stored on
// workout records.
package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	// Registered decoders.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	MaxSide     = 400
	JPEGQuality = 80
	// MaxPixels bounds the declared dimensions of an input image; decoding
	// allocates for every pixel before any scaling happens.
	MaxPixels = 40_000_000

	dataURIPrefix = "data:image/jpeg;base64,"
)

var ErrDecode = errors.New("failed to load the image")

// Process decodes r, scales it so the longer side is at most MaxSide and
// returns it re-encoded as a JPEG data URI.
func Process(ctx context.Context, r io.Reader) (string, error) {
	// Read the header first; the bytes it consumed are replayed for Decode.
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	src, _, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := Scale(src, MaxSide)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Scale fits src within maxSide x maxSide keeping its aspect ratio. Images
// that already fit are drawn onto an opaque canvas unscaled.
func Scale(src image.Image, maxSide int) image.Image {
	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), maxSide)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; flatten onto white like a canvas export does.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func fitWithin(w, h, maxSide int) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	if w <= maxSide && h <= maxSide {
		return w, h
	}
	if w >= h {
		nh := h * maxSide / w
		if nh < 1 {
			nh = 1
		}
		return maxSide, nh
	}
	nw := w * maxSide / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxSide
}
