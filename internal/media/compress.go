package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Publish limits for a single image.
const (
	MaxBytes       = 7_000_000
	MaxLongestEdge = 1440

	startQuality = 88
	qualityStep  = 10
	minQuality   = 40
)

// Compress prepares an image for publishing: EXIF orientation is applied,
// the longest edge is scaled down to MaxLongestEdge, and the result is
// re-encoded as JPEG at decreasing quality until it fits MaxBytes. If the
// floor quality still exceeds the budget that output is returned anyway.
func Compress(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img = applyOrientation(img, readOrientation(data))
	img = fitLongestEdge(img, MaxLongestEdge)

	var buf bytes.Buffer
	quality := startQuality
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		if buf.Len() <= MaxBytes || quality-qualityStep < minQuality {
			break
		}
		quality -= qualityStep
	}

	b := img.Bounds()
	log.Debug().
		Str("sourceFormat", format).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Int("quality", quality).
		Int("inputBytes", len(data)).
		Int("outputBytes", buf.Len()).
		Msg("Image compressed")
	return buf.Bytes(), nil
}

// readOrientation returns the EXIF orientation, or 1 when absent.
func readOrientation(data []byte) (orientation int) {
	defer func() {
		if recover() != nil {
			orientation = 1
		}
	}()
	e, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil || e.Orientation == 0 {
		return 1
	}
	return int(e.Orientation)
}

// fitLongestEdge scales img down so neither side exceeds max. Smaller
// images are returned unchanged.
func fitLongestEdge(img image.Image, max int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = max
		nh = h * max / w
	} else {
		nh = max
		nw = w * max / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
