// Package transform fits images into a bounding square and re-encodes
// them as PNG, the format the Telegram sticker tooling accepts.
package transform

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// MaxDimension is the target length of the longer edge of the output.
const MaxDimension = 512

// Fitter scales an image so its longer edge equals the bound, preserving
// aspect ratio, and encodes the result as PNG. Smaller images are scaled
// up; the output's longer edge is always exactly the bound.
type Fitter struct {
	bound int
}

func NewFitter() *Fitter {
	return &Fitter{bound: MaxDimension}
}

// Transform decodes, resizes, and re-encodes the image read from r.
func (f *Fitter) Transform(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() >= b.Dy() {
		img = imaging.Resize(img, f.bound, 0, imaging.Lanczos)
	} else {
		img = imaging.Resize(img, 0, f.bound, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
