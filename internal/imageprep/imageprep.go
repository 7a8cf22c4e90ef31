// Package imageprep turns an uploaded photo into the height map the
// conversion engine consumes: 8-bit grayscale, everything outside the
// inscribed ellipse painted white, cropped to the ellipse plus a border.
package imageprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// BorderPixels is the margin kept around the ellipse.
const BorderPixels = 2

// ErrTooSmall is returned for images with no room for an ellipse inside the border.
var ErrTooSmall = errors.New("image too small")

// Process decodes a PNG or JPEG, prepares it and encodes the result as PNG.
// JPEG EXIF orientation is applied before masking.
func Process(data []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	out, err := Prepare(src)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Prepare converts src to grayscale, masks it with the ellipse inscribed in
// the image inset by BorderPixels, and crops to the ellipse bounds grown by
// BorderPixels.
func Prepare(src image.Image) (*image.Gray, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	// ellipse spans [left, right] x [top, bottom] in image coordinates
	left, top := BorderPixels, BorderPixels
	right, bottom := w-1-BorderPixels, h-1-BorderPixels
	if right <= left || bottom <= top {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooSmall, w, h)
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)

	cx := float64(left+right) / 2
	cy := float64(top+bottom) / 2
	rx := float64(right-left) / 2
	ry := float64(bottom-top) / 2

	white := color.Gray{Y: 255}
	for y := 0; y < h; y++ {
		dy := (float64(y) - cy) / ry
		for x := 0; x < w; x++ {
			dx := (float64(x) - cx) / rx
			if dx*dx+dy*dy > 1 {
				gray.SetGray(x, y, white)
			}
		}
	}

	crop := image.Rect(
		left-BorderPixels, top-BorderPixels,
		right+1+BorderPixels, bottom+1+BorderPixels,
	).Intersect(gray.Bounds())

	out := image.NewGray(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(out, out.Bounds(), gray, crop.Min, draw.Src)
	return out, nil
}
