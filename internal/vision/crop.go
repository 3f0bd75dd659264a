package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// BoxPadding is added around a model box, in pixels.
const BoxPadding = 10

// gridScale is the normalized coordinate range the model reports in.
const gridScale = 1000.0

// CropNormalized cuts box ([ymin, xmin, ymax, xmax], 0-1000) out of img
// with padding and returns it as a base64 JPEG.
func CropNormalized(img image.Image, box []float64, pad int) (string, error) {
	if len(box) != 4 {
		return "", fmt.Errorf("box has %d values", len(box))
	}
	ymin, xmin, ymax, xmax := box[0], box[1], box[2], box[3]
	for _, v := range box {
		if v < 0 || v > gridScale {
			return "", fmt.Errorf("box value %v outside 0-1000", v)
		}
	}
	if ymin >= ymax || xmin >= xmax {
		return "", fmt.Errorf("degenerate box %v", box)
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	r := image.Rect(
		b.Min.X+int(xmin/gridScale*w)-pad, b.Min.Y+int(ymin/gridScale*h)-pad,
		b.Min.X+int(xmax/gridScale*w)+pad, b.Min.Y+int(ymax/gridScale*h)+pad,
	).Intersect(b)
	if r.Empty() {
		return "", fmt.Errorf("box %v misses image", box)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Crop(img, r), imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return "", fmt.Errorf("encode crop: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
