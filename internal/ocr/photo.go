package ocr

import (
	"bytes"
	"encoding/base64"
	"image"

	"github.com/disintegration/imaging"

	"github.com/local/rollscan/internal/layout"
)

// Photo placement within a card box, as fractions of the box.
const (
	photoLeft   = 0.72
	photoTop    = 0.15
	photoBottom = 0.75
	photoWidth  = 120
)

// CropPhoto cuts the portrait out of the right part of a card and returns
// it as a base64 JPEG, or "" when the card box misses the image.
func CropPhoto(img image.Image, card layout.Box) string {
	r := image.Rect(
		int(card.X+card.W*photoLeft), int(card.Y+card.H*photoTop),
		int(card.X+card.W), int(card.Y+card.H*photoBottom),
	).Intersect(img.Bounds())
	if r.Empty() {
		return ""
	}
	crop := imaging.Crop(img, r)
	if crop.Bounds().Dx() > photoWidth {
		crop = imaging.Resize(crop, photoWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, crop, imaging.JPEG, imaging.JPEGQuality(70)); err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
