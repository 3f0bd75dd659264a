package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/local/rollscan/internal/layout"
)

// Recognizer turns an image into positioned words.
type Recognizer interface {
	Words(ctx context.Context, img []byte) ([]layout.Token, error)
}

// Tesseract is a Recognizer backed by a local tesseract install.
type Tesseract struct {
	Languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseract returns a recognizer for the given tesseract languages.
func NewTesseract(langs ...string) *Tesseract {
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return &Tesseract{Languages: langs, clientFactory: gosseract.NewClient}
}

// Words runs word-level recognition, treating the page as one uniform
// block of text.
func (t *Tesseract) Words(ctx context.Context, img []byte) ([]layout.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := t.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(t.Languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("set page seg mode: %w", err)
	}
	if err := c.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize words: %w", err)
	}
	out := make([]layout.Token, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		out = append(out, layout.Token{
			Text: b.Word,
			Box:  layout.Box{X: float64(b.Box.Min.X), Y: float64(b.Box.Min.Y), W: float64(b.Box.Dx()), H: float64(b.Box.Dy())},
		})
	}
	return out, nil
}
