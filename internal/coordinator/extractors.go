package coordinator

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/local/rollscan/internal/voter"
)

// Local strategy names.
const (
	StrategyOCR    = "ocr"
	StrategyText   = "text"
	StrategyVision = "vision"
	StrategyAuto   = "auto"
)

// ImageRenderer rasterizes a page.
type ImageRenderer interface {
	RenderPage(path string, page int) (image.Image, error)
}

// JPEGRenderer rasterizes a page straight to JPEG.
type JPEGRenderer interface {
	RenderPageToJPEG(path string, page int) ([]byte, error)
}

// ImageStrategy is the image-OCR strategy's contract.
type ImageStrategy interface {
	Extract(ctx context.Context, img image.Image, page int, photos bool) []voter.Voter
}

// TextStrategy is the digital-text strategy's contract.
type TextStrategy interface {
	ExtractFile(ctx context.Context, path string, page int) ([]voter.Voter, error)
}

// VisionStrategy is the remote vision strategy's contract.
type VisionStrategy interface {
	Extract(ctx context.Context, img []byte, mime string, page int, photos bool) []voter.Voter
}

// OCRPages renders each page and runs image OCR on it.
type OCRPages struct {
	Renderer ImageRenderer
	Strategy ImageStrategy
}

func (o OCRPages) ExtractPage(ctx context.Context, p Page) ([]voter.Voter, error) {
	img, err := o.Renderer.RenderPage(p.Path, p.Number)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", p.Number, err)
	}
	return o.Strategy.Extract(ctx, img, p.Number, p.IncludePhotos), nil
}

// TextPages reads each page's text layer.
type TextPages struct {
	Strategy TextStrategy
}

func (t TextPages) ExtractPage(ctx context.Context, p Page) ([]voter.Voter, error) {
	return t.Strategy.ExtractFile(ctx, p.Path, p.Number)
}

// VisionPages renders each page to JPEG and asks the vision model.
type VisionPages struct {
	Renderer JPEGRenderer
	Strategy VisionStrategy
}

func (v VisionPages) ExtractPage(ctx context.Context, p Page) ([]voter.Voter, error) {
	img, err := v.Renderer.RenderPageToJPEG(p.Path, p.Number)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", p.Number, err)
	}
	return v.Strategy.Extract(ctx, img, "image/jpeg", p.Number, p.IncludePhotos), nil
}

// TextLayerProbe reports whether a document has a usable text layer.
type TextLayerProbe interface {
	HasTextLayer(path string) (bool, error)
}

// TextLayerProbeFunc adapts a function to TextLayerProbe.
type TextLayerProbeFunc func(path string) (bool, error)

func (f TextLayerProbeFunc) HasTextLayer(path string) (bool, error) { return f(path) }

// AutoPages uses the text layer when the document has one and OCR
// otherwise. The probe runs once per document.
type AutoPages struct {
	Probe TextLayerProbe
	Text  PageExtractor
	OCR   PageExtractor

	mu     sync.Mutex
	chosen map[string]PageExtractor
}

func (a *AutoPages) ExtractPage(ctx context.Context, p Page) ([]voter.Voter, error) {
	return a.pick(p.Path).ExtractPage(ctx, p)
}

func (a *AutoPages) pick(path string) PageExtractor {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.chosen == nil {
		a.chosen = make(map[string]PageExtractor)
	}
	if e, ok := a.chosen[path]; ok {
		return e
	}
	e := a.OCR
	ok, err := a.Probe.HasTextLayer(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("text layer probe failed, using ocr")
	} else if ok {
		e = a.Text
	}
	a.chosen[path] = e
	return e
}

// Forget drops the cached choice for path.
func (a *AutoPages) Forget(path string) {
	a.mu.Lock()
	delete(a.chosen, path)
	a.mu.Unlock()
}
