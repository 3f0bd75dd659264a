package imagerender

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// Renderer rasterizes PDF pages with MuPDF.
type Renderer struct {
	DPI     int
	Quality int
}

// New returns a renderer; non-positive values fall back to 300 DPI and
// quality 85.
func New(dpi, quality int) *Renderer {
	if dpi <= 0 { dpi = 300 }
	if quality <= 0 || quality > 100 { quality = 85 }
	return &Renderer{DPI: dpi, Quality: quality}
}

// RenderPage renders 1-based pageNum to an in-memory image.
func (r *Renderer) RenderPage(pdfPath string, pageNum int) (image.Image, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if pageNum < 1 || pageNum > doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (1..%d)", pageNum, doc.NumPage())
	}
	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(pageNum-1, float64(r.DPI))
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}
	log.Debug().
		Int("page", pageNum).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Int("dpi", r.DPI).
		Msg("rendered page")
	return img, nil
}

// RenderPageToJPEG renders a page and encodes it as JPEG.
func (r *Renderer) RenderPageToJPEG(pdfPath string, pageNum int) ([]byte, error) {
	img, err := r.RenderPage(pdfPath, pageNum)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(img, r.Quality)
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// PageCount reads the page count from the PDF structure.
func PageCount(pdfPath string) (int, error) {
	n, err := api.PageCountFile(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}
