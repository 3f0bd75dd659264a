package ocr

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/rollscan/internal/fields"
	"github.com/local/rollscan/internal/layout"
	"github.com/local/rollscan/internal/metrics"
	"github.com/local/rollscan/internal/voter"
)

// DefaultWindow is the card window in pixels at 300 DPI. It follows the
// same top-right id geometry as the text-layer window; OCR boxes hug each
// word, so it is a little wider than the scaled text-layer window.
var DefaultWindow = layout.Window{Left: 640, Right: 260, Above: 50, Below: 330}

// Defaults at 300 DPI.
const (
	DefaultHeaderCutoff = 200
	DefaultRowTolerance = 12
)

// Strategy reads voters from a page image.
type Strategy struct {
	Recognizer   Recognizer
	Window       layout.Window
	HeaderCutoff float64
	RowTolerance float64
}

// New returns a Strategy with default geometry.
func New(r Recognizer, headerCutoff int) *Strategy {
	if headerCutoff <= 0 {
		headerCutoff = DefaultHeaderCutoff
	}
	return &Strategy{
		Recognizer:   r,
		Window:       DefaultWindow,
		HeaderCutoff: float64(headerCutoff),
		RowTolerance: DefaultRowTolerance,
	}
}

// Extract never fails: any error or panic is logged and yields no voters.
func (s *Strategy) Extract(ctx context.Context, img image.Image, page int, photos bool) (out []voter.Voter) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Int("page", page).Interface("panic", r).Msg("ocr page panicked")
			out = nil
		}
		result := "ok"
		if len(out) == 0 {
			result = "empty"
		}
		metrics.ObservePage("ocr", result, time.Since(start))
	}()

	vs, err := s.extract(ctx, img, page, photos)
	if err != nil {
		log.Warn().Err(err).Int("page", page).Msg("ocr page failed")
		return nil
	}
	return vs
}

func (s *Strategy) extract(ctx context.Context, img image.Image, page int, photos bool) ([]voter.Voter, error) {
	if img == nil {
		return nil, fmt.Errorf("no image")
	}
	data, err := EncodePNG(Binarize(img))
	if err != nil {
		return nil, err
	}
	tokens, err := s.Recognizer.Words(ctx, data)
	if err != nil {
		return nil, err
	}

	header := fields.ExtractHeader(layout.Flatten(layout.SortReadingOrder(
		layout.TopBand(tokens, s.HeaderCutoff, layout.TopLeft), layout.TopLeft, s.RowTolerance)))

	regions := layout.Cluster(tokens, fields.IsIDToken, s.Window, layout.TopLeft, s.RowTolerance)
	out := make([]voter.Voter, 0, len(regions))
	for _, r := range regions {
		v := fields.Extract(layout.Flatten(r.Tokens)).Voter(header, page)
		if photos {
			v.PhotoBase64 = CropPhoto(img, r.Bounds)
		}
		out = append(out, v)
	}
	log.Debug().Int("page", page).Int("tokens", len(tokens)).Int("voters", len(out)).Msg("ocr page extracted")
	return out, nil
}
