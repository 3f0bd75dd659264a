package textlayer

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"github.com/local/rollscan/internal/fields"
	"github.com/local/rollscan/internal/layout"
	"github.com/local/rollscan/internal/voter"
)

// DefaultWindow is the card window in PDF points around the id token.
// Cards are about 190x80 pt with the id printed top-right, so the window
// reaches further left than down.
var DefaultWindow = layout.Window{Left: 140, Right: 50, Above: 8, Below: 72}

// HeaderBand is the top fraction of the page read as the page header.
const HeaderBand = 0.10

// Strategy reads voters from the text layer. Output depends only on input.
type Strategy struct {
	Window       layout.Window
	RowTolerance float64
}

// New returns a Strategy with default geometry.
func New() *Strategy {
	return &Strategy{Window: DefaultWindow, RowTolerance: baselineTolerance}
}

// ExtractContent turns one page's glyphs into voters. top and bottom are
// the page's vertical extent in user space; pass top <= bottom to derive
// the extent from the glyphs themselves.
func (s *Strategy) ExtractContent(texts []pdf.Text, top, bottom float64, page int) []voter.Voter {
	tokens := Tokens(texts)
	if len(tokens) == 0 {
		return nil
	}
	if top <= bottom {
		top, bottom = tokens[0].Box.Y+tokens[0].Box.H, 0
		for _, t := range tokens {
			if t.Box.Y+t.Box.H > top {
				top = t.Box.Y + t.Box.H
			}
		}
	}
	limit := top - HeaderBand*(top-bottom)
	header := fields.ExtractHeader(layout.Flatten(layout.SortReadingOrder(
		layout.TopBand(tokens, limit, layout.BottomLeft), layout.BottomLeft, s.RowTolerance)))

	regions := layout.Cluster(tokens, fields.IsIDToken, s.Window, layout.BottomLeft, s.RowTolerance)
	out := make([]voter.Voter, 0, len(regions))
	for _, r := range regions {
		out = append(out, fields.Extract(layout.Flatten(r.Tokens)).Voter(header, page))
	}
	return out
}

// ExtractFile opens the PDF at path and extracts the given 1-based page.
// A page without a text layer yields no voters and no error.
func (s *Strategy) ExtractFile(ctx context.Context, path string, page int) (out []voter.Voter, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	if page < 1 || page > r.NumPage() {
		return nil, fmt.Errorf("page %d out of range (1..%d)", page, r.NumPage())
	}
	p := r.Page(page)
	if p.V.IsNull() {
		return nil, nil
	}

	// the reader panics on some malformed content streams
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("read page %d content: %v", page, rec)
		}
	}()
	top, bottom := mediaBox(p)
	out = s.ExtractContent(p.Content().Text, top, bottom, page)
	log.Debug().Int("page", page).Int("voters", len(out)).Msg("text layer page extracted")
	return out, nil
}

// mediaBox returns the page's upper and lower y; (0, 0) when unknown.
// MediaBox may be inherited from the page tree.
func mediaBox(p pdf.Page) (top, bottom float64) {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			lly, ury := box.Index(1).Float64(), box.Index(3).Float64()
			if ury < lly {
				lly, ury = ury, lly
			}
			return ury, lly
		}
	}
	return 0, 0
}
