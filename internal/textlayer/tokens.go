// Package textlayer extracts voters from PDFs that carry a digital text layer.
package textlayer

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/local/rollscan/internal/layout"
)

const (
	// baselineTolerance groups glyphs sharing a baseline, in points.
	baselineTolerance = 2.0
	// wordGapFactor is the largest glyph gap, as a fraction of font size,
	// that still joins two glyphs into one word.
	wordGapFactor = 0.25
)

// Tokens merges the glyph stream of a page into positioned words.
// Coordinates stay in PDF user space (bottom-left origin).
func Tokens(texts []pdf.Text) []layout.Token {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			glyphs = append(glyphs, t)
		}
	}
	if len(glyphs) == 0 {
		return nil
	}
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].Y > glyphs[j].Y })

	var rows [][]pdf.Text
	rowY := math.NaN()
	for _, g := range glyphs {
		if len(rows) == 0 || math.Abs(g.Y-rowY) > baselineTolerance {
			rows = append(rows, []pdf.Text{g})
			rowY = g.Y
			continue
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], g)
	}

	var out []layout.Token
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		var cur *word
		flush := func() {
			if cur != nil {
				if tok, ok := cur.token(); ok {
					out = append(out, tok)
				}
				cur = nil
			}
		}
		for _, g := range row {
			if strings.TrimSpace(g.S) == "" {
				flush()
				continue
			}
			if cur != nil && g.X-cur.right() > wordGap(cur.size) {
				flush()
			}
			if cur == nil {
				cur = &word{x: g.X, y: g.Y, size: g.FontSize}
			}
			cur.add(g)
		}
		flush()
	}
	return out
}

type word struct {
	sb      strings.Builder
	x, y, w float64
	size    float64
}

func (w *word) right() float64 { return w.x + w.w }

func (w *word) add(g pdf.Text) {
	w.sb.WriteString(g.S)
	w.w = g.X + g.W - w.x
	if g.FontSize > w.size {
		w.size = g.FontSize
	}
}

func (w *word) token() (layout.Token, bool) {
	text := strings.TrimSpace(norm.NFKC.String(w.sb.String()))
	if text == "" {
		return layout.Token{}, false
	}
	h := w.size
	if h <= 0 {
		h = 1
	}
	return layout.Token{Text: text, Box: layout.Box{X: w.x, Y: w.y, W: w.w, H: h}}, true
}

func wordGap(size float64) float64 {
	if size <= 0 {
		return 2.0
	}
	return size * wordGapFactor
}
