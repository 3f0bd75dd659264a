package textlayer

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	fitz "github.com/gen2brain/go-fitz"

	"github.com/local/rollscan/internal/fields"
)

// PageProbe is the result of probing one page.
type PageProbe struct {
	PageIndex int    `json:"page_index"`
	CharCount int    `json:"char_count"`
	IDCount   int    `json:"id_count"`
	Err       string `json:"err,omitempty"`
}

// Diagnostics describes a text-layer check.
type Diagnostics struct {
	FilePath     string      `json:"file_path"`
	TotalPages   int         `json:"total_pages"`
	SampledPages []int       `json:"sampled_pages"`
	TotalChars   int         `json:"total_chars"`
	TotalIDs     int         `json:"total_ids"`
	Threshold    int         `json:"threshold"`
	Probes       []PageProbe `json:"probes"`
	HasTextLayer bool        `json:"has_text_layer"`
	DurationMs   int64       `json:"duration_ms"`
}

// DefaultThreshold is used when a non-positive threshold is passed in.
const DefaultThreshold = 50

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Doc abstracts a PDF document for text probing.
type Doc interface {
	NumPage() int
	Text(i int) (string, error)
	Close() error
}

// Opener opens a PDF path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

// Prober decides whether the local path can use the text layer.
type Prober struct {
	Opener    Opener
	Threshold int
	// Skip leading pages (cover and summary pages carry no cards).
	Skip int
}

// NewProber returns a go-fitz backed prober.
func NewProber(threshold, skip int) *Prober {
	return &Prober{Opener: fitzOpener{}, Threshold: threshold, Skip: skip}
}

// HasTextLayer samples up to three card pages and reports whether they
// carry enough text and at least one id token.
func (p *Prober) HasTextLayer(path string) (bool, *Diagnostics, error) {
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if p.Opener == nil {
		return false, nil, errors.New("no PDF opener configured")
	}

	start := time.Now()
	d, err := p.Opener.Open(path)
	if err != nil {
		return false, nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer d.Close()

	diag := &Diagnostics{FilePath: path, TotalPages: d.NumPage(), Threshold: threshold}
	diag.SampledPages = sampleIndices(diag.TotalPages, p.Skip)
	for _, idx := range diag.SampledPages {
		probe := PageProbe{PageIndex: idx}
		text, terr := d.Text(idx)
		if terr != nil {
			probe.Err = terr.Error()
			diag.Probes = append(diag.Probes, probe)
			continue
		}
		probe.CharCount = len([]rune(whitespaceRegex.ReplaceAllString(text, "")))
		for _, w := range whitespaceRegex.Split(text, -1) {
			if fields.IsIDToken(w) {
				probe.IDCount++
			}
		}
		diag.TotalChars += probe.CharCount
		diag.TotalIDs += probe.IDCount
		diag.Probes = append(diag.Probes, probe)
	}
	diag.HasTextLayer = diag.TotalChars >= threshold && diag.TotalIDs > 0
	diag.DurationMs = time.Since(start).Milliseconds()
	return diag.HasTextLayer, diag, nil
}

// sampleIndices picks the first, middle and last page after skip.
// Small documents fall back to their own pages.
func sampleIndices(total, skip int) []int {
	if total <= 0 {
		return nil
	}
	if skip >= total {
		skip = 0
	}
	first, last := skip, total-1
	mid := first + (last-first)/2
	out := []int{first}
	for _, i := range []int{mid, last} {
		if i != out[len(out)-1] {
			out = append(out, i)
		}
	}
	return out
}

type fitzOpener struct{}

func (fitzOpener) Open(path string) (Doc, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
