package textlayer

import (
	"errors"
	"testing"

	"github.com/ledongthuc/pdf"
)

// glyphs spells s one rune per glyph starting at x on baseline y.
func glyphs(s string, x, y float64) []pdf.Text {
	const size, adv = 10.0, 6.0
	var out []pdf.Text
	for _, r := range s {
		out = append(out, pdf.Text{FontSize: size, X: x, Y: y, W: adv, S: string(r)})
		x += adv
	}
	return out
}

func TestTokensMergesGlyphsIntoWords(t *testing.T) {
	var in []pdf.Text
	in = append(in, glyphs("Name", 10, 700)...)
	in = append(in, glyphs("Ravi", 50, 700)...)
	in = append(in, glyphs("ﬁle", 10, 680)...)

	toks := Tokens(in)
	if len(toks) != 3 {
		t.Fatalf("got %d tokens: %+v", len(toks), toks)
	}
	if toks[0].Text != "Name" || toks[1].Text != "Ravi" {
		t.Errorf("row 1 = %q %q", toks[0].Text, toks[1].Text)
	}
	if toks[2].Text != "file" {
		t.Errorf("ligature not normalized: %q", toks[2].Text)
	}
	if toks[0].Box.W != 24 {
		t.Errorf("width = %v", toks[0].Box.W)
	}
}

func line(parts ...[]pdf.Text) []pdf.Text {
	var out []pdf.Text
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestExtractContent(t *testing.T) {
	in := line(
		glyphs("Assembly", 20, 820), glyphs("Constituency:", 80, 820), glyphs("101-Nellore", 170, 820),
		glyphs("Polling", 300, 820), glyphs("Station:", 350, 820), glyphs("7", 410, 820),

		glyphs("1", 20, 600), glyphs("ABC1234567", 120, 600),
		glyphs("Name:", 20, 585), glyphs("Ravi", 60, 585),
		glyphs("Age:", 20, 560), glyphs("34", 50, 560), glyphs("Male", 70, 560),

		glyphs("2", 320, 600), glyphs("XYZ7654321", 420, 600),
		glyphs("Name:", 320, 585), glyphs("Sita", 360, 585),
	)

	s := New()
	vs := s.ExtractContent(in, 842, 0, 5)
	if len(vs) != 2 {
		t.Fatalf("got %d voters: %+v", len(vs), vs)
	}
	if vs[0].EpicNo != "ABC1234567" || vs[0].NameEn != "Ravi" || vs[0].Age != "34" || vs[0].Gender != "Male" || vs[0].SlNo != "1" {
		t.Errorf("voter 0 = %+v", vs[0])
	}
	if vs[1].EpicNo != "XYZ7654321" || vs[1].NameEn != "Sita" {
		t.Errorf("voter 1 = %+v", vs[1])
	}
	for _, v := range vs {
		if v.AssemblyName != "101-Nellore" || v.PollingStationNo != "7" || v.OriginalPage != 5 {
			t.Errorf("context = %+v", v)
		}
		if v.IsVoted || v.VotedParty != nil || v.Timestamp != nil {
			t.Errorf("poll state set after extraction: %+v", v)
		}
	}

	again := s.ExtractContent(in, 842, 0, 5)
	for i := range vs {
		if vs[i] != again[i] {
			t.Errorf("non-deterministic output at %d", i)
		}
	}
}

type fakeDoc struct {
	pages []string
}

func (d fakeDoc) NumPage() int { return len(d.pages) }
func (d fakeDoc) Text(i int) (string, error) {
	if d.pages[i] == "!" {
		return "", errors.New("broken page")
	}
	return d.pages[i], nil
}
func (d fakeDoc) Close() error { return nil }

type fakeOpener struct{ doc fakeDoc }

func (o fakeOpener) Open(string) (Doc, error) { return o.doc, nil }

func TestProber(t *testing.T) {
	cards := "1 ABC1234567 Name: Ravi Kumar Father's Name: Suresh Age: 34 Male"
	p := &Prober{Opener: fakeOpener{fakeDoc{[]string{"cover", "summary", cards, "!", cards}}}, Threshold: 20, Skip: 2}
	ok, diag, err := p.HasTextLayer("x.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || diag.TotalIDs != 2 {
		t.Errorf("ok=%v diag=%+v", ok, diag)
	}
	if got := diag.SampledPages; len(got) != 3 || got[0] != 2 || got[2] != 4 {
		t.Errorf("sampled = %v", got)
	}

	p.Opener = fakeOpener{fakeDoc{[]string{"", "", "", ""}}}
	if ok, _, _ := p.HasTextLayer("scan.pdf"); ok {
		t.Errorf("scanned document reported a text layer")
	}
}
