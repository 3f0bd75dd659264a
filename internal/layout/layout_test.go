package layout

import (
	"strings"
	"testing"
)

func isID(s string) bool { return strings.HasPrefix(s, "ID") }

func tok(text string, x, y float64) Token {
	return Token{Text: text, Box: Box{X: x, Y: y, W: 20, H: 8}}
}

func TestClusterSeparatesCards(t *testing.T) {
	win := Window{Left: 10, Right: 150, Above: 5, Below: 60}
	var tokens []Token
	for i, x := range []float64{0, 300, 600} {
		n := string(rune('A' + i))
		tokens = append(tokens,
			tok("ID"+n, x, 0),
			tok("name"+n, x, 20),
			tok("age"+n, x+40, 40),
		)
	}

	regions := Cluster(tokens, isID, win, TopLeft, 3)
	if len(regions) != 3 {
		t.Fatalf("got %d regions, want 3", len(regions))
	}
	for i, r := range regions {
		n := string(rune('A' + i))
		got := Flatten(r.Tokens)
		want := "ID" + n + " name" + n + " age" + n
		if got != want {
			t.Errorf("region %d = %q, want %q", i, got, want)
		}
	}
}

func TestClusterBottomLeftOrigin(t *testing.T) {
	win := Window{Left: 10, Right: 150, Above: 5, Below: 60}
	tokens := []Token{
		tok("age", 40, 660),
		tok("IDX", 0, 700),
		tok("name", 0, 680),
		tok("stray", 0, 800),
	}
	regions := Cluster(tokens, isID, win, BottomLeft, 3)
	if len(regions) != 1 {
		t.Fatalf("got %d regions", len(regions))
	}
	if got := Flatten(regions[0].Tokens); got != "IDX name age" {
		t.Errorf("tokens = %q", got)
	}
}

func TestSortReadingOrderTolerance(t *testing.T) {
	tokens := []Token{tok("world", 50, 101), tok("hello", 0, 100), tok("next", 0, 120)}
	got := Flatten(SortReadingOrder(tokens, TopLeft, 2))
	if got != "hello world next" {
		t.Errorf("got %q", got)
	}
}

func TestTopBand(t *testing.T) {
	tokens := []Token{tok("head", 0, 5), tok("body", 0, 300)}
	if got := Flatten(TopBand(tokens, 50, TopLeft)); got != "head" {
		t.Errorf("TopLeft band = %q", got)
	}
	if got := Flatten(TopBand(tokens, 250, BottomLeft)); got != "body" {
		t.Errorf("BottomLeft band = %q", got)
	}
}
