// Package layout groups positioned text tokens into per-record regions.
package layout

import (
	"math"
	"sort"
	"strings"
)

// Origin tells which way the vertical axis grows.
type Origin int

const (
	// TopLeft is image space: y grows downward.
	TopLeft Origin = iota
	// BottomLeft is PDF user space: y grows upward.
	BottomLeft
)

// Box is an axis-aligned rectangle spanning [X, X+W] x [Y, Y+H].
type Box struct {
	X, Y, W, H float64
}

func (b Box) contains(o Box) bool {
	return o.X >= b.X && o.Y >= b.Y && o.X+o.W <= b.X+b.W && o.Y+o.H <= b.Y+b.H
}

// Union returns the smallest box covering both.
func (b Box) Union(o Box) Box {
	x0, y0 := math.Min(b.X, o.X), math.Min(b.Y, o.Y)
	x1, y1 := math.Max(b.X+b.W, o.X+o.W), math.Max(b.Y+b.H, o.Y+o.H)
	return Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Token is a word with its position on the page.
type Token struct {
	Text string
	Box  Box
}

// Window is the search area around an anchor, measured from the anchor's
// box edges. Above and Below are visual directions regardless of Origin.
type Window struct {
	Left, Right, Above, Below float64
}

// Region is the set of tokens found in one anchor's window.
type Region struct {
	Anchor Token
	Bounds Box
	Tokens []Token
}

// Bounds returns the window rectangle around the anchor box.
func (w Window) Bounds(anchor Box, origin Origin) Box {
	b := Box{X: anchor.X - w.Left, W: anchor.W + w.Left + w.Right, H: anchor.H + w.Above + w.Below}
	if origin == BottomLeft {
		b.Y = anchor.Y - w.Below
	} else {
		b.Y = anchor.Y - w.Above
	}
	return b
}

// Cluster builds one region per anchor token, in reading order. Tokens
// inside a region are in reading order too. Regions may share tokens.
func Cluster(tokens []Token, isAnchor func(string) bool, win Window, origin Origin, rowTolerance float64) []Region {
	var anchors []Token
	for _, t := range tokens {
		if isAnchor(t.Text) {
			anchors = append(anchors, t)
		}
	}
	anchors = SortReadingOrder(anchors, origin, rowTolerance)

	regions := make([]Region, 0, len(anchors))
	for _, a := range anchors {
		bounds := win.Bounds(a.Box, origin)
		var members []Token
		for _, t := range tokens {
			if bounds.contains(t.Box) {
				members = append(members, t)
			}
		}
		regions = append(regions, Region{
			Anchor: a,
			Bounds: bounds,
			Tokens: SortReadingOrder(members, origin, rowTolerance),
		})
	}
	return regions
}

// SortReadingOrder groups tokens into rows whose vertical positions are
// within tolerance, orders rows top to bottom and tokens left to right.
func SortReadingOrder(tokens []Token, origin Origin, tolerance float64) []Token {
	if len(tokens) == 0 {
		return nil
	}
	sorted := make([]Token, len(tokens))
	copy(sorted, tokens)
	above := func(a, b float64) bool {
		if origin == BottomLeft {
			return a > b
		}
		return a < b
	}
	sort.SliceStable(sorted, func(i, j int) bool { return above(sorted[i].Box.Y, sorted[j].Box.Y) })

	var rows [][]Token
	rowY := math.NaN()
	for _, t := range sorted {
		if len(rows) == 0 || math.Abs(t.Box.Y-rowY) > tolerance {
			rows = append(rows, []Token{t})
			rowY = t.Box.Y
			continue
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], t)
	}

	out := sorted[:0]
	for _, r := range rows {
		sort.SliceStable(r, func(i, j int) bool { return r[i].Box.X < r[j].Box.X })
		out = append(out, r...)
	}
	return out
}

// Flatten joins token texts with single spaces.
func Flatten(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if s := strings.TrimSpace(t.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// TopBand returns the tokens lying visually above the limit coordinate.
func TopBand(tokens []Token, limit float64, origin Origin) []Token {
	var out []Token
	for _, t := range tokens {
		if origin == BottomLeft && t.Box.Y >= limit || origin == TopLeft && t.Box.Y+t.Box.H <= limit {
			out = append(out, t)
		}
	}
	return out
}
