// Package region implements sets of pixels described by rectangles.
//
// A Region is always kept in y-x banded form: its rectangles are
// disjoint, sorted by Min.Y then Min.X, every rectangle in a band
// shares the same vertical extent, and vertically adjacent bands with
// identical horizontal spans are merged. Because the form is canonical,
// two regions covering the same pixels have identical rectangle lists.
package region

import (
	"image"
	"slices"
	"strings"
)

// Region is a set of pixels. The zero value is the empty region.
type Region struct {
	rects []image.Rectangle
}

// Rect returns a region covering r.
func Rect(r image.Rectangle) Region {
	r = r.Canon()
	if r.Empty() {
		return Region{}
	}
	return Region{rects: []image.Rectangle{r}}
}

// XYWH returns a region covering the rectangle at (x, y) with the
// given size.
func XYWH(x, y, w, h int) Region {
	return Rect(image.Rect(x, y, x+w, y+h))
}

// Rects returns the rectangles that make up r. The returned slice must
// not be modified.
func (r Region) Rects() []image.Rectangle {
	return r.rects
}

// Empty reports whether r contains no pixels.
func (r Region) Empty() bool {
	return len(r.rects) == 0
}

// Bounds returns the smallest rectangle containing r.
func (r Region) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, rect := range r.rects {
		b = b.Union(rect)
	}
	return b
}

// Area returns the number of pixels in r.
func (r Region) Area() int {
	var a int
	for _, rect := range r.rects {
		a += rect.Dx() * rect.Dy()
	}
	return a
}

// Contains reports whether the pixel at p is in r.
func (r Region) Contains(p image.Point) bool {
	for _, rect := range r.rects {
		if p.In(rect) {
			return true
		}
	}
	return false
}

// ContainsRect reports whether every pixel of rect is in r.
func (r Region) ContainsRect(rect image.Rectangle) bool {
	return Rect(rect).Subtract(r).Empty()
}

// Equal reports whether r and o cover exactly the same pixels.
func (r Region) Equal(o Region) bool {
	return slices.Equal(r.rects, o.rects)
}

// Clone returns a copy of r that shares no memory with it.
func (r Region) Clone() Region {
	return Region{rects: slices.Clone(r.rects)}
}

// Union returns the pixels in either r or o.
func (r Region) Union(o Region) Region {
	switch {
	case o.Empty():
		return r
	case r.Empty():
		return o
	}
	return combine(r.rects, o.rects, func(a, b bool) bool { return a || b })
}

// UnionRect returns the pixels in either r or rect.
func (r Region) UnionRect(rect image.Rectangle) Region {
	return r.Union(Rect(rect))
}

// Intersect returns the pixels in both r and o.
func (r Region) Intersect(o Region) Region {
	if r.Empty() || o.Empty() {
		return Region{}
	}
	return combine(r.rects, o.rects, func(a, b bool) bool { return a && b })
}

// IntersectRect returns the pixels in both r and rect.
func (r Region) IntersectRect(rect image.Rectangle) Region {
	return r.Intersect(Rect(rect))
}

// Subtract returns the pixels in r that are not in o.
func (r Region) Subtract(o Region) Region {
	if r.Empty() || o.Empty() {
		return r
	}
	return combine(r.rects, o.rects, func(a, b bool) bool { return a && !b })
}

// SubtractRect returns the pixels in r that are not in rect.
func (r Region) SubtractRect(rect image.Rectangle) Region {
	return r.Subtract(Rect(rect))
}

// Translate returns r moved by p.
func (r Region) Translate(p image.Point) Region {
	rects := make([]image.Rectangle, 0, len(r.rects))
	for _, rect := range r.rects {
		rects = append(rects, rect.Add(p))
	}
	return Region{rects: rects}
}

func (r Region) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, rect := range r.rects {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(rect.String())
	}
	sb.WriteByte('}')
	return sb.String()
}

type span struct {
	x0, x1 int
}

type band struct {
	y0, y1 int
	spans  []span
}

// combine evaluates op for every pixel covered by a or b and returns
// the canonical region of pixels for which it is true.
func combine(a, b []image.Rectangle, op func(inA, inB bool) bool) Region {
	ys := make([]int, 0, 2*(len(a)+len(b)))
	for _, rect := range a {
		ys = append(ys, rect.Min.Y, rect.Max.Y)
	}
	for _, rect := range b {
		ys = append(ys, rect.Min.Y, rect.Max.Y)
	}
	slices.Sort(ys)
	ys = slices.Compact(ys)

	var bands []band
	for i := 0; i+1 < len(ys); i++ {
		y0, y1 := ys[i], ys[i+1]
		spans := combineSpans(spansIn(a, y0, y1), spansIn(b, y0, y1), op)
		if len(spans) == 0 {
			continue
		}

		if n := len(bands); n > 0 {
			last := &bands[n-1]
			if (last.y1 == y0) && slices.Equal(last.spans, spans) {
				last.y1 = y1
				continue
			}
		}
		bands = append(bands, band{y0: y0, y1: y1, spans: spans})
	}

	var rects []image.Rectangle
	for _, b := range bands {
		for _, s := range b.spans {
			rects = append(rects, image.Rect(s.x0, b.y0, s.x1, b.y1))
		}
	}
	return Region{rects: rects}
}

// spansIn returns the merged horizontal spans of the rectangles that
// cover the whole band [y0, y1).
func spansIn(rects []image.Rectangle, y0, y1 int) []span {
	var spans []span
	for _, rect := range rects {
		if (rect.Min.Y <= y0) && (rect.Max.Y >= y1) {
			spans = append(spans, span{rect.Min.X, rect.Max.X})
		}
	}
	if len(spans) < 2 {
		return spans
	}

	slices.SortFunc(spans, func(s1, s2 span) int { return s1.x0 - s2.x0 })
	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.x0 <= last.x1 {
			last.x1 = max(last.x1, s.x1)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

func combineSpans(a, b []span, op func(inA, inB bool) bool) []span {
	xs := make([]int, 0, 2*(len(a)+len(b)))
	for _, s := range a {
		xs = append(xs, s.x0, s.x1)
	}
	for _, s := range b {
		xs = append(xs, s.x0, s.x1)
	}
	slices.Sort(xs)
	xs = slices.Compact(xs)

	var out []span
	for i := 0; i+1 < len(xs); i++ {
		x0, x1 := xs[i], xs[i+1]
		if !op(covers(a, x0), covers(b, x0)) {
			continue
		}

		if n := len(out); (n > 0) && (out[n-1].x1 == x0) {
			out[n-1].x1 = x1
			continue
		}
		out = append(out, span{x0, x1})
	}
	return out
}

func covers(spans []span, x int) bool {
	for _, s := range spans {
		if (s.x0 <= x) && (x < s.x1) {
			return true
		}
	}
	return false
}
