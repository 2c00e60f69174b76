// File: internal/resolve/geometry.go

package resolve

import (
	"math"

	cdproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
)

// Candidate couples an element reference with its measured quad.
type Candidate struct {
	BackendNodeID cdproto.BackendNodeID
	ObjectID      runtime.RemoteObjectID
	Quad          dom.Quad
	Detail        string
}

// Box is the axis-aligned summary of a quad.
type Box struct {
	X, Y             float64
	Width, Height    float64
	CenterX, CenterY float64
	Area             float64
}

// BoxFromQuad reduces a four-corner quad to its axis-aligned bounds.
// Quads arrive as x1,y1 .. x4,y4 clockwise from the top-left corner,
// but rotated or degenerate quads reduce correctly too.
func BoxFromQuad(q dom.Quad) (Box, bool) {
	if len(q) != 8 {
		return Box{}, false
	}
	for _, v := range q {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Box{}, false
		}
	}
	minX, maxX := q[0], q[0]
	minY, maxY := q[1], q[1]
	for i := 2; i < 8; i += 2 {
		minX = math.Min(minX, q[i])
		maxX = math.Max(maxX, q[i])
		minY = math.Min(minY, q[i+1])
		maxY = math.Max(maxY, q[i+1])
	}
	w := maxX - minX
	h := maxY - minY
	return Box{
		X: minX, Y: minY,
		Width: w, Height: h,
		CenterX: minX + w/2, CenterY: minY + h/2,
		Area: w * h,
	}, true
}

// Visible applies the visibility floor: anything narrower or shorter
// than one CSS pixel is treated as invisible even though the node
// exists in the DOM.
func (b Box) Visible() bool {
	return b.Width >= 1 && b.Height >= 1
}

// PickLargestVisible returns the candidate with the greatest visible
// area and its box. Sub-pixel candidates are discarded; ties keep the
// earliest candidate. Returns nil when nothing survives the filter.
func PickLargestVisible(candidates []Candidate) (*Candidate, Box) {
	var best *Candidate
	var bestBox Box
	for i := range candidates {
		box, ok := BoxFromQuad(candidates[i].Quad)
		if !ok || !box.Visible() {
			continue
		}
		if best == nil || box.Area > bestBox.Area {
			best = &candidates[i]
			bestBox = box
		}
	}
	return best, bestBox
}
