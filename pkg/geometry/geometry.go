// Package geometry maps points between display space (the rendered element)
// and image space (intrinsic pixels of the original image).
package geometry

import (
	"math"
	"sort"
)

// Point is a 2D coordinate. Which space it lives in is decided by the caller;
// the two spaces are never mixed implicitly.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func Pt(x, y float64) Point           { return Point{X: x, Y: y} }
func Sz(width, height float64) Size   { return Size{Width: width, Height: height} }
func (s Size) Empty() bool            { return s.Width <= 0 || s.Height <= 0 }
func (p Point) Sub(q Point) Point     { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Add(q Point) Point     { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Scale(s float64) Point { return Point{p.X * s, p.Y * s} }
func Cross(a, b Point) float64        { return a.X*b.Y - a.Y*b.X }
func Dist(p, q Point) float64         { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// ToImageSpace converts a display-space point into image space. While the
// display has no measured size the point is returned unchanged.
func ToImageSpace(p Point, display, img Size) Point {
	if !scalable(display, img) {
		return p
	}
	return Point{
		X: p.X * img.Width / display.Width,
		Y: p.Y * img.Height / display.Height,
	}
}

// ToDisplaySpace is the inverse of ToImageSpace, with the same zero guard.
func ToDisplaySpace(p Point, display, img Size) Point {
	if !scalable(display, img) {
		return p
	}
	return Point{
		X: p.X * display.Width / img.Width,
		Y: p.Y * display.Height / img.Height,
	}
}

func scalable(display, img Size) bool {
	return display.Width != 0 && display.Height != 0 && img.Width != 0 && img.Height != 0
}

// Clamp bounds p to [0, w-1] x [0, h-1].
func Clamp(p Point, bounds Size) Point {
	return Point{
		X: math.Max(0, math.Min(p.X, bounds.Width-1)),
		Y: math.Max(0, math.Min(p.Y, bounds.Height-1)),
	}
}

// Centroid returns the vertex average of pts.
func Centroid(pts []Point) Point {
	var c Point
	if len(pts) == 0 {
		return c
	}
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.Scale(1 / float64(len(pts)))
}

// Collinear reports whether a, b and c lie on one line, relative to the
// spread of the points so that large images do not need a looser tolerance.
func Collinear(a, b, c Point) bool {
	scale := math.Max(Dist(a, b), math.Max(Dist(b, c), Dist(a, c)))
	if scale == 0 {
		return true
	}
	return math.Abs(Cross(b.Sub(a), c.Sub(a))) <= 1e-9*scale*scale
}

// IsConvexQuad reports whether q, taken in order, forms a convex,
// non-self-intersecting quadrilateral of either winding.
func IsConvexQuad(q [4]Point) bool {
	sign := 0
	for i := 0; i < 4; i++ {
		a, b, c := q[i], q[(i+1)%4], q[(i+2)%4]
		z := Cross(b.Sub(a), c.Sub(b))
		if z == 0 {
			return false
		}
		s := 1
		if z < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return true
}

// OrderCorners sorts four points into top-left, top-right, bottom-right,
// bottom-left order by angle around their centroid (y grows downward).
func OrderCorners(q [4]Point) [4]Point {
	c := Centroid(q[:])
	pts := q
	sort.Slice(pts[:], func(i, j int) bool {
		return math.Atan2(pts[i].Y-c.Y, pts[i].X-c.X) < math.Atan2(pts[j].Y-c.Y, pts[j].X-c.X)
	})
	// Ascending angle visits the corners clockwise on screen; rotate so the
	// point with the smallest x+y leads.
	start := 0
	for i := 1; i < 4; i++ {
		if pts[i].X+pts[i].Y < pts[start].X+pts[start].Y {
			start = i
		}
	}
	var out [4]Point
	for i := 0; i < 4; i++ {
		out[i] = pts[(start+i)%4]
	}
	return out
}
