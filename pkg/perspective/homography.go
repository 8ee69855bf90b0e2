// Package perspective computes the planar projective transform taking four
// source corners onto a W x H rectangle and resamples an image through it.
package perspective

import (
	"errors"
	"math"

	"Unwarp/pkg/geometry"
)

var (
	ErrMalformedInput      = errors.New("perspective: exactly 4 source points are required")
	ErrUnsolvableTransform = errors.New("perspective: points do not define an invertible transform")
	ErrInvalidDimensions   = errors.New("perspective: destination dimensions must be positive")
)

// Matrix is a 3x3 homogeneous transform in row-major order:
//
//	[ m0 m1 m2 ]
//	[ m3 m4 m5 ]
//	[ m6 m7 m8 ]
//
// A point (x, y) maps to ((m0 x + m1 y + m2) / w, (m3 x + m4 y + m5) / w)
// with w = m6 x + m7 y + m8.
type Matrix [9]float64

func Identity() Matrix {
	return Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Apply maps p through m. ok is false when p lands on the line at infinity.
func (m Matrix) Apply(p geometry.Point) (geometry.Point, bool) {
	w := m[6]*p.X + m[7]*p.Y + m[8]
	if math.Abs(w) < 1e-12 {
		return geometry.Point{}, false
	}
	return geometry.Point{
		X: (m[0]*p.X + m[1]*p.Y + m[2]) / w,
		Y: (m[3]*p.X + m[4]*p.Y + m[5]) / w,
	}, true
}

// Mul returns m * n, i.e. n applied first.
func (m Matrix) Mul(n Matrix) Matrix {
	var out Matrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = m[r*3]*n[c] + m[r*3+1]*n[3+c] + m[r*3+2]*n[6+c]
		}
	}
	return out
}

func (m Matrix) Det() float64 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// Inverse returns the inverse transform normalised so that the bottom-right
// entry is 1 when possible.
func (m Matrix) Inverse() (Matrix, error) {
	det := m.Det()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Matrix{}, ErrUnsolvableTransform
	}

	adj := Matrix{
		m[4]*m[8] - m[5]*m[7], m[2]*m[7] - m[1]*m[8], m[1]*m[5] - m[2]*m[4],
		m[5]*m[6] - m[3]*m[8], m[0]*m[8] - m[2]*m[6], m[2]*m[3] - m[0]*m[5],
		m[3]*m[7] - m[4]*m[6], m[1]*m[6] - m[0]*m[7], m[0]*m[4] - m[1]*m[3],
	}
	inv := Matrix{}
	for i := range adj {
		inv[i] = adj[i] / det
	}
	return inv.normalize(), nil
}

func (m Matrix) normalize() Matrix {
	if math.Abs(m[8]) < 1e-12 {
		return m
	}
	out := m
	for i := range out {
		out[i] /= m[8]
	}
	return out
}

// Solve computes the homography mapping src[i] onto dst[i] for i = 0..3 with
// the bottom-right entry fixed to 1. It fails when three points of either
// quadrilateral are collinear or the 8x8 system is singular.
func Solve(src, dst [4]geometry.Point) (Matrix, error) {
	if degenerate(src) || degenerate(dst) {
		return Matrix{}, ErrUnsolvableTransform
	}

	var a [8][9]float64
	for i := 0; i < 4; i++ {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		a[2*i] = [9]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x, x}
		a[2*i+1] = [9]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y, y}
	}

	h, ok := gaussJordan(a)
	if !ok {
		return Matrix{}, ErrUnsolvableTransform
	}
	m := Matrix{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}

	// The solver works on a fixed h22; make sure the answer really maps the
	// correspondences before trusting it.
	span := 1.0
	for i := 0; i < 4; i++ {
		span = math.Max(span, geometry.Dist(dst[i], dst[(i+1)%4]))
	}
	for i := 0; i < 4; i++ {
		p, ok := m.Apply(src[i])
		if !ok || geometry.Dist(p, dst[i]) > 1e-6*span {
			return Matrix{}, ErrUnsolvableTransform
		}
	}
	return m, nil
}

// ToRectangle returns the transform mapping the four source corners, taken
// in order, onto (0,0), (W,0), (W,H), (0,H).
func ToRectangle(src []geometry.Point, width, height int) (Matrix, error) {
	if len(src) != 4 {
		return Matrix{}, ErrMalformedInput
	}
	if width <= 0 || height <= 0 {
		return Matrix{}, ErrInvalidDimensions
	}

	w, h := float64(width), float64(height)
	dst := [4]geometry.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
	return Solve([4]geometry.Point{src[0], src[1], src[2], src[3]}, dst)
}

// FitSize picks an output size from the quadrilateral itself: the longer of
// each pair of opposite edges.
func FitSize(src [4]geometry.Point) (int, int) {
	width := math.Max(geometry.Dist(src[1], src[0]), geometry.Dist(src[2], src[3]))
	height := math.Max(geometry.Dist(src[3], src[0]), geometry.Dist(src[2], src[1]))
	return max(int(width), 1), max(int(height), 1)
}

func degenerate(q [4]geometry.Point) bool {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			for k := j + 1; k < 4; k++ {
				if geometry.Collinear(q[i], q[j], q[k]) {
					return true
				}
			}
		}
	}
	return false
}

// gaussJordan solves the augmented 8x9 system with partial pivoting.
func gaussJordan(a [8][9]float64) ([8]float64, bool) {
	const n = 8

	scale := 0.0
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			scale = math.Max(scale, math.Abs(a[r][c]))
		}
	}
	if scale == 0 {
		return [8]float64{}, false
	}
	eps := 1e-12 * scale

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) <= eps {
			return [8]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]

		div := a[col][col]
		for c := col; c <= n; c++ {
			a[col][c] /= div
		}
		for r := 0; r < n; r++ {
			if r == col || a[r][col] == 0 {
				continue
			}
			f := a[r][col]
			for c := col; c <= n; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	var x [8]float64
	for i := 0; i < n; i++ {
		x[i] = a[i][n]
	}
	return x, true
}
