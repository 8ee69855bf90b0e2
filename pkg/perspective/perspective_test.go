package perspective

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Unwarp/pkg/geometry"
)

func scenarioCorners() []geometry.Point {
	return []geometry.Point{
		{X: 50, Y: 80},
		{X: 350, Y: 60},
		{X: 380, Y: 280},
		{X: 30, Y: 300},
	}
}

func TestToRectangle_MapsCornersExactly(t *testing.T) {
	m, err := ToRectangle(scenarioCorners(), 400, 300)
	require.NoError(t, err)

	want := []geometry.Point{{X: 0, Y: 0}, {X: 400, Y: 0}, {X: 400, Y: 300}, {X: 0, Y: 300}}
	for i, p := range scenarioCorners() {
		got, ok := m.Apply(p)
		require.True(t, ok)
		assert.InDelta(t, want[i].X, got.X, 1e-6, "corner %d x", i)
		assert.InDelta(t, want[i].Y, got.Y, 1e-6, "corner %d y", i)
	}
	assert.Equal(t, 1.0, m[8])
}

func TestToRectangle_InteriorPoints(t *testing.T) {
	m, err := ToRectangle(scenarioCorners(), 400, 300)
	require.NoError(t, err)

	// The diagonals of the quadrilateral meet at the rectangle's centre.
	got, ok := m.Apply(geometry.Point{X: 201.1732, Y: 171.6201})
	require.True(t, ok)
	assert.InDelta(t, 200, got.X, 0.01)
	assert.InDelta(t, 150, got.Y, 0.01)

	// The vertex average lands near, but not exactly on, the centre.
	c := geometry.Centroid(scenarioCorners())
	got, ok = m.Apply(c)
	require.True(t, ok)
	assert.InDelta(t, 200, got.X, 15)
	assert.InDelta(t, 150, got.Y, 15)
	assert.True(t, got.X >= 0 && got.X <= 400)
	assert.True(t, got.Y >= 0 && got.Y <= 300)
}

func TestToRectangle_Identity(t *testing.T) {
	src := []geometry.Point{{X: 0, Y: 0}, {X: 400, Y: 0}, {X: 400, Y: 300}, {X: 0, Y: 300}}
	m, err := ToRectangle(src, 400, 300)
	require.NoError(t, err)

	for i, v := range Identity() {
		assert.InDelta(t, v, m[i], 1e-9)
	}
	for _, p := range []geometry.Point{{X: 13, Y: 7}, {X: 399, Y: 299}, {X: 200, Y: 150}} {
		got, ok := m.Apply(p)
		require.True(t, ok)
		assert.InDelta(t, p.X, got.X, 1e-9)
		assert.InDelta(t, p.Y, got.Y, 1e-9)
	}
}

func TestToRectangle_Errors(t *testing.T) {
	tests := []struct {
		name   string
		src    []geometry.Point
		w, h   int
		expErr error
	}{
		{
			name:   "three points",
			src:    scenarioCorners()[:3],
			w:      400,
			h:      300,
			expErr: ErrMalformedInput,
		},
		{
			name:   "five points",
			src:    append(scenarioCorners(), geometry.Point{X: 1, Y: 1}),
			w:      400,
			h:      300,
			expErr: ErrMalformedInput,
		},
		{
			name:   "zero width",
			src:    scenarioCorners(),
			w:      0,
			h:      300,
			expErr: ErrInvalidDimensions,
		},
		{
			name:   "negative height",
			src:    scenarioCorners(),
			w:      400,
			h:      -1,
			expErr: ErrInvalidDimensions,
		},
		{
			name:   "collinear",
			src:    []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 20}, {X: 0, Y: 50}},
			w:      400,
			h:      300,
			expErr: ErrUnsolvableTransform,
		},
		{
			name:   "four collinear",
			src:    []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}},
			w:      400,
			h:      300,
			expErr: ErrUnsolvableTransform,
		},
		{
			name:   "repeated point",
			src:    []geometry.Point{{X: 5, Y: 5}, {X: 5, Y: 5}, {X: 100, Y: 100}, {X: 0, Y: 100}},
			w:      400,
			h:      300,
			expErr: ErrUnsolvableTransform,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToRectangle(tt.src, tt.w, tt.h)
			assert.ErrorIs(t, err, tt.expErr)
		})
	}
}

func TestMatrix_InverseRoundTrip(t *testing.T) {
	m, err := ToRectangle(scenarioCorners(), 400, 300)
	require.NoError(t, err)
	inv, err := m.Inverse()
	require.NoError(t, err)

	for _, p := range []geometry.Point{{X: 0, Y: 0}, {X: 123, Y: 45}, {X: 400, Y: 300}} {
		q, ok := inv.Apply(p)
		require.True(t, ok)
		back, ok := m.Apply(q)
		require.True(t, ok)
		assert.InDelta(t, p.X, back.X, 1e-6)
		assert.InDelta(t, p.Y, back.Y, 1e-6)
	}

	prod := m.Mul(inv)
	for i := range prod {
		prod[i] /= prod[8]
	}
	for i, v := range Identity() {
		assert.InDelta(t, v, prod[i], 1e-9)
	}
}

func TestMatrix_InverseSingular(t *testing.T) {
	_, err := Matrix{1, 2, 3, 2, 4, 6, 0, 0, 1}.Inverse()
	assert.ErrorIs(t, err, ErrUnsolvableTransform)
}

func TestFitSize(t *testing.T) {
	w, h := FitSize([4]geometry.Point(scenarioCorners()))
	assert.Equal(t, 350, w)
	assert.Equal(t, 222, h)

	w, h = FitSize([4]geometry.Point{})
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
}

func checkerboard(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: uint8((x + y) % 2 * 255), A: 255})
		}
	}
	return img
}

func TestWarp_IdentityReproducesSource(t *testing.T) {
	src := checkerboard(40, 30)
	corners := []geometry.Point{{X: 0, Y: 0}, {X: 40, Y: 0}, {X: 40, Y: 30}, {X: 0, Y: 30}}

	out, err := Warp(context.Background(), src, corners, 40, 30, WithWorkers(3))
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, src.Pix, out.Pix)
}

func TestWarp_OutsideUsesBackground(t *testing.T) {
	src := checkerboard(20, 20)
	// A selection larger than the image samples outside it along the edges.
	corners := []geometry.Point{{X: -10, Y: -10}, {X: 30, Y: -10}, {X: 30, Y: 30}, {X: -10, Y: 30}}

	out, err := Warp(context.Background(), src, corners, 40, 40)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{}, out.NRGBAAt(0, 0))

	red := color.NRGBA{R: 255, A: 255}
	out, err = Warp(context.Background(), src, corners, 40, 40, WithBackground(red))
	require.NoError(t, err)
	assert.Equal(t, red, out.NRGBAAt(0, 0))
	assert.Equal(t, src.NRGBAAt(5, 5), out.NRGBAAt(15, 15))
}

func TestWarp_OutputSize(t *testing.T) {
	src := checkerboard(400, 320)
	out, err := Warp(context.Background(), src, scenarioCorners(), 400, 300)
	require.NoError(t, err)
	assert.Equal(t, 400, out.Bounds().Dx())
	assert.Equal(t, 300, out.Bounds().Dy())
}

func TestWarp_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Warp(ctx, checkerboard(50, 50), scenarioCorners(), 400, 300)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBilinear(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, A: 255})

	c, ok := Bilinear(img, 0.5, 0)
	require.True(t, ok)
	assert.Equal(t, uint8(100), c.R)

	_, ok = Bilinear(img, 2, 0)
	assert.False(t, ok)
	_, ok = Bilinear(img, -0.5, 0)
	assert.False(t, ok)
}
