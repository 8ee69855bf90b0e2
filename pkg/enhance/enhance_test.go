package enhance

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Low contrast band between 100 and 140.
			v := uint8(100 + 40*x/w)
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func spread(img *image.NRGBA) int {
	lo, hi := 255, 0
	for i := 0; i < len(img.Pix); i += 4 {
		v := int(img.Pix[i])
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return hi - lo
}

func TestCLAHE_StretchesLowContrast(t *testing.T) {
	src := gradient(64, 64)
	out, err := CLAHE(context.Background(), src, 2.0, 8)
	require.NoError(t, err)

	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.Greater(t, spread(out), spread(src))
}

func TestCLAHE_KeepsAlpha(t *testing.T) {
	src := gradient(16, 16)
	src.SetNRGBA(3, 3, color.NRGBA{})
	out, err := CLAHE(context.Background(), src, 2.0, 8)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), out.NRGBAAt(3, 3).A)
	assert.Equal(t, uint8(255), out.NRGBAAt(4, 4).A)
}

func TestBilateral_FlatImageUnchanged(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 12, 12))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 10, 120, 200, 255
	}
	out, err := Bilateral(context.Background(), src, 9, 75, 75)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestBilateral_PreservesStrongEdge(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 20, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 20; x++ {
			v := uint8(0)
			if x >= 10 {
				v = 255
			}
			src.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	out, err := Bilateral(context.Background(), src, 9, 75, 75)
	require.NoError(t, err)
	assert.Less(t, out.NRGBAAt(9, 1).R, uint8(5))
	assert.Greater(t, out.NRGBAAt(10, 1).R, uint8(250))
}

func TestBilateral_SkipsTransparent(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 6, 6))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+3] = 200, 255
	}
	src.SetNRGBA(0, 0, color.NRGBA{})
	out, err := Bilateral(context.Background(), src, 5, 75, 75)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{}, out.NRGBAAt(0, 0))
	assert.Equal(t, uint8(200), out.NRGBAAt(1, 1).R)
}

func TestEnhance(t *testing.T) {
	out, err := Enhance(context.Background(), gradient(32, 24), Config{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 24), out.Bounds())

	_, err = Enhance(context.Background(), image.NewNRGBA(image.Rectangle{}), DefaultConfig())
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestEnhance_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Enhance(ctx, gradient(32, 32), DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}
