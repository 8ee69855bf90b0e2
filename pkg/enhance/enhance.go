// Package enhance improves the contrast and noise level of a corrected image:
// contrast-limited adaptive histogram equalisation on the lightness channel
// followed by an edge-preserving bilateral filter.
package enhance

import (
	"context"
	"errors"
	"image"
	"math"
	"runtime"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/sync/errgroup"
)

var ErrEmptyImage = errors.New("enhance: image has no pixels")

type Config struct {
	ClipLimit  float64
	TileGrid   int
	Diameter   int
	SigmaColor float64
	SigmaSpace float64
}

func DefaultConfig() Config {
	return Config{
		ClipLimit:  2.0,
		TileGrid:   8,
		Diameter:   9,
		SigmaColor: 75,
		SigmaSpace: 75,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ClipLimit <= 0 {
		c.ClipLimit = d.ClipLimit
	}
	if c.TileGrid <= 0 {
		c.TileGrid = d.TileGrid
	}
	if c.Diameter <= 0 {
		c.Diameter = d.Diameter
	}
	if c.SigmaColor <= 0 {
		c.SigmaColor = d.SigmaColor
	}
	if c.SigmaSpace <= 0 {
		c.SigmaSpace = d.SigmaSpace
	}
	return c
}

// Enhance runs CLAHE followed by the bilateral filter. Fully transparent
// pixels are left as they are.
func Enhance(ctx context.Context, img image.Image, cfg Config) (*image.NRGBA, error) {
	cfg = cfg.withDefaults()
	src := imaging.Clone(img)
	if src.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	eq, err := CLAHE(ctx, src, cfg.ClipLimit, cfg.TileGrid)
	if err != nil {
		return nil, err
	}
	return Bilateral(ctx, eq, cfg.Diameter, cfg.SigmaColor, cfg.SigmaSpace)
}

// CLAHE equalises the L channel of the Lab representation of img tile by
// tile, limiting each histogram bin to clipLimit times the mean bin height.
func CLAHE(ctx context.Context, img *image.NRGBA, clipLimit float64, grid int) (*image.NRGBA, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, ErrEmptyImage
	}
	b0 := img.Bounds().Min
	gx, gy := min(grid, w), min(grid, h)
	tw, th := (w+gx-1)/gx, (h+gy-1)/gy
	// Rounding the tile size up can leave trailing tiles empty; drop them.
	gx, gy = (w+tw-1)/tw, (h+th-1)/th

	lab := make([][3]float64, w*h)
	bins := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(b0.X+x, b0.Y+y)
			c := colorful.Color{
				R: float64(img.Pix[i]) / 255,
				G: float64(img.Pix[i+1]) / 255,
				B: float64(img.Pix[i+2]) / 255,
			}
			l, a, b := c.Lab()
			lab[y*w+x] = [3]float64{l, a, b}
			bins[y*w+x] = uint8(math.Round(math.Max(0, math.Min(l, 1)) * 255))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	luts := make([][256]float64, gx*gy)
	for ty := 0; ty < gy; ty++ {
		for tx := 0; tx < gx; tx++ {
			x0, y0 := tx*tw, ty*th
			x1, y1 := min(x0+tw, w), min(y0+th, h)
			luts[ty*gx+tx] = tileLUT(bins, w, x0, y0, x1, y1, clipLimit)
		}
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	err := parallelRows(ctx, h, func(y int) {
		// Tile centres sit at (t + 0.5) * size; interpolate between the four
		// nearest so tile seams do not show.
		fy := (float64(y)+0.5)/float64(th) - 0.5
		ty0 := clampInt(int(math.Floor(fy)), 0, gy-1)
		ty1 := clampInt(ty0+1, 0, gy-1)
		wy := math.Max(0, math.Min(1, fy-float64(ty0)))

		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tw) - 0.5
			tx0 := clampInt(int(math.Floor(fx)), 0, gx-1)
			tx1 := clampInt(tx0+1, 0, gx-1)
			wx := math.Max(0, math.Min(1, fx-float64(tx0)))

			v := bins[y*w+x]
			top := luts[ty0*gx+tx0][v]*(1-wx) + luts[ty0*gx+tx1][v]*wx
			bottom := luts[ty1*gx+tx0][v]*(1-wx) + luts[ty1*gx+tx1][v]*wx
			l := top*(1-wy) + bottom*wy

			i := img.PixOffset(b0.X+x, b0.Y+y)
			o := out.PixOffset(x, y)
			px := lab[y*w+x]
			r, g, b := colorful.Lab(l, px[1], px[2]).Clamped().RGB255()
			out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3] = r, g, b, img.Pix[i+3]
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// tileLUT builds the clipped, redistributed cumulative mapping for one tile.
// Values are lightness in [0, 1].
func tileLUT(bins []uint8, stride, x0, y0, x1, y1 int, clipLimit float64) [256]float64 {
	var hist [256]float64
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[bins[y*stride+x]]++
			n++
		}
	}

	var lut [256]float64
	if n == 0 {
		for i := range lut {
			lut[i] = float64(i) / 255
		}
		return lut
	}

	limit := math.Max(1, clipLimit*float64(n)/256)
	excess := 0.0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	bonus := excess / 256
	for i := range hist {
		hist[i] += bonus
	}

	sum := 0.0
	for i := range hist {
		sum += hist[i]
		lut[i] = sum / float64(n)
	}
	return lut
}

// Bilateral smooths img with a spatial Gaussian of sigmaSpace over a
// diameter x diameter window, weighting neighbours by colour similarity
// with sigmaColor (in 0-255 units).
func Bilateral(ctx context.Context, img *image.NRGBA, diameter int, sigmaColor, sigmaSpace float64) (*image.NRGBA, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, ErrEmptyImage
	}
	radius := max(diameter/2, 1)

	spatial := make([]float64, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			spatial[(dy+radius)*(2*radius+1)+dx+radius] = math.Exp(-d2 / (2 * sigmaSpace * sigmaSpace))
		}
	}
	var rangeW [3*255 + 1]float64
	for i := range rangeW {
		d := float64(i)
		rangeW[i] = math.Exp(-d * d / (2 * sigmaColor * sigmaColor))
	}

	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	err := parallelRows(ctx, h, func(y int) {
		for x := 0; x < w; x++ {
			ci := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			o := out.PixOffset(x, y)
			if img.Pix[ci+3] == 0 {
				copy(out.Pix[o:o+4], img.Pix[ci:ci+4])
				continue
			}

			var sr, sg, sb, sw float64
			for dy := -radius; dy <= radius; dy++ {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -radius; dx <= radius; dx++ {
					nx := x + dx
					if nx < 0 || nx >= w {
						continue
					}
					ni := img.PixOffset(b.Min.X+nx, b.Min.Y+ny)
					if img.Pix[ni+3] == 0 {
						continue
					}
					diff := absDiff(img.Pix[ci], img.Pix[ni]) +
						absDiff(img.Pix[ci+1], img.Pix[ni+1]) +
						absDiff(img.Pix[ci+2], img.Pix[ni+2])
					wt := spatial[(dy+radius)*(2*radius+1)+dx+radius] * rangeW[diff]
					sr += wt * float64(img.Pix[ni])
					sg += wt * float64(img.Pix[ni+1])
					sb += wt * float64(img.Pix[ni+2])
					sw += wt
				}
			}
			out.Pix[o] = round8(sr / sw)
			out.Pix[o+1] = round8(sg / sw)
			out.Pix[o+2] = round8(sb / sw)
			out.Pix[o+3] = img.Pix[ci+3]
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parallelRows(ctx context.Context, h int, row func(y int)) error {
	workers := runtime.GOMAXPROCS(0)
	band := (h + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for y0 := 0; y0 < h; y0 += band {
		y0, y1 := y0, min(y0+band, h)
		g.Go(func() error {
			for y := y0; y < y1; y++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				row(y)
			}
			return nil
		})
	}
	return g.Wait()
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func round8(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
