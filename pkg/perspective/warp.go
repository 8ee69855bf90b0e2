package perspective

import (
	"context"
	"image"
	"image/color"
	"math"
	"runtime"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"Unwarp/pkg/geometry"
)

type options struct {
	background color.NRGBA
	workers    int
}

type Option func(*options)

// WithBackground sets the fill for destination pixels whose source location
// falls outside the image. The default is transparent black.
func WithBackground(c color.Color) Option {
	return func(o *options) {
		o.background = color.NRGBAModel.Convert(c).(color.NRGBA)
	}
}

// WithWorkers bounds the number of goroutines used for resampling.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// Warp maps the quadrilateral given by corners (selection order: top-left,
// top-right, bottom-right, bottom-left) onto a width x height image.
func Warp(ctx context.Context, src image.Image, corners []geometry.Point, width, height int, opts ...Option) (*image.NRGBA, error) {
	m, err := ToRectangle(corners, width, height)
	if err != nil {
		return nil, err
	}
	inv, err := m.Inverse()
	if err != nil {
		return nil, err
	}
	return WarpInverse(ctx, src, inv, width, height, opts...)
}

// WarpInverse fills a width x height image by sending every destination pixel
// (u, v) through inv and bilinearly sampling src at the result.
func WarpInverse(ctx context.Context, src image.Image, inv Matrix, width, height int, opts ...Option) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}

	o := options{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}

	s := imaging.Clone(src)
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))

	band := (height + o.workers - 1) / o.workers
	g, gctx := errgroup.WithContext(ctx)
	for y0 := 0; y0 < height; y0 += band {
		y0, y1 := y0, min(y0+band, height)
		g.Go(func() error {
			for v := y0; v < y1; v++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				row := dst.Pix[v*dst.Stride : v*dst.Stride+width*4]
				for u := 0; u < width; u++ {
					c := o.background
					if p, ok := inv.Apply(geometry.Point{X: float64(u), Y: float64(v)}); ok {
						if sampled, inside := Bilinear(s, p.X, p.Y); inside {
							c = sampled
						}
					}
					row[u*4+0] = c.R
					row[u*4+1] = c.G
					row[u*4+2] = c.B
					row[u*4+3] = c.A
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dst, nil
}

// boundsSlack absorbs rounding noise for samples that sit exactly on the
// image border.
const boundsSlack = 1e-6

// Bilinear samples img at the continuous location (x, y) by blending the four
// surrounding pixels. Integer locations return the pixel itself. inside is
// false when (x, y) lies outside [0, w) x [0, h).
func Bilinear(img *image.NRGBA, x, y float64) (color.NRGBA, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if x < -boundsSlack || y < -boundsSlack || x >= float64(w) || y >= float64(h) {
		return color.NRGBA{}, false
	}
	x = math.Max(x, 0)
	y = math.Max(y, 0)

	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	var acc [4]float64
	blend := func(px, py int, weight float64) {
		if weight == 0 {
			return
		}
		i := img.PixOffset(b.Min.X+px, b.Min.Y+py)
		a := float64(img.Pix[i+3])
		// Premultiply so transparent neighbours do not bleed colour.
		acc[0] += float64(img.Pix[i+0]) * a * weight
		acc[1] += float64(img.Pix[i+1]) * a * weight
		acc[2] += float64(img.Pix[i+2]) * a * weight
		acc[3] += a * weight
	}
	blend(x0, y0, (1-fx)*(1-fy))
	blend(x1, y0, fx*(1-fy))
	blend(x0, y1, (1-fx)*fy)
	blend(x1, y1, fx*fy)

	if acc[3] == 0 {
		return color.NRGBA{}, true
	}
	return color.NRGBA{
		R: clamp8(acc[0] / acc[3]),
		G: clamp8(acc[1] / acc[3]),
		B: clamp8(acc[2] / acc[3]),
		A: clamp8(acc[3]),
	}, true
}

func clamp8(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
