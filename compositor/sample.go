package compositor

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Catmull-Rom cubic convolution, a = -0.5.
func cubic(t float64) float64 {
	t = math.Abs(t)
	switch {
	case t < 1:
		return (1.5*t-2.5)*t*t + 1
	case t < 2:
		return ((-0.5*t+2.5)*t-4)*t + 2
	}
	return 0
}

type taps struct {
	idx [4]int
	wt  [4]float64
}

// sampleTaps maps each of n destination pixels to the four source pixels
// around its centre in a source m pixels long. Indices past an edge repeat
// the edge pixel.
func sampleTaps(n, m int) []taps {
	out := make([]taps, n)
	ratio := float64(m) / float64(n)
	for i := range out {
		c := (float64(i)+0.5)*ratio - 0.5
		base := math.Floor(c)
		f := c - base
		for k := 0; k < 4; k++ {
			j := int(base) - 1 + k
			out[i].idx[k] = min(max(j, 0), m-1)
			out[i].wt[k] = cubic(f - float64(k-1))
		}
	}
	return out
}

func clampTo(v float64, hi uint8) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= float64(hi) {
		return hi
	}
	return uint8(v + 0.5)
}

// scaleSampled evaluates the bicubic kernel at each destination pixel's
// centre. The kernel keeps its width when shrinking, so hard edges in the
// source stay hard instead of being averaged together.
func scaleSampled(img image.Image, w, h int) *image.RGBA {
	sb := img.Bounds()
	src, ok := img.(*image.RGBA)
	if !ok {
		src = image.NewRGBA(image.Rect(0, 0, sb.Dx(), sb.Dy()))
		draw.Draw(src, src.Bounds(), img, sb.Min, draw.Src)
	}
	org := src.Rect.Min

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xs := sampleTaps(w, sb.Dx())
	ys := sampleTaps(h, sb.Dy())

	for y, ty := range ys {
		for x, tx := range xs {
			var acc [4]float64
			for j := 0; j < 4; j++ {
				for i := 0; i < 4; i++ {
					wt := ty.wt[j] * tx.wt[i]
					if wt == 0 {
						continue
					}
					p := src.PixOffset(org.X+tx.idx[i], org.Y+ty.idx[j])
					s := src.Pix[p : p+4 : p+4]
					acc[0] += wt * float64(s[0])
					acc[1] += wt * float64(s[1])
					acc[2] += wt * float64(s[2])
					acc[3] += wt * float64(s[3])
				}
			}

			d := dst.PixOffset(x, y)
			// Premultiplied, so no channel may exceed alpha
			a := clampTo(acc[3], 0xFF)
			dst.Pix[d+0] = clampTo(acc[0], a)
			dst.Pix[d+1] = clampTo(acc[1], a)
			dst.Pix[d+2] = clampTo(acc[2], a)
			dst.Pix[d+3] = a
		}
	}
	return dst
}
