package preview

import (
	"image"
	"image/color"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	ellipsis = "..."
	// Horizontal room left around the label
	labelPadding = 10
)

var red = color.RGBA{R: 0xFF, A: 0xFF}

// Placeholder is shown while the real preview renders.
func Placeholder(size image.Rectangle, name string) *image.RGBA {
	return drawLabel(size, name, color.White, color.Black, false)
}

// ErrorImage marks a file that could not be rendered.
func ErrorImage(size image.Rectangle, name string) *image.RGBA {
	return drawLabel(size, name, color.Black, red, true)
}

func drawLabel(size image.Rectangle, name string, bg, fg color.Color, cross bool) *image.RGBA {
	w, h := size.Dx(), size.Dy()
	img := image.NewRGBA(image.Rect(0, 0, max(w, 0), max(h, 0)))
	if w <= 0 || h <= 0 {
		return img
	}

	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	for x := 0; x < w; x++ {
		img.Set(x, 0, fg)
		img.Set(x, h-1, fg)
	}
	for y := 0; y < h; y++ {
		img.Set(0, y, fg)
		img.Set(w-1, y, fg)
	}

	if cross {
		n := max(w, h)
		for i := 0; i < n; i++ {
			x := i * (w - 1) / max(n-1, 1)
			y := i * (h - 1) / max(n-1, 1)
			img.Set(x, y, fg)
			img.Set(w-1-x, y, fg)
		}
	}

	face := basicfont.Face7x13
	text := fitLabel(face, name, w)
	d := font.Drawer{Dst: img, Src: image.NewUniform(fg), Face: face}
	m := face.Metrics()
	tw := d.MeasureString(text).Ceil()
	th := (m.Ascent + m.Descent).Ceil()
	d.Dot = fixed.P((w-tw)/2, (h-th)/2+m.Ascent.Ceil())
	d.DrawString(text)

	return img
}

// fitLabel shortens text with an ellipsis until it fits in width, leaving some
// padding. Text that already fits is returned unchanged.
func fitLabel(face font.Face, text string, width int) string {
	if font.MeasureString(face, text).Ceil()+labelPadding <= width {
		return text
	}

	e := font.MeasureString(face, ellipsis).Ceil()
	cut := text
	for len(cut) > 0 && font.MeasureString(face, cut).Ceil()+e+labelPadding > width {
		_, sz := utf8.DecodeLastRuneInString(cut)
		cut = cut[:len(cut)-sz]
	}
	return cut + ellipsis
}
