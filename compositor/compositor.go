// Package compositor turns an arbitrary image into a single wallpaper that
// spans every monitor of a layout.
package compositor

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"github.com/awused/wallpaper-refinery/layout"
	"golang.org/x/image/draw"
)

var (
	ErrBadInput          = errors.New("Unable to read input image")
	ErrNoExtension       = errors.New("Output filename does not contain an extension")
	ErrUnsupportedFormat = errors.New("Unsupported image type")
	ErrOutputExists      = errors.New("Output file already exists")
	ErrEmptyLayout       = errors.New("No monitors available")
)

// Half transparent black, premultiplied
var dim = color.RGBA{A: 128}

type Compositor struct {
	layout *layout.Layout
	bounds image.Rectangle
	codec  Codec

	maskOnce sync.Once
	mask     *image.RGBA
}

type Option func(*Compositor)

func WithCodec(c Codec) Option {
	return func(co *Compositor) {
		co.codec = c
	}
}

func New(l *layout.Layout, opts ...Option) *Compositor {
	c := &Compositor{layout: l, bounds: l.Bounds(), codec: ImagingCodec{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Compositor) Layout() *layout.Layout {
	return c.layout
}

func (c *Compositor) Bounds() image.Rectangle {
	return c.bounds
}

// Resize stretches img to exactly fill the layout's bounds using bicubic
// interpolation. The aspect ratio is not kept. An image that already has the
// right size is returned as is.
func (c *Compositor) Resize(img image.Image) image.Image {
	w, h := c.bounds.Dx(), c.bounds.Dy()
	src := img.Bounds()
	if src.Dx() == w && src.Dy() == h {
		return img
	}

	// x/image widens the kernel when shrinking, which blurs monitor-sized
	// blocks into each other
	if src.Dx() > w || src.Dy() > h {
		return scaleSampled(img, w, h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	return dst
}

// Translate moves the layout's top left corner to the origin. The image is
// drawn up to four times so that whatever falls off one edge wraps around to
// the opposite one.
func (c *Compositor) Translate(img image.Image) image.Image {
	off := c.bounds.Min
	if off.X == 0 && off.Y == 0 {
		return img
	}

	w, h := c.bounds.Dx(), c.bounds.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	put := func(p image.Point) {
		r := image.Rectangle{Min: p, Max: p.Add(image.Pt(w, h))}
		draw.Draw(dst, r, img, img.Bounds().Min, draw.Src)
	}

	put(off)
	if off.X != 0 {
		put(image.Pt(off.X+w, off.Y))
	}
	if off.Y != 0 {
		put(image.Pt(off.X, off.Y+h))
	}
	if off.X != 0 && off.Y != 0 {
		put(image.Pt(off.X+w, off.Y+h))
	}
	return dst
}

// FormatImage produces the finished wallpaper.
func (c *Compositor) FormatImage(img image.Image) (image.Image, error) {
	if c.layout.Empty() {
		return nil, ErrEmptyLayout
	}
	return c.Translate(c.Resize(img)), nil
}

// Mask is a bounds sized image that dims everything not shown on a monitor.
// It is built once per Compositor and must not be modified.
func (c *Compositor) Mask() image.Image {
	c.maskOnce.Do(func() {
		m := image.NewRGBA(image.Rect(0, 0, c.bounds.Dx(), c.bounds.Dy()))
		draw.Draw(m, m.Bounds(), image.NewUniform(dim), image.Point{}, draw.Src)
		for _, r := range c.layout.Monitors() {
			draw.Draw(m, r.Sub(c.bounds.Min), image.Transparent, image.Point{}, draw.Src)
		}
		c.mask = m
	})
	return c.mask
}

// PreviewImage resizes img and dims the parts of the canvas that no monitor
// shows. It is not translated, so the canvas keeps its natural orientation.
func (c *Compositor) PreviewImage(img image.Image) (image.Image, error) {
	if c.layout.Empty() {
		return nil, ErrEmptyLayout
	}

	resized := c.Resize(img)
	out, ok := resized.(*image.RGBA)
	if !ok || resized == img {
		// Never draw on the caller's image
		out = image.NewRGBA(image.Rect(0, 0, c.bounds.Dx(), c.bounds.Dy()))
		draw.Draw(out, out.Bounds(), resized, resized.Bounds().Min, draw.Src)
	}

	draw.Draw(out, out.Bounds(), c.Mask(), image.Point{}, draw.Over)
	return out, nil
}

// Decode reads the image at path. Any failure, including a missing file, is
// reported as ErrBadInput.
func (c *Compositor) Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w [%s]: %w", ErrBadInput, path, err)
	}
	defer f.Close()

	img, err := c.codec.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w [%s]: %w", ErrBadInput, path, err)
	}
	return img, nil
}

func (c *Compositor) FormatFile(path string) (image.Image, error) {
	img, err := c.Decode(path)
	if err != nil {
		return nil, err
	}
	return c.FormatImage(img)
}

func (c *Compositor) PreviewFile(path string) (image.Image, error) {
	img, err := c.Decode(path)
	if err != nil {
		return nil, err
	}
	return c.PreviewImage(img)
}

// SaveImage encodes img in the format implied by path's extension. The
// destination is either completely written or left alone.
func (c *Compositor) SaveImage(img image.Image, path string, overwrite bool) error {
	ext := filepath.Ext(path)
	if ext == "" || ext == "." {
		return fmt.Errorf("%w [%s]", ErrNoExtension, path)
	}
	if !c.codec.Supports(ext) {
		return fmt.Errorf("%w (%s) [%s]", ErrUnsupportedFormat, ext, path)
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w [%s]", ErrOutputExists, path)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("Error calling os.Stat on output [%s]: %w", path, err)
		}
	}

	// Overwriting a symlink writes through to the file it points at
	target := path
	if overwrite {
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			target = resolved
		}
	}
	mode := os.FileMode(0644)
	if fi, err := os.Stat(target); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".wallpaper-*"+ext)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	err = tmp.Chmod(mode)
	w := bufio.NewWriter(tmp)
	if err == nil {
		err = c.codec.Encode(w, img, ext)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("Error writing [%s]: %w", path, err)
	}

	return publish(tmpName, target, overwrite)
}

func publish(tmp, path string, overwrite bool) error {
	if overwrite {
		return os.Rename(tmp, path)
	}

	// Link refuses to replace a file created after the earlier check
	err := os.Link(tmp, path)
	if os.IsExist(err) {
		return fmt.Errorf("%w [%s]", ErrOutputExists, path)
	}
	if err != nil {
		// Filesystems without hard links
		if _, serr := os.Stat(path); serr == nil {
			return fmt.Errorf("%w [%s]", ErrOutputExists, path)
		}
		return os.Rename(tmp, path)
	}
	return nil
}
