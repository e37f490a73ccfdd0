// Package layout describes the rectangles of every attached monitor in
// virtual desktop coordinates and the box that bounds all of them.
package layout

import (
	"fmt"
	"image"
)

// Lister reports the rectangle of every monitor, in virtual desktop
// coordinates. Monitors left of or above the primary have negative offsets.
type Lister interface {
	ListMonitors() ([]image.Rectangle, error)
}

// ListerFunc adapts a plain function to Lister.
type ListerFunc func() ([]image.Rectangle, error)

func (f ListerFunc) ListMonitors() ([]image.Rectangle, error) {
	return f()
}

// Layout is an immutable snapshot of the monitor rectangles.
//
// Layouts are compared by pointer. Two distinct layouts describing the same
// rectangles are still different layouts, which is what the preview queue
// relies on to notice reconfiguration.
type Layout struct {
	monitors []image.Rectangle
	bounds   image.Rectangle
}

// New builds a layout from the given monitors. Bounds is always recomputed
// from the monitors and is the zero rectangle when there are none.
func New(monitors ...image.Rectangle) *Layout {
	l := &Layout{monitors: make([]image.Rectangle, len(monitors))}
	copy(l.monitors, monitors)
	l.bounds = union(l.monitors)
	return l
}

// Discover asks the lister for the current monitors. Zero monitors is not an
// error here; the returned layout is Empty and callers must not render with it.
func Discover(lister Lister) (*Layout, error) {
	monitors, err := lister.ListMonitors()
	if err != nil {
		return nil, fmt.Errorf("Error listing monitors: %w", err)
	}

	return New(monitors...), nil
}

func union(monitors []image.Rectangle) image.Rectangle {
	if len(monitors) == 0 {
		return image.Rectangle{}
	}

	b := monitors[0]
	for _, m := range monitors[1:] {
		if m.Min.X < b.Min.X {
			b.Min.X = m.Min.X
		}
		if m.Min.Y < b.Min.Y {
			b.Min.Y = m.Min.Y
		}
		if m.Max.X > b.Max.X {
			b.Max.X = m.Max.X
		}
		if m.Max.Y > b.Max.Y {
			b.Max.Y = m.Max.Y
		}
	}
	return b
}

// Monitors returns a copy of the monitor rectangles in discovery order.
func (l *Layout) Monitors() []image.Rectangle {
	out := make([]image.Rectangle, len(l.monitors))
	copy(out, l.monitors)
	return out
}

// ListMonitors lets a known layout stand in for the display server.
func (l *Layout) ListMonitors() ([]image.Rectangle, error) {
	return l.Monitors(), nil
}

func (l *Layout) Bounds() image.Rectangle {
	return l.bounds
}

// Empty is true when there is nothing to render to, either because no
// monitors were reported or because they have no area.
func (l *Layout) Empty() bool {
	return l.bounds.Dx() <= 0 || l.bounds.Dy() <= 0
}

// ScaledTo returns a new layout whose bounds fit inside maxWidth x maxHeight
// while keeping the aspect ratio. A non-positive limit leaves that axis
// unbounded so the other axis alone picks the scale. With both axes unbounded
// the result is an unscaled copy.
func (l *Layout) ScaledTo(maxWidth, maxHeight int) *Layout {
	scaled := &Layout{monitors: make([]image.Rectangle, len(l.monitors))}
	f := l.scaleFactor(maxWidth, maxHeight)

	for i, m := range l.monitors {
		scaled.monitors[i] = Scale(m, f)
	}
	scaled.bounds = Scale(l.bounds, f)
	return scaled
}

func (l *Layout) scaleFactor(maxWidth, maxHeight int) float64 {
	width, height := l.bounds.Dx(), l.bounds.Dy()
	if width <= 0 || height <= 0 {
		return 1
	}

	switch {
	case maxWidth <= 0 && maxHeight <= 0:
		return 1
	case maxHeight <= 0:
		return float64(maxWidth) / float64(width)
	case maxWidth <= 0:
		return float64(maxHeight) / float64(height)
	}

	if float64(width)/float64(height) >= float64(maxWidth)/float64(maxHeight) {
		return float64(maxWidth) / float64(width)
	}
	return float64(maxHeight) / float64(height)
}

// Scale multiplies the offset and the size of r by f, truncating each toward
// zero. The size is scaled on its own rather than deriving it from the scaled
// corners so that rectangles of equal size stay equal.
func Scale(r image.Rectangle, f float64) image.Rectangle {
	x := int(float64(r.Min.X) * f)
	y := int(float64(r.Min.Y) * f)
	w := int(float64(r.Dx()) * f)
	h := int(float64(r.Dy()) * f)
	return image.Rect(x, y, x+w, y+h)
}

func (l *Layout) String() string {
	return fmt.Sprintf("%v %v", l.bounds, l.monitors)
}
