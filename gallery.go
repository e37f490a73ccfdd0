package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/awused/wallpaper-refinery/preview"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// gallery is the interactive browser's view of a directory. The visible range
// is only changed on the loop but read by the preview worker.
type gallery struct {
	mu       sync.Mutex
	from, to int

	files    []string
	queue    *preview.Queue
	loop     *preview.Loop
	thumbDir string
	out      io.Writer
}

func newGallery(
	files []string, q *preview.Queue, l *preview.Loop, thumbDir string, out io.Writer) *gallery {
	return &gallery{files: files, queue: q, loop: l, thumbDir: thumbDir, out: out}
}

func (g *gallery) Visible(index int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return index >= g.from && index < g.to
}

func (g *gallery) Invalidate(index int) {
	g.loop.Invoke(func() {
		g.paint(index, true)
	})
}

// show scrolls to [from, to), clamped to the files present. Must run on the loop.
func (g *gallery) show(from, to int) {
	from = max(from, 0)
	to = min(to, len(g.files))
	if to < from {
		to = from
	}

	g.mu.Lock()
	g.from, g.to = from, to
	g.mu.Unlock()

	for i := from; i < to; i++ {
		g.paint(i, false)
	}
}

// refresh repaints the visible range, after the compositor changed.
func (g *gallery) refresh() {
	g.mu.Lock()
	from, to := g.from, g.to
	g.mu.Unlock()
	g.show(from, to)
}

func (g *gallery) thumbnailPath(index int) string {
	return filepath.Join(g.thumbDir, fmt.Sprintf("%04d.png", index))
}

func (g *gallery) paint(index int, updated bool) {
	if !g.Visible(index) {
		return
	}

	file := g.files[index]
	img := g.queue.Render(preview.Request{View: g, Index: index, File: file})

	thumb := g.thumbnailPath(index)
	if err := imaging.Save(img, thumb); err != nil {
		logger.Warn("failed to write thumbnail", zap.String("file", thumb), zap.Error(err))
		return
	}

	state := ""
	if updated {
		state = " (updated)"
	}
	fmt.Fprintf(g.out, "[%d] %s -> %s%s\n", index, filepath.Base(file), thumb, state)
}

func (g *gallery) list() {
	for i, f := range g.files {
		fmt.Fprintf(g.out, "[%d] %s\n", i, filepath.Base(f))
	}
}
