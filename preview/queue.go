// Package preview renders wallpaper thumbnails in the background while the
// UI keeps painting whatever is cached.
package preview

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"time"

	"github.com/awused/wallpaper-refinery/cache"
	"go.uber.org/zap"
)

var (
	ErrStopped       = errors.New("Preview queue stopped")
	ErrRenderTimeout = errors.New("Preview render timed out")
	errNoImage       = errors.New("Renderer returned no image")
)

// View is the list or grid showing thumbnails.
type View interface {
	// Visible is true while the cell at index is on screen. It is called from
	// the worker goroutine and must be safe for that.
	Visible(index int) bool
	// Invalidate asks for the cell at index to be repainted. It is called from
	// the worker goroutine; implementations hand it off to the UI thread and
	// must not drop it.
	Invalidate(index int)
}

// Request asks for the thumbnail of File shown in cell Index of View.
type Request struct {
	View  View
	Index int
	File  string
}

func (r Request) String() string {
	return fmt.Sprintf("%d [%s]", r.Index, r.File)
}

// Previewer renders a dimmed, monitor sized thumbnail of a file.
// *compositor.Compositor is the real one.
type Previewer interface {
	Bounds() image.Rectangle
	PreviewFile(path string) (image.Image, error)
}

type kind int

const (
	placeholder kind = iota
	rendered
	failed
)

type record struct {
	// The previewer that produced image, compared by identity
	previewer Previewer
	image     image.Image
	kind      kind
}

// final records are only redone when the previewer changes. Placeholders are
// never final.
func (r *record) fresh(p Previewer) bool {
	return r.kind != placeholder && r.previewer == p
}

// Queue owns the preview cache and a single worker goroutine that fills it.
type Queue struct {
	mu        sync.Mutex
	previewer Previewer
	pending   []*Request
	queued    map[string]*Request

	cache       cache.Cache[string, *record]
	cacheConfig *cache.Config
	log         *zap.Logger
	timeout     time.Duration

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
}

type Option func(*Queue)

func withCache(c cache.Cache[string, *record]) Option {
	return func(q *Queue) {
		q.cache = c
	}
}

// WithCacheConfig picks the cache strategy and its limits. Without it the
// memory bounded cache with default thresholds is used.
func WithCacheConfig(c cache.Config) Option {
	return func(q *Queue) {
		q.cacheConfig = &c
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.log = l
		}
	}
}

// WithRenderTimeout gives up on a single render after d. The abandoned
// render keeps running but its result is discarded.
func WithRenderTimeout(d time.Duration) Option {
	return func(q *Queue) {
		q.timeout = d
	}
}

func NewQueue(p Previewer, opts ...Option) *Queue {
	q := &Queue{
		previewer: p,
		queued:    make(map[string]*Request),
		log:       zap.NewNop(),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	if q.cache == nil && q.cacheConfig != nil {
		if q.cacheConfig.Logger == nil {
			q.cacheConfig.Logger = q.log
		}
		c, err := cache.New[string, *record](*q.cacheConfig)
		if err != nil {
			q.log.Warn("falling back to the default preview cache", zap.Error(err))
		}
		q.cache = c
	}
	if q.cache == nil {
		q.cache = cache.NewMemory[string, *record](cache.WithLogger(q.log))
	}
	return q
}

// Start launches the worker. Calling it more than once does nothing.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.mu.Lock()
		q.started = true
		q.mu.Unlock()
		go q.run()
	})
}

// Stop discards anything still queued and waits for the worker to finish the
// render it is on, if any. Later Render calls still answer from the cache but
// enqueue nothing.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stop)
	})

	q.mu.Lock()
	started := q.started
	q.pending = nil
	q.queued = make(map[string]*Request)
	q.mu.Unlock()

	if started {
		<-q.done
	}
}

// SetCompositor swaps the previewer. Nothing is re-rendered eagerly; cached
// entries are found to be stale the next time they are looked at.
func (q *Queue) SetCompositor(p Previewer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.previewer = p
}

func (q *Queue) Compositor() Previewer {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.previewer
}

// Render returns the best image available for req right now and never blocks
// on rendering. A stale image is returned as is while a fresh one is queued.
// A file seen for the first time gets a placeholder.
func (q *Queue) Render(req Request) image.Image {
	p := q.Compositor()

	if rec, ok := q.cache.Get(req.File); ok {
		if !rec.fresh(p) {
			q.enqueue(req)
		}
		return rec.image
	}

	img := Placeholder(p.Bounds(), filepath.Base(req.File))
	q.cache.Put(req.File, &record{previewer: p, image: img, kind: placeholder})
	q.enqueue(req)
	return img
}

// Pending is the number of queued requests.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// A file is queued at most once. A newer request for a queued file takes over
// its cell so the cell showing it now is the one repainted.
func (q *Queue) enqueue(req Request) {
	select {
	case <-q.stop:
		q.log.Warn("preview queue stopped, dropping request", zap.Stringer("request", req))
		return
	default:
	}

	q.mu.Lock()
	if queued, ok := q.queued[req.File]; ok {
		queued.View, queued.Index = req.View, req.Index
		q.mu.Unlock()
		return
	}
	r := req
	q.pending = append(q.pending, &r)
	q.queued[req.File] = &r
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) next() (Request, bool) {
	for {
		select {
		case <-q.stop:
			return Request{}, false
		default:
		}

		q.mu.Lock()
		if len(q.pending) > 0 {
			r := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			delete(q.queued, r.File)
			q.mu.Unlock()
			return *r, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-q.stop:
			return Request{}, false
		}
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		req, ok := q.next()
		if !ok {
			q.log.Info("preview worker stopped")
			return
		}
		q.process(req)
	}
}

func (q *Queue) process(req Request) {
	if !req.View.Visible(req.Index) {
		renders.WithLabelValues("dropped").Inc()
		q.log.Debug("dropping preview request for hidden cell", zap.Stringer("request", req))
		return
	}

	// Checked against the previewer now, not when it was queued
	p := q.Compositor()
	if rec, ok := q.cache.Get(req.File); ok && rec.fresh(p) {
		// Rendered while this request waited, possibly for another cell
		req.View.Invalidate(req.Index)
		return
	}

	img, err := q.renderFile(p, req.File)
	rec := &record{previewer: p, image: img, kind: rendered}
	if err != nil {
		if errors.Is(err, ErrStopped) {
			return
		}
		renders.WithLabelValues("error").Inc()
		q.log.Warn("failed to render preview", zap.String("file", req.File), zap.Error(err))
		rec.image = ErrorImage(p.Bounds(), filepath.Base(req.File))
		rec.kind = failed
	} else {
		renders.WithLabelValues("ok").Inc()
	}

	q.cache.Put(req.File, rec)
	req.View.Invalidate(req.Index)
}

type result struct {
	img image.Image
	err error
}

func (q *Queue) renderFile(p Previewer, file string) (image.Image, error) {
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("Panic while rendering [%s]: %v", file, r)}
			}
		}()

		img, err := p.PreviewFile(file)
		if err == nil && img == nil {
			err = errNoImage
		}
		ch <- result{img, err}
	}()

	var timeout <-chan time.Time
	if q.timeout > 0 {
		t := time.NewTimer(q.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case r := <-ch:
		return r.img, r.err
	case <-timeout:
		return nil, fmt.Errorf("%w after %s [%s]", ErrRenderTimeout, q.timeout, file)
	case <-q.stop:
		return nil, ErrStopped
	}
}
