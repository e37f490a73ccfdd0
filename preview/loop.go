package preview

import "sync"

// Loop runs functions one at a time on a single goroutine, in the order they
// were invoked. It stands in for a UI toolkit's event thread: everything that
// touches view state goes through Invoke.
type Loop struct {
	mu     sync.Mutex
	closed bool
	calls  chan func()
	done   chan struct{}
}

func NewLoop() *Loop {
	l := &Loop{calls: make(chan func(), 256), done: make(chan struct{})}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for f := range l.calls {
		f()
	}
}

// Invoke schedules f. It only blocks while the backlog is full so no call is
// ever dropped before Close.
func (l *Loop) Invoke(f func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.calls <- f
}

// Sync runs f on the loop and waits for it.
func (l *Loop) Sync(f func()) {
	ch := make(chan struct{})
	l.Invoke(func() {
		defer close(ch)
		f()
	})

	select {
	case <-ch:
	case <-l.done:
	}
}

// Close runs everything already scheduled, then stops the goroutine.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.calls)
	}
	l.mu.Unlock()
	<-l.done
}
