package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers per key into one callback that
// fires once the key has been quiet for the delay.
type Debouncer struct {
	delay    time.Duration
	callback func(key string)

	mu      sync.Mutex
	pending map[string]*pendingKey
	closed  bool
}

type pendingKey struct {
	timer *time.Timer
	gen   uint64
}

// NewDebouncer creates a Debouncer. A zero delay still defers the callback
// to a timer goroutine.
func NewDebouncer(delay time.Duration, callback func(key string)) *Debouncer {
	return &Debouncer{
		delay:    delay,
		callback: callback,
		pending:  make(map[string]*pendingKey),
	}
}

// Trigger schedules key, restarting its quiet period if already pending.
func (d *Debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	p, ok := d.pending[key]
	if !ok {
		p = &pendingKey{}
		d.pending[key] = p
	} else {
		p.timer.Stop()
	}
	p.gen++
	gen := p.gen
	p.timer = time.AfterFunc(d.delay, func() { d.fire(key, gen) })
}

// fire runs the callback only while gen is still the current generation of
// key. A stopped timer can already be blocked on mu.
func (d *Debouncer) fire(key string, gen uint64) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || p.gen != gen || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	if d.callback != nil {
		d.callback(key)
	}
}

// Cancel drops a pending key. Unknown keys are ignored.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// Close cancels everything pending and ignores later triggers.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// PendingCount returns the number of keys waiting to fire.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// IsPending reports whether key is waiting to fire.
func (d *Debouncer) IsPending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}
