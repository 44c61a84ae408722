package timer

import (
	"sort"
	"sync"
	"time"
)

// Key names a timer slot. A slot holds at most one live handle.
type Key string

// Registry owns every timer handle of one session. Registering a handle
// under a key stops whatever was registered there before.
type Registry struct {
	mu      sync.Mutex
	handles map[Key]Stopper
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[Key]Stopper)}
}

// Set registers h under key, stopping any previous handle for that key.
func (r *Registry) Set(key Key, h Stopper) {
	r.mu.Lock()
	prev := r.handles[key]
	r.handles[key] = h
	r.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
}

// Schedule runs fn once after d unless the key is cancelled or replaced first.
// The slot is released before fn runs.
func (r *Registry) Schedule(c Clock, key Key, d time.Duration, fn func()) {
	h := &oneShot{}
	r.Set(key, h)
	h.arm(c.AfterFunc(d, func() {
		if r.release(key, h) {
			fn()
		}
	}))
}

// release removes h from key if it is still the registered handle.
func (r *Registry) release(key Key, h Stopper) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handles[key] != h {
		return false
	}
	delete(r.handles, key)
	return true
}

// Cancel stops and forgets the given keys. Returns how many were live.
func (r *Registry) Cancel(keys ...Key) int {
	var stopped []Stopper
	r.mu.Lock()
	for _, k := range keys {
		if h, ok := r.handles[k]; ok {
			stopped = append(stopped, h)
			delete(r.handles, k)
		}
	}
	r.mu.Unlock()
	for _, h := range stopped {
		h.Stop()
	}
	return len(stopped)
}

// CancelAll stops and forgets every handle. Safe to call on an empty registry.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[Key]Stopper)
	r.mu.Unlock()
	for _, h := range handles {
		h.Stop()
	}
	return len(handles)
}

// Has reports whether key holds a live handle.
func (r *Registry) Has(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[key]
	return ok
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []Key {
	r.mu.Lock()
	keys := make([]Key, 0, len(r.handles))
	for k := range r.handles {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// oneShot lets a handle be registered before the underlying timer exists.
type oneShot struct {
	mu      sync.Mutex
	timer   Stopper
	stopped bool
}

func (o *oneShot) arm(t Stopper) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		t.Stop()
		return
	}
	o.timer = t
}

func (o *oneShot) Stop() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return false
	}
	o.stopped = true
	if o.timer != nil {
		return o.timer.Stop()
	}
	return true
}
