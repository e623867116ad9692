// Package dedupe coalesces refresh requests that are already queued or running.
package dedupe

import (
	"container/list"
	"sync"
)

// Deduper tracks in-flight refresh keys so the same job is never queued twice.
type Deduper interface {
	// Claim marks key as in flight. It returns false when key is already held,
	// in which case the caller should drop its request.
	Claim(key string) bool

	// Release frees key once its job finished or could not be queued.
	Release(key string)

	// Held reports whether key is currently in flight.
	Held(key string) bool

	Size() int
}

// inMemoryDeduper keeps keys in claim order. When bounded and full, the
// oldest claim is evicted; a stale claim only means one extra refresh.
type inMemoryDeduper struct {
	mu      sync.Mutex
	held    map[string]*list.Element
	order   *list.List // front = oldest claim
	maxSize int        // <= 0 means unbounded
}

// NewInMemoryDeduper creates a deduper. The default bound is 1024 keys.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 1024,
		held:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) Claim(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.held[key]; ok {
		return false
	}
	if d.maxSize > 0 && len(d.held) >= d.maxSize {
		if oldest := d.order.Front(); oldest != nil {
			delete(d.held, oldest.Value.(string))
			d.order.Remove(oldest)
		}
	}
	d.held[key] = d.order.PushBack(key)
	return true
}

func (d *inMemoryDeduper) Release(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.held[key]; ok {
		d.order.Remove(el)
		delete(d.held, key)
	}
}

func (d *inMemoryDeduper) Held(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.held[key]
	return ok
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.held)
}
