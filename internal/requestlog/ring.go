package requestlog

import (
	"sync"
)

const DefaultSize = 10

// Entry is one recorded request, shaped for the /api/requests/recent endpoint.
type Entry struct {
	Timestamp   string `json:"timestamp"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	QueryParams string `json:"queryParams,omitempty"`
	RequestBody string `json:"requestBody,omitempty"`
}

// Ring keeps the most recent entries in a fixed-size circular buffer. When
// full, adding an entry overwrites the oldest one.
type Ring struct {
	mu   sync.RWMutex
	buf  []Entry
	head int // next write position
	full bool
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultSize
	}
	return &Ring{buf: make([]Entry, size)}
}

func (r *Ring) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
	if r.head == 0 {
		r.full = true
	}
}

// Recent returns a copy of the stored entries, newest first.
func (r *Ring) Recent() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.head
	if r.full {
		n = len(r.buf)
	}

	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.head - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.full {
		return len(r.buf)
	}
	return r.head
}

func (r *Ring) Capacity() int {
	return len(r.buf)
}
