package commands

import "sync"

// Buffer is the pre-initialization command queue. Hosts append to it freely;
// initialization drains it exactly once.
type Buffer struct {
	mu      sync.Mutex
	pending []Raw
	drained bool
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{pending: make([]Raw, 0, 8)}
}

// Append adds a call. It reports false once the buffer has been drained; the
// caller must then route the call to the live client instead.
func (b *Buffer) Append(method string, args ...any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.drained {
		return false
	}
	b.pending = append(b.pending, Raw{Method: method, Args: args})
	return true
}

// Len returns the number of buffered calls.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Drain takes a one-time snapshot of everything buffered, in order, and closes
// the buffer. Subsequent calls return nil.
func (b *Buffer) Drain() []Raw {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.drained {
		return nil
	}
	b.drained = true
	snapshot := b.pending
	b.pending = nil
	return snapshot
}

// Drained reports whether Drain has run.
func (b *Buffer) Drained() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drained
}
