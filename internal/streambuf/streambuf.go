// SPDX-License-Identifier: GPL-3.0-or-later

// Package streambuf holds, per QUIC stream, the bytes read from that
// stream that the application has not yet consumed. The engine's reader
// goroutine is the sole appender for a given stream; any goroutine may
// call Read.
package streambuf

import "sync"

// Buffer is the read-side accumulator for a single stream.
type Buffer struct {
	mu         sync.Mutex
	data       []byte
	readOffset int
	fin        bool
}

// Append adds newly received bytes to the buffer and records whether this
// was the stream's final chunk (FIN).
func (b *Buffer) Append(p []byte, fin bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(p) > 0 {
		b.data = append(b.data, p...)
	}
	if fin {
		b.fin = true
	}
}

// Read copies up to len(p) unread bytes into p, advancing the read offset,
// and reports whether the stream has ended and no further bytes will ever
// arrive (fin reached with nothing left unread).
func (b *Buffer) Read(p []byte) (n int, fin bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	unread := b.data[b.readOffset:]
	n = copy(p, unread)
	b.readOffset += n

	atEnd := b.readOffset >= len(b.data)
	if atEnd {
		// reclaim consumed prefix so the backing array doesn't grow
		// without bound across a long-lived stream.
		b.data = b.data[b.readOffset:]
		b.readOffset = 0
	}

	return n, b.fin && atEnd
}

// Len reports the number of unread bytes currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data) - b.readOffset
}

// Map is a concurrency-safe registry of per-stream Buffers, keyed by
// stream id.
type Map struct {
	mu   sync.Mutex
	bufs map[uint64]*Buffer
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{bufs: make(map[uint64]*Buffer)}
}

// Get returns the Buffer for streamID, creating it if it does not exist
// yet.
func (m *Map) Get(streamID uint64) *Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bufs[streamID]
	if !ok {
		b = &Buffer{}
		m.bufs[streamID] = b
	}
	return b
}

// Delete removes the Buffer for streamID, e.g. once the stream has been
// fully consumed and closed.
func (m *Map) Delete(streamID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bufs, streamID)
}
