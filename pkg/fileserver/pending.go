// SPDX-License-Identifier: GPL-3.0-or-later

package fileserver

import (
	"sync"
	"time"
)

// chunkSize matches the original server's 8KiB chunking.
const chunkSize = 8192

// writeAttemptWindow is how long a single chunk write attempt is allowed
// to block before it is treated as "stream not writable right now". Real
// quiche exposes this via a QUICHE_ERR_DONE return from a non-blocking
// stream_send; quic-go's Stream.Write blocks instead, so a short write
// deadline is used to recover the same signal.
const writeAttemptWindow = 2 * time.Millisecond

// Transfer tracks an in-progress chunked send of an in-memory file body
// on one stream, mirroring the original struct pending_transfer. Data is
// owned exclusively by the Transfer once constructed.
type Transfer struct {
	StreamID uint64
	Data     []byte
	Offset   int
}

// Done reports whether every byte of Data has been sent.
func (t *Transfer) Done() bool {
	return t.Offset >= len(t.Data)
}

// Table is the server's pending-transfer table, keyed by stream id.
type Table struct {
	mu        sync.Mutex
	transfers map[uint64]*Transfer
}

// NewTable creates an empty pending-transfer table.
func NewTable() *Table {
	return &Table{transfers: make(map[uint64]*Transfer)}
}

// Put registers a pending transfer for streamID.
func (t *Table) Put(streamID uint64, tr *Transfer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transfers[streamID] = tr
}

// Get returns the pending transfer for streamID, if any.
func (t *Table) Get(streamID uint64) (*Transfer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.transfers[streamID]
	return tr, ok
}

// Delete removes a completed or abandoned transfer.
func (t *Table) Delete(streamID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.transfers, streamID)
}

// Len reports the number of transfers currently pending.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.transfers)
}

// chunkWriter is the subset of quic.Stream that ContinuePendingTransfer
// needs, kept narrow so it can be faked in tests without a real QUIC
// connection.
type chunkWriter interface {
	SetWriteDeadline(time.Time) error
	Write(p []byte) (int, error)
}

// ContinuePendingTransfer attempts to send one 8KiB chunk (or the
// remaining tail, if shorter) of tr's data on stream, advancing tr.Offset
// by whatever was accepted. It returns blocked=true if the stream accepted
// nothing this attempt -- the caller should retry later, exactly as the
// original server re-queues a pending transfer until the stream becomes
// writable again.
func ContinuePendingTransfer(stream chunkWriter, tr *Transfer) (blocked bool, err error) {
	if tr.Done() {
		return false, nil
	}

	remaining := len(tr.Data) - tr.Offset
	n := chunkSize
	if remaining < n {
		n = remaining
	}
	chunk := tr.Data[tr.Offset : tr.Offset+n]

	if err := stream.SetWriteDeadline(time.Now().Add(writeAttemptWindow)); err != nil {
		return false, err
	}
	sent, werr := stream.Write(chunk)
	_ = stream.SetWriteDeadline(time.Time{})

	tr.Offset += sent

	if werr != nil {
		if isDeadlineErr(werr) {
			// partial (sent>0) or fully blocked (sent==0) write: both
			// mean "stream not writable past this point right now".
			return sent == 0, nil
		}
		return false, werr
	}

	return false, nil
}

func isDeadlineErr(err error) bool {
	type timeoutError interface {
		Timeout() bool
	}
	te, ok := err.(timeoutError)
	return ok && te.Timeout()
}
