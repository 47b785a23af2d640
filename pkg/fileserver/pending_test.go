// SPDX-License-Identifier: GPL-3.0-or-later

package fileserver

import (
	"bytes"
	"testing"
	"time"
)

// fakeStream accepts up to maxAccept bytes per Write call, simulating a
// QUIC stream whose flow-control window only has a few bytes of credit.
type fakeStream struct {
	buf       bytes.Buffer
	maxAccept int
	deadline  time.Time
}

func (f *fakeStream) SetWriteDeadline(t time.Time) error {
	f.deadline = t
	return nil
}

func (f *fakeStream) Write(p []byte) (int, error) {
	n := len(p)
	if f.maxAccept > 0 && n > f.maxAccept {
		n = f.maxAccept
	}
	f.buf.Write(p[:n])
	if n < len(p) {
		return n, &deadlineExceededError{}
	}
	return n, nil
}

func (f *fakeStream) Close() error {
	return nil
}

type deadlineExceededError struct{}

func (*deadlineExceededError) Error() string   { return "i/o timeout" }
func (*deadlineExceededError) Timeout() bool   { return true }
func (*deadlineExceededError) Temporary() bool { return true }

func TestContinuePendingTransferFullySendsWhenUnconstrained(t *testing.T) {
	data := bytes.Repeat([]byte("x"), chunkSize+100)
	tr := &Transfer{Data: data}
	stream := &fakeStream{}

	for !tr.Done() {
		blocked, err := ContinuePendingTransfer(stream, tr)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if blocked {
			t.Fatal("should never block with an unconstrained fake stream")
		}
	}

	if !bytes.Equal(stream.buf.Bytes(), data) {
		t.Fatal("sent data does not match source")
	}
}

func TestContinuePendingTransferHandlesPartialWrites(t *testing.T) {
	data := bytes.Repeat([]byte("y"), chunkSize*2)
	tr := &Transfer{Data: data}
	stream := &fakeStream{maxAccept: 500}

	attempts := 0
	for !tr.Done() {
		attempts++
		if attempts > 10000 {
			t.Fatal("too many attempts, looks stuck")
		}
		if _, err := ContinuePendingTransfer(stream, tr); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if !bytes.Equal(stream.buf.Bytes(), data) {
		t.Fatal("sent data does not match source after partial writes")
	}
}

func TestContinuePendingTransferBlockedWhenStreamAcceptsNothing(t *testing.T) {
	data := []byte("hello")
	tr := &Transfer{Data: data}

	zs := &zeroAcceptStream{}
	blocked, err := ContinuePendingTransfer(zs, tr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !blocked {
		t.Fatal("expected blocked=true when stream accepts zero bytes")
	}
	if tr.Offset != 0 {
		t.Fatalf("offset advanced despite zero-accept stream: %d", tr.Offset)
	}
}

type zeroAcceptStream struct{}

func (*zeroAcceptStream) SetWriteDeadline(time.Time) error { return nil }
func (*zeroAcceptStream) Write(p []byte) (int, error) {
	return 0, &deadlineExceededError{}
}

func TestTablePutGetDelete(t *testing.T) {
	tbl := NewTable()
	tr := &Transfer{StreamID: 3, Data: []byte("abc")}
	tbl.Put(3, tr)

	got, ok := tbl.Get(3)
	if !ok || got != tr {
		t.Fatal("expected to retrieve the same transfer")
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}

	tbl.Delete(3)
	if _, ok := tbl.Get(3); ok {
		t.Fatal("expected transfer to be gone after Delete")
	}
}
