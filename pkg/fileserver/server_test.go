// SPDX-License-Identifier: GPL-3.0-or-later

package fileserver

import "testing"

func TestResolveFilePathJoinsRoot(t *testing.T) {
	full, ok := resolveFilePath("/srv/data", "/report.bin")
	if !ok {
		t.Fatal("expected ok")
	}
	if full != "/srv/data/report.bin" {
		t.Fatalf("full = %q", full)
	}
}

func TestResolveFilePathRejectsTraversal(t *testing.T) {
	cases := []string{
		"/../etc/passwd",
		"/../../etc/passwd",
		"/a/../../b",
	}
	for _, uri := range cases {
		if _, ok := resolveFilePath("/srv/data", uri); ok {
			t.Fatalf("expected traversal to be rejected for %q", uri)
		}
	}
}

func TestResolveFilePathAllowsNestedPaths(t *testing.T) {
	full, ok := resolveFilePath("/srv/data", "/sub/dir/file.txt")
	if !ok {
		t.Fatal("expected ok")
	}
	if full != "/srv/data/sub/dir/file.txt" {
		t.Fatalf("full = %q", full)
	}
}

func TestSendBodyRegistersAndClearsPendingTransfer(t *testing.T) {
	cs := &connState{pending: NewTable()}
	stream := &fakeStream{maxAccept: 10}

	s := &Server{conns: newConnTable()}
	data := make([]byte, chunkSize*3)
	for i := range data {
		data[i] = byte(i)
	}

	s.sendBody(cs, stream, 1, data)

	if cs.pending.Len() != 0 {
		t.Fatalf("expected pending table to be empty after send, got %d", cs.pending.Len())
	}
	if len(stream.buf.Bytes()) != len(data) {
		t.Fatalf("sent %d bytes, want %d", stream.buf.Len(), len(data))
	}
}
