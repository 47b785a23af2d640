// SPDX-License-Identifier: GPL-3.0-or-later

package digest

import "testing"

func TestHex(t *testing.T) {
	// sha256("") is a well-known constant.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Hex(nil); got != want {
		t.Fatalf("Hex(nil) = %s, want %s", got, want)
	}
}

func TestHexNonEmpty(t *testing.T) {
	got := Hex([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("Hex(abc) = %s, want %s", got, want)
	}
}

func TestStreamingMatchesHex(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	s := NewStreaming()
	// feed in uneven chunks, mimicking partial stream reads
	s.Write(data[:3])
	s.Write(data[3:10])
	s.Write(data[10:])

	if got, want := s.HexSum(), Hex(data); got != want {
		t.Fatalf("streaming sum = %s, want %s", got, want)
	}
}
