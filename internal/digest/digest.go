// SPDX-License-Identifier: GPL-3.0-or-later

// Package digest computes the SHA-256 content integrity tag used by the
// file server and verified by the client.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

// Header is the HTTP header name carrying the hex-encoded digest.
const Header = "X-Content-SHA256"

// Hex returns the lowercase hex-encoded SHA-256 digest of data.
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Streaming accumulates a SHA-256 digest over a sequence of byte chunks,
// such as the body chunks of a response arriving on a QUIC stream. It must
// be created only once the caller knows a digest is expected, and fed only
// body bytes -- never header bytes.
type Streaming struct {
	h interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
	}
}

// NewStreaming creates a fresh streaming hasher.
func NewStreaming() *Streaming {
	return &Streaming{h: sha256.New()}
}

// Write feeds body bytes into the digest.
func (s *Streaming) Write(p []byte) {
	_, _ = s.h.Write(p)
}

// HexSum returns the hex-encoded digest of everything written so far.
func (s *Streaming) HexSum() string {
	return hex.EncodeToString(s.h.Sum(nil))
}
