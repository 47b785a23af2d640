// SPDX-License-Identifier: GPL-3.0-or-later

package quicengine

import "time"

// ConfigKey names a tunable engine parameter, mirroring the key set of the
// original C++ QuicheEngine's ConfigMap.
type ConfigKey int

const (
	MaxIdleTimeout ConfigKey = iota
	MaxUDPPayloadSize
	InitialMaxData
	InitialMaxStreamDataBidiLocal
	InitialMaxStreamDataBidiRemote
	InitialMaxStreamDataUni
	InitialMaxStreamsBidi
	InitialMaxStreamsUni
	DisableActiveMigration
	EnableDebugLog
	VerifyPeer
)

// Config holds engine tuning parameters. Zero-value fields are replaced
// with the documented defaults by Normalize.
type Config struct {
	MaxIdleTimeout                 time.Duration
	MaxUDPPayloadSize              uint64
	InitialMaxData                 uint64
	InitialMaxStreamDataBidiLocal  uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni        uint64
	InitialMaxStreamsBidi          uint64
	InitialMaxStreamsUni           uint64
	DisableActiveMigration         bool
	EnableDebugLog                 bool

	// VerifyPeer controls whether the client validates the server's TLS
	// certificate. Defaults to true; set false only for testing against
	// a self-signed server with no shared CA.
	VerifyPeer bool

	// KeyLogPath, if set, is opened for append and wired as the TLS
	// connection's key log file (SSLKEYLOGFILE support).
	KeyLogPath string
}

// DefaultConfig returns the documented defaults from the original engine's
// ConfigMap comments.
func DefaultConfig() Config {
	return Config{
		MaxIdleTimeout:                 5000 * time.Millisecond,
		MaxUDPPayloadSize:              1350,
		InitialMaxData:                 10_000_000,
		InitialMaxStreamDataBidiLocal:  1_000_000,
		InitialMaxStreamDataBidiRemote: 1_000_000,
		InitialMaxStreamDataUni:        1_000_000,
		InitialMaxStreamsBidi:          100,
		InitialMaxStreamsUni:           100,
		DisableActiveMigration:         true,
		EnableDebugLog:                 false,
		VerifyPeer:                     true,
	}
}

// Normalize fills any zero-valued numeric field with its default, leaving
// explicitly-set fields untouched. Boolean fields have no "unset" state in
// Go, so DisableActiveMigration/EnableDebugLog/VerifyPeer are taken as
// given.
func (c Config) Normalize() Config {
	d := DefaultConfig()
	if c.MaxIdleTimeout == 0 {
		c.MaxIdleTimeout = d.MaxIdleTimeout
	}
	if c.MaxUDPPayloadSize == 0 {
		c.MaxUDPPayloadSize = d.MaxUDPPayloadSize
	}
	if c.InitialMaxData == 0 {
		c.InitialMaxData = d.InitialMaxData
	}
	if c.InitialMaxStreamDataBidiLocal == 0 {
		c.InitialMaxStreamDataBidiLocal = d.InitialMaxStreamDataBidiLocal
	}
	if c.InitialMaxStreamDataBidiRemote == 0 {
		c.InitialMaxStreamDataBidiRemote = d.InitialMaxStreamDataBidiRemote
	}
	if c.InitialMaxStreamDataUni == 0 {
		c.InitialMaxStreamDataUni = d.InitialMaxStreamDataUni
	}
	if c.InitialMaxStreamsBidi == 0 {
		c.InitialMaxStreamsBidi = d.InitialMaxStreamsBidi
	}
	if c.InitialMaxStreamsUni == 0 {
		c.InitialMaxStreamsUni = d.InitialMaxStreamsUni
	}
	return c
}
