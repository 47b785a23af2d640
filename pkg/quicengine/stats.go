// SPDX-License-Identifier: GPL-3.0-or-later

package quicengine

import (
	"sync"
	"time"

	"github.com/quic-go/quic-go/logging"
)

// Stats mirrors the original engine's EngineStats: coarse counters for
// observability, not a substitute for quic-go's own internal metrics.
type Stats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	PacketsLost     uint64
	RTT             time.Duration
	CWND            uint64
}

// statsTracker accumulates Stats from a quic-go logging.ConnectionTracer.
// Exact callback names/signatures are best-effort against quic-go v0.46's
// tracer interface; if the dependency's tracer shape changes, only this
// file needs updating.
type statsTracker struct {
	mu sync.Mutex
	s  Stats
}

func (t *statsTracker) snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}

func (t *statsTracker) onPacketSent(size logging.ByteCount) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.PacketsSent++
	t.s.BytesSent += uint64(size)
}

func (t *statsTracker) onPacketReceived(size logging.ByteCount) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.PacketsReceived++
	t.s.BytesReceived += uint64(size)
}

func (t *statsTracker) onPacketLost() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.PacketsLost++
}

func (t *statsTracker) onRTTUpdated(rtt time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.RTT = rtt
}

func (t *statsTracker) onCongestionWindowUpdated(cwnd uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.CWND = cwnd
}

// newConnectionTracer builds a logging.ConnectionTracer that feeds t.
func (t *statsTracker) newConnectionTracer() *logging.ConnectionTracer {
	return &logging.ConnectionTracer{
		SentLongHeaderPacket: func(hdr *logging.ExtendedHeader, size logging.ByteCount, _ logging.ECN, _ *logging.AckFrame, _ []logging.Frame) {
			t.onPacketSent(size)
		},
		SentShortHeaderPacket: func(hdr *logging.ShortHeader, size logging.ByteCount, _ logging.ECN, _ *logging.AckFrame, _ []logging.Frame) {
			t.onPacketSent(size)
		},
		ReceivedLongHeaderPacket: func(hdr *logging.ExtendedHeader, size logging.ByteCount, _ logging.ECN, _ []logging.Frame) {
			t.onPacketReceived(size)
		},
		ReceivedShortHeaderPacket: func(hdr *logging.ShortHeader, size logging.ByteCount, _ logging.ECN, _ []logging.Frame) {
			t.onPacketReceived(size)
		},
		LostPacket: func(_ logging.EncryptionLevel, _ logging.PacketNumber, _ logging.PacketLossReason) {
			t.onPacketLost()
		},
		UpdatedMetrics: func(rttStats *logging.RTTStats, cwnd, bytesInFlight logging.ByteCount, packetsInFlight int) {
			t.onRTTUpdated(rttStats.SmoothedRTT())
			t.onCongestionWindowUpdated(uint64(cwnd))
		},
	}
}
