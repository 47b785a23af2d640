// SPDX-License-Identifier: GPL-3.0-or-later

// Package quicengine is the client-side QUIC engine facade: a thread-safe
// wrapper that owns one QUIC connection, exposes write/read/close on its
// default stream, and delivers lifecycle notifications through a callback,
// mirroring the lifecycle of the original C++ QuicheEngine.
package quicengine

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/logging"

	"github.com/quicware/hoq-go/internal/cmdqueue"
	"github.com/quicware/hoq-go/internal/streambuf"
)

// State is the engine's lifecycle state.
type State int

const (
	StateNew State = iota
	StateOpened
	StateCallbackSet
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateOpened:
		return "OPENED"
	case StateCallbackSet:
		return "CALLBACK_SET"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ErrWrongState is returned when a method is called in a state that
// precludes it, matching the original facade's precondition table.
var ErrWrongState = errors.New("quicengine: operation not valid in current state")

// ErrWriteTooLarge is returned by Write when the payload exceeds
// maxWriteSize.
var ErrWriteTooLarge = errors.New("quicengine: write exceeds maximum payload size")

// maxWriteSize is the largest payload Write accepts as a single command,
// matching the original facade's fixed command-queue buffer size.
const maxWriteSize = 65536

// Engine is the client-side facade. The zero value is not usable; create
// one with New.
type Engine struct {
	host string
	port string
	cfg  Config

	mu       sync.Mutex
	state    State
	lastErr  error
	callback EventCallback
	userData any

	scid [16]byte

	conn          quic.Connection
	defaultStream quic.Stream
	bufs          *streambuf.Map
	cmds          *cmdqueue.Queue

	tracer *statsTracker

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an engine targeting host:port. It does not connect yet.
func New(host, port string, cfg Config) *Engine {
	return &Engine{
		host:  host,
		port:  port,
		cfg:   cfg.Normalize(),
		state: StateOpened,
		bufs:  streambuf.NewMap(),
		cmds:  cmdqueue.New(32),
	}
}

// SetEventCallback registers the callback invoked for lifecycle events.
// It may only be called once, before Connect.
func (e *Engine) SetEventCallback(cb EventCallback, userData any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateOpened {
		return fmt.Errorf("%w: SetEventCallback requires OPENED, have %s", ErrWrongState, e.state)
	}
	e.callback = cb
	e.userData = userData
	e.state = StateCallbackSet
	return nil
}

func (e *Engine) emit(event Event, data EventData) {
	e.mu.Lock()
	cb := e.callback
	e.mu.Unlock()

	if cb != nil {
		cb(e, event, data)
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// GetLastError returns the most recently recorded error, or nil.
func (e *Engine) GetLastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Engine) setLastError(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

// GetScid returns the locally-generated connection id as an 8-character
// hex string, matching the original facade's getScid.
func (e *Engine) GetScid() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fmt.Sprintf("%x", e.scid[:4])
}

func (e *Engine) log() *log.Entry {
	return log.WithFields(log.Fields{
		"engine": fmt.Sprintf("%s:%s", e.host, e.port),
		"scid":   e.GetScid(),
	})
}

// Connect performs the QUIC handshake synchronously: it blocks until the
// connection is established or ctx is done, then starts the background
// processing loop. It requires the CALLBACK_SET state (a callback must be
// registered first, even if it is a no-op) and transitions to CONNECTED.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateCallbackSet {
		e.mu.Unlock()
		return fmt.Errorf("%w: Connect requires CALLBACK_SET, have %s", ErrWrongState, e.state)
	}
	e.state = StateConnecting
	e.mu.Unlock()

	if _, err := rand.Read(e.scid[:]); err != nil {
		e.setLastError(err)
		e.setState(StateClosed)
		return err
	}

	tlsConf := &tls.Config{
		InsecureSkipVerify: !e.cfg.VerifyPeer,
		NextProtos:         []string{"hoq"},
	}
	if e.cfg.KeyLogPath != "" {
		if f, err := os.OpenFile(e.cfg.KeyLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600); err == nil {
			tlsConf.KeyLogWriter = f
		} else {
			e.log().WithError(err).Warn("failed to open SSLKEYLOGFILE path")
		}
	}

	quicConf := e.toQuicConfig()

	addr := net.JoinHostPort(e.host, e.port)
	conn, err := quic.DialAddr(ctx, addr, tlsConf, quicConf)
	if err != nil {
		e.setLastError(err)
		e.setState(StateClosed)
		e.emit(EventError, EventData{Str: err.Error()})
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		e.setLastError(err)
		e.setState(StateClosed)
		e.emit(EventError, EventData{Str: err.Error()})
		return fmt.Errorf("open default stream: %w", err)
	}

	e.mu.Lock()
	e.conn = conn
	e.defaultStream = stream
	e.state = StateConnected
	loopCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	e.log().Info("connected")
	e.emit(EventConnected, EventData{})

	go e.runLoop(loopCtx)

	return nil
}

// Write enqueues data for the default stream. It returns immediately; the
// actual send happens on the engine's processing goroutine. Valid only
// once CONNECTED.
func (e *Engine) Write(data []byte, fin bool) error {
	if len(data) > maxWriteSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrWriteTooLarge, len(data), maxWriteSize)
	}
	if e.State() != StateConnected {
		return fmt.Errorf("%w: Write requires CONNECTED, have %s", ErrWrongState, e.State())
	}
	e.cmds.Push(cmdqueue.Command{Type: cmdqueue.Write, Stream: defaultStreamID, Data: data, Fin: fin})
	return nil
}

// Read copies any buffered bytes for the default stream into buf. It never
// blocks: it returns n=0 if nothing is buffered yet. It is valid from
// CONNECTED onward, including CLOSING and CLOSED, so bytes received before
// the connection closed can still be drained.
func (e *Engine) Read(buf []byte) (n int, fin bool, err error) {
	if s := e.State(); s < StateConnected {
		return 0, false, fmt.Errorf("%w: Read requires CONNECTED or later, have %s", ErrWrongState, s)
	}
	n, fin = e.bufs.Get(defaultStreamID).Read(buf)
	return n, fin, nil
}

// IsConnected reports whether the engine currently holds an established
// connection.
func (e *Engine) IsConnected() bool {
	return e.State() == StateConnected
}

// GetStats returns a snapshot of connection statistics gathered from
// quic-go's connection tracer.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	tracer := e.tracer
	e.mu.Unlock()

	if tracer == nil {
		return Stats{}
	}
	return tracer.snapshot()
}

// Shutdown closes the connection and stops the processing loop, blocking
// until both have completed. It is idempotent.
func (e *Engine) Shutdown(appErr uint64, reason string) {
	e.mu.Lock()
	if e.state == StateClosed || e.state == StateClosing {
		e.mu.Unlock()
		return
	}
	e.state = StateClosing
	conn := e.conn
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	e.cmds.Stop()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.CloseWithError(quic.ApplicationErrorCode(appErr), reason)
	}
	if done != nil {
		<-done
	}

	e.setState(StateClosed)
	e.log().Info("shut down")
	e.emit(EventConnectionClosed, EventData{})
}

// Open resets a CLOSED engine back to a connectable state, per the
// original facade's open(config): cfg and any previously registered
// callback survive the reset, so a closed engine can be reconnected
// without the application re-registering its callback.
func (e *Engine) Open(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateClosed {
		return fmt.Errorf("%w: Open requires CLOSED, have %s", ErrWrongState, e.state)
	}

	e.cfg = cfg.Normalize()
	e.lastErr = nil
	e.conn = nil
	e.defaultStream = nil
	e.tracer = nil
	e.cancel = nil
	e.done = nil
	e.bufs = streambuf.NewMap()
	e.cmds = cmdqueue.New(32)

	if e.callback != nil {
		e.state = StateCallbackSet
	} else {
		e.state = StateOpened
	}
	return nil
}

// closeFromLoop drives the CLOSED transition and CONNECTION_CLOSED event
// when the reader goroutine ends on its own -- the peer finished the
// default stream (FIN), the connection hit its idle timeout, or the peer
// closed it -- rather than through an application-initiated Shutdown. It shares
// Shutdown's idempotency guard so the two never both fire.
func (e *Engine) closeFromLoop() {
	e.mu.Lock()
	if e.state == StateClosed || e.state == StateClosing {
		e.mu.Unlock()
		return
	}
	e.state = StateClosed
	conn := e.conn
	cancel := e.cancel
	e.mu.Unlock()

	if conn != nil {
		_ = conn.CloseWithError(0, "")
	}
	if cancel != nil {
		cancel()
	}

	e.log().Info("connection closed")
	e.emit(EventConnectionClosed, EventData{})
}

func (e *Engine) toQuicConfig() *quic.Config {
	tracker := &statsTracker{}
	e.mu.Lock()
	e.tracer = tracker
	e.mu.Unlock()

	return &quic.Config{
		MaxIdleTimeout:        e.cfg.MaxIdleTimeout,
		InitialStreamReceiveWindow: e.cfg.InitialMaxStreamDataBidiLocal,
		InitialConnectionReceiveWindow: e.cfg.InitialMaxData,
		MaxIncomingStreams:    int64(e.cfg.InitialMaxStreamsBidi),
		MaxIncomingUniStreams: int64(e.cfg.InitialMaxStreamsUni),
		DisablePathMTUDiscovery: false,
		Tracer: func(ctx context.Context, p logging.Perspective, odcid quic.ConnectionID) *logging.ConnectionTracer {
			return tracker.newConnectionTracer()
		},
		EnableDatagrams: false,
	}
}

// defaultStreamID is the stream id quic-go assigns to the first
// client-initiated bidirectional stream opened via OpenStreamSync,
// resolving the "default stream id" question the same way the spec
// suggests: the first stream is stream 0.
const defaultStreamID = 0
