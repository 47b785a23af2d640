// SPDX-License-Identifier: GPL-3.0-or-later

// Package fileserver is the server side of the HTTP-over-QUIC file
// download service: it accepts QUIC connections, dispatches each stream's
// minimal HTTP/1.1 request to a file under its data root, and drives the
// chunked, backpressure-aware response send via the pending-transfer
// table.
package fileserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/quic-go/quic-go"

	"github.com/quicware/hoq-go/internal/digest"
	"github.com/quicware/hoq-go/internal/digestcache"
	"github.com/quicware/hoq-go/internal/httpwire"
)

const (
	// maxRequestSize bounds how much of a request this server will
	// accumulate before giving up, matching the original's
	// request_buf[8192].
	maxRequestSize = 8192

	blockedRetryInterval = 2 * time.Millisecond
)

// Config configures a Server.
type Config struct {
	// Addr is the local UDP address to listen on, e.g. ":4433".
	Addr string
	// Root is the directory requests are resolved against.
	Root string
	// TLSConfig supplies the server certificate. See internal/quictls for
	// a helper that builds one from a cert/key pair or a self-signed pair
	// for tests.
	TLSConfig *tls.Config
	// QUICConfig overrides quic-go's connection parameters. If nil, a
	// config with a 5s idle timeout is used; every other parameter keeps
	// quic-go's own default.
	QUICConfig *quic.Config
	// Cache, if set, avoids re-hashing unchanged files on every request.
	Cache *digestcache.Cache
}

// Server is the QUIC file server.
type Server struct {
	cfg       Config
	transport *quic.Transport
	listener  *quic.Listener
	udpConn   *net.UDPConn

	conns *connTable
}

// New creates a Server. It does not start listening until Serve is
// called.
func New(cfg Config) *Server {
	return &Server{cfg: cfg, conns: newConnTable()}
}

func defaultQUICConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout: 5000 * time.Millisecond,
	}
}

// Serve listens for incoming connections and dispatches them until ctx is
// cancelled. It blocks until shutdown completes.
func (s *Server) Serve(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", s.cfg.Addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.udpConn = conn

	// VerifySourceAddress delegates the wire-level address-validation
	// handshake (stateless retry) to quic-go; see internal/addrtoken for
	// the standalone, byte-faithful token codec this replaces at the
	// application layer.
	s.transport = &quic.Transport{
		Conn:                conn,
		VerifySourceAddress: func(net.Addr) bool { return true },
	}

	quicCfg := s.cfg.QUICConfig
	if quicCfg == nil {
		quicCfg = defaultQUICConfig()
	}

	listener, err := s.transport.Listen(s.cfg.TLSConfig, quicCfg)
	if err != nil {
		return fmt.Errorf("quic listen: %w", err)
	}
	s.listener = listener

	log.WithField("addr", s.cfg.Addr).Info("file server listening")

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warn("accept failed")
			continue
		}
		go s.handleConnection(ctx, conn)
	}
}

// Close shuts down the listener and transport.
func (s *Server) Close() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	if s.transport != nil {
		_ = s.transport.Close()
	}
	if s.udpConn != nil {
		_ = s.udpConn.Close()
	}
	return err
}

// Stats reports coarse counters for the admin API.
type Stats struct {
	Connections int
}

func (s *Server) Stats() Stats {
	return Stats{Connections: s.conns.len()}
}

func (s *Server) handleConnection(ctx context.Context, conn quic.Connection) {
	id, err := newLocalConnID()
	if err != nil {
		log.WithError(err).Error("failed to mint local connection id")
		_ = conn.CloseWithError(0, "internal error")
		return
	}

	cs := &connState{id: id, conn: conn, pending: NewTable()}
	s.conns.put(cs)
	defer s.conns.delete(id)

	logger := log.WithFields(log.Fields{
		"conn": id.String(),
		"peer": conn.RemoteAddr().String(),
	})
	logger.Info("connection accepted")

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			var appErr *quic.ApplicationError
			if errors.As(err, &appErr) {
				logger.WithField("error", appErr).Debug("connection closed by peer")
			} else if ctx.Err() == nil {
				logger.WithError(err).Debug("stream accept ended")
			}
			return
		}
		go s.handleStream(cs, stream)
	}
}

func (s *Server) handleStream(cs *connState, stream quic.Stream) {
	logger := log.WithFields(log.Fields{
		"conn":   cs.id.String(),
		"stream": stream.StreamID(),
	})

	req, ok := s.readRequest(stream)
	if !ok {
		s.writeAndClose(stream, httpwire.BuildBadRequest())
		logger.Debug("malformed request")
		return
	}

	filePath, safe := resolveFilePath(s.cfg.Root, req.URI)
	if !safe {
		s.writeAndClose(stream, httpwire.BuildBadRequest())
		logger.WithField("uri", req.URI).Warn("rejected path traversal attempt")
		return
	}

	data, modTime, err := readFile(filePath)
	if err != nil {
		s.writeAndClose(stream, httpwire.BuildNotFound())
		logger.WithField("path", filePath).Debug("file not found")
		return
	}

	sum, err := s.digestFor(filePath, data, modTime)
	if err != nil {
		logger.WithError(err).Error("failed to compute digest")
		s.writeAndClose(stream, httpwire.BuildNotFound())
		return
	}

	headers := httpwire.BuildFileHeaders(len(data), sum)
	if _, err := stream.Write(headers); err != nil {
		logger.WithError(err).Warn("failed to write response headers")
		return
	}

	logger.WithFields(log.Fields{
		"path":   filePath,
		"size":   len(data),
		"sha256": sum,
	}).Info("sending file")

	s.sendBody(cs, stream, uint64(stream.StreamID()), data)
}

func (s *Server) digestFor(path string, data []byte, modTime time.Time) (string, error) {
	if s.cfg.Cache == nil {
		return digest.Hex(data), nil
	}
	return s.cfg.Cache.Digest(path, data, modTime)
}

// bodySender is the narrow interface sendBody needs from a stream, kept
// separate from quic.Stream so tests can drive it with a fake.
type bodySender interface {
	chunkWriter
	Close() error
}

// sendBody drives a pending Transfer to completion. The transfer stays
// registered in the connection's pending-transfer table for the whole send;
// whenever the peer's flow-control window blocks it, sendBody waits
// blockedRetryInterval and tries again.
func (s *Server) sendBody(cs *connState, stream bodySender, streamID uint64, data []byte) {
	tr := &Transfer{StreamID: streamID, Data: data}
	cs.pending.Put(tr.StreamID, tr)
	defer cs.pending.Delete(tr.StreamID)

	for !tr.Done() {
		blocked, err := ContinuePendingTransfer(stream, tr)
		if err != nil {
			log.WithError(err).Warn("pending transfer aborted")
			return
		}
		if blocked {
			time.Sleep(blockedRetryInterval)
		}
	}

	_ = stream.Close()
}

func (s *Server) readRequest(stream quic.Stream) (httpwire.Request, bool) {
	buf := make([]byte, maxRequestSize)
	total := 0
	chunk := make([]byte, 4096)

	for total < len(buf) {
		n, err := stream.Read(chunk)
		if n > 0 {
			copy(buf[total:], chunk[:n])
			total += n
		}
		if err != nil {
			break
		}
		if _, ok := httpwire.HeadersComplete(buf[:total]); ok {
			break
		}
	}

	if total == 0 {
		return httpwire.Request{}, false
	}
	return httpwire.ParseRequest(buf[:total])
}

func (s *Server) writeAndClose(stream quic.Stream, resp []byte) {
	_, _ = stream.Write(resp)
	_ = stream.Close()
}

// resolveFilePath joins root and the request URI, rejecting any path that
// would escape root after cleaning -- a traversal guard the original C
// server does not have, since snprintf("data%s", uri) concatenates the
// URI unchecked.
func resolveFilePath(root, uri string) (string, bool) {
	full := filepath.Join(root, uri)

	rel, err := filepath.Rel(root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return full, true
}

func readFile(path string) ([]byte, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, time.Time{}, fmt.Errorf("not found: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, info.ModTime(), nil
}
