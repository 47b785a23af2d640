// SPDX-License-Identifier: GPL-3.0-or-later

// Package integration runs a real fileserver.Server and quicengine.Engine
// against each other over loopback QUIC, covering the happy-download,
// missing-file, and malformed-request end-to-end scenarios.
package integration

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quicware/hoq-go/internal/digest"
	"github.com/quicware/hoq-go/internal/httpwire"
	"github.com/quicware/hoq-go/internal/quictls"
	"github.com/quicware/hoq-go/pkg/fileserver"
	"github.com/quicware/hoq-go/pkg/quicengine"
)

func startServer(t *testing.T, root string) (addr string, stop func()) {
	t.Helper()

	tlsConf, err := quictls.GenerateSelfSignedServerConfig()
	if err != nil {
		t.Fatalf("self-signed cert: %v", err)
	}

	// fileserver.Server resolves its port from the Config it is given, so
	// a free port is picked here rather than trying to recover an
	// OS-assigned ephemeral one after the fact.
	port := pickFreePort(t)
	listenAddr := "127.0.0.1:" + port

	srv := fileserver.New(fileserver.Config{
		Addr:      listenAddr,
		Root:      root,
		TLSConfig: tlsConf,
	})

	ctx, cancel := context.WithCancel(context.Background())
	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.Serve(ctx) }()

	// give the UDP socket and TLS listener a moment to bind.
	time.Sleep(100 * time.Millisecond)

	return listenAddr, func() {
		cancel()
		_ = srv.Close()
	}
}

func pickFreePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("pick free port: %v", err)
	}
	defer ln.Close()
	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	return port
}

func splitAddr(t *testing.T, addr string) (host, port string) {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr %q: %v", addr, err)
	}
	return host, port
}

func dial(t *testing.T, host, port string) *quicengine.Engine {
	t.Helper()

	cfg := quicengine.DefaultConfig()
	// The test server uses a throwaway self-signed certificate with no
	// shared CA, so peer verification must be disabled here the way a
	// real client would for a VERIFY_PEER=false deployment.
	cfg.VerifyPeer = false
	engine := quicengine.New(host, port, cfg)

	if err := engine.SetEventCallback(func(*quicengine.Engine, quicengine.Event, quicengine.EventData) {}, nil); err != nil {
		t.Fatalf("set event callback: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := engine.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return engine
}

func readAll(t *testing.T, engine *quicengine.Engine) []byte {
	t.Helper()

	var out []byte
	buf := make([]byte, 64*1024)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, fin, err := engine.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if fin {
			return out
		}
		if n == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatal("timed out waiting for fin")
	return nil
}

// TestHappyDownload covers scenario 1: a whole file round-trips byte for
// byte and its advertised SHA-256 tag verifies.
func TestHappyDownload(t *testing.T) {
	root := t.TempDir()
	payload := make([]byte, 256*1024)
	for i := range payload {
		payload[i] = 0x41
	}
	if err := os.WriteFile(filepath.Join(root, "hello.bin"), payload, 0644); err != nil {
		t.Fatal(err)
	}

	addr, stop := startServer(t, root)
	defer stop()
	host, port := splitAddr(t, addr)

	engine := dial(t, host, port)
	defer engine.Shutdown(0, "test done")

	req := []byte("GET /hello.bin HTTP/1.1\r\nHost: localhost\r\n\r\n")
	if err := engine.Write(req, true); err != nil {
		t.Fatalf("write request: %v", err)
	}

	resp := readAll(t, engine)
	bodyStart, ok := httpwire.HeadersComplete(resp)
	if !ok {
		t.Fatalf("response never completed its headers: %q", resp)
	}

	headers := httpwire.ParseHeaders(resp[:bodyStart])
	sha, ok := httpwire.HeaderValue(headers, digest.Header)
	if !ok {
		t.Fatal("missing X-Content-SHA256 header")
	}

	body := resp[bodyStart:]
	if string(body) != string(payload) {
		t.Fatalf("body mismatch: got %d bytes, want %d", len(body), len(payload))
	}
	if got := digest.Hex(body); got != sha {
		t.Fatalf("integrity verification FAILED: got %s, want %s", got, sha)
	}
}

// TestMissingFile covers scenario 2: a request for a nonexistent file
// gets the fixed 404 response and its exact literal body.
func TestMissingFile(t *testing.T) {
	root := t.TempDir()
	addr, stop := startServer(t, root)
	defer stop()
	host, port := splitAddr(t, addr)

	engine := dial(t, host, port)
	defer engine.Shutdown(0, "test done")

	req := []byte("GET /nope HTTP/1.1\r\nHost: localhost\r\n\r\n")
	if err := engine.Write(req, true); err != nil {
		t.Fatalf("write request: %v", err)
	}

	resp := readAll(t, engine)
	bodyStart, ok := httpwire.HeadersComplete(resp)
	if !ok {
		t.Fatalf("response never completed its headers: %q", resp)
	}
	if string(resp[bodyStart:]) != httpwire.NotFoundBody {
		t.Fatalf("body = %q, want %q", resp[bodyStart:], httpwire.NotFoundBody)
	}
}

// TestMalformedRequest covers scenario 3: garbage with no request line
// gets the fixed 400 response.
func TestMalformedRequest(t *testing.T) {
	root := t.TempDir()
	addr, stop := startServer(t, root)
	defer stop()
	host, port := splitAddr(t, addr)

	engine := dial(t, host, port)
	defer engine.Shutdown(0, "test done")

	if err := engine.Write([]byte("GARBAGE\r\n\r\n"), true); err != nil {
		t.Fatalf("write request: %v", err)
	}

	resp := readAll(t, engine)
	bodyStart, ok := httpwire.HeadersComplete(resp)
	if !ok {
		t.Fatalf("response never completed its headers: %q", resp)
	}
	if string(resp[bodyStart:]) != httpwire.BadRequestBody {
		t.Fatalf("body = %q, want %q", resp[bodyStart:], httpwire.BadRequestBody)
	}
}
