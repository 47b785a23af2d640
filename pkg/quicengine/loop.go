// SPDX-License-Identifier: GPL-3.0-or-later

package quicengine

import (
	"context"
	"errors"
	"io"

	"github.com/quicware/hoq-go/internal/cmdqueue"
)

// runLoop is the engine's background processing goroutine. It splits, Go
// idiom for the original single-threaded ev_loop, into one reader
// goroutine doing blocking Stream.Read (the "ingress" half) and this
// goroutine draining the command queue (the "async wakeup" half), exactly
// matching the three event sources spec.md's event loop multiplexes:
// ingress, application commands, and (here, owned internally by quic-go)
// timers.
func (e *Engine) runLoop(ctx context.Context) {
	defer close(e.done)

	readerDone := make(chan struct{})
	go e.readLoop(ctx, readerDone)

	for {
		select {
		case <-ctx.Done():
			<-readerDone
			return

		case cmd, ok := <-e.cmds.Chan():
			if !ok {
				<-readerDone
				return
			}
			e.handleCommand(cmd)

		case <-readerDone:
			// The reader exited on its own -- the peer finished the
			// default stream (FIN), an idle timeout, or a peer-initiated
			// close, not an application Shutdown, which would have
			// cancelled ctx first. Drive the CLOSED transition
			// autonomously.
			e.closeFromLoop()
			return
		}
	}
}

func (e *Engine) handleCommand(cmd cmdqueue.Command) {
	switch cmd.Type {
	case cmdqueue.Write:
		if _, err := e.defaultStream.Write(cmd.Data); err != nil {
			e.log().WithError(err).Warn("stream write failed")
			e.setLastError(err)
			e.emit(EventError, EventData{Str: err.Error()})
			return
		}
		if cmd.Fin {
			_ = e.defaultStream.Close()
		}
		e.emit(EventStreamWritable, EventData{Uint: cmd.Stream})

	case cmdqueue.Close:
		_ = e.defaultStream.Close()

	case cmdqueue.Stop:
		// handled by runLoop observing the queue closing; nothing to do.
	}
}

// readLoop blocks on Stream.Read and appends whatever arrives into the
// default stream's read buffer, notifying the application via the
// STREAM_READABLE event.
func (e *Engine) readLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	buf := make([]byte, 16*1024)
	for {
		n, err := e.defaultStream.Read(buf)
		if n > 0 {
			fin := errors.Is(err, io.EOF)
			e.bufs.Get(defaultStreamID).Append(buf[:n], fin)
			e.emit(EventStreamReadable, EventData{Uint: defaultStreamID})
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				e.bufs.Get(defaultStreamID).Append(nil, true)
				e.emit(EventStreamReadable, EventData{Uint: defaultStreamID})
				return
			}
			if ctx.Err() != nil {
				return
			}
			e.log().WithError(err).Debug("stream read ended")
			e.setLastError(err)
			e.emit(EventError, EventData{Str: err.Error()})
			return
		}
	}
}
