// SPDX-License-Identifier: GPL-3.0-or-later

// Package cmdqueue is the cross-goroutine command queue used by the client
// engine facade (pkg/quicengine) to hand WRITE/CLOSE/STOP requests from an
// application goroutine to the engine's own processing goroutine, without
// either side touching the other's internal QUIC state directly.
package cmdqueue

import "fmt"

// Type identifies what a Command asks the engine to do.
type Type int

const (
	// Write asks the engine to send Data on Stream.
	Write Type = iota
	// Close asks the engine to close the send side of Stream, which ends
	// it with a FIN; the Command's Fin field is not consulted.
	Close
	// Stop is the STOP command type. pkg/quicengine ends its processing
	// loop when the queue itself is stopped (Queue.Stop); a queued Stop
	// command has no effect there.
	Stop
)

func (t Type) String() string {
	switch t {
	case Write:
		return "WRITE"
	case Close:
		return "CLOSE"
	case Stop:
		return "STOP"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Command is a single queued instruction. Data is only meaningful for
// Write and is owned exclusively by the Command once enqueued: the caller
// must not mutate the slice passed to Push afterwards.
type Command struct {
	Type   Type
	Stream uint64
	Data   []byte
	Fin    bool
}

// Queue is a bounded FIFO of Commands. A channel already gives FIFO
// ordering, built-in mutual exclusion, and a receive that blocks until
// either an item arrives or the queue is stopped -- the three properties
// the hand-rolled mutex+linked-list+condvar queue existed to provide.
type Queue struct {
	ch chan Command
}

// New creates a Queue with the given buffer capacity. A capacity of 0
// makes Push block until a reader is ready, matching a queue with no
// backlog allowance.
func New(capacity int) *Queue {
	return &Queue{ch: make(chan Command, capacity)}
}

// Push enqueues a command, copying Data so the caller's buffer can be
// reused or mutated afterwards. Push blocks if the queue is full.
func (q *Queue) Push(cmd Command) {
	if cmd.Data != nil {
		cmd.Data = append([]byte(nil), cmd.Data...)
	}
	q.ch <- cmd
}

// Pop blocks until a command is available, or returns ok=false once Stop
// has been called and the queue has drained.
func (q *Queue) Pop() (cmd Command, ok bool) {
	cmd, ok = <-q.ch
	return
}

// Chan exposes the underlying channel for use in a select alongside other
// event sources (e.g. a stream's readable notification).
func (q *Queue) Chan() <-chan Command {
	return q.ch
}

// Stop closes the queue. Any Commands already queued are still delivered
// to Pop before it starts returning ok=false. Stop must be called at most
// once.
func (q *Queue) Stop() {
	close(q.ch)
}
