// SPDX-License-Identifier: GPL-3.0-or-later

package fileserver

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/quic-go/quic-go"
)

// localConnID is a process-local 16-byte identifier minted for every
// accepted connection, matching the original server's LOCAL_CONN_ID_LEN.
// It exists alongside, not instead of, quic-go's own wire-level connection
// ids: quic-go already owns real CID routing, so this key only needs to
// be unique within this process's connection table.
type localConnID [16]byte

func newLocalConnID() (localConnID, error) {
	var id localConnID
	if _, err := rand.Read(id[:]); err != nil {
		return id, err
	}
	return id, nil
}

func (id localConnID) String() string {
	return fmt.Sprintf("%x", id[:])
}

// connState is the server's per-connection record (spec component C5):
// the local id, the quic-go connection handle, and the pending-transfer
// table for streams on this connection that are still being sent.
type connState struct {
	id      localConnID
	conn    quic.Connection
	pending *Table
}

// connTable is the server's connection table (spec component C5), keyed
// by localConnID.
type connTable struct {
	mu    sync.Mutex
	conns map[localConnID]*connState
}

func newConnTable() *connTable {
	return &connTable{conns: make(map[localConnID]*connState)}
}

func (t *connTable) put(cs *connState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[cs.id] = cs
}

func (t *connTable) delete(id localConnID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, id)
}

func (t *connTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}
