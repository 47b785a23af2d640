// SPDX-License-Identifier: GPL-3.0-or-later

// Package digestcache caches each served file's size and SHA-256 digest,
// keyed by path and modification time, so the file server does not have
// to re-hash an unchanged file on every request. It follows the same
// badgerhold-backed store idiom as the teacher's bundle storage layer.
package digestcache

import (
	"os"
	"path"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold"

	"github.com/quicware/hoq-go/internal/digest"
)

const dirBadger = "digestcache"

// Entry is the cached record for one file.
type Entry struct {
	Path    string `badgerholdKey:"Path"`
	ModTime time.Time
	Size    int64
	SHA256  string
}

// Cache stores Entry records in an embedded badger database.
type Cache struct {
	bh *badgerhold.Store
}

// Open creates or opens a Cache rooted at dir.
func Open(dir string) (*Cache, error) {
	badgerDir := path.Join(dir, dirBadger)
	if err := os.MkdirAll(badgerDir, 0700); err != nil {
		return nil, err
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = badgerDir
	opts.ValueDir = badgerDir
	opts.Logger = log.StandardLogger()

	bh, err := badgerhold.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Cache{bh: bh}, nil
}

// Close closes the underlying database. The Cache must not be used
// afterwards.
func (c *Cache) Close() error {
	return c.bh.Close()
}

// Digest returns the SHA-256 hex digest of the file at filePath, computing
// and storing it if the cached entry is missing or stale (size or mtime
// changed since it was cached).
func (c *Cache) Digest(filePath string, data []byte, modTime time.Time) (string, error) {
	var existing Entry
	err := c.bh.Get(filePath, &existing)
	if err == nil && existing.ModTime.Equal(modTime) && existing.Size == int64(len(data)) {
		return existing.SHA256, nil
	}

	sum := digest.Hex(data)
	entry := Entry{
		Path:    filePath,
		ModTime: modTime,
		Size:    int64(len(data)),
		SHA256:  sum,
	}

	if err == nil {
		if uErr := c.bh.Update(filePath, entry); uErr != nil {
			log.WithError(uErr).Warn("digestcache: failed to update entry")
		}
	} else {
		if iErr := c.bh.Insert(filePath, entry); iErr != nil {
			log.WithError(iErr).Warn("digestcache: failed to insert entry")
		}
	}

	return sum, nil
}
