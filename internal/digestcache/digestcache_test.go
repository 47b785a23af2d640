// SPDX-License-Identifier: GPL-3.0-or-later

package digestcache

import (
	"testing"
	"time"
)

func TestDigestCacheHit(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	data := []byte("hello world")
	modTime := time.Now()

	first, err := c.Digest("/data/hello.txt", data, modTime)
	if err != nil {
		t.Fatal(err)
	}

	// Second call with the same path/size/modTime must return the cached
	// value without needing the caller to pass the real bytes again -- we
	// pass different bytes of the same length to prove it wasn't rehashed.
	second, err := c.Digest("/data/hello.txt", []byte("not content"), modTime)
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Fatalf("expected cache hit to return %q, got %q", first, second)
	}
}

func TestDigestCacheMissOnStaleModTime(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	path := "/data/changed.txt"
	original := []byte("version one")
	updated := []byte("version two, longer")

	first, err := c.Digest(path, original, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	second, err := c.Digest(path, updated, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Fatal("expected digest to change when mtime and content change")
	}
}

func TestDigestCacheMissOnSizeChange(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	path := "/data/resized.txt"
	modTime := time.Now()

	first, err := c.Digest(path, []byte("short"), modTime)
	if err != nil {
		t.Fatal(err)
	}

	second, err := c.Digest(path, []byte("a much longer replacement body"), modTime)
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Fatal("expected digest to change when size changes even with the same mtime")
	}
}
