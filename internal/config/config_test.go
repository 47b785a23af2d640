// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesAllBlocks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	contents := `
[logging]
level = "debug"
format = "json"

[server]
root = "/srv/data"
admin = ":8080"

[client]
output-file = "out.bin"

[discovery]
enabled = true
interval = 5
`
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if f.Logging.Level != "debug" || f.Logging.Format != "json" {
		t.Fatalf("logging = %+v", f.Logging)
	}
	if f.Server.Root != "/srv/data" || f.Server.Admin != ":8080" {
		t.Fatalf("server = %+v", f.Server)
	}
	if f.Client.OutputFile != "out.bin" {
		t.Fatalf("client = %+v", f.Client)
	}
	if !f.Discovery.Enabled || f.Discovery.Interval != 5 {
		t.Fatalf("discovery = %+v", f.Discovery)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.toml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
