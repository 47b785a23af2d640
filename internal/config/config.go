// SPDX-License-Identifier: GPL-3.0-or-later

// Package config is the ambient TOML configuration layer shared by the
// server and client CLIs, following the teacher's cmd/dtnd/configuration.go
// tomlConfig idiom. It never overrides the positional CLI arguments (host,
// port, uri) spec.md defines as the primary interface -- it only tunes
// logging (both CLIs) and, for the server, the data root, the admin
// endpoint, and whether to announce on the LAN. The client applies only
// the Logging block.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// File describes the on-disk TOML configuration.
type File struct {
	Logging   LoggingConf
	Server    ServerConf
	Client    ClientConf
	Discovery DiscoveryConf
}

// LoggingConf describes the Logging-configuration block.
type LoggingConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// ServerConf describes server-only ambient settings.
type ServerConf struct {
	Root  string
	Admin string
}

// ClientConf describes client-only ambient settings.
type ClientConf struct {
	OutputFile string `toml:"output-file"`
}

// DiscoveryConf describes the optional LAN discovery block.
type DiscoveryConf struct {
	Enabled  bool
	Interval uint
}

// Load parses a TOML configuration file.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &f, nil
}

// ApplyLogging configures logrus from the Logging block, exactly as the
// teacher's parseCore does.
func (f *File) ApplyLogging() {
	if f.Logging.Level != "" {
		if lvl, err := log.ParseLevel(f.Logging.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    f.Logging.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("failed to set log level")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(f.Logging.ReportCaller)

	switch f.Logging.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		log.Warn("unknown logging format")
	}
}
