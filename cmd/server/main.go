// SPDX-License-Identifier: GPL-3.0-or-later

// Command server serves a directory of files over HTTP-over-QUIC.
package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/quicware/hoq-go/internal/adminapi"
	"github.com/quicware/hoq-go/internal/certwatch"
	"github.com/quicware/hoq-go/internal/config"
	"github.com/quicware/hoq-go/internal/digestcache"
	"github.com/quicware/hoq-go/internal/quictls"
	"github.com/quicware/hoq-go/pkg/discovery"
	"github.com/quicware/hoq-go/pkg/fileserver"
)

func usage() {
	log.Errorf("Usage: %s <host> <port> [options]", os.Args[0])
	log.Error("Options:")
	log.Error("  -root <dir>       directory to serve (default ./data)")
	log.Error("  -cert <file>      TLS certificate (default ./cert.crt)")
	log.Error("  -key <file>       TLS key (default ./cert.key)")
	log.Error("  -admin <addr>     bind an admin/stats HTTP endpoint, e.g. :8080")
	log.Error("  -discover         announce this server on the LAN")
	log.Error("  -config <file>    load ambient TOML configuration")
	log.Error("  -selfsigned       generate a throwaway cert instead of loading one")
	log.Error("  -watch            hot-reload the cert/key pair when the files change")
}

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("server exited with an error")
	}
}

func run() error {
	args := os.Args[1:]

	var (
		root       = "./data"
		certFile   = "./cert.crt"
		keyFile    = "./cert.key"
		adminAddr  string
		discover   bool
		configPath string
		selfSigned bool
		watch      bool
	)

	args = extractFlag(args, "-root", &root)
	args = extractFlag(args, "-cert", &certFile)
	args = extractFlag(args, "-key", &keyFile)
	args = extractFlag(args, "-admin", &adminAddr)
	args = extractFlag(args, "-config", &configPath)
	args = extractBoolFlag(args, "-discover", &discover)
	args = extractBoolFlag(args, "-selfsigned", &selfSigned)
	args = extractBoolFlag(args, "-watch", &watch)

	if configPath != "" {
		f, err := config.Load(configPath)
		if err != nil {
			return err
		}
		f.ApplyLogging()
		if f.Server.Root != "" {
			root = f.Server.Root
		}
		if f.Server.Admin != "" {
			adminAddr = f.Server.Admin
		}
		if f.Discovery.Enabled {
			discover = true
		}
	}

	if len(args) < 2 {
		usage()
		os.Exit(1)
	}
	host, port := args[0], args[1]

	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}

	var tlsConf *tls.Config
	switch {
	case selfSigned:
		var terr error
		tlsConf, terr = quictls.GenerateSelfSignedServerConfig()
		if terr != nil {
			return terr
		}
	case watch:
		watcher, werr := certwatch.New(certFile, keyFile)
		if werr != nil {
			return werr
		}
		defer watcher.Close()
		tlsConf = watcher.TLSConfig()
	default:
		var terr error
		tlsConf, terr = quictls.LoadServerConfig(certFile, keyFile)
		if terr != nil {
			return terr
		}
	}

	cache, err := digestcache.Open(root)
	if err != nil {
		return err
	}
	defer cache.Close()

	srv := fileserver.New(fileserver.Config{
		Addr:      host + ":" + port,
		Root:      root,
		TLSConfig: tlsConf,
		Cache:     cache,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	var adminServer *http.Server
	if adminAddr != "" {
		adminServer = &http.Server{
			Addr:    adminAddr,
			Handler: adminapi.New(adminapi.Func(func() any { return srv.Stats() })),
		}
		go func() {
			log.WithField("addr", adminAddr).Info("admin API listening")
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Warn("admin API stopped")
			}
		}()
	}

	var discoverStop chan struct{}
	if discover {
		discoverStop = make(chan struct{})
		go func() {
			if err := discovery.Announce(host+":"+port, 3*time.Second, discoverStop); err != nil {
				log.WithError(err).Warn("LAN discovery announce stopped")
			}
		}()
	}

	log.WithFields(log.Fields{
		"host": host,
		"port": port,
		"root": root,
	}).Info("HTTP-over-QUIC server starting")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	return shutdown(cancel, srv, adminServer, discoverStop)
}

// shutdown runs every cleanup step even if an earlier one fails, and
// aggregates whatever went wrong, matching the teacher's multi-component
// dtnd shutdown sequence.
func shutdown(cancel context.CancelFunc, srv *fileserver.Server, adminServer *http.Server, discoverStop chan struct{}) error {
	var result *multierror.Error

	cancel()
	if err := srv.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	if adminServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := adminServer.Shutdown(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if discoverStop != nil {
		close(discoverStop)
	}

	return result.ErrorOrNil()
}

func extractFlag(args []string, name string, out *string) []string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			*out = args[i+1]
			return append(append([]string{}, args[:i]...), args[i+2:]...)
		}
	}
	return args
}

func extractBoolFlag(args []string, name string, out *bool) []string {
	for i, a := range args {
		if a == name {
			*out = true
			return append(append([]string{}, args[:i]...), args[i+1:]...)
		}
	}
	return args
}
