// SPDX-License-Identifier: GPL-3.0-or-later

// Package certwatch hot-reloads the server's TLS certificate and key when
// either file changes on disk, so a renewed certificate does not require
// restarting the server. The watcher idiom follows the teacher's
// cmd/dtn-tool file-exchange watcher.
package certwatch

import (
	"crypto/tls"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/quicware/hoq-go/internal/quictls"
)

// Watcher serves the current certificate via GetCertificate and reloads it
// whenever certFile or keyFile changes.
type Watcher struct {
	certFile string
	keyFile  string

	watcher *fsnotify.Watcher

	mu   sync.RWMutex
	cert *tls.Certificate

	closeChan chan struct{}
}

// New creates a Watcher, loading the certificate once up front.
func New(certFile, keyFile string) (*Watcher, error) {
	w := &Watcher{
		certFile:  certFile,
		keyFile:   keyFile,
		closeChan: make(chan struct{}),
	}

	if err := w.reload(); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(certFile); err != nil {
		_ = fw.Close()
		return nil, err
	}
	if err := fw.Add(keyFile); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w.watcher = fw

	go w.handle()

	return w, nil
}

func (w *Watcher) reload() error {
	cert, err := quictls.LoadCertificate(w.certFile, w.keyFile)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.cert = &cert
	w.mu.Unlock()
	return nil
}

func (w *Watcher) handle() {
	for {
		select {
		case e, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.WithField("file", e.Name).Info("certificate file changed, reloading")
			if err := w.reload(); err != nil {
				log.WithError(err).Warn("failed to reload certificate")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("certificate watcher error")

		case <-w.closeChan:
			return
		}
	}
}

// GetCertificate is wired into tls.Config.GetCertificate.
func (w *Watcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cert, nil
}

// TLSConfig returns a tls.Config that always serves the current
// certificate via GetCertificate.
func (w *Watcher) TLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: w.GetCertificate,
		NextProtos:     []string{"hoq"},
		MinVersion:     tls.VersionTLS13,
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.closeChan)
	return w.watcher.Close()
}
