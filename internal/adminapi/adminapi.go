// SPDX-License-Identifier: GPL-3.0-or-later

// Package adminapi is an optional, server-only observability endpoint: a
// health check, a JSON stats snapshot, and a websocket stream of the same
// stats pushed once a second. It follows the teacher's gorilla/mux REST
// agent idiom and gorilla/websocket upgrader idiom, and has no bearing on
// the QUIC wire protocol itself.
package adminapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// StatsProvider supplies the live counters this API exposes.
type StatsProvider interface {
	Stats() any
}

// Func adapts a plain function into a StatsProvider, so callers don't need
// to wrap their own stats type in a named adapter -- e.g.
// adminapi.Func(func() any { return server.Stats() }).
type Func func() any

// Stats implements StatsProvider.
func (f Func) Stats() any { return f() }

// Handler is the admin HTTP surface, to be bound to an address by the
// caller (e.g. http.ListenAndServe(addr, handler)).
type Handler struct {
	router   *mux.Router
	stats    StatsProvider
	upgrader websocket.Upgrader
}

// New creates a Handler reporting stats pulled from provider.
func New(provider StatsProvider) *Handler {
	h := &Handler{
		router:   mux.NewRouter(),
		stats:    provider,
		upgrader: websocket.Upgrader{},
	}

	h.router.HandleFunc("/healthz", h.handleHealthz).Methods(http.MethodGet)
	h.router.HandleFunc("/stats", h.handleStats).Methods(http.MethodGet)
	h.router.HandleFunc("/ws/stats", h.handleStatsWS).Methods(http.MethodGet)

	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.stats.Stats()); err != nil {
		log.WithError(err).Warn("failed to encode stats response")
	}
}

func (h *Handler) handleStatsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(h.stats.Stats()); err != nil {
			log.WithError(err).Debug("websocket write failed, closing stats stream")
			return
		}
	}
}
