// SPDX-License-Identifier: GPL-3.0-or-later

package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeStats struct {
	Connections int `json:"connections"`
}

type fakeProvider struct{ s fakeStats }

func (f fakeProvider) Stats() any { return f.s }

func TestHealthz(t *testing.T) {
	h := New(fakeProvider{s: fakeStats{Connections: 2}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStatsJSON(t *testing.T) {
	h := New(fakeProvider{s: fakeStats{Connections: 3}})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var got fakeStats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Connections != 3 {
		t.Fatalf("connections = %d, want 3", got.Connections)
	}
}
