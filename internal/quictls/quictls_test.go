// SPDX-License-Identifier: GPL-3.0-or-later

package quictls

import "testing"

func TestGenerateSelfSignedServerConfig(t *testing.T) {
	cfg, err := GenerateSelfSignedServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("expected one certificate, got %d", len(cfg.Certificates))
	}
	if cfg.NextProtos[0] != nextProto {
		t.Fatalf("NextProtos = %v", cfg.NextProtos)
	}
}

func TestDialerConfigSkipsVerification(t *testing.T) {
	cfg := DialerConfig()
	if !cfg.InsecureSkipVerify {
		t.Fatal("expected InsecureSkipVerify, protocol has no CA distribution")
	}
}
