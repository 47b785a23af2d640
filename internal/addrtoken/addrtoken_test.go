// SPDX-License-Identifier: GPL-3.0-or-later

package addrtoken

import (
	"bytes"
	"net"
	"testing"
)

func TestMintValidateRoundTrip(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 4433}
	odcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	token := Mint(addr, odcid)
	if !bytes.HasPrefix(token, []byte(magic)) {
		t.Fatalf("token missing magic prefix: %x", token)
	}

	got, ok := Validate(token, addr)
	if !ok {
		t.Fatal("expected token to validate")
	}
	if !bytes.Equal(got, odcid) {
		t.Fatalf("odcid = %x, want %x", got, odcid)
	}
}

func TestValidateWrongAddrFails(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 4433}
	other := &net.UDPAddr{IP: net.ParseIP("192.0.2.2"), Port: 4433}

	token := Mint(addr, []byte{9, 9})
	if _, ok := Validate(token, other); ok {
		t.Fatal("expected validation to fail for a different address")
	}
}

func TestValidateGarbageFails(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 4433}
	if _, ok := Validate([]byte("not a token"), addr); ok {
		t.Fatal("expected validation to fail for garbage input")
	}
}
