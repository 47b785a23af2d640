// SPDX-License-Identifier: GPL-3.0-or-later

// Package addrtoken reproduces, byte for byte, the address-validation
// token format minted and validated by the original quiche-based server:
// the literal "quiche", followed by the client's address, followed by the
// original destination connection id. A real stateless-retry handshake is
// performed at the QUIC transport layer by quic-go's
// quic.Transport.VerifySourceAddress; this package exists so the wire
// format itself remains specified and independently testable, as it would
// be for a lower-level QUIC library that hands an application its raw
// retry token bytes.
package addrtoken

import (
	"bytes"
	"fmt"
	"net"
)

const magic = "quiche"

// Mint builds a token for a client at addr with original destination
// connection id odcid.
func Mint(addr net.Addr, odcid []byte) []byte {
	addrBytes := encodeAddr(addr)

	token := make([]byte, 0, len(magic)+len(addrBytes)+len(odcid))
	token = append(token, magic...)
	token = append(token, addrBytes...)
	token = append(token, odcid...)
	return token
}

// Validate checks that token was minted for addr, and returns the
// original destination connection id it carries.
func Validate(token []byte, addr net.Addr) (odcid []byte, ok bool) {
	if len(token) < len(magic) || !bytes.Equal(token[:len(magic)], []byte(magic)) {
		return nil, false
	}
	token = token[len(magic):]

	addrBytes := encodeAddr(addr)
	if len(token) < len(addrBytes) || !bytes.Equal(token[:len(addrBytes)], addrBytes) {
		return nil, false
	}
	token = token[len(addrBytes):]

	odcid = append([]byte(nil), token...)
	return odcid, true
}

// encodeAddr renders a net.Addr the way the original server encoded a
// POSIX struct sockaddr_storage: family-agnostic IP bytes followed by the
// port, which is sufficient to bind a token to one client socket address
// without needing the platform-specific padding bytes of the real struct.
func encodeAddr(addr net.Addr) []byte {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return []byte(fmt.Sprintf("%v", addr))
	}

	ip := udpAddr.IP.To16()
	if ip == nil {
		ip = udpAddr.IP
	}

	out := make([]byte, 0, len(ip)+2)
	out = append(out, ip...)
	out = append(out, byte(udpAddr.Port>>8), byte(udpAddr.Port))
	return out
}
