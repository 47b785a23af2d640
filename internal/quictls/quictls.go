// SPDX-License-Identifier: GPL-3.0-or-later

// Package quictls builds the tls.Config used by the server and client,
// following the same self-signed-certificate idiom the teacher uses for
// its QUIC convergence layer.
package quictls

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
)

const nextProto = "hoq"

// LoadCertificate loads a certificate/key pair from disk, shared by
// LoadServerConfig and internal/certwatch's hot-reload path.
func LoadCertificate(certFile, keyFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load key pair: %w", err)
	}
	return cert, nil
}

// LoadServerConfig builds a server tls.Config from a certificate/key pair
// on disk, e.g. cert.crt/cert.key as spec.md's CLI expects.
func LoadServerConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := LoadCertificate(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{nextProto},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// DialerConfig builds a client-side tls.Config that does not verify the
// server's certificate, since the protocol has no certificate-authority
// distribution mechanism. pkg/quicengine does not use it: the engine builds
// its own tls.Config and verifies the server unless Config.VerifyPeer is
// false.
func DialerConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{nextProto},
	}
}

// GenerateSelfSignedServerConfig produces a throwaway self-signed
// certificate, for tests and local experimentation without a cert.crt on
// disk.
func GenerateSelfSignedServerConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	template := x509.Certificate{SerialNumber: big.NewInt(1)}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("combine certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{nextProto},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
