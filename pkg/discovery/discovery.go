// SPDX-License-Identifier: GPL-3.0-or-later

// Package discovery lets a client find a server on the local network
// without being told its host and port on the command line, and lets a
// server announce itself. This is a supplement beyond the distilled file
// protocol (the original demo always requires an explicit address); it
// carries no part of the HTTP-over-QUIC wire protocol itself. It follows
// the teacher's pkg/discovery Manager, built on schollz/peerdiscovery.
package discovery

import (
	"fmt"
	"time"

	"github.com/schollz/peerdiscovery"
	log "github.com/sirupsen/logrus"
)

const (
	multicastAddress4 = "224.23.23.42"
	multicastAddress6 = "ff02::42"
	discoveryPort     = 35043
)

// Announce broadcasts addr (host:port of this server's QUIC listener) over
// LAN multicast every interval, until stop is closed.
func Announce(addr string, interval time.Duration, stop chan struct{}) error {
	settings := peerdiscovery.Settings{
		Limit:            -1,
		Port:             fmt.Sprintf("%d", discoveryPort),
		MulticastAddress: multicastAddress4,
		Payload:          []byte(addr),
		Delay:            interval,
		TimeLimit:        -1,
		StopChan:         stop,
		AllowSelf:        true,
		IPVersion:        peerdiscovery.IPv4,
	}

	log.WithFields(log.Fields{
		"addr":     addr,
		"interval": interval,
	}).Info("announcing file server on LAN")

	errChan := make(chan error, 1)
	go func() {
		_, err := peerdiscovery.Discover(settings)
		errChan <- err
	}()

	select {
	case err := <-errChan:
		return err
	case <-time.After(time.Second):
		return nil
	}
}

// Discover listens for one announcement and returns the announced
// host:port, or an error if timeout elapses first.
func Discover(timeout time.Duration) (addr string, err error) {
	found := make(chan string, 1)
	stop := make(chan struct{})

	settings := peerdiscovery.Settings{
		Limit:     1,
		Port:      fmt.Sprintf("%d", discoveryPort),
		TimeLimit: timeout,
		StopChan:  stop,
		AllowSelf: false,
		IPVersion: peerdiscovery.IPv4,
		Notify: func(discovered peerdiscovery.Discovered) {
			select {
			case found <- string(discovered.Payload):
			default:
			}
		},
	}

	doneChan := make(chan error, 1)
	go func() {
		_, derr := peerdiscovery.Discover(settings)
		doneChan <- derr
	}()

	select {
	case addr = <-found:
		close(stop)
		<-doneChan
		return addr, nil
	case derr := <-doneChan:
		if derr != nil {
			return "", derr
		}
		select {
		case addr = <-found:
			return addr, nil
		default:
			return "", fmt.Errorf("no server announcement received within %s", timeout)
		}
	}
}
