// Copyright 2026 The HRMQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport provides the byte stream transports used by the broker and the client.
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hrsystem/hrmq/internal/logger"
	"golang.org/x/time/rate"
)

// ErrListenerClosed indicates that the listener has been closed.
var ErrListenerClosed = errors.New("listener closed")

// TCPListenerOptions contains the options for the TCPListener.
type TCPListenerOptions struct {
	// Address is the TCP address to listen on, in the host:port form.
	Address string

	// MaxConnectionRate is the maximum number of connections accepted per second. Zero means
	// unlimited.
	MaxConnectionRate int
}

// TCPListener is a listener which listens for TCP connections.
type TCPListener struct {
	log      *logger.Logger
	listener net.Listener
	limiter  *rate.Limiter
	address  string
	stop     atomic.Bool
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewTCPListener creates a new instance of the TCPListener.
func NewTCPListener(opts TCPListenerOptions, l *logger.Logger) *TCPListener {
	lsn := &TCPListener{
		address: opts.Address,
		log:     l.WithPrefix("mqtt.tcp"),
	}
	if opts.MaxConnectionRate > 0 {
		lsn.limiter = rate.NewLimiter(rate.Limit(opts.MaxConnectionRate), opts.MaxConnectionRate)
	}
	return lsn
}

// Listen starts listening for TCP connections without blocking the caller. The returned channel
// is closed once the listener has been closed.
func (l *TCPListener) Listen() (<-chan net.Conn, error) {
	l.log.Debug().
		Str("Address", l.address).
		Msg("Starting TCP Listener")

	lsn, err := net.Listen("tcp", l.address)
	if err != nil {
		l.log.Error().
			Str("Address", l.address).
			Msg("Failed to start TCP Listener: " + err.Error())
		return nil, fmt.Errorf("failed to start TCP Listener: %w", err)
	}

	l.mu.Lock()
	l.listener = lsn
	l.mu.Unlock()

	connStream := make(chan net.Conn)
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		l.acceptConnections(lsn, connStream)
	}()

	l.log.Info().
		Str("Address", lsn.Addr().String()).
		Msg("Listening on TCP address")
	return connStream, nil
}

// Addr returns the address the listener is bound to, or nil when it is not listening.
func (l *TCPListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Close closes the listener. Once called, it blocks the caller until the listener has stopped to
// accept new connections.
func (l *TCPListener) Close() error {
	if l.stop.Swap(true) {
		return nil
	}

	l.log.Debug().
		Str("Address", l.address).
		Msg("Closing TCP Listener")

	l.mu.Lock()
	lsn := l.listener
	l.mu.Unlock()

	if lsn != nil {
		err := lsn.Close()
		if err != nil {
			l.log.Error().
				Str("Address", l.address).
				Msg("Failed to close TCP Listener: " + err.Error())
			return err
		}
	}

	l.wg.Wait()
	l.log.Debug().
		Str("Address", l.address).
		Msg("TCP Listener closed with success")
	return nil
}

func (l *TCPListener) acceptConnections(lsn net.Listener, connStream chan<- net.Conn) {
	defer close(connStream)

	for {
		conn, err := lsn.Accept()
		if err != nil {
			if l.stop.Load() || errors.Is(err, net.ErrClosed) {
				return
			}

			l.log.Warn().
				Str("Address", l.address).
				Msg("Failed to accept TCP connection: " + err.Error())
			continue
		}

		if l.limiter != nil && !l.limiter.Allow() {
			l.log.Warn().
				Str("Address", conn.RemoteAddr().String()).
				Msg("Connection rate exceeded, closing TCP connection")
			_ = conn.Close()
			continue
		}

		l.log.Debug().
			Str("Address", l.address).
			Msg("New TCP connection from " + conn.RemoteAddr().String())
		connStream <- conn
	}
}
