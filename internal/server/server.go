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

// Package server runs the HRMQ listeners, such as the MQTT broker and the HTTP admin API, as a
// single unit.
package server

import (
	"errors"
	"sync"

	"github.com/hrsystem/hrmq/internal/logger"
	"go.uber.org/multierr"
)

// ErrNoListener indicates that the server was started without any listener.
var ErrNoListener = errors.New("no available listener")

// Listener is an interface for network listeners.
type Listener interface {
	// Listen starts listening and blocks until the listener stops.
	Listen() error

	// Stop stops the listener unblocking the Listen function.
	Stop()
}

// Server represents the HRMQ server.
type Server struct {
	log       *logger.Logger
	listeners []Listener
	err       error
	wg        sync.WaitGroup
	mu        sync.Mutex
}

// New creates a new server.
func New(l *logger.Logger) *Server {
	return &Server{log: l.WithPrefix("server")}
}

// AddListener adds a listener to the server.
func (s *Server) AddListener(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Start starts the server running all listeners without blocking the caller. When any listener
// fails, every other listener is stopped.
func (s *Server) Start() error {
	s.log.Info().Msg("Starting server")

	if len(s.listeners) == 0 {
		return ErrNoListener
	}

	for _, lsn := range s.listeners {
		s.wg.Add(1)
		go func(l Listener) {
			defer s.wg.Done()

			if err := l.Listen(); err != nil {
				s.log.Error().Msg("Listener failed: " + err.Error())

				s.mu.Lock()
				s.err = multierr.Append(s.err, err)
				s.mu.Unlock()

				s.stopAll(l)
			}
		}(lsn)
	}

	s.log.Info().Int("Listeners", len(s.listeners)).Msg("Server started with success")
	return nil
}

// Stop stops the server by stopping all listeners.
func (s *Server) Stop() {
	s.log.Info().Msg("Stopping server")
	s.stopAll(nil)
	s.wg.Wait()
	s.log.Info().Msg("Server stopped with success")
}

// Wait blocks while the server is running. It returns the combined errors of the failed listeners.
func (s *Server) Wait() error {
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Server) stopAll(except Listener) {
	for _, l := range s.listeners {
		if l != except {
			l.Stop()
		}
	}
}
