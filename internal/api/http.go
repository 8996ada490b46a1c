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

// Package api implements the HTTP admin API of the broker.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hrsystem/hrmq/internal/logger"
	"github.com/hrsystem/hrmq/internal/mqtt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ErrMissingAddress indicates that the HTTP server has no address to bind to.
var ErrMissingAddress = errors.New("HTTP missing address")

// Broker is the source of the state exposed by the API.
type Broker interface {
	// Sessions returns a snapshot of the connected clients.
	Sessions() []mqtt.SessionInfo

	// Retained returns the retained messages.
	Retained() []mqtt.Message
}

// Option is the function called by NewHTTPServer to set the server options.
type Option func(s *HTTPServer)

// WithGatherer sets the Prometheus gatherer exported in the metrics path.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *HTTPServer) { s.gatherer = g }
}

// HTTPServer represents the HTTP server.
type HTTPServer struct {
	// Echo is the instance of the Echo framework.
	Echo *echo.Echo

	conf     Config
	log      *logger.Logger
	broker   Broker
	gatherer prometheus.Gatherer
	lsn      net.Listener
	mu       sync.Mutex
}

// NewHTTPServer creates a HTTPServer.
func NewHTTPServer(c Config, b Broker, l *logger.Logger, opts ...Option) (*HTTPServer, error) {
	if c.Address == "" {
		return nil, ErrMissingAddress
	}
	c.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(c.ReadTimeout) * time.Second
	e.Server.WriteTimeout = time.Duration(c.WriteTimeout) * time.Second

	s := &HTTPServer{
		Echo:     e,
		conf:     c,
		log:      l.WithPrefix("api"),
		broker:   b,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(fromLogger(s.log))
	e.HTTPErrorHandler = s.handleError

	v1 := e.Group("/api/v1")
	v1.GET("/clients", s.getClients)
	v1.GET("/retained", s.getRetained)
	v1.GET("/health", s.getHealth)

	if c.MetricsEnabled {
		h := promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
		e.GET(c.MetricsPath, echo.WrapHandler(h))
	}

	return s, nil
}

// Listen starts the HTTPServer. Once called, it blocks waiting for requests until it's stopped by
// the Stop function.
func (s *HTTPServer) Listen() error {
	lsn, err := net.Listen("tcp", s.conf.Address)
	if err != nil {
		s.log.Error().
			Str("Address", s.conf.Address).
			Msg("HTTP Failed to listen: " + err.Error())
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	s.mu.Lock()
	s.lsn = lsn
	s.Echo.Listener = lsn
	s.mu.Unlock()

	s.log.Info().Msg("HTTP Listening on " + lsn.Addr().String())

	err = s.Echo.Start(s.conf.Address)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	s.log.Debug().Msg("HTTP Server stopped with success")
	return nil
}

// Addr returns the address the server is listening on, or nil when it is not listening.
func (s *HTTPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lsn == nil {
		return nil
	}
	return s.lsn.Addr()
}

// Stop stops the HTTPServer. Once called, it unblocks the Listen function.
func (s *HTTPServer) Stop() {
	s.log.Debug().Msg("HTTP Stopping server")

	t := time.Duration(s.conf.ShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), t)
	defer cancel()

	if err := s.Echo.Shutdown(ctx); err != nil {
		_ = s.Echo.Close()
	}
}

type clientResponse struct {
	ClientID      string                  `json:"client_id"`
	ConnectedAt   time.Time               `json:"connected_at"`
	Subscriptions []mqtt.SubscriptionInfo `json:"subscriptions"`
}

func (s *HTTPServer) getClients(c echo.Context) error {
	sessions := s.broker.Sessions()
	clients := make([]clientResponse, 0, len(sessions))

	for _, info := range sessions {
		clients = append(clients, clientResponse{
			ClientID:      info.ClientID,
			ConnectedAt:   info.ConnectedAt,
			Subscriptions: info.Subscriptions,
		})
	}
	return c.JSON(http.StatusOK, clients)
}

type retainedResponse struct {
	Topic string `json:"topic"`
	QoS   byte   `json:"qos"`
	Size  int    `json:"size"`
}

func (s *HTTPServer) getRetained(c echo.Context) error {
	msgs := s.broker.Retained()
	retained := make([]retainedResponse, 0, len(msgs))

	for _, msg := range msgs {
		retained = append(retained, retainedResponse{
			Topic: msg.Topic,
			QoS:   byte(msg.QoS),
			Size:  len(msg.Payload),
		})
	}
	return c.JSON(http.StatusOK, retained)
}

func (s *HTTPServer) getHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": len(s.broker.Sessions()),
	})
}

func (s *HTTPServer) handleError(err error, c echo.Context) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		s.log.Debug().
			Str("Path", c.Path()).
			Int("Status", httpErr.Code).
			Msg(fmt.Sprintf("HTTP Request error: %v", httpErr.Message))
	} else {
		httpErr = echo.ErrInternalServerError
		s.log.Warn().Msg("HTTP Request error: " + err.Error())
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(httpErr.Code)
	} else {
		err = c.JSON(httpErr.Code, httpErr)
	}
	if err != nil {
		s.log.Error().
			Str("Path", c.Path()).
			Int("Status", httpErr.Code).
			Msg("HTTP Failed to send error response: " + err.Error())
	}
}
