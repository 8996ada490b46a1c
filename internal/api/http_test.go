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

package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/hrsystem/hrmq/internal/api"
	"github.com/hrsystem/hrmq/internal/logger"
	"github.com/hrsystem/hrmq/internal/mqtt"
	"github.com/hrsystem/hrmq/internal/mqtt/packet"
	"github.com/hrsystem/hrmq/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokerStub struct {
	sessions []mqtt.SessionInfo
	retained []mqtt.Message
}

func (b *brokerStub) Sessions() []mqtt.SessionInfo { return b.sessions }

func (b *brokerStub) Retained() []mqtt.Message { return b.retained }

func newServer(t *testing.T, b api.Broker, opts ...api.Option) (*api.HTTPServer, *mocks.LoggerStub) {
	t.Helper()

	logStub := mocks.NewLoggerStub()
	require.NoError(t, logger.SetSeverityLevel("trace"))
	t.Cleanup(func() { _ = logger.SetSeverityLevel("debug") })

	conf := api.Config{Address: "127.0.0.1:0", MetricsEnabled: true, MetricsPath: "/metrics"}
	srv, err := api.NewHTTPServer(conf, b, logStub.Logger(), opts...)
	require.NoError(t, err)
	return srv, logStub
}

func serve(srv *api.HTTPServer, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rec, req)
	return rec
}

func TestNewHTTPServerMissingAddress(t *testing.T) {
	_, err := api.NewHTTPServer(api.Config{}, &brokerStub{}, mocks.NewLoggerStub().Logger())
	assert.ErrorIs(t, err, api.ErrMissingAddress)
}

func TestGetClients(t *testing.T) {
	connectedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clientID := gofakeit.Username()
	b := &brokerStub{sessions: []mqtt.SessionInfo{{
		ClientID:    clientID,
		ConnectedAt: connectedAt,
		Subscriptions: []mqtt.SubscriptionInfo{
			{Filter: "HR/Status", QoS: packet.QoS1},
		},
	}}}
	srv, logStub := newServer(t, b)

	rec := serve(srv, http.MethodGet, "/api/v1/clients")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var clients []struct {
		ClientID      string    `json:"client_id"`
		ConnectedAt   time.Time `json:"connected_at"`
		Subscriptions []struct {
			Filter string `json:"filter"`
			QoS    int    `json:"qos"`
		} `json:"subscriptions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &clients))
	require.Len(t, clients, 1)
	assert.Equal(t, clientID, clients[0].ClientID)
	assert.True(t, connectedAt.Equal(clients[0].ConnectedAt))
	require.Len(t, clients[0].Subscriptions, 1)
	assert.Equal(t, "HR/Status", clients[0].Subscriptions[0].Filter)
	assert.Equal(t, 1, clients[0].Subscriptions[0].QoS)
	assert.Contains(t, logStub.String(), "HTTP Request received")
}

func TestGetClientsEmpty(t *testing.T) {
	srv, _ := newServer(t, &brokerStub{})

	rec := serve(srv, http.MethodGet, "/api/v1/clients")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetRetained(t *testing.T) {
	b := &brokerStub{retained: []mqtt.Message{
		{Topic: "HR/Status", Payload: []byte("online"), QoS: packet.QoS1, Retain: true},
	}}
	srv, _ := newServer(t, b)

	rec := serve(srv, http.MethodGet, "/api/v1/retained")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"topic":"HR/Status","qos":1,"size":6}]`, rec.Body.String())
}

func TestGetHealth(t *testing.T) {
	b := &brokerStub{sessions: []mqtt.SessionInfo{{ClientID: "a"}, {ClientID: "b"}}}
	srv, _ := newServer(t, b)

	rec := serve(srv, http.MethodGet, "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","clients":2}`, rec.Body.String())
}

func TestGetMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hrmq_test_total",
		Help: "Test counter",
	})
	reg.MustRegister(counter)
	counter.Add(3)

	srv, _ := newServer(t, &brokerStub{}, api.WithGatherer(reg))

	rec := serve(srv, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hrmq_test_total 3")
}

func TestGetNotFound(t *testing.T) {
	srv, logStub := newServer(t, &brokerStub{})

	rec := serve(srv, http.MethodGet, "/invalid")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var httpErr struct{ Message string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &httpErr))
	assert.Equal(t, "Not Found", httpErr.Message)
	assert.Contains(t, logStub.String(), "HTTP Request error: Not Found")
}

func TestHeadNotFound(t *testing.T) {
	srv, _ := newServer(t, &brokerStub{})

	rec := serve(srv, http.MethodHead, "/invalid")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestListenAndStop(t *testing.T) {
	srv, logStub := newServer(t, &brokerStub{})

	done := make(chan error)
	go func() { done <- srv.Listen() }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second,
		5*time.Millisecond)

	url := fmt.Sprintf("http://%s/api/v1/health", srv.Addr().String())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 5*time.Millisecond)

	srv.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Listen did not return")
	}
	assert.Contains(t, logStub.String(), "HTTP Listening on")
}

func TestListenInvalidAddress(t *testing.T) {
	logStub := mocks.NewLoggerStub()
	srv, err := api.NewHTTPServer(api.Config{Address: "invalid:address:1"}, &brokerStub{},
		logStub.Logger())
	require.NoError(t, err)

	assert.Error(t, srv.Listen())
}
