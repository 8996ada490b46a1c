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

package cli

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hrsystem/hrmq/internal/config"
	"github.com/hrsystem/hrmq/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddress(t *testing.T) string {
	t.Helper()

	lsn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lsn.Addr().String()
	require.NoError(t, lsn.Close())
	return addr
}

func waitDial(t *testing.T, addr string) {
	t.Helper()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, time.Second, 10*time.Millisecond)
}

func TestRunServer(t *testing.T) {
	conf := config.DefaultConfig
	conf.MetricsEnabled = false
	conf.MQTTTCPAddress = freeAddress(t)
	conf.HTTPAddress = freeAddress(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, conf, mocks.NewLoggerStub().Logger()) }()

	waitDial(t, conf.MQTTTCPAddress)
	waitDial(t, conf.HTTPAddress)
	cancel()

	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server not stopped")
	}
}

func TestRunServerListenFailure(t *testing.T) {
	lsn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = lsn.Close() }()

	conf := config.DefaultConfig
	conf.MetricsEnabled = false
	conf.HTTPEnabled = false
	conf.MQTTTCPAddress = lsn.Addr().String()

	done := make(chan error, 1)
	go func() { done <- runServer(context.Background(), conf, mocks.NewLoggerStub().Logger()) }()

	select {
	case err = <-done:
		assert.NotNil(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server not stopped")
	}
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, err := newLogger(nil, "pretty", "verbose")
	assert.NotNil(t, err)
}

func TestFormatPayload(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", formatPayload([]byte(`{"a":1}`)))
	assert.Equal(t, "plain text", formatPayload([]byte("plain text")))
}
