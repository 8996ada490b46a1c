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

package mqtt_test

import (
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/hrsystem/hrmq/internal/mqtt"
	"github.com/hrsystem/hrmq/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPahoClient(t *testing.T, b *mqtt.Broker, clientID string) paho.Client {
	t.Helper()

	opts := paho.NewClientOptions().
		AddBroker("tcp://" + b.Addr().String()).
		SetClientID(clientID).
		SetProtocolVersion(4).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetKeepAlive(30 * time.Second)

	c := paho.NewClient(opts)
	tok := c.Connect()
	require.True(t, tok.WaitTimeout(2*time.Second))
	require.NoError(t, tok.Error())

	t.Cleanup(func() { c.Disconnect(100) })
	return c
}

func TestPahoInterop(t *testing.T) {
	b := mqtt.New(mqtt.NewDefaultConfig(), mocks.NewLoggerStub().Logger(),
		mqtt.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, b.Start("127.0.0.1", 0))
	defer b.Stop()

	sub := newPahoClient(t, b, "paho-sub")
	pub := newPahoClient(t, b, "paho-pub")

	received := make(chan paho.Message, 4)
	tok := sub.Subscribe("AI/+", 2, func(_ paho.Client, msg paho.Message) {
		received <- msg
	})
	require.True(t, tok.WaitTimeout(2*time.Second))
	require.NoError(t, tok.Error())

	for qos := byte(0); qos <= 2; qos++ {
		tok = pub.Publish("AI/RBSensorInfo", qos, false, []byte{'0' + qos})
		require.True(t, tok.WaitTimeout(2*time.Second))
		require.NoError(t, tok.Error())

		select {
		case msg := <-received:
			assert.Equal(t, "AI/RBSensorInfo", msg.Topic())
			assert.Equal(t, qos, msg.Qos())
			assert.Equal(t, []byte{'0' + qos}, msg.Payload())
		case <-time.After(2 * time.Second):
			t.Fatalf("message with QoS %d not received", qos)
		}
	}

	sessions := b.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "paho-pub", sessions[0].ClientID)
	assert.Equal(t, "paho-sub", sessions[1].ClientID)
}

func TestPahoRetained(t *testing.T) {
	b := mqtt.New(mqtt.NewDefaultConfig(), mocks.NewLoggerStub().Logger(),
		mqtt.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, b.Start("127.0.0.1", 0))
	defer b.Stop()

	pub := newPahoClient(t, b, "paho-pub")
	tok := pub.Publish("HR/Status", 1, true, "online")
	require.True(t, tok.WaitTimeout(2*time.Second))
	require.NoError(t, tok.Error())

	sub := newPahoClient(t, b, "paho-sub")
	received := make(chan paho.Message, 1)
	tok = sub.Subscribe("HR/#", 1, func(_ paho.Client, msg paho.Message) {
		received <- msg
	})
	require.True(t, tok.WaitTimeout(2*time.Second))

	select {
	case msg := <-received:
		assert.True(t, msg.Retained())
		assert.Equal(t, []byte("online"), msg.Payload())
	case <-time.After(2 * time.Second):
		t.Fatal("retained message not received")
	}
}
