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

package mqtt

import (
	"time"

	"github.com/hrsystem/hrmq/internal/mqtt/packet"
	"github.com/prometheus/client_golang/prometheus"
)

// Config contains the Broker configuration.
type Config struct {
	// TCPAddress is the address, in the host:port form, used by Listen.
	TCPAddress string

	// ConnectTimeout is the time, in seconds, the broker waits for the CONNECT packet.
	ConnectTimeout int

	// BufferSize is the size, in bytes, of the receiver and transmitter buffers.
	BufferSize int

	// MaxPacketSize is the maximum packet size, in bytes, allowed.
	MaxPacketSize int

	// MaxKeepAlive is the maximum keep alive, in seconds, accepted by the broker. A CONNECT with a
	// greater keep alive, or with keep alive disabled, is refused with the identifier rejected
	// return code. Zero means no limit.
	MaxKeepAlive int

	// MaximumQoS is the maximum QoS accepted in PUBLISH packets and granted to subscriptions.
	MaximumQoS byte

	// RetainAvailable indicates whether the broker stores retained messages or not.
	RetainAvailable bool

	// MaxInflightMessages is the maximum number of unacknowledged QoS 1 and QoS 2 messages per
	// client. Messages beyond it are dropped.
	MaxInflightMessages int

	// RetryInterval is the time the broker waits for an acknowledgement before resending.
	RetryInterval time.Duration

	// MaxRetries is the number of resends before the subscriber is reported as unresponsive.
	MaxRetries int

	// OutboundQueueSize is the capacity of the outbound queue of each connection.
	OutboundQueueSize int

	// ClientIDPrefix is the prefix of the client IDs generated for clients without one.
	ClientIDPrefix string

	// MaxConnectionRate is the maximum number of accepted connections per second. Zero means
	// unlimited.
	MaxConnectionRate int

	// MetricsEnabled indicates whether the broker registers its Prometheus metrics or not.
	MetricsEnabled bool
}

// NewDefaultConfig creates a default Config.
func NewDefaultConfig() Config {
	return Config{
		TCPAddress:          ":1883",
		ConnectTimeout:      5,
		BufferSize:          1024,
		MaxPacketSize:       65536,
		MaxKeepAlive:        0,
		MaximumQoS:          byte(packet.QoS2),
		RetainAvailable:     true,
		MaxInflightMessages: 0,
		RetryInterval:       20 * time.Second,
		MaxRetries:          3,
		OutboundQueueSize:   256,
		ClientIDPrefix:      "hrmq-",
		MaxConnectionRate:   0,
		MetricsEnabled:      true,
	}
}

func (c *Config) setDefaults() {
	d := NewDefaultConfig()

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.MaxPacketSize <= 0 || c.MaxPacketSize > packet.MaxRemainingLength {
		c.MaxPacketSize = packet.MaxRemainingLength
	}
	if c.MaximumQoS > byte(packet.QoS2) {
		c.MaximumQoS = d.MaximumQoS
	}
	if c.MaxInflightMessages <= 0 || c.MaxInflightMessages > maxPacketID {
		c.MaxInflightMessages = maxPacketID
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = d.RetryInterval
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.OutboundQueueSize <= 0 {
		c.OutboundQueueSize = d.OutboundQueueSize
	}
}

// Hooks contains the functions called by the broker when events happen. The functions are called
// from the connection goroutines and must not block.
type Hooks struct {
	// OnClientConnected is called once the session of a client has been registered.
	OnClientConnected func(clientID string, connectedAt time.Time)

	// OnClientDisconnected is called once the session of a client has been removed.
	OnClientDisconnected func(clientID string)

	// OnMessageReceived is called for every PUBLISH packet accepted from a client.
	OnMessageReceived func(topic string, payload []byte)

	// OnDeliveryFailed is called when a subscriber did not acknowledge a message after all retries.
	OnDeliveryFailed func(clientID string, topic string)
}

// Option is the function called by New to set the broker options.
type Option func(b *Broker)

// WithHooks sets the event hooks of the broker.
func WithHooks(h Hooks) Option {
	return func(b *Broker) { b.hooks = h }
}

// WithRegisterer sets the Prometheus registerer used for the broker metrics.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(b *Broker) { b.registerer = r }
}
