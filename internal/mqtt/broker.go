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

// Package mqtt implements the MQTT broker engine: the session registry, the routing of
// application messages to the matching subscribers and the per-connection protocol state machine.
package mqtt

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hrsystem/hrmq/internal/logger"
	"github.com/hrsystem/hrmq/internal/mqtt/packet"
	"github.com/hrsystem/hrmq/internal/mqtt/topic"
	"github.com/hrsystem/hrmq/internal/mqtt/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
)

// Broker is the MQTT broker. It accepts TCP connections, keeps the sessions of the connected
// clients and routes the published messages to the subscribers.
type Broker struct {
	conf       Config
	log        *logger.Logger
	rootLog    *logger.Logger
	connLog    *logger.Logger
	hooks      Hooks
	registerer prometheus.Registerer
	registry   *Registry
	retained   *RetainedStore
	metrics    *metrics
	reader     packet.Reader
	writer     packet.Writer
	listener   *transport.TCPListener
	conns      map[*connection]struct{}
	stopping   bool
	stopped    chan struct{}
	retryStop  chan struct{}
	wg         sync.WaitGroup
	connsMu    sync.Mutex
	mu         sync.Mutex
}

// New creates a new Broker.
func New(conf Config, l *logger.Logger, opts ...Option) *Broker {
	conf.setDefaults()

	b := &Broker{
		conf:     conf,
		rootLog:  l,
		log:      l.WithPrefix("mqtt.broker"),
		connLog:  l.WithPrefix("mqtt.connection"),
		registry: NewRegistry(l),
		retained: NewRetainedStore(),
		reader:   packet.NewReader(packet.ReaderOptions{MaxPacketSize: conf.MaxPacketSize}),
		writer:   packet.NewWriter(conf.BufferSize),
		conns:    make(map[*connection]struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.registerer == nil && conf.MetricsEnabled {
		b.registerer = prometheus.DefaultRegisterer
	}
	b.metrics = newMetrics(b.registerer, b.log)

	return b
}

// Start starts accepting connections on the bind address and port without blocking the caller.
func (b *Broker) Start(bindAddress string, port int) error {
	return b.start(net.JoinHostPort(bindAddress, strconv.Itoa(port)))
}

// Listen starts the broker on the configured TCP address and blocks until the broker is stopped.
func (b *Broker) Listen() error {
	if err := b.start(b.conf.TCPAddress); err != nil {
		return err
	}

	b.mu.Lock()
	stopped := b.stopped
	b.mu.Unlock()

	<-stopped
	return nil
}

func (b *Broker) start(address string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listener != nil {
		return ErrBrokerRunning
	}

	b.log.Info().Str("Address", address).Msg("Starting MQTT broker")

	lsn := transport.NewTCPListener(transport.TCPListenerOptions{
		Address:           address,
		MaxConnectionRate: b.conf.MaxConnectionRate,
	}, b.rootLog)

	connStream, err := lsn.Listen()
	if err != nil {
		return fmt.Errorf("failed to start MQTT broker: %w", err)
	}

	b.connsMu.Lock()
	b.stopping = false
	b.connsMu.Unlock()

	b.listener = lsn
	b.stopped = make(chan struct{})
	b.retryStop = make(chan struct{})

	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		b.acceptConnections(connStream)
	}()
	go func() {
		defer b.wg.Done()
		b.retryPendingDeliveries(b.retryStop)
	}()

	b.log.Info().Str("Address", lsn.Addr().String()).Msg("MQTT broker started with success")
	return nil
}

// Stop stops the broker. It closes the listener and every connection, and blocks until all the
// connections have been handled and the registry is empty.
func (b *Broker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listener == nil {
		return
	}

	b.log.Info().Msg("Stopping MQTT broker")
	_ = b.listener.Close()
	close(b.retryStop)

	b.connsMu.Lock()
	b.stopping = true
	for c := range b.conns {
		_ = c.Close()
	}
	b.connsMu.Unlock()

	b.wg.Wait()
	b.listener = nil
	close(b.stopped)

	b.log.Info().
		Int("Sessions", b.registry.Len()).
		Msg("MQTT broker stopped with success")
}

// Addr returns the address the broker is listening on, or nil when it is not running.
func (b *Broker) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Sessions returns a snapshot of the connected clients and their subscriptions.
func (b *Broker) Sessions() []SessionInfo {
	return b.registry.Snapshot()
}

// Retained returns the retained messages, ordered by topic.
func (b *Broker) Retained() []Message {
	return b.retained.All()
}

// Publish routes the message to the matching subscribers as if it had been published by a client.
func (b *Broker) Publish(msg Message) error {
	if err := topic.ValidateTopicName(msg.Topic); err != nil {
		return err
	}
	if msg.QoS > packet.QoS(b.conf.MaximumQoS) {
		msg.QoS = packet.QoS(b.conf.MaximumQoS)
	}
	if msg.ID.IsNil() {
		msg.ID = xid.New()
	}

	b.route(msg)
	return nil
}

func (b *Broker) acceptConnections(connStream <-chan net.Conn) {
	for nc := range connStream {
		c := newConnection(b, nc)
		if !b.trackConnection(c) {
			_ = nc.Close()
			continue
		}

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer b.untrackConnection(c)
			c.serve()
		}()
	}
}

func (b *Broker) trackConnection(c *connection) bool {
	b.connsMu.Lock()
	defer b.connsMu.Unlock()

	if b.stopping {
		return false
	}
	b.conns[c] = struct{}{}
	return true
}

func (b *Broker) untrackConnection(c *connection) {
	b.connsMu.Lock()
	defer b.connsMu.Unlock()
	delete(b.conns, c)
}

func (b *Broker) retryPendingDeliveries(stop <-chan struct{}) {
	interval := b.conf.RetryInterval / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			for _, s := range b.registry.sessions() {
				if c, ok := s.Handle().(*connection); ok {
					c.retry(now)
				}
			}
		}
	}
}

// receive handles an application message published by a client.
func (b *Broker) receive(msg Message) {
	b.metrics.messageReceived(msg.QoS)
	if b.hooks.OnMessageReceived != nil {
		b.hooks.OnMessageReceived(msg.Topic, msg.Payload)
	}
	b.route(msg)
}

// route stores the retained message and queues one copy of the message to each session with a
// matching subscription, using the lowest QoS between the message and the subscription.
func (b *Broker) route(msg Message) {
	if msg.Retain && b.conf.RetainAvailable {
		stored := b.retained.Store(msg)
		b.metrics.retainedMessages(b.retained.Len())
		b.log.Debug().
			Str("MessageId", msg.ID.String()).
			Str("TopicName", msg.Topic).
			Bool("Stored", stored).
			Msg("Retained message updated")
	}

	subs := b.registry.Subscribers(msg.Topic)
	for _, sub := range subs {
		c, ok := sub.Session.Handle().(*connection)
		if !ok {
			continue
		}

		qos := msg.QoS
		if sub.QoS < qos {
			qos = sub.QoS
		}
		c.deliver(msg, qos, false)
	}

	b.log.Trace().
		Str("MessageId", msg.ID.String()).
		Str("TopicName", msg.Topic).
		Int("Subscribers", len(subs)).
		Msg("Message routed")
}

func (b *Broker) clientConnected(clientID string, at time.Time) {
	if b.hooks.OnClientConnected != nil {
		b.hooks.OnClientConnected(clientID, at)
	}
}

func (b *Broker) clientDisconnected(clientID string) {
	if b.hooks.OnClientDisconnected != nil {
		b.hooks.OnClientDisconnected(clientID)
	}
}

func (b *Broker) deliveryFailed(clientID, topicName string) {
	if b.hooks.OnDeliveryFailed != nil {
		b.hooks.OnDeliveryFailed(clientID, topicName)
	}
}

