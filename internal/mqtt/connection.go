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
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hrsystem/hrmq/internal/logger"
	"github.com/hrsystem/hrmq/internal/mqtt/packet"
)

var errConnectionTimeout = errors.New("timeout - no packet received")
var errConnectionClosed = errors.New("connection closed")

type connState byte

const (
	stateAwaitingConnect connState = iota
	stateConnected
	stateDisconnecting
	stateClosed
)

var connStateToString = map[connState]string{
	stateAwaitingConnect: "AwaitingConnect",
	stateConnected:       "Connected",
	stateDisconnecting:   "Disconnecting",
	stateClosed:          "Closed",
}

func (s connState) String() string {
	return connStateToString[s]
}

// connection is the broker side of a network connection. The read loop runs in the goroutine
// calling serve, which is the only one changing the connection state. Packets are written by a
// dedicated writer goroutine draining the outbound queue in FIFO order.
type connection struct {
	broker      *Broker
	log         *logger.Logger
	netConn     net.Conn
	reader      *bufio.Reader
	outbound    chan packet.Packet
	closed      chan struct{}
	writerDone  chan struct{}
	inflight    *inflight
	inboundQoS2 map[packet.ID]struct{}
	session     *Session
	will        *Message
	clientID    string
	keepAlive   int
	state       connState
	graceful    bool
	writing     bool
	closeOnce   sync.Once
}

func newConnection(b *Broker, nc net.Conn) *connection {
	return &connection{
		broker:      b,
		log:         b.connLog,
		netConn:     nc,
		reader:      bufio.NewReaderSize(nc, b.conf.BufferSize),
		outbound:    make(chan packet.Packet, b.conf.OutboundQueueSize),
		closed:      make(chan struct{}),
		writerDone:  make(chan struct{}),
		inflight:    newInflight(b.conf.MaxInflightMessages),
		inboundQoS2: make(map[packet.ID]struct{}),
	}
}

// Close closes the network connection, unblocking the read loop and the writer. It is safe to
// call it many times and from any goroutine.
func (c *connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.netConn.Close()
	})
	return err
}

func (c *connection) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *connection) setState(s connState) {
	c.log.Trace().
		Str("ClientId", c.clientID).
		Stringer("From", c.state).
		Stringer("To", s).
		Msg("Connection state changed")
	c.state = s
}

func (c *connection) serve() {
	defer c.cleanup()

	c.log.Debug().
		Str("Address", c.netConn.RemoteAddr().String()).
		Int("Timeout", c.broker.conf.ConnectTimeout).
		Msg("Handling connection")

	for {
		deadline := c.nextDeadline()
		if err := c.netConn.SetReadDeadline(deadline); err != nil {
			c.log.Debug().
				Str("ClientId", c.clientID).
				Msg("Failed to set read deadline: " + err.Error())
			return
		}

		pkt, err := c.readPacket()
		if err != nil {
			return
		}

		if err = c.handlePacket(pkt); err != nil {
			c.log.Warn().
				Str("ClientId", c.clientID).
				Stringer("PacketType", pkt.Type()).
				Stringer("State", c.state).
				Msg("Closing connection: " + err.Error())
			return
		}

		if c.state != stateConnected {
			return
		}
	}
}

func (c *connection) nextDeadline() time.Time {
	if c.state == stateAwaitingConnect {
		return time.Now().Add(time.Duration(c.broker.conf.ConnectTimeout) * time.Second)
	}
	if c.keepAlive > 0 {
		// 1.5 times the keep alive
		return time.Now().Add(time.Duration(c.keepAlive) * 1500 * time.Millisecond)
	}
	return time.Time{}
}

func (c *connection) readPacket() (packet.Packet, error) {
	pkt, err := c.broker.reader.ReadPacket(c.reader)
	if err == nil {
		c.broker.metrics.packetReceived(pkt)
		c.log.Trace().
			Str("ClientId", c.clientID).
			Stringer("PacketType", pkt.Type()).
			Int("Size", pkt.Size()).
			Msg("Received packet")
		return pkt, nil
	}

	if c.isClosed() {
		c.log.Trace().
			Str("ClientId", c.clientID).
			Msg("Network connection closed by the broker")
		return nil, errConnectionClosed
	}
	if errors.Is(err, io.EOF) {
		c.log.Debug().
			Str("ClientId", c.clientID).
			Msg("Network connection was closed: " + err.Error())
		return nil, io.EOF
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		c.log.Debug().
			Str("ClientId", c.clientID).
			Stringer("State", c.state).
			Int("KeepAlive", c.keepAlive).
			Msg("Timeout - No packet received")
		return nil, errConnectionTimeout
	}

	var pktErr *packet.Error
	if c.state == stateAwaitingConnect && errors.As(err, &pktErr) {
		c.log.Info().
			Str("Address", c.netConn.RemoteAddr().String()).
			Uint8("ReturnCode", uint8(pktErr.Code)).
			Msg("Connection refused: " + pktErr.Reason)

		ack := packet.NewConnAck(pktErr.Code, false)
		_ = c.writePacket(&ack)
		return nil, err
	}

	c.log.Warn().
		Str("ClientId", c.clientID).
		Stringer("State", c.state).
		Msg("Failed to read packet: " + err.Error())
	return nil, fmt.Errorf("%w: %s", ErrProtocolError, err.Error())
}

func (c *connection) handlePacket(pkt packet.Packet) error {
	if c.state == stateAwaitingConnect && pkt.Type() != packet.CONNECT {
		return fmt.Errorf("%w: %s before CONNECT", ErrProtocolError, pkt.Type())
	}

	switch p := pkt.(type) {
	case *packet.Connect:
		return c.handleConnect(p)
	case *packet.Publish:
		return c.handlePublish(p)
	case *packet.PubAck:
		c.handleAck(p.PacketID, packet.PUBACK)
		return nil
	case *packet.PubRec:
		c.handleAck(p.PacketID, packet.PUBREC)
		rel := packet.NewPubRel(p.PacketID)
		return c.send(&rel)
	case *packet.PubRel:
		delete(c.inboundQoS2, p.PacketID)
		comp := packet.NewPubComp(p.PacketID)
		return c.send(&comp)
	case *packet.PubComp:
		c.handleAck(p.PacketID, packet.PUBCOMP)
		return nil
	case *packet.Subscribe:
		return c.handleSubscribe(p)
	case *packet.Unsubscribe:
		return c.handleUnsubscribe(p)
	case *packet.PingReq:
		resp := &packet.PingResp{}
		err := c.send(resp)
		c.broker.metrics.recordPingLatency(time.Since(p.Timestamp()))
		return err
	case *packet.Disconnect:
		c.graceful = true
		c.will = nil
		c.setState(stateDisconnecting)
		return nil
	default:
		return fmt.Errorf("%w: unexpected %s", ErrProtocolError, pkt.Type())
	}
}

func (c *connection) handleAck(id packet.ID, t packet.Type) {
	if c.inflight.ack(id, t) {
		if t != packet.PUBREC {
			c.broker.metrics.pendingDeliveries(-1)
		}
		c.log.Trace().
			Str("ClientId", c.clientID).
			Uint16("PacketId", uint16(id)).
			Stringer("PacketType", t).
			Msg("Delivery acknowledged")
		return
	}

	c.log.Debug().
		Str("ClientId", c.clientID).
		Uint16("PacketId", uint16(id)).
		Stringer("PacketType", t).
		Msg("Acknowledgement without pending delivery")
}

// send queues the packet, blocking the caller while the outbound queue is full.
func (c *connection) send(pkt packet.Packet) error {
	select {
	case c.outbound <- pkt:
		return nil
	case <-c.closed:
		return errConnectionClosed
	}
}

// trySend queues the packet without blocking. It returns false when the queue is full or the
// connection is closed.
func (c *connection) trySend(pkt packet.Packet) bool {
	if c.isClosed() {
		return false
	}

	select {
	case c.outbound <- pkt:
		return true
	default:
		return false
	}
}

// deliver queues a copy of the message to the client with the given QoS and RETAIN flag. Copies
// are queued in the order deliver is called. A QoS 0 copy is dropped rather than overtaking a QoS
// 1 or QoS 2 copy still waiting for room in the outbound queue.
func (c *connection) deliver(msg Message, qos packet.QoS, retain bool) {
	pkt := msg.toPacket(0, qos, retain)
	m := c.broker.metrics

	if qos == packet.QoS0 {
		if !c.inflight.sendAfterPending(pkt, c.trySend) {
			m.messageDropped("queue_full")
			c.log.Debug().
				Str("ClientId", c.clientID).
				Str("MessageId", msg.ID.String()).
				Str("TopicName", msg.Topic).
				Msg("Outbound queue full, QoS 0 message dropped")
			return
		}
		m.messageDelivered(qos)
		return
	}

	if !c.inflight.add(pkt) {
		if c.isClosed() {
			return
		}
		m.messageDropped("inflight_full")
		c.log.Warn().
			Str("ClientId", c.clientID).
			Str("MessageId", msg.ID.String()).
			Str("TopicName", msg.Topic).
			Msg("Maximum inflight messages reached, message dropped")
		return
	}
	m.pendingDeliveries(1)
	m.messageDelivered(qos)

	if !c.inflight.flush(c.trySend) {
		c.log.Debug().
			Str("ClientId", c.clientID).
			Str("MessageId", msg.ID.String()).
			Uint16("PacketId", uint16(pkt.PacketID)).
			Msg("Outbound queue full, message kept pending")
		return
	}

	c.log.Trace().
		Str("ClientId", c.clientID).
		Str("MessageId", msg.ID.String()).
		Uint16("PacketId", uint16(pkt.PacketID)).
		Uint8("QoS", uint8(qos)).
		Bool("Retain", retain).
		Str("TopicName", msg.Topic).
		Msg("Message queued for delivery")
}

// retry resends the expired pending deliveries and reports the ones which exhausted the retries.
func (c *connection) retry(now time.Time) {
	if c.isClosed() {
		return
	}

	conf := &c.broker.conf
	resent, blocked, failed := c.inflight.retry(now, conf.RetryInterval, conf.MaxRetries, c.trySend)

	if resent > 0 {
		c.log.Debug().
			Str("ClientId", c.clientID).
			Int("Resent", resent).
			Msg("Pending deliveries resent")
	}
	if blocked {
		c.log.Debug().
			Str("ClientId", c.clientID).
			Msg("Outbound queue full, retry postponed")
	}

	for _, pub := range failed {
		c.broker.metrics.pendingDeliveries(-1)
		c.broker.metrics.deliveryFailed()
		c.log.Warn().
			Str("ClientId", c.clientID).
			Uint16("PacketId", uint16(pub.PacketID)).
			Str("TopicName", pub.TopicName).
			Int("Retries", conf.MaxRetries).
			Msg("Subscriber unresponsive, delivery failed")
		c.broker.deliveryFailed(c.clientID, pub.TopicName)
	}
}

func (c *connection) writeLoop() {
	defer close(c.writerDone)

	for {
		select {
		case <-c.closed:
			return
		case pkt := <-c.outbound:
			if err := c.writePacket(pkt); err != nil {
				_ = c.Close()
				return
			}

			// room for the deliveries parked while the queue was full
			c.inflight.flush(c.trySend)
		}
	}
}

func (c *connection) writePacket(pkt packet.Packet) error {
	err := c.broker.writer.WritePacket(c.netConn, pkt)
	if err != nil {
		if !c.isClosed() {
			c.log.Warn().
				Str("ClientId", c.clientID).
				Stringer("PacketType", pkt.Type()).
				Msg("Failed to send packet: " + err.Error())
		}
		return fmt.Errorf("failed to send packet: %w", err)
	}

	c.broker.metrics.packetSent(pkt)
	c.log.Trace().
		Str("ClientId", c.clientID).
		Stringer("PacketType", pkt.Type()).
		Int("Size", pkt.Size()).
		Msg("Packet sent with success")
	return nil
}

func (c *connection) cleanup() {
	wasConnected := c.state == stateConnected || c.state == stateDisconnecting
	c.setState(stateClosed)
	_ = c.Close()

	if !wasConnected {
		c.log.Debug().
			Str("Address", c.netConn.RemoteAddr().String()).
			Msg("Connection closed before CONNECT")
		return
	}

	if c.writing {
		<-c.writerDone
	}
	b := c.broker

	removed := b.registry.RemoveSession(c.session.ID)
	if n := c.inflight.clear(); n > 0 {
		b.metrics.pendingDeliveries(-n)
	}
	b.metrics.disconnected()

	if !c.graceful && c.will != nil {
		c.log.Debug().
			Str("ClientId", c.clientID).
			Str("TopicName", c.will.Topic).
			Msg("Publishing Will Message")
		b.route(*c.will)
	}

	if removed {
		b.clientDisconnected(c.clientID)
	}

	c.log.Info().
		Str("ClientId", c.clientID).
		Bool("Graceful", c.graceful).
		Msg("Client disconnected")
}
