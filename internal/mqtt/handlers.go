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
	"errors"
	"fmt"
	"time"

	"github.com/hrsystem/hrmq/internal/mqtt/packet"
	"github.com/hrsystem/hrmq/internal/mqtt/topic"
	"github.com/rs/xid"
)

func (c *connection) handleConnect(pkt *packet.Connect) error {
	if c.state != stateAwaitingConnect {
		return fmt.Errorf("%w: second CONNECT", ErrProtocolError)
	}

	b := c.broker
	c.clientID = pkt.ClientID
	c.keepAlive = int(pkt.KeepAlive)

	if err := b.checkKeepAlive(pkt); err != nil {
		// MQTT 3.1.1 clients cannot be told to use another keep alive
		c.log.Info().
			Str("ClientId", c.clientID).
			Uint16("KeepAlive", pkt.KeepAlive).
			Int("MaxKeepAlive", b.conf.MaxKeepAlive).
			Msg("Connection refused: " + err.Error())

		ack := packet.NewConnAck(packet.ReturnCodeIdentifierRejected, false)
		_ = c.writePacket(&ack)
		return err
	}

	if c.clientID == "" {
		c.clientID = b.conf.ClientIDPrefix + xid.New().String()
	}

	if pkt.WillFlag {
		if err := topic.ValidateTopicName(pkt.WillTopic); err != nil {
			return fmt.Errorf("%w: %s", ErrProtocolError, err.Error())
		}

		qos := pkt.WillQoS
		if qos > packet.QoS(b.conf.MaximumQoS) {
			qos = packet.QoS(b.conf.MaximumQoS)
		}
		c.will = &Message{
			ID:      xid.New(),
			Topic:   pkt.WillTopic,
			Payload: pkt.WillMessage,
			QoS:     qos,
			Retain:  pkt.WillRetain,
		}
	}

	session, evicted := b.registry.Register(c.clientID, c)
	c.session = session
	if evicted != nil {
		b.metrics.evicted()
		b.clientDisconnected(evicted.ClientID)
	}

	ack := packet.NewConnAck(packet.ReturnCodeAccepted, false)
	if err := c.writePacket(&ack); err != nil {
		// the session must not outlive a connection that never got its CONNACK
		c.setState(stateDisconnecting)
		return err
	}

	c.setState(stateConnected)
	c.writing = true
	go c.writeLoop()

	b.metrics.connected()
	b.metrics.recordConnectLatency(time.Since(pkt.Timestamp()), ack.ReturnCode)
	b.clientConnected(c.clientID, session.ConnectedAt)

	c.log.Info().
		Str("ClientId", c.clientID).
		Str("Address", c.netConn.RemoteAddr().String()).
		Bool("CleanSession", pkt.CleanSession).
		Int("KeepAlive", c.keepAlive).
		Stringer("Version", pkt.Version).
		Msg("Client connected")
	return nil
}

func (b *Broker) checkKeepAlive(pkt *packet.Connect) error {
	if b.conf.MaxKeepAlive == 0 {
		return nil
	}

	keepAlive := int(pkt.KeepAlive)
	if keepAlive == 0 || keepAlive > b.conf.MaxKeepAlive {
		return fmt.Errorf("%w: keep alive %d exceeds %d", ErrKeepAliveExceeded, keepAlive,
			b.conf.MaxKeepAlive)
	}
	return nil
}

func (c *connection) handlePublish(pkt *packet.Publish) error {
	b := c.broker

	if err := topic.ValidateTopicName(pkt.TopicName); err != nil {
		return fmt.Errorf("%w: %s", ErrProtocolError, err.Error())
	}
	if pkt.QoS > packet.QoS(b.conf.MaximumQoS) {
		return fmt.Errorf("%w: QoS %d not supported", ErrProtocolError, pkt.QoS)
	}

	msg := newMessage(pkt)
	c.log.Debug().
		Str("ClientId", c.clientID).
		Str("MessageId", msg.ID.String()).
		Uint16("PacketId", uint16(pkt.PacketID)).
		Uint8("QoS", uint8(pkt.QoS)).
		Bool("Retain", pkt.Retain).
		Bool("Dup", pkt.Dup).
		Str("TopicName", pkt.TopicName).
		Int("PayloadSize", len(pkt.Payload)).
		Msg("Received message")

	switch pkt.QoS {
	case packet.QoS0:
		b.receive(msg)
		return nil
	case packet.QoS1:
		b.receive(msg)
		ack := packet.NewPubAck(pkt.PacketID)
		return c.send(&ack)
	default:
		if _, dup := c.inboundQoS2[pkt.PacketID]; dup {
			c.log.Debug().
				Str("ClientId", c.clientID).
				Uint16("PacketId", uint16(pkt.PacketID)).
				Msg("Duplicate QoS 2 message suppressed")
		} else {
			c.inboundQoS2[pkt.PacketID] = struct{}{}
			b.receive(msg)
		}
		rec := packet.NewPubRec(pkt.PacketID)
		return c.send(&rec)
	}
}

func (c *connection) handleSubscribe(pkt *packet.Subscribe) error {
	b := c.broker

	for _, t := range pkt.Topics {
		if err := topic.ValidateFilter(t.Name); err != nil {
			return err
		}
	}

	codes := make([]packet.ReturnCode, 0, len(pkt.Topics))
	for _, t := range pkt.Topics {
		qos := t.QoS
		if qos > packet.QoS(b.conf.MaximumQoS) {
			qos = packet.QoS(b.conf.MaximumQoS)
		}

		_, err := b.registry.AddSubscription(c.session.ID, t.Name, qos)
		if err != nil {
			if !errors.Is(err, ErrUnknownSession) {
				return err
			}
			c.log.Debug().
				Str("ClientId", c.clientID).
				Str("TopicFilter", t.Name).
				Msg("Subscription ignored: " + err.Error())
			codes = append(codes, packet.ReturnCodeFailure)
			continue
		}
		codes = append(codes, packet.ReturnCode(qos))
	}

	ack := packet.NewSubAck(pkt.PacketID, codes)
	if err := c.send(&ack); err != nil {
		return err
	}

	c.log.Debug().
		Str("ClientId", c.clientID).
		Uint16("PacketId", uint16(pkt.PacketID)).
		Int("Topics", len(pkt.Topics)).
		Msg("Client subscribed")

	for i, t := range pkt.Topics {
		if codes[i] == packet.ReturnCodeFailure {
			continue
		}

		granted := packet.QoS(codes[i])
		for _, msg := range b.retained.Match(t.Name) {
			qos := msg.QoS
			if qos > granted {
				qos = granted
			}
			c.deliver(msg, qos, true)
		}
	}

	return nil
}

func (c *connection) handleUnsubscribe(pkt *packet.Unsubscribe) error {
	for _, f := range pkt.Topics {
		err := c.broker.registry.RemoveSubscription(c.session.ID, f)
		if err != nil {
			c.log.Debug().
				Str("ClientId", c.clientID).
				Str("TopicFilter", f).
				Msg("Unsubscribe ignored: " + err.Error())
		}
	}

	ack := packet.NewUnsubAck(pkt.PacketID)
	return c.send(&ack)
}
