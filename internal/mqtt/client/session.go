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

package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hrsystem/hrmq/internal/logger"
	"github.com/hrsystem/hrmq/internal/mqtt/packet"
)

const maxPacketID = 65535

var errNoPacketID = errors.New("no packet ID available")

// session holds the state of a single network connection to the broker. A new session is created
// on each successful Connect.
type session struct {
	client      *Client
	log         *logger.Logger
	conn        net.Conn
	rd          *bufio.Reader
	clientID    string
	events      *dispatcher
	pending     map[packet.ID]chan packet.Packet
	inboundQoS2 map[packet.ID]struct{}
	lastID      packet.ID
	graceful    atomic.Bool
	done        chan struct{}
	closeOnce   sync.Once
	writeMu     sync.Mutex
	mu          sync.Mutex
}

func newSession(c *Client, conn net.Conn, rd *bufio.Reader, clientID string) *session {
	return &session{
		client:      c,
		log:         c.log,
		conn:        conn,
		rd:          rd,
		clientID:    clientID,
		events:      newDispatcher(),
		pending:     make(map[packet.ID]chan packet.Packet),
		inboundQoS2: make(map[packet.ID]struct{}),
		done:        make(chan struct{}),
	}
}

func (s *session) close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}

func (s *session) write(pkt packet.Packet) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.client.writer.WritePacket(s.conn, pkt); err != nil {
		return fmt.Errorf("%w: %s", ErrTransportClosed, err.Error())
	}

	s.log.Trace().
		Str("ClientId", s.clientID).
		Stringer("PacketType", pkt.Type()).
		Int("Size", pkt.Size()).
		Msg("Packet sent")
	return nil
}

// reserve allocates a packet ID and the channel receiving its acknowledgements.
func (s *session) reserve() (packet.ID, chan packet.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) >= maxPacketID {
		return 0, nil, errNoPacketID
	}

	id := s.lastID
	for {
		id++
		if id == 0 {
			id = 1
		}
		if _, ok := s.pending[id]; !ok {
			break
		}
	}

	s.lastID = id
	ch := make(chan packet.Packet, 1)
	s.pending[id] = ch
	return id, ch, nil
}

func (s *session) release(id packet.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// await sends the packet and waits for the acknowledgement of the expected type. The resend
// packet is sent each time the acknowledgement does not arrive within the AckTimeout.
func (s *session) await(ctx context.Context, ch <-chan packet.Packet, expect packet.Type,
	pkt, resend packet.Packet) (packet.Packet, error) {

	opts := &s.client.opts
	for attempt := 0; ; attempt++ {
		if err := s.write(pkt); err != nil {
			return nil, err
		}

		timer := time.NewTimer(opts.AckTimeout)
		resp, err := s.waitAck(ctx, ch, expect, timer.C)
		timer.Stop()

		if resp != nil || err != nil {
			return resp, err
		}
		if attempt >= opts.MaxRetries {
			return nil, fmt.Errorf("%w: no %s received", ErrTimeout, expect)
		}

		s.log.Debug().
			Str("ClientId", s.clientID).
			Stringer("PacketType", resend.Type()).
			Int("Attempt", attempt+1).
			Msg("Acknowledgement timed out, resending")
		pkt = resend
	}
}

func (s *session) waitAck(ctx context.Context, ch <-chan packet.Packet, expect packet.Type,
	timeout <-chan time.Time) (packet.Packet, error) {

	for {
		select {
		case resp := <-ch:
			if resp.Type() == expect {
				return resp, nil
			}
		case <-s.done:
			return nil, ErrTransportClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, nil
		}
	}
}

func (s *session) ack(id packet.ID, pkt packet.Packet) {
	s.mu.Lock()
	ch, ok := s.pending[id]
	s.mu.Unlock()

	if !ok {
		s.log.Debug().
			Str("ClientId", s.clientID).
			Uint16("PacketId", uint16(id)).
			Stringer("PacketType", pkt.Type()).
			Msg("Acknowledgement without pending request")
		return
	}

	select {
	case ch <- pkt:
	default:
	}
}

func (s *session) receiveLoop() {
	defer s.finish()

	keepAlive := s.client.opts.KeepAlive
	for {
		if keepAlive > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(keepAlive * 3 / 2))
		}

		pkt, err := s.client.reader.ReadPacket(s.rd)
		if err != nil {
			if !s.graceful.Load() {
				s.log.Warn().
					Str("ClientId", s.clientID).
					Msg("Connection lost: " + err.Error())
			}
			return
		}

		s.log.Trace().
			Str("ClientId", s.clientID).
			Stringer("PacketType", pkt.Type()).
			Int("Size", pkt.Size()).
			Msg("Packet received")

		if err = s.handlePacket(pkt); err != nil {
			s.log.Warn().
				Str("ClientId", s.clientID).
				Stringer("PacketType", pkt.Type()).
				Msg("Closing connection: " + err.Error())
			return
		}
	}
}

func (s *session) handlePacket(pkt packet.Packet) error {
	switch p := pkt.(type) {
	case *packet.Publish:
		return s.handlePublish(p)
	case *packet.PubRel:
		delete(s.inboundQoS2, p.PacketID)
		comp := packet.NewPubComp(p.PacketID)
		return s.write(&comp)
	case *packet.PubAck:
		s.ack(p.PacketID, p)
	case *packet.PubRec:
		s.ack(p.PacketID, p)
	case *packet.PubComp:
		s.ack(p.PacketID, p)
	case *packet.SubAck:
		s.ack(p.PacketID, p)
	case *packet.UnsubAck:
		s.ack(p.PacketID, p)
	case *packet.PingResp:
	default:
		return fmt.Errorf("unexpected %s", pkt.Type())
	}
	return nil
}

func (s *session) handlePublish(p *packet.Publish) error {
	msg := Message{
		Topic:   p.TopicName,
		Payload: p.Payload,
		QoS:     p.QoS,
		Retain:  p.Retain,
		Dup:     p.Dup,
	}

	switch p.QoS {
	case packet.QoS0:
		s.dispatch(msg)
		return nil
	case packet.QoS1:
		s.dispatch(msg)
		ack := packet.NewPubAck(p.PacketID)
		return s.write(&ack)
	default:
		if _, dup := s.inboundQoS2[p.PacketID]; !dup {
			s.inboundQoS2[p.PacketID] = struct{}{}
			s.dispatch(msg)
		}
		rec := packet.NewPubRec(p.PacketID)
		return s.write(&rec)
	}
}

func (s *session) dispatch(msg Message) {
	fn := s.client.opts.OnMessage
	if fn == nil {
		return
	}
	s.events.push(func() { fn(msg) })
}

func (s *session) keepAliveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.write(&packet.PingReq{}); err != nil {
				_ = s.close()
				return
			}
		}
	}
}

// finish releases the session once the receive loop has exited.
func (s *session) finish() {
	_ = s.close()
	s.client.closed(s)

	reason := ReasonAbrupt
	if s.graceful.Load() {
		reason = ReasonGraceful
	}

	if fn := s.client.opts.OnDisconnected; fn != nil {
		s.events.push(func() { fn(reason) })
	}
	s.events.close()
	close(s.done)

	s.log.Info().
		Str("ClientId", s.clientID).
		Stringer("Reason", reason).
		Msg("Client disconnected")
}
