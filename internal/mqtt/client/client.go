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

// Package client implements a minimal MQTT 3.1.1 client with clean sessions, QoS 0, 1 and 2
// publishing, subscriptions and keep-alive.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hrsystem/hrmq/internal/logger"
	"github.com/hrsystem/hrmq/internal/mqtt/packet"
	"github.com/hrsystem/hrmq/internal/mqtt/topic"
	"github.com/hrsystem/hrmq/internal/mqtt/transport"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

var (
	// ErrNotConnected indicates that the operation requires a connected client.
	ErrNotConnected = errors.New("client not connected")

	// ErrAlreadyConnected indicates that Connect was called on a client which is not disconnected.
	ErrAlreadyConnected = errors.New("client already connected")

	// ErrConnectFailed indicates that the connection could not be established or was refused by
	// the broker.
	ErrConnectFailed = transport.ErrConnectFailed

	// ErrTimeout indicates that the broker did not answer within the allowed time.
	ErrTimeout = transport.ErrTimeout

	// ErrTransportClosed indicates that the connection was lost while the operation was pending.
	ErrTransportClosed = errors.New("transport closed")

	// ErrSubscribeRejected indicates that the broker refused the subscription.
	ErrSubscribeRejected = errors.New("subscription rejected")

	// ErrMalformedFilter indicates that a topic filter does not follow the topic filter grammar.
	ErrMalformedFilter = topic.ErrMalformedFilter
)

// State represents the connection state of the client.
type State byte

// Client states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

var stateToString = map[State]string{
	StateDisconnected:  "Disconnected",
	StateConnecting:    "Connecting",
	StateConnected:     "Connected",
	StateDisconnecting: "Disconnecting",
}

// String returns the State in string format.
func (s State) String() string {
	return stateToString[s]
}

// DisconnectReason indicates why the client has been disconnected.
type DisconnectReason byte

// Disconnect reasons.
const (
	ReasonGraceful DisconnectReason = iota
	ReasonAbrupt
)

// String returns the DisconnectReason in string format.
func (r DisconnectReason) String() string {
	if r == ReasonGraceful {
		return "graceful"
	}
	return "abrupt"
}

// Message is an application message received from the broker.
type Message struct {
	Topic   string
	Payload []byte
	QoS     packet.QoS
	Retain  bool
	Dup     bool
}

// Options contains the client options.
type Options struct {
	// Logger is the logger used by the client. When nil, nothing is logged.
	Logger *logger.Logger

	// ClientIDPrefix is the prefix of the client ID generated when Connect receives none.
	ClientIDPrefix string

	// KeepAlive is the keep alive sent in the CONNECT packet. The client sends a PINGREQ at this
	// interval. Zero disables the keep alive.
	KeepAlive time.Duration

	// ConnectTimeout bounds the dial and the wait for the CONNACK.
	ConnectTimeout time.Duration

	// AckTimeout is the time the client waits for each acknowledgement before resending.
	AckTimeout time.Duration

	// MaxRetries is the number of resends before giving up with ErrTimeout.
	MaxRetries int

	// BufferSize is the size, in bytes, of the receiver and transmitter buffers.
	BufferSize int

	// MaxPacketSize is the maximum size, in bytes, of the packets accepted from the broker.
	MaxPacketSize int

	// OnConnected is called once the broker accepted the connection.
	OnConnected func()

	// OnDisconnected is called once the connection has been closed.
	OnDisconnected func(reason DisconnectReason)

	// OnMessage is called for every application message received.
	OnMessage func(msg Message)
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = &logger.Logger{Logger: zerolog.Nop()}
	}
	if o.ClientIDPrefix == "" {
		o.ClientIDPrefix = "hrmq-client-"
	}
	if o.KeepAlive < 0 {
		o.KeepAlive = 0
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = 5 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 1024
	}
}

// Client is a MQTT client. All its methods are safe for concurrent use.
type Client struct {
	opts   Options
	log    *logger.Logger
	reader packet.Reader
	writer packet.Writer
	sess   *session
	state  State
	mu     sync.Mutex
}

// New creates a new disconnected Client.
func New(opts Options) *Client {
	opts.setDefaults()

	return &Client{
		opts:   opts,
		log:    opts.Logger.WithPrefix("mqtt.client"),
		reader: packet.NewReader(packet.ReaderOptions{MaxPacketSize: opts.MaxPacketSize}),
		writer: packet.NewWriter(opts.BufferSize),
	}
}

// State returns the current state of the client.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect connects to the broker at the address and waits for the CONNACK. When the clientID is
// empty, a client ID is generated.
func (c *Client) Connect(ctx context.Context, address, clientID string) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.setState(StateConnecting)
	c.mu.Unlock()

	if clientID == "" {
		clientID = c.opts.ClientIDPrefix + xid.New().String()
	}

	s, err := c.connect(ctx, address, clientID)
	if err != nil {
		c.mu.Lock()
		c.setState(StateDisconnected)
		c.mu.Unlock()

		c.log.Warn().
			Str("Address", address).
			Str("ClientId", clientID).
			Msg("Failed to connect: " + err.Error())
		return err
	}

	c.mu.Lock()
	c.sess = s
	c.setState(StateConnected)
	c.mu.Unlock()

	s.events.push(func() {
		if c.opts.OnConnected != nil {
			c.opts.OnConnected()
		}
	})
	go s.receiveLoop()
	if c.opts.KeepAlive > 0 {
		go s.keepAliveLoop(c.opts.KeepAlive)
	}

	c.log.Info().
		Str("Address", address).
		Str("ClientId", clientID).
		Msg("Client connected")
	return nil
}

func (c *Client) connect(ctx context.Context, address, clientID string) (*session, error) {
	conn, err := transport.Dial(ctx, address, c.opts.ConnectTimeout)
	if err != nil {
		return nil, err
	}

	connect := &packet.Connect{
		ClientID:     clientID,
		Version:      packet.MQTT311,
		CleanSession: true,
		KeepAlive:    uint16(c.opts.KeepAlive / time.Second),
	}
	if err = c.writer.WritePacket(conn, connect); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrConnectFailed, err.Error())
	}

	rd := bufio.NewReaderSize(conn, c.opts.BufferSize)
	_ = conn.SetReadDeadline(time.Now().Add(c.opts.ConnectTimeout))
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	pkt, err := c.reader.ReadPacket(rd)
	stop()

	if err != nil {
		_ = conn.Close()

		var netErr net.Error
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, fmt.Errorf("%w: waiting CONNACK", ErrTimeout)
		}
		return nil, fmt.Errorf("%w: %s", ErrConnectFailed, err.Error())
	}

	ack, ok := pkt.(*packet.ConnAck)
	if !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: unexpected %s", ErrConnectFailed, pkt.Type())
	}
	if ack.ReturnCode != packet.ReturnCodeAccepted {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrConnectFailed, ack.ReturnCode.String())
	}

	_ = conn.SetReadDeadline(time.Time{})
	return newSession(c, conn, rd, clientID), nil
}

// Disconnect sends the DISCONNECT packet and closes the connection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	s := c.sess
	c.setState(StateDisconnecting)
	c.mu.Unlock()

	s.graceful.Store(true)
	errWrite := s.write(&packet.Disconnect{})
	errClose := s.close()
	<-s.done

	return multierr.Combine(errWrite, errClose)
}

// Subscribe subscribes to the topic filter and returns the QoS granted by the broker.
func (c *Client) Subscribe(ctx context.Context, filter string, qos packet.QoS) (packet.QoS,
	error) {

	if err := topic.ValidateFilter(filter); err != nil {
		return 0, err
	}
	if qos > packet.QoS2 {
		return 0, fmt.Errorf("invalid QoS %d", qos)
	}

	s, err := c.session()
	if err != nil {
		return 0, err
	}

	id, ch, err := s.reserve()
	if err != nil {
		return 0, err
	}
	defer s.release(id)

	sub := packet.NewSubscribe(id, packet.Topic{Name: filter, QoS: qos})
	resp, err := s.await(ctx, ch, packet.SUBACK, &sub, &sub)
	if err != nil {
		return 0, err
	}

	ack := resp.(*packet.SubAck)
	if len(ack.ReturnCodes) != 1 {
		return 0, fmt.Errorf("%w: %d return codes in SUBACK", packet.ErrMalformedPacket,
			len(ack.ReturnCodes))
	}
	if ack.ReturnCodes[0] == packet.ReturnCodeFailure {
		return 0, fmt.Errorf("%w: %s", ErrSubscribeRejected, filter)
	}

	granted := packet.QoS(ack.ReturnCodes[0])
	c.log.Debug().
		Str("ClientId", s.clientID).
		Str("TopicFilter", filter).
		Uint8("QoS", uint8(granted)).
		Msg("Subscribed")
	return granted, nil
}

// Unsubscribe removes the subscription with the topic filter.
func (c *Client) Unsubscribe(ctx context.Context, filter string) error {
	s, err := c.session()
	if err != nil {
		return err
	}

	id, ch, err := s.reserve()
	if err != nil {
		return err
	}
	defer s.release(id)

	unsub := packet.NewUnsubscribe(id, filter)
	_, err = s.await(ctx, ch, packet.UNSUBACK, &unsub, &unsub)
	return err
}

// Publish publishes the payload to the topic. It returns once the delivery flow of the QoS level
// has completed: right after the write for QoS 0, after the PUBACK for QoS 1 and after the PUBCOMP
// for QoS 2.
func (c *Client) Publish(ctx context.Context, topicName string, payload []byte, qos packet.QoS,
	retain bool) error {

	if err := topic.ValidateTopicName(topicName); err != nil {
		return err
	}
	if qos > packet.QoS2 {
		return fmt.Errorf("invalid QoS %d", qos)
	}

	s, err := c.session()
	if err != nil {
		return err
	}

	if qos == packet.QoS0 {
		pub := packet.NewPublish(0, topicName, qos, false, retain, payload)
		return s.write(&pub)
	}

	id, ch, err := s.reserve()
	if err != nil {
		return err
	}
	defer s.release(id)

	pub := packet.NewPublish(id, topicName, qos, false, retain, payload)
	dup := pub.Clone()
	dup.Dup = true

	if qos == packet.QoS1 {
		_, err = s.await(ctx, ch, packet.PUBACK, &pub, dup)
		return err
	}

	if _, err = s.await(ctx, ch, packet.PUBREC, &pub, dup); err != nil {
		return err
	}

	rel := packet.NewPubRel(id)
	_, err = s.await(ctx, ch, packet.PUBCOMP, &rel, &rel)
	return err
}

func (c *Client) session() (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected {
		return nil, ErrNotConnected
	}
	return c.sess, nil
}

// closed is called by the receive loop once the connection of the session has been closed.
func (c *Client) closed(s *session) {
	c.mu.Lock()
	if c.sess == s {
		c.sess = nil
		c.setState(StateDisconnected)
	}
	c.mu.Unlock()
}

func (c *Client) setState(s State) {
	c.log.Trace().
		Stringer("From", c.state).
		Stringer("To", s).
		Msg("Client state changed")
	c.state = s
}
