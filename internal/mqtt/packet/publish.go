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

package packet

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

const (
	publishFlagRetain byte = 0x01
	publishFlagQoS    byte = 0x06
	publishFlagDup    byte = 0x08
)

// Publish represents the PUBLISH Packet from MQTT specifications.
type Publish struct {
	// TopicName identifies the information channel to which Payload data is published.
	TopicName string

	// Payload represents the message payload.
	Payload []byte

	// PacketID represents the packet identifier. It is only present when QoS is greater than 0.
	PacketID ID

	// QoS indicates the level of assurance for delivery of the message.
	QoS QoS

	// Dup indicates that the packet is a redelivery of an earlier attempt.
	Dup bool

	// Retain indicates whether the broker must store the message as the retained message of the
	// topic.
	Retain bool

	// Unexported fields
	timestamp    time.Time
	size         int
	remainLength int
}

func newPacketPublish(opts options) (Packet, error) {
	if opts.packetType != PUBLISH {
		return nil, errors.New("packet type is not PUBLISH")
	}

	qos := QoS(opts.controlFlags & publishFlagQoS >> 1)
	if qos > QoS2 {
		return nil, errors.New("invalid QoS (PUBLISH)")
	}

	return &Publish{
		QoS:          qos,
		Dup:          opts.controlFlags&publishFlagDup != 0,
		Retain:       opts.controlFlags&publishFlagRetain != 0,
		size:         opts.fixedHeaderLength + opts.remainingLength,
		remainLength: opts.remainingLength,
		timestamp:    opts.timestamp,
	}, nil
}

// NewPublish creates a PUBLISH Packet.
func NewPublish(id ID, topic string, qos QoS, dup, retain bool, payload []byte) Publish {
	return Publish{
		PacketID:  id,
		TopicName: topic,
		QoS:       qos,
		Dup:       dup,
		Retain:    retain,
		Payload:   payload,
	}
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *Publish) Write(w *bufio.Writer) error {
	if pkt.QoS > QoS2 {
		return errors.New("invalid QoS (PUBLISH)")
	}
	if pkt.QoS > QoS0 && pkt.PacketID == 0 {
		return errors.New("missing packet ID (PUBLISH)")
	}

	// +2 for topic name length
	pktLen := len(pkt.TopicName) + len(pkt.Payload) + 2
	if pkt.QoS > QoS0 {
		pktLen += 2 // +2 for packet ID
	}

	ctrl := byte(PUBLISH)<<packetTypeBit | byte(pkt.QoS)<<1
	if pkt.Dup && pkt.QoS > QoS0 {
		ctrl |= publishFlagDup
	}
	if pkt.Retain {
		ctrl |= publishFlagRetain
	}

	err := multierr.Combine(
		w.WriteByte(ctrl),
		writeVarInteger(w, pktLen),
	)
	_, errTopic := writeBinary(w, []byte(pkt.TopicName))
	err = multierr.Combine(err, errTopic)

	if pkt.QoS > QoS0 {
		err = multierr.Combine(err, writeUint16(w, uint16(pkt.PacketID)))
	}

	_, errPayload := w.Write(pkt.Payload)
	err = multierr.Combine(err, errPayload)
	if err != nil {
		return fmt.Errorf("failed to send packet: %w", err)
	}

	pkt.timestamp = time.Now()
	pkt.size = 1 + varIntegerSize(pktLen) + pktLen
	return nil
}

// Read reads the packet bytes from bufio.Reader and decodes them into the packet.
func (pkt *Publish) Read(r *bufio.Reader) error {
	buf, err := readRemaining(r, pkt.remainLength)
	if err != nil {
		return err
	}

	topic, err := readString(buf)
	if err != nil {
		return fmt.Errorf("failed to read topic: %w", err)
	}
	pkt.TopicName = string(topic)

	if pkt.QoS > QoS0 {
		var id uint16
		id, err = readUint[uint16](buf)
		if err != nil {
			return fmt.Errorf("failed to read packet ID: %w", err)
		}
		if id == 0 {
			return newErrMalformedPacket("packet ID must not be zero (PUBLISH)")
		}
		pkt.PacketID = ID(id)
	}

	pkt.Payload = buf.Next(buf.Len())
	return nil
}

// Type returns the packet type.
func (pkt *Publish) Type() Type {
	return PUBLISH
}

// Size returns the packet size in bytes.
func (pkt *Publish) Size() int {
	return pkt.size
}

// Timestamp returns the timestamp of the moment which the packet has been received or sent.
func (pkt *Publish) Timestamp() time.Time {
	return pkt.timestamp
}

// Clone clones the PUBLISH Packet.
func (pkt *Publish) Clone() *Publish {
	return &Publish{
		PacketID:  pkt.PacketID,
		TopicName: pkt.TopicName,
		QoS:       pkt.QoS,
		Dup:       pkt.Dup,
		Retain:    pkt.Retain,
		Payload:   pkt.Payload,
	}
}
