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
	"bytes"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Topic represents the MQTT topic filter requested in a SUBSCRIBE packet.
type Topic struct {
	// Name represents the topic filter.
	Name string

	// QoS indicates the maximum QoS level requested for the topic filter.
	QoS QoS
}

// Subscribe represents the SUBSCRIBE Packet from MQTT specifications.
type Subscribe struct {
	// Topics represents the list of topic filters to subscribe.
	Topics []Topic

	// PacketID represents the packet identifier.
	PacketID ID

	// Unexported fields
	timestamp    time.Time
	size         int
	remainLength int
}

func newPacketSubscribe(opts options) (Packet, error) {
	if opts.packetType != SUBSCRIBE {
		return nil, errors.New("packet type is not SUBSCRIBE")
	}
	if opts.controlFlags != 0x02 {
		return nil, errors.New("invalid Control Flags (SUBSCRIBE)")
	}

	return &Subscribe{
		size:         opts.fixedHeaderLength + opts.remainingLength,
		remainLength: opts.remainingLength,
		timestamp:    opts.timestamp,
	}, nil
}

// NewSubscribe creates a SUBSCRIBE Packet.
func NewSubscribe(id ID, topics ...Topic) Subscribe {
	return Subscribe{PacketID: id, Topics: topics}
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *Subscribe) Write(w *bufio.Writer) error {
	if len(pkt.Topics) == 0 {
		return errors.New("no topic filter (SUBSCRIBE)")
	}

	buf := &bytes.Buffer{}
	err := writeUint16(buf, uint16(pkt.PacketID))
	for _, t := range pkt.Topics {
		_, errName := writeBinary(buf, []byte(t.Name))
		err = multierr.Combine(err, errName, buf.WriteByte(byte(t.QoS)))
	}
	if err != nil {
		return fmt.Errorf("failed to encode packet: %w", err)
	}

	pktLen := buf.Len()
	err = multierr.Combine(
		w.WriteByte(byte(SUBSCRIBE)<<packetTypeBit|0x02),
		writeVarInteger(w, pktLen),
	)
	_, errBuf := buf.WriteTo(w)
	err = multierr.Combine(err, errBuf)
	if err != nil {
		return fmt.Errorf("failed to send packet: %w", err)
	}

	pkt.timestamp = time.Now()
	pkt.size = 1 + varIntegerSize(pktLen) + pktLen
	return nil
}

// Read reads the packet bytes from bufio.Reader and decodes them into the packet.
func (pkt *Subscribe) Read(r *bufio.Reader) error {
	buf, err := readRemaining(r, pkt.remainLength)
	if err != nil {
		return err
	}

	id, err := readUint[uint16](buf)
	if err != nil {
		return fmt.Errorf("failed to read packet ID: %w", err)
	}
	if id == 0 {
		return newErrMalformedPacket("packet ID must not be zero (SUBSCRIBE)")
	}
	pkt.PacketID = ID(id)

	for buf.Len() > 0 {
		name, err := readString(buf)
		if err != nil {
			return fmt.Errorf("failed to read topic filter: %w", err)
		}

		opts, err := buf.ReadByte()
		if err != nil {
			return newErrMalformedPacket("missing requested QoS (SUBSCRIBE)")
		}
		if opts&0xFC != 0 || QoS(opts) > QoS2 {
			return newErrMalformedPacket("invalid requested QoS (SUBSCRIBE)")
		}

		pkt.Topics = append(pkt.Topics, Topic{Name: string(name), QoS: QoS(opts)})
	}

	if len(pkt.Topics) == 0 {
		return newErrMalformedPacket("no topic filter (SUBSCRIBE)")
	}
	return nil
}

// Type returns the packet type.
func (pkt *Subscribe) Type() Type {
	return SUBSCRIBE
}

// Size returns the packet size in bytes.
func (pkt *Subscribe) Size() int {
	return pkt.size
}

// Timestamp returns the timestamp of the moment which the packet has been received or sent.
func (pkt *Subscribe) Timestamp() time.Time {
	return pkt.timestamp
}
