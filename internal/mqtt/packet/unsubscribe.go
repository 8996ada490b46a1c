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

// Unsubscribe represents the UNSUBSCRIBE Packet from MQTT specifications.
type Unsubscribe struct {
	// Topics represents the list of topic filters to unsubscribe.
	Topics []string

	// PacketID represents the packet identifier.
	PacketID ID

	// Unexported fields
	timestamp    time.Time
	size         int
	remainLength int
}

func newPacketUnsubscribe(opts options) (Packet, error) {
	if opts.packetType != UNSUBSCRIBE {
		return nil, errors.New("packet type is not UNSUBSCRIBE")
	}
	if opts.controlFlags != 0x02 {
		return nil, errors.New("invalid Control Flags (UNSUBSCRIBE)")
	}

	return &Unsubscribe{
		size:         opts.fixedHeaderLength + opts.remainingLength,
		remainLength: opts.remainingLength,
		timestamp:    opts.timestamp,
	}, nil
}

// NewUnsubscribe creates an UNSUBSCRIBE Packet.
func NewUnsubscribe(id ID, topics ...string) Unsubscribe {
	return Unsubscribe{PacketID: id, Topics: topics}
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *Unsubscribe) Write(w *bufio.Writer) error {
	if len(pkt.Topics) == 0 {
		return errors.New("no topic filter (UNSUBSCRIBE)")
	}

	buf := &bytes.Buffer{}
	err := writeUint16(buf, uint16(pkt.PacketID))
	for _, t := range pkt.Topics {
		_, errName := writeBinary(buf, []byte(t))
		err = multierr.Combine(err, errName)
	}
	if err != nil {
		return fmt.Errorf("failed to encode packet: %w", err)
	}

	pktLen := buf.Len()
	err = multierr.Combine(
		w.WriteByte(byte(UNSUBSCRIBE)<<packetTypeBit|0x02),
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
func (pkt *Unsubscribe) Read(r *bufio.Reader) error {
	buf, err := readRemaining(r, pkt.remainLength)
	if err != nil {
		return err
	}

	id, err := readUint[uint16](buf)
	if err != nil {
		return fmt.Errorf("failed to read packet ID: %w", err)
	}
	if id == 0 {
		return newErrMalformedPacket("packet ID must not be zero (UNSUBSCRIBE)")
	}
	pkt.PacketID = ID(id)

	for buf.Len() > 0 {
		name, err := readString(buf)
		if err != nil {
			return fmt.Errorf("failed to read topic filter: %w", err)
		}
		pkt.Topics = append(pkt.Topics, string(name))
	}

	if len(pkt.Topics) == 0 {
		return newErrMalformedPacket("no topic filter (UNSUBSCRIBE)")
	}
	return nil
}

// Type returns the packet type.
func (pkt *Unsubscribe) Type() Type {
	return UNSUBSCRIBE
}

// Size returns the packet size in bytes.
func (pkt *Unsubscribe) Size() int {
	return pkt.size
}

// Timestamp returns the timestamp of the moment which the packet has been received or sent.
func (pkt *Unsubscribe) Timestamp() time.Time {
	return pkt.timestamp
}
