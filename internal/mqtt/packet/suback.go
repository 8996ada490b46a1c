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

// SubAck represents the SUBACK Packet from MQTT specifications.
type SubAck struct {
	// ReturnCodes contains one granted QoS, or ReturnCodeFailure, per requested topic filter.
	ReturnCodes []ReturnCode

	// PacketID represents the packet identifier of the SUBSCRIBE being acknowledged.
	PacketID ID

	// Unexported fields
	timestamp    time.Time
	size         int
	remainLength int
}

func newPacketSubAck(opts options) (Packet, error) {
	if opts.packetType != SUBACK {
		return nil, errors.New("packet type is not SUBACK")
	}
	if opts.controlFlags != 0 {
		return nil, errors.New("invalid Control Flags (SUBACK)")
	}
	if opts.remainingLength < 3 {
		return nil, errors.New("invalid remaining length (SUBACK)")
	}

	return &SubAck{
		size:         opts.fixedHeaderLength + opts.remainingLength,
		remainLength: opts.remainingLength,
		timestamp:    opts.timestamp,
	}, nil
}

// NewSubAck creates a SUBACK Packet.
func NewSubAck(id ID, codes []ReturnCode) SubAck {
	return SubAck{PacketID: id, ReturnCodes: codes}
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *SubAck) Write(w *bufio.Writer) error {
	pktLen := len(pkt.ReturnCodes) + 2 // +2 for packet ID

	err := multierr.Combine(
		w.WriteByte(byte(SUBACK)<<packetTypeBit),
		writeVarInteger(w, pktLen),
		writeUint16(w, uint16(pkt.PacketID)),
	)
	for _, c := range pkt.ReturnCodes {
		err = multierr.Combine(err, w.WriteByte(byte(c)))
	}
	if err != nil {
		return fmt.Errorf("failed to send packet: %w", err)
	}

	pkt.timestamp = time.Now()
	pkt.size = 1 + varIntegerSize(pktLen) + pktLen
	return nil
}

// Read reads the packet bytes from bufio.Reader and decodes them into the packet.
func (pkt *SubAck) Read(r *bufio.Reader) error {
	buf, err := readRemaining(r, pkt.remainLength)
	if err != nil {
		return err
	}

	id, _ := readUint[uint16](buf)
	pkt.PacketID = ID(id)

	pkt.ReturnCodes = make([]ReturnCode, 0, buf.Len())
	for buf.Len() > 0 {
		c, _ := buf.ReadByte()
		code := ReturnCode(c)
		if code != ReturnCodeFailure && code > ReturnCodeGrantedQoS2 {
			return newErrMalformedPacket("invalid return code (SUBACK)")
		}
		pkt.ReturnCodes = append(pkt.ReturnCodes, code)
	}

	return nil
}

// Type returns the packet type.
func (pkt *SubAck) Type() Type {
	return SUBACK
}

// Size returns the packet size in bytes.
func (pkt *SubAck) Size() int {
	return pkt.size
}

// Timestamp returns the timestamp of the moment the packet has been sent or received.
func (pkt *SubAck) Timestamp() time.Time {
	return pkt.timestamp
}
