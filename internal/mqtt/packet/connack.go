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

// ConnAck represents the CONNACK Packet from MQTT specifications.
type ConnAck struct {
	// ReturnCode represents the result of the connection request.
	ReturnCode ReturnCode

	// SessionPresent indicates whether the broker already has a session for the client.
	SessionPresent bool

	// Unexported fields
	timestamp time.Time
	size      int
}

func newPacketConnAck(opts options) (Packet, error) {
	if opts.packetType != CONNACK {
		return nil, errors.New("packet type is not CONNACK")
	}
	if opts.controlFlags != 0 {
		return nil, errors.New("invalid Control Flags (CONNACK)")
	}
	if opts.remainingLength != 2 {
		return nil, errors.New("invalid remaining length (CONNACK)")
	}

	return &ConnAck{
		size:      opts.fixedHeaderLength + opts.remainingLength,
		timestamp: opts.timestamp,
	}, nil
}

// NewConnAck creates a CONNACK Packet.
func NewConnAck(code ReturnCode, sessionPresent bool) ConnAck {
	return ConnAck{ReturnCode: code, SessionPresent: sessionPresent}
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *ConnAck) Write(w *bufio.Writer) error {
	var ackFlags byte
	if pkt.SessionPresent && pkt.ReturnCode == ReturnCodeAccepted {
		ackFlags = 1
	}

	err := multierr.Combine(
		w.WriteByte(byte(CONNACK)<<packetTypeBit),
		writeVarInteger(w, 2),
		w.WriteByte(ackFlags),
		w.WriteByte(byte(pkt.ReturnCode)),
	)
	if err != nil {
		return fmt.Errorf("failed to send packet: %w", err)
	}

	pkt.timestamp = time.Now()
	pkt.size = 4
	return nil
}

// Read reads the packet bytes from bufio.Reader and decodes them into the packet.
func (pkt *ConnAck) Read(r *bufio.Reader) error {
	buf, err := readRemaining(r, 2)
	if err != nil {
		return err
	}

	ackFlags, _ := buf.ReadByte()
	if ackFlags&0xFE != 0 {
		return newErrMalformedPacket("invalid acknowledge flags (CONNACK)")
	}
	code, _ := buf.ReadByte()

	pkt.SessionPresent = ackFlags == 1
	pkt.ReturnCode = ReturnCode(code)
	return nil
}

// Type returns the packet type.
func (pkt *ConnAck) Type() Type {
	return CONNACK
}

// Size returns the packet size in bytes.
func (pkt *ConnAck) Size() int {
	return pkt.size
}

// Timestamp returns the timestamp of the moment the packet has been sent or received.
func (pkt *ConnAck) Timestamp() time.Time {
	return pkt.timestamp
}
