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
)

// ErrPacketTooLarge indicates that the remaining length of the packet exceeds the configured
// maximum packet size.
var ErrPacketTooLarge = errors.New("max packet size exceeded")

// Reader is responsible for read packets.
type Reader struct {
	maxPacketSize int
}

// ReaderOptions contains the options for the Reader.
type ReaderOptions struct {
	// MaxPacketSize represents the maximum packet size, in bytes, allowed. Zero means the protocol
	// limit.
	MaxPacketSize int
}

// NewReader creates a Reader using ReaderOptions.
func NewReader(o ReaderOptions) Reader {
	maxSize := o.MaxPacketSize
	if maxSize <= 0 || maxSize > MaxRemainingLength {
		maxSize = MaxRemainingLength
	}
	return Reader{maxPacketSize: maxSize}
}

// ReadPacket reads and unpack a packet from the bufio.Reader. The caller owns the bufio.Reader for
// the whole connection so bytes read ahead for pipelined packets are never lost.
// It returns an error if it fails to read or unpack the packet.
func (r *Reader) ReadPacket(rd *bufio.Reader) (Packet, error) {
	ctrlByte, err := rd.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read control byte: %w", err)
	}
	now := time.Now()

	var remainLen int
	n, err := readVarInteger(rd, &remainLen)
	if err != nil {
		return nil, fmt.Errorf("failed to read remain length: %w", err)
	}

	if remainLen > r.maxPacketSize {
		return nil, ErrPacketTooLarge
	}

	opts := options{
		packetType:        Type(ctrlByte >> packetTypeBit),
		controlFlags:      ctrlByte & controlByteFlagsMask,
		fixedHeaderLength: 1 + n,
		remainingLength:   remainLen,
		timestamp:         now,
	}

	pkt, err := newPacket(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPacket, err.Error())
	}

	err = pkt.Read(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to read packet %v: %w", pkt.Type().String(), err)
	}

	return pkt, nil
}
