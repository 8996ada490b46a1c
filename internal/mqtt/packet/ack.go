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
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// ackFlags returns the fixed header flags required by the given acknowledgement type.
func ackFlags(t Type) byte {
	if t == PUBREL {
		return 0x02
	}
	return 0
}

func validateAckOptions(opts options, t Type) error {
	if opts.packetType != t {
		return fmt.Errorf("packet type is not %s", t)
	}
	if opts.controlFlags != ackFlags(t) {
		return fmt.Errorf("invalid Control Flags (%s)", t)
	}
	if opts.remainingLength != 2 {
		return fmt.Errorf("invalid remaining length (%s)", t)
	}
	return nil
}

func writeAck(w *bufio.Writer, t Type, id ID) error {
	err := multierr.Combine(
		w.WriteByte(byte(t)<<packetTypeBit|ackFlags(t)),
		writeVarInteger(w, 2),
		writeUint16(w, uint16(id)),
	)
	if err != nil {
		return fmt.Errorf("failed to send packet: %w", err)
	}
	return nil
}

func readAck(r *bufio.Reader) (ID, error) {
	buf, err := readRemaining(r, 2)
	if err != nil {
		return 0, err
	}

	id, _ := readUint[uint16](buf)
	if id == 0 {
		return 0, newErrMalformedPacket("packet ID must not be zero")
	}
	return ID(id), nil
}

// PubAck represents the PUBACK Packet from MQTT specifications.
type PubAck struct {
	// PacketID represents the packet identifier.
	PacketID ID

	timestamp time.Time
}

func newPacketPubAck(opts options) (Packet, error) {
	if err := validateAckOptions(opts, PUBACK); err != nil {
		return nil, err
	}
	return &PubAck{timestamp: opts.timestamp}, nil
}

// NewPubAck creates a PUBACK Packet.
func NewPubAck(id ID) PubAck {
	return PubAck{PacketID: id}
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *PubAck) Write(w *bufio.Writer) error {
	pkt.timestamp = time.Now()
	return writeAck(w, PUBACK, pkt.PacketID)
}

// Read reads the packet bytes from bufio.Reader and decodes them into the packet.
func (pkt *PubAck) Read(r *bufio.Reader) (err error) {
	pkt.PacketID, err = readAck(r)
	return err
}

// Type returns the packet type.
func (pkt *PubAck) Type() Type { return PUBACK }

// Size returns the packet size in bytes.
func (pkt *PubAck) Size() int { return 4 }

// Timestamp returns the timestamp of the moment the packet has been sent or received.
func (pkt *PubAck) Timestamp() time.Time { return pkt.timestamp }

// PubRec represents the PUBREC Packet from MQTT specifications.
type PubRec struct {
	// PacketID represents the packet identifier.
	PacketID ID

	timestamp time.Time
}

func newPacketPubRec(opts options) (Packet, error) {
	if err := validateAckOptions(opts, PUBREC); err != nil {
		return nil, err
	}
	return &PubRec{timestamp: opts.timestamp}, nil
}

// NewPubRec creates a PUBREC Packet.
func NewPubRec(id ID) PubRec {
	return PubRec{PacketID: id}
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *PubRec) Write(w *bufio.Writer) error {
	pkt.timestamp = time.Now()
	return writeAck(w, PUBREC, pkt.PacketID)
}

// Read reads the packet bytes from bufio.Reader and decodes them into the packet.
func (pkt *PubRec) Read(r *bufio.Reader) (err error) {
	pkt.PacketID, err = readAck(r)
	return err
}

// Type returns the packet type.
func (pkt *PubRec) Type() Type { return PUBREC }

// Size returns the packet size in bytes.
func (pkt *PubRec) Size() int { return 4 }

// Timestamp returns the timestamp of the moment the packet has been sent or received.
func (pkt *PubRec) Timestamp() time.Time { return pkt.timestamp }

// PubRel represents the PUBREL Packet from MQTT specifications.
type PubRel struct {
	// PacketID represents the packet identifier.
	PacketID ID

	timestamp time.Time
}

func newPacketPubRel(opts options) (Packet, error) {
	if err := validateAckOptions(opts, PUBREL); err != nil {
		return nil, err
	}
	return &PubRel{timestamp: opts.timestamp}, nil
}

// NewPubRel creates a PUBREL Packet.
func NewPubRel(id ID) PubRel {
	return PubRel{PacketID: id}
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *PubRel) Write(w *bufio.Writer) error {
	pkt.timestamp = time.Now()
	return writeAck(w, PUBREL, pkt.PacketID)
}

// Read reads the packet bytes from bufio.Reader and decodes them into the packet.
func (pkt *PubRel) Read(r *bufio.Reader) (err error) {
	pkt.PacketID, err = readAck(r)
	return err
}

// Type returns the packet type.
func (pkt *PubRel) Type() Type { return PUBREL }

// Size returns the packet size in bytes.
func (pkt *PubRel) Size() int { return 4 }

// Timestamp returns the timestamp of the moment the packet has been sent or received.
func (pkt *PubRel) Timestamp() time.Time { return pkt.timestamp }

// PubComp represents the PUBCOMP Packet from MQTT specifications.
type PubComp struct {
	// PacketID represents the packet identifier.
	PacketID ID

	timestamp time.Time
}

func newPacketPubComp(opts options) (Packet, error) {
	if err := validateAckOptions(opts, PUBCOMP); err != nil {
		return nil, err
	}
	return &PubComp{timestamp: opts.timestamp}, nil
}

// NewPubComp creates a PUBCOMP Packet.
func NewPubComp(id ID) PubComp {
	return PubComp{PacketID: id}
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *PubComp) Write(w *bufio.Writer) error {
	pkt.timestamp = time.Now()
	return writeAck(w, PUBCOMP, pkt.PacketID)
}

// Read reads the packet bytes from bufio.Reader and decodes them into the packet.
func (pkt *PubComp) Read(r *bufio.Reader) (err error) {
	pkt.PacketID, err = readAck(r)
	return err
}

// Type returns the packet type.
func (pkt *PubComp) Type() Type { return PUBCOMP }

// Size returns the packet size in bytes.
func (pkt *PubComp) Size() int { return 4 }

// Timestamp returns the timestamp of the moment the packet has been sent or received.
func (pkt *PubComp) Timestamp() time.Time { return pkt.timestamp }

// UnsubAck represents the UNSUBACK Packet from MQTT specifications.
type UnsubAck struct {
	// PacketID represents the packet identifier of the UNSUBSCRIBE being acknowledged.
	PacketID ID

	timestamp time.Time
}

func newPacketUnsubAck(opts options) (Packet, error) {
	if err := validateAckOptions(opts, UNSUBACK); err != nil {
		return nil, err
	}
	return &UnsubAck{timestamp: opts.timestamp}, nil
}

// NewUnsubAck creates an UNSUBACK Packet.
func NewUnsubAck(id ID) UnsubAck {
	return UnsubAck{PacketID: id}
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *UnsubAck) Write(w *bufio.Writer) error {
	pkt.timestamp = time.Now()
	return writeAck(w, UNSUBACK, pkt.PacketID)
}

// Read reads the packet bytes from bufio.Reader and decodes them into the packet.
func (pkt *UnsubAck) Read(r *bufio.Reader) (err error) {
	pkt.PacketID, err = readAck(r)
	return err
}

// Type returns the packet type.
func (pkt *UnsubAck) Type() Type { return UNSUBACK }

// Size returns the packet size in bytes.
func (pkt *UnsubAck) Size() int { return 4 }

// Timestamp returns the timestamp of the moment the packet has been sent or received.
func (pkt *UnsubAck) Timestamp() time.Time { return pkt.timestamp }
