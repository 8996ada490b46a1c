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
	"time"
)

// Type represents the packet type (e.g. CONNECT, CONNACK, etc.).
type Type byte

const (
	packetTypeBit        byte = 4
	controlByteFlagsMask byte = 0x0F
)

// Control packet type based on the MQTT specifications.
const (
	RESERVED Type = iota
	CONNECT
	CONNACK
	PUBLISH
	PUBACK
	PUBREC
	PUBREL
	PUBCOMP
	SUBSCRIBE
	SUBACK
	UNSUBSCRIBE
	UNSUBACK
	PINGREQ
	PINGRESP
	DISCONNECT
)

// Version represents the MQTT protocol level.
type Version byte

// MQTT version.
const (
	MQTT31 Version = iota + 3
	MQTT311
)

// QoS indicates the level of assurance for delivery of an application message.
type QoS byte

// QoS levels.
const (
	QoS0 QoS = iota
	QoS1
	QoS2
)

// ID represents the packet identifier.
type ID uint16

// Packet represents the MQTT packet.
type Packet interface {
	// Write encodes the packet into bytes and writes it into the bufio.Writer.
	Write(w *bufio.Writer) error

	// Read reads the packet bytes from the bufio.Reader and decodes them into the packet.
	Read(r *bufio.Reader) error

	// Type returns the packet type.
	Type() Type

	// Size returns the packet size in bytes.
	Size() int

	// Timestamp returns the timestamp of the moment which the packet has been received or sent.
	Timestamp() time.Time
}

type options struct {
	timestamp         time.Time
	fixedHeaderLength int
	remainingLength   int
	packetType        Type
	controlFlags      byte
}

var packetTypeToFactory = map[Type]func(options) (Packet, error){
	CONNECT:     newPacketConnect,
	CONNACK:     newPacketConnAck,
	PUBLISH:     newPacketPublish,
	PUBACK:      newPacketPubAck,
	PUBREC:      newPacketPubRec,
	PUBREL:      newPacketPubRel,
	PUBCOMP:     newPacketPubComp,
	SUBSCRIBE:   newPacketSubscribe,
	SUBACK:      newPacketSubAck,
	UNSUBSCRIBE: newPacketUnsubscribe,
	UNSUBACK:    newPacketUnsubAck,
	PINGREQ:     newPacketPingReq,
	PINGRESP:    newPacketPingResp,
	DISCONNECT:  newPacketDisconnect,
}

func newPacket(opts options) (Packet, error) {
	fn, ok := packetTypeToFactory[opts.packetType]
	if !ok {
		return nil, errors.New("invalid packet type: " + opts.packetType.String())
	}

	return fn(opts)
}

var packetTypeToString = map[Type]string{
	CONNECT:     "CONNECT",
	CONNACK:     "CONNACK",
	PUBLISH:     "PUBLISH",
	PUBACK:      "PUBACK",
	PUBREC:      "PUBREC",
	PUBREL:      "PUBREL",
	PUBCOMP:     "PUBCOMP",
	SUBSCRIBE:   "SUBSCRIBE",
	SUBACK:      "SUBACK",
	UNSUBSCRIBE: "UNSUBSCRIBE",
	UNSUBACK:    "UNSUBACK",
	PINGREQ:     "PINGREQ",
	PINGRESP:    "PINGRESP",
	DISCONNECT:  "DISCONNECT",
}

// String returns the Type in string format.
func (pt Type) String() string {
	n, ok := packetTypeToString[pt]
	if !ok {
		return "UNKNOWN"
	}

	return n
}

var versionToString = map[Version]string{
	MQTT31:  "3.1",
	MQTT311: "3.1.1",
}

// String returns the Version in string format.
func (v Version) String() string {
	return versionToString[v]
}
