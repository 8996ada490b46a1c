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

const (
	connectFlagReserved     = 0x01
	connectFlagCleanSession = 0x02
	connectFlagWillFlag     = 0x04
	connectFlagWillQoS      = 0x18
	connectFlagWillRetain   = 0x20
	connectFlagPassword     = 0x40
	connectFlagUserName     = 0x80
)

var protocolNames = map[Version]string{
	MQTT31:  "MQIsdp",
	MQTT311: "MQTT",
}

// Connect represents the CONNECT Packet from MQTT specifications.
type Connect struct {
	// ClientID identifies the client to the broker.
	ClientID string

	// WillTopic represents the topic which the Will Message will be published.
	WillTopic string

	// WillMessage represents the Will Message to be published.
	WillMessage []byte

	// UserName represents the UserName which the broker must use for authentication.
	UserName string

	// Password represents the Password which the broker must use for authentication.
	Password []byte

	// KeepAlive is the maximum interval, in seconds, permitted between two packets sent by the
	// client.
	KeepAlive uint16

	// Version represents the MQTT version.
	Version Version

	// WillQoS indicates the QoS level to be used when publishing the Will Message.
	WillQoS QoS

	// CleanSession indicates if the session is temporary or not.
	CleanSession bool

	// WillFlag indicates that a Will Message is present.
	WillFlag bool

	// WillRetain indicates if the Will Message is to be retained when it is published.
	WillRetain bool

	// UserNameFlag indicates if the UserName is present on the message or not.
	UserNameFlag bool

	// PasswordFlag indicates if the Password is present on the message or not.
	PasswordFlag bool

	// Unexported fields
	timestamp    time.Time
	size         int
	remainLength int
}

func newPacketConnect(opts options) (Packet, error) {
	if opts.packetType != CONNECT {
		return nil, errors.New("packet type is not CONNECT")
	}

	if opts.controlFlags != 0 {
		return nil, errors.New("invalid Control Flags (CONNECT)")
	}

	return &Connect{
		size:         opts.fixedHeaderLength + opts.remainingLength,
		remainLength: opts.remainingLength,
		timestamp:    opts.timestamp,
	}, nil
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *Connect) Write(w *bufio.Writer) error {
	version := pkt.Version
	if version == 0 {
		version = MQTT311
	}
	name, ok := protocolNames[version]
	if !ok {
		return fmt.Errorf("invalid version %d (CONNECT)", version)
	}

	buf := &bytes.Buffer{}
	_, err := writeBinary(buf, []byte(name))
	err = multierr.Combine(err,
		buf.WriteByte(byte(version)),
		buf.WriteByte(pkt.flags()),
		writeUint16(buf, pkt.KeepAlive),
	)
	_, errID := writeBinary(buf, []byte(pkt.ClientID))
	err = multierr.Combine(err, errID)

	if pkt.WillFlag {
		_, errTopic := writeBinary(buf, []byte(pkt.WillTopic))
		_, errMsg := writeBinary(buf, pkt.WillMessage)
		err = multierr.Combine(err, errTopic, errMsg)
	}
	if pkt.UserNameFlag {
		_, errUser := writeBinary(buf, []byte(pkt.UserName))
		err = multierr.Combine(err, errUser)
	}
	if pkt.PasswordFlag {
		_, errPass := writeBinary(buf, pkt.Password)
		err = multierr.Combine(err, errPass)
	}
	if err != nil {
		return fmt.Errorf("failed to encode packet: %w", err)
	}

	pktLen := buf.Len()
	err = multierr.Combine(
		w.WriteByte(byte(CONNECT)<<packetTypeBit),
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

func (pkt *Connect) flags() byte {
	var flags byte
	if pkt.CleanSession {
		flags |= connectFlagCleanSession
	}
	if pkt.WillFlag {
		flags |= connectFlagWillFlag
		flags |= byte(pkt.WillQoS&3) << 3
		if pkt.WillRetain {
			flags |= connectFlagWillRetain
		}
	}
	if pkt.PasswordFlag {
		flags |= connectFlagPassword
	}
	if pkt.UserNameFlag {
		flags |= connectFlagUserName
	}
	return flags
}

// Read reads the packet bytes from bufio.Reader and decodes them into the packet.
func (pkt *Connect) Read(r *bufio.Reader) error {
	buf, err := readRemaining(r, pkt.remainLength)
	if err != nil {
		return err
	}

	name, err := readString(buf)
	if err != nil {
		return fmt.Errorf("failed to read protocol name: %w", err)
	}

	err = pkt.readVersion(buf, string(name))
	if err != nil {
		return fmt.Errorf("failed to read protocol version: %w", err)
	}

	err = pkt.readFlags(buf)
	if err != nil {
		return fmt.Errorf("failed to read flags: %w", err)
	}

	pkt.KeepAlive, err = readUint[uint16](buf)
	if err != nil {
		return fmt.Errorf("failed to read keep alive: %w", err)
	}

	id, err := readString(buf)
	if err != nil {
		return fmt.Errorf("failed to read client ID: %w", err)
	}
	pkt.ClientID = string(id)

	if len(pkt.ClientID) == 0 && (pkt.Version == MQTT31 || !pkt.CleanSession) {
		return ErrIdentifierRejected
	}

	err = pkt.readPayload(buf)
	if err != nil {
		return err
	}

	if buf.Len() > 0 {
		return newErrMalformedPacket("unexpected trailing bytes (CONNECT)")
	}
	return nil
}

// Type returns the packet type.
func (pkt *Connect) Type() Type {
	return CONNECT
}

// Size returns the packet size in bytes.
func (pkt *Connect) Size() int {
	return pkt.size
}

// Timestamp returns the timestamp of the moment which the packet has been received or sent.
func (pkt *Connect) Timestamp() time.Time {
	return pkt.timestamp
}

func (pkt *Connect) readVersion(buf *bytes.Buffer, name string) error {
	v, err := buf.ReadByte()
	if err != nil {
		return newErrMalformedPacket("missing protocol level")
	}
	pkt.Version = Version(v)

	if name != protocolNames[MQTT31] && name != protocolNames[MQTT311] {
		return newErrMalformedPacket("invalid protocol name")
	}
	if n, ok := protocolNames[pkt.Version]; !ok || n != name {
		return ErrUnacceptableProtocolVersion
	}

	return nil
}

func (pkt *Connect) readFlags(buf *bytes.Buffer) error {
	flags, err := buf.ReadByte()
	if err != nil {
		return newErrMalformedPacket("missing connect flags")
	}

	if hasFlag(flags, connectFlagReserved) {
		return newErrMalformedPacket("invalid reserved flag")
	}

	pkt.CleanSession = hasFlag(flags, connectFlagCleanSession)
	pkt.WillFlag = hasFlag(flags, connectFlagWillFlag)
	pkt.WillQoS = QoS(flags & connectFlagWillQoS >> 3)
	pkt.WillRetain = hasFlag(flags, connectFlagWillRetain)

	if !pkt.WillFlag && (pkt.WillQoS != QoS0 || pkt.WillRetain) {
		return newErrMalformedPacket("invalid Will flags")
	}
	if pkt.WillQoS > QoS2 {
		return newErrMalformedPacket("invalid Will QoS flag")
	}

	pkt.PasswordFlag = hasFlag(flags, connectFlagPassword)
	pkt.UserNameFlag = hasFlag(flags, connectFlagUserName)
	if pkt.PasswordFlag && !pkt.UserNameFlag {
		return newErrMalformedPacket("invalid username/password flag")
	}

	return nil
}

func (pkt *Connect) readPayload(buf *bytes.Buffer) error {
	if pkt.WillFlag {
		topic, err := readString(buf)
		if err != nil {
			return fmt.Errorf("failed to read Will topic: %w", err)
		}
		pkt.WillTopic = string(topic)

		pkt.WillMessage, err = readBinary(buf)
		if err != nil {
			return fmt.Errorf("failed to read Will message: %w", err)
		}
	}

	if pkt.UserNameFlag {
		user, err := readString(buf)
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		pkt.UserName = string(user)
	}

	if pkt.PasswordFlag {
		var err error
		pkt.Password, err = readBinary(buf)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	return nil
}

func hasFlag(flags byte, mask int) bool {
	return flags&byte(mask) > 0
}
