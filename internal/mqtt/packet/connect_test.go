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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectInvalidPacketType(t *testing.T) {
	opts := options{packetType: DISCONNECT}
	pkt, err := newPacketConnect(opts)
	require.NotNil(t, err)
	require.Nil(t, pkt)
}

func TestConnectInvalidControlFlags(t *testing.T) {
	opts := options{packetType: CONNECT, controlFlags: 1}
	pkt, err := newPacketConnect(opts)
	require.NotNil(t, err)
	require.Nil(t, pkt)
}

func TestConnectReadV311(t *testing.T) {
	msg := []byte{
		0x10, 13,
		0, 4, 'M', 'Q', 'T', 'T', 4, 2, 0, 60,
		0, 1, 'a',
	}

	pkt := decode(t, msg)
	require.Equal(t, CONNECT, pkt.Type())

	connPkt := pkt.(*Connect)
	assert.Equal(t, MQTT311, connPkt.Version)
	assert.Equal(t, "a", connPkt.ClientID)
	assert.Equal(t, uint16(60), connPkt.KeepAlive)
	assert.True(t, connPkt.CleanSession)
	assert.False(t, connPkt.WillFlag)
}

func TestConnectReadV31(t *testing.T) {
	msg := []byte{
		0x10, 16,
		0, 6, 'M', 'Q', 'I', 's', 'd', 'p', 3, 2, 0, 10,
		0, 2, 'i', 'd',
	}

	pkt := decode(t, msg)
	connPkt := pkt.(*Connect)
	assert.Equal(t, MQTT31, connPkt.Version)
	assert.Equal(t, "id", connPkt.ClientID)
}

func TestConnectReadUnacceptableVersion(t *testing.T) {
	msg := []byte{
		0x10, 13,
		0, 4, 'M', 'Q', 'T', 'T', 5, 2, 0, 0,
		0, 1, 'a',
	}

	reader := NewReader(ReaderOptions{})
	_, err := reader.ReadPacket(bufio.NewReader(bytes.NewReader(msg)))
	require.NotNil(t, err)

	var pktErr *Error
	require.True(t, errors.As(err, &pktErr))
	assert.Equal(t, ReturnCodeUnacceptableProtocolVersion, pktErr.Code)
}

func TestConnectReadEmptyClientID(t *testing.T) {
	testCases := []struct {
		name  string
		flags byte
		code  ReturnCode
		ok    bool
	}{
		{name: "CleanSession", flags: 0x02, ok: true},
		{name: "PersistentSession", flags: 0x00, code: ReturnCodeIdentifierRejected},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := []byte{
				0x10, 12,
				0, 4, 'M', 'Q', 'T', 'T', 4, tc.flags, 0, 0,
				0, 0,
			}

			reader := NewReader(ReaderOptions{})
			pkt, err := reader.ReadPacket(bufio.NewReader(bytes.NewReader(msg)))
			if tc.ok {
				require.Nil(t, err)
				assert.Empty(t, pkt.(*Connect).ClientID)
				return
			}

			var pktErr *Error
			require.True(t, errors.As(err, &pktErr))
			assert.Equal(t, tc.code, pktErr.Code)
		})
	}
}

func TestConnectReadInvalidFlags(t *testing.T) {
	testCases := []struct {
		name  string
		flags byte
	}{
		{name: "Reserved", flags: 0x03},
		{name: "WillQoSWithoutWill", flags: 0x0A},
		{name: "WillRetainWithoutWill", flags: 0x22},
		{name: "WillQoS3", flags: 0x1E},
		{name: "PasswordWithoutUserName", flags: 0x42},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := []byte{
				0x10, 13,
				0, 4, 'M', 'Q', 'T', 'T', 4, tc.flags, 0, 0,
				0, 1, 'a',
			}

			reader := NewReader(ReaderOptions{})
			_, err := reader.ReadPacket(bufio.NewReader(bytes.NewReader(msg)))
			assert.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestConnectWriteRead(t *testing.T) {
	pkt := Connect{
		Version:      MQTT311,
		ClientID:     "sensor-01",
		KeepAlive:    30,
		CleanSession: true,
		WillFlag:     true,
		WillQoS:      QoS1,
		WillRetain:   true,
		WillTopic:    "HR/Status",
		WillMessage:  []byte("offline"),
		UserNameFlag: true,
		UserName:     "user",
		PasswordFlag: true,
		Password:     []byte("pass"),
	}

	msg := encode(t, &pkt)
	assert.Equal(t, byte(0x10), msg[0])
	assert.Equal(t, byte(0xEE), msg[9]) // all flags but reserved set
	assert.Equal(t, len(msg), pkt.Size())

	connPkt := decode(t, msg).(*Connect)
	assert.Equal(t, pkt.ClientID, connPkt.ClientID)
	assert.Equal(t, pkt.KeepAlive, connPkt.KeepAlive)
	assert.Equal(t, pkt.WillTopic, connPkt.WillTopic)
	assert.Equal(t, pkt.WillMessage, connPkt.WillMessage)
	assert.Equal(t, QoS1, connPkt.WillQoS)
	assert.True(t, connPkt.WillRetain)
	assert.Equal(t, pkt.UserName, connPkt.UserName)
	assert.Equal(t, pkt.Password, connPkt.Password)
}

func TestConnAckWriteRead(t *testing.T) {
	testCases := []struct {
		name    string
		code    ReturnCode
		present bool
		msg     []byte
	}{
		{name: "Accepted", code: ReturnCodeAccepted, msg: []byte{0x20, 2, 0, 0}},
		{name: "SessionPresent", code: ReturnCodeAccepted, present: true,
			msg: []byte{0x20, 2, 1, 0}},
		{name: "Rejected", code: ReturnCodeIdentifierRejected, present: true,
			msg: []byte{0x20, 2, 0, 2}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pkt := NewConnAck(tc.code, tc.present)
			msg := encode(t, &pkt)
			assert.Equal(t, tc.msg, msg)

			ack := decode(t, msg).(*ConnAck)
			assert.Equal(t, tc.code, ack.ReturnCode)
			assert.Equal(t, tc.present && tc.code == ReturnCodeAccepted, ack.SessionPresent)
		})
	}
}

func TestReturnCodeString(t *testing.T) {
	assert.Equal(t, "connection accepted", ReturnCodeAccepted.String())
	assert.Equal(t, "not authorized", ReturnCodeNotAuthorized.String())
	assert.Equal(t, "unknown", ReturnCode(0x42).String())
}
