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
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishInvalidPacketType(t *testing.T) {
	opts := options{packetType: DISCONNECT}
	pkt, err := newPacketPublish(opts)
	require.NotNil(t, err)
	require.Nil(t, pkt)
}

func TestPublishInvalidQoS(t *testing.T) {
	opts := options{packetType: PUBLISH, controlFlags: 6}
	pkt, err := newPacketPublish(opts)
	require.NotNil(t, err)
	require.Nil(t, pkt)
}

func TestPublishWrite(t *testing.T) {
	testCases := []struct {
		id      ID
		topic   string
		qos     QoS
		retain  bool
		dup     bool
		payload string
	}{
		{id: 1, topic: "a", qos: QoS0, payload: "msg1"},
		{id: 2, topic: "a/b", qos: QoS1, retain: true, dup: true, payload: "msg2"},
		{id: 3, topic: "a/b/c", qos: QoS2, dup: true, payload: "msg3"},
		{id: 4, topic: "HR/Status", qos: QoS0, retain: true, payload: ""},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprint(tc.id), func(t *testing.T) {
			ctrl := byte(0x30) | byte(tc.qos)<<1
			if tc.dup {
				ctrl |= 0x08
			}
			if tc.retain {
				ctrl |= 0x01
			}

			msg := []byte{ctrl, 0, 0, byte(len(tc.topic))}
			msg = append(msg, []byte(tc.topic)...)
			if tc.qos > QoS0 {
				msg = append(msg, 0, byte(tc.id))
			}
			msg = append(msg, []byte(tc.payload)...)
			msg[1] = byte(len(msg) - 2)

			pkt := NewPublish(tc.id, tc.topic, tc.qos, tc.dup, tc.retain, []byte(tc.payload))
			assert.Equal(t, msg, encode(t, &pkt))
			assert.Equal(t, len(msg), pkt.Size())
		})
	}
}

func TestPublishWriteQoS0ClearsDup(t *testing.T) {
	pkt := NewPublish(0, "a", QoS0, true, false, nil)
	msg := encode(t, &pkt)
	assert.Equal(t, byte(0x30), msg[0])
}

func TestPublishWriteMissingPacketID(t *testing.T) {
	pkt := NewPublish(0, "a", QoS1, false, false, nil)
	err := pkt.Write(nil)
	assert.NotNil(t, err)
}

func TestPublishWriteRead(t *testing.T) {
	for _, qos := range []QoS{QoS0, QoS1, QoS2} {
		t.Run(fmt.Sprint(qos), func(t *testing.T) {
			payload := []byte(gofakeit.Paragraph(2, 4, 20, " "))
			topic := "AI/" + gofakeit.Word()

			pkt := NewPublish(ID(gofakeit.Uint16()|1), topic, qos, false, true, payload)
			pubPkt := decode(t, encode(t, &pkt)).(*Publish)

			assert.Equal(t, topic, pubPkt.TopicName)
			assert.Equal(t, payload, pubPkt.Payload)
			assert.Equal(t, qos, pubPkt.QoS)
			assert.True(t, pubPkt.Retain)
			assert.False(t, pubPkt.Dup)
			if qos > QoS0 {
				assert.Equal(t, pkt.PacketID, pubPkt.PacketID)
			}
		})
	}
}

func TestPublishClone(t *testing.T) {
	pkt := NewPublish(7, "a/b", QoS2, true, true, []byte("data"))
	clone := pkt.Clone()

	assert.Equal(t, pkt.TopicName, clone.TopicName)
	assert.Equal(t, pkt.Payload, clone.Payload)
	assert.Equal(t, pkt.PacketID, clone.PacketID)
	assert.NotSame(t, &pkt, clone)
}
