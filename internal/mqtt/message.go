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

package mqtt

import (
	"github.com/hrsystem/hrmq/internal/mqtt/packet"
	"github.com/rs/xid"
)

// Message represents an application message routed by the broker.
type Message struct {
	// ID is an unique identifier used to trace the message in the logs.
	ID xid.ID

	// Topic is the topic name the message has been published to.
	Topic string

	// Payload is the application payload.
	Payload []byte

	// QoS is the QoS level the message has been published with.
	QoS packet.QoS

	// Retain indicates whether the message is a retained message.
	Retain bool
}

func newMessage(pkt *packet.Publish) Message {
	return Message{
		ID:      xid.New(),
		Topic:   pkt.TopicName,
		Payload: pkt.Payload,
		QoS:     pkt.QoS,
		Retain:  pkt.Retain,
	}
}

func (m Message) toPacket(id packet.ID, qos packet.QoS, retain bool) *packet.Publish {
	pkt := packet.NewPublish(id, m.Topic, qos, false, retain, m.Payload)
	return &pkt
}
