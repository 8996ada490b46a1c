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
	"testing"
	"time"

	"github.com/hrsystem/hrmq/internal/mqtt/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingPublish(qos packet.QoS) *packet.Publish {
	pkt := packet.NewPublish(0, "a/b", qos, false, false, []byte("data"))
	return &pkt
}

func TestInflightAddAllocatesPacketIDs(t *testing.T) {
	f := newInflight(0)

	p1 := newPendingPublish(packet.QoS1)
	p2 := newPendingPublish(packet.QoS2)
	require.True(t, f.add(p1))
	require.True(t, f.add(p2))

	assert.Equal(t, packet.ID(1), p1.PacketID)
	assert.Equal(t, packet.ID(2), p2.PacketID)
	assert.Equal(t, 2, f.len())
}

func TestInflightAddSkipsUsedIDsOnWrapAround(t *testing.T) {
	f := newInflight(0)

	p1 := newPendingPublish(packet.QoS1)
	require.True(t, f.add(p1))

	f.lastID = maxPacketID
	p2 := newPendingPublish(packet.QoS1)
	require.True(t, f.add(p2))
	assert.Equal(t, packet.ID(2), p2.PacketID)
}

func TestInflightAddLimit(t *testing.T) {
	f := newInflight(1)

	require.True(t, f.add(newPendingPublish(packet.QoS1)))
	assert.False(t, f.add(newPendingPublish(packet.QoS1)))
}

// sendRecorder records the packets accepted by the send function until its capacity is reached.
type sendRecorder struct {
	packets  []packet.Packet
	capacity int
}

func (r *sendRecorder) send(pkt packet.Packet) bool {
	if len(r.packets) >= r.capacity {
		return false
	}
	r.packets = append(r.packets, pkt)
	return true
}

func (r *sendRecorder) ids() []packet.ID {
	ids := make([]packet.ID, 0, len(r.packets))
	for _, pkt := range r.packets {
		switch p := pkt.(type) {
		case *packet.Publish:
			ids = append(ids, p.PacketID)
		case *packet.PubRel:
			ids = append(ids, p.PacketID)
		}
	}
	return ids
}

func addSent(t *testing.T, f *inflight, qos packet.QoS) *packet.Publish {
	t.Helper()

	p := newPendingPublish(qos)
	require.True(t, f.add(p))
	rec := &sendRecorder{capacity: 1}
	require.True(t, f.flush(rec.send))
	return p
}

func TestInflightAckQoS1(t *testing.T) {
	f := newInflight(0)
	p := addSent(t, f, packet.QoS1)

	assert.False(t, f.ack(p.PacketID, packet.PUBREC))
	assert.False(t, f.ack(p.PacketID+1, packet.PUBACK))
	assert.True(t, f.ack(p.PacketID, packet.PUBACK))
	assert.Zero(t, f.len())
}

func TestInflightAckQoS2(t *testing.T) {
	f := newInflight(0)
	p := addSent(t, f, packet.QoS2)

	assert.False(t, f.ack(p.PacketID, packet.PUBACK))
	assert.False(t, f.ack(p.PacketID, packet.PUBCOMP))
	assert.True(t, f.ack(p.PacketID, packet.PUBREC))
	assert.Equal(t, 1, f.len())
	assert.True(t, f.ack(p.PacketID, packet.PUBCOMP))
	assert.Zero(t, f.len())
}

func TestInflightAckIgnoresUnsentDelivery(t *testing.T) {
	f := newInflight(0)
	p := newPendingPublish(packet.QoS1)
	require.True(t, f.add(p))

	assert.False(t, f.ack(p.PacketID, packet.PUBACK))
	assert.Equal(t, 1, f.len())
}

func TestInflightFlushKeepsOrder(t *testing.T) {
	f := newInflight(0)
	for i := 0; i < 5; i++ {
		require.True(t, f.add(newPendingPublish(packet.QoS1)))
	}

	rec := &sendRecorder{capacity: 2}
	assert.False(t, f.flush(rec.send))
	assert.Equal(t, []packet.ID{1, 2}, rec.ids())

	rec.capacity = 10
	assert.True(t, f.flush(rec.send))
	assert.Equal(t, []packet.ID{1, 2, 3, 4, 5}, rec.ids())
}

func TestInflightSendAfterPending(t *testing.T) {
	f := newInflight(0)
	require.True(t, f.add(newPendingPublish(packet.QoS1)))

	rec := &sendRecorder{capacity: 10}
	qos0 := newPendingPublish(packet.QoS0)
	assert.False(t, f.sendAfterPending(qos0, rec.send))
	assert.Empty(t, rec.packets)

	require.True(t, f.flush(rec.send))
	assert.True(t, f.sendAfterPending(qos0, rec.send))
	assert.Len(t, rec.packets, 2)
}

func TestInflightRetryResendsWithDup(t *testing.T) {
	f := newInflight(0)
	p := addSent(t, f, packet.QoS1)

	rec := &sendRecorder{capacity: 10}
	resent, blocked, failed := f.retry(time.Now(), time.Hour, 3, rec.send)
	assert.Zero(t, resent)
	assert.False(t, blocked)
	assert.Empty(t, failed)

	resent, _, failed = f.retry(time.Now().Add(2*time.Hour), time.Hour, 3, rec.send)
	require.Equal(t, 1, resent)
	assert.Empty(t, failed)

	pub, ok := rec.packets[0].(*packet.Publish)
	require.True(t, ok)
	assert.True(t, pub.Dup)
	assert.Equal(t, p.PacketID, pub.PacketID)
	assert.False(t, p.Dup)
}

func TestInflightRetryResendsPubRel(t *testing.T) {
	f := newInflight(0)
	p := addSent(t, f, packet.QoS2)
	require.True(t, f.ack(p.PacketID, packet.PUBREC))

	rec := &sendRecorder{capacity: 10}
	resent, _, _ := f.retry(time.Now().Add(time.Minute), time.Second, 3, rec.send)
	require.Equal(t, 1, resent)
	assert.Equal(t, packet.PUBREL, rec.packets[0].Type())
}

func TestInflightRetryInOriginalOrder(t *testing.T) {
	f := newInflight(0)
	rec := &sendRecorder{capacity: 10}
	for i := 0; i < 10; i++ {
		require.True(t, f.add(newPendingPublish(packet.QoS1)))
	}
	require.True(t, f.flush(rec.send))

	rec = &sendRecorder{capacity: 10}
	resent, blocked, _ := f.retry(time.Now().Add(time.Minute), time.Second, 3, rec.send)
	assert.Equal(t, 10, resent)
	assert.False(t, blocked)
	assert.Equal(t, []packet.ID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, rec.ids())
}

func TestInflightRetrySendsUnsentAfterResends(t *testing.T) {
	f := newInflight(0)
	_ = addSent(t, f, packet.QoS1)
	require.True(t, f.add(newPendingPublish(packet.QoS1)))

	rec := &sendRecorder{capacity: 10}
	resent, blocked, _ := f.retry(time.Now().Add(time.Minute), time.Second, 3, rec.send)
	assert.Equal(t, 1, resent)
	assert.False(t, blocked)
	assert.Equal(t, []packet.ID{1, 2}, rec.ids())
	assert.True(t, rec.packets[0].(*packet.Publish).Dup)
	assert.False(t, rec.packets[1].(*packet.Publish).Dup)
}

func TestInflightRetryPostponedDoesNotCountAttempt(t *testing.T) {
	f := newInflight(0)
	p := addSent(t, f, packet.QoS1)

	full := &sendRecorder{}
	now := time.Now()
	for i := 0; i < 5; i++ {
		now = now.Add(time.Minute)
		resent, blocked, failed := f.retry(now, time.Second, 1, full.send)
		assert.Zero(t, resent)
		assert.True(t, blocked)
		require.Empty(t, failed)
	}

	rec := &sendRecorder{capacity: 10}
	resent, _, failed := f.retry(now.Add(time.Minute), time.Second, 1, rec.send)
	assert.Equal(t, 1, resent)
	assert.Empty(t, failed)
	assert.Equal(t, []packet.ID{p.PacketID}, rec.ids())
}

func TestInflightUnsentDeliveryNeverFails(t *testing.T) {
	f := newInflight(0)
	require.True(t, f.add(newPendingPublish(packet.QoS1)))

	full := &sendRecorder{}
	now := time.Now()
	for i := 0; i < 5; i++ {
		now = now.Add(time.Minute)
		_, blocked, failed := f.retry(now, time.Second, 0, full.send)
		assert.True(t, blocked)
		assert.Empty(t, failed)
	}
	assert.Equal(t, 1, f.len())
}

func TestInflightRetryFailsAfterMaxRetries(t *testing.T) {
	f := newInflight(0)
	p := addSent(t, f, packet.QoS1)
	rec := &sendRecorder{capacity: 10}

	now := time.Now()
	for i := 0; i < 2; i++ {
		now = now.Add(time.Minute)
		resent, _, failed := f.retry(now, time.Second, 2, rec.send)
		require.Equal(t, 1, resent)
		require.Empty(t, failed)
	}

	now = now.Add(time.Minute)
	resent, _, failed := f.retry(now, time.Second, 2, rec.send)
	assert.Zero(t, resent)
	require.Len(t, failed, 1)
	assert.Same(t, p, failed[0])
	assert.Zero(t, f.len())
}

func TestInflightClear(t *testing.T) {
	f := newInflight(0)
	require.True(t, f.add(newPendingPublish(packet.QoS1)))
	require.True(t, f.add(newPendingPublish(packet.QoS2)))

	assert.Equal(t, 2, f.clear())
	assert.Zero(t, f.len())
	assert.False(t, f.add(newPendingPublish(packet.QoS1)))
	assert.True(t, f.flush((&sendRecorder{}).send))
}
