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
	"container/list"
	"sync"
	"time"

	"github.com/hrsystem/hrmq/internal/mqtt/packet"
)

const maxPacketID = 65535

type deliveryPhase byte

const (
	awaitingPubAck deliveryPhase = iota
	awaitingPubRec
	awaitingPubComp
)

var deliveryPhaseToString = map[deliveryPhase]string{
	awaitingPubAck:  "awaiting PUBACK",
	awaitingPubRec:  "awaiting PUBREC",
	awaitingPubComp: "awaiting PUBCOMP",
}

func (p deliveryPhase) String() string {
	return deliveryPhaseToString[p]
}

// pendingDelivery is an outbound QoS 1 or QoS 2 message not yet acknowledged by the subscriber.
type pendingDelivery struct {
	publish  *packet.Publish
	lastSent time.Time
	tries    int
	phase    deliveryPhase
}

// retryPacket returns the packet to be resent for the current phase.
func (d *pendingDelivery) retryPacket() packet.Packet {
	if d.phase == awaitingPubComp {
		pkt := packet.NewPubRel(d.publish.PacketID)
		return &pkt
	}

	pkt := d.publish.Clone()
	pkt.Dup = true
	return pkt
}

// inflight keeps the pending deliveries of a connection in the order they were added. The
// deliveries never queued for writing always form the tail of the list, starting at next.
type inflight struct {
	order  *list.List
	byID   map[packet.ID]*list.Element
	next   *list.Element
	limit  int
	lastID packet.ID
	closed bool
	mu     sync.Mutex
}

func newInflight(limit int) *inflight {
	if limit <= 0 || limit > maxPacketID {
		limit = maxPacketID
	}
	return &inflight{
		order: list.New(),
		byID:  make(map[packet.ID]*list.Element),
		limit: limit,
	}
}

// add allocates a packet ID for the PUBLISH packet and appends it as pending, not yet sent. It
// returns false when the limit of pending deliveries has been reached.
func (f *inflight) add(pkt *packet.Publish) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || len(f.byID) >= f.limit {
		return false
	}

	id := f.lastID
	for {
		id++
		if id == 0 {
			id = 1
		}
		if _, ok := f.byID[id]; !ok {
			break
		}
	}
	f.lastID = id
	pkt.PacketID = id

	phase := awaitingPubAck
	if pkt.QoS == packet.QoS2 {
		phase = awaitingPubRec
	}

	e := f.order.PushBack(&pendingDelivery{publish: pkt, phase: phase})
	f.byID[id] = e
	if f.next == nil {
		f.next = e
	}
	return true
}

// flush hands the deliveries never sent to the send function, oldest first. It stops at the first
// one refused so a newer delivery never overtakes an older one. It returns false when some
// delivery is still waiting for its first send.
func (f *inflight) flush(send func(packet.Packet) bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushLocked(send, time.Now())
}

func (f *inflight) flushLocked(send func(packet.Packet) bool, now time.Time) bool {
	for f.next != nil {
		d := f.next.Value.(*pendingDelivery)
		if !send(d.publish) {
			return false
		}

		d.tries = 1
		d.lastSent = now
		f.next = f.next.Next()
	}
	return true
}

// sendAfterPending hands the packet to the send function only when no pending delivery is waiting
// for its first send.
func (f *inflight) sendAfterPending(pkt packet.Packet, send func(packet.Packet) bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.next != nil {
		return false
	}
	return send(pkt)
}

// ack handles an acknowledgement of the pending delivery. PUBACK and PUBCOMP complete the delivery
// while PUBREC moves it to the awaiting PUBCOMP phase. It returns false when the acknowledgement
// does not match a sent delivery in the expected phase.
func (f *inflight) ack(id packet.ID, t packet.Type) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.byID[id]
	if !ok {
		return false
	}

	d := e.Value.(*pendingDelivery)
	if d.tries == 0 {
		return false
	}

	switch {
	case t == packet.PUBACK && d.phase == awaitingPubAck,
		t == packet.PUBCOMP && d.phase == awaitingPubComp:
		f.remove(e)
		return true
	case t == packet.PUBREC && d.phase == awaitingPubRec:
		// the PUBREL is sent right after
		d.phase = awaitingPubComp
		d.tries = 1
		d.lastSent = time.Now()
		return true
	default:
		return false
	}
}

// retry resends, in their original order, the sent deliveries waiting for longer than the interval
// and then sends the deliveries never sent. An attempt counts only when the send function accepts
// the packet, and once it refuses one nothing newer is sent. The deliveries already sent
// maxRetries+1 times are removed and returned as failed.
func (f *inflight) retry(now time.Time, interval time.Duration, maxRetries int,
	send func(packet.Packet) bool) (resent int, blocked bool, failed []*packet.Publish) {

	f.mu.Lock()
	defer f.mu.Unlock()

	for e := f.order.Front(); e != nil && e != f.next; {
		next := e.Next()
		d := e.Value.(*pendingDelivery)

		switch {
		case now.Sub(d.lastSent) < interval:
		case d.tries > maxRetries:
			f.remove(e)
			failed = append(failed, d.publish)
		case blocked:
		case send(d.retryPacket()):
			d.tries++
			d.lastSent = now
			resent++
		default:
			blocked = true
		}

		e = next
	}

	if !blocked {
		blocked = !f.flushLocked(send, now)
	}
	return resent, blocked, failed
}

func (f *inflight) remove(e *list.Element) {
	if e == f.next {
		f.next = e.Next()
	}
	d := f.order.Remove(e).(*pendingDelivery)
	delete(f.byID, d.publish.PacketID)
}

// clear removes every pending delivery and refuses new ones. It returns the number of removed
// deliveries.
func (f *inflight) clear() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.byID)
	f.order.Init()
	f.byID = make(map[packet.ID]*list.Element)
	f.next = nil
	f.closed = true
	return n
}

func (f *inflight) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}
