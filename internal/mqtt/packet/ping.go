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

func validateEmptyOptions(opts options, t Type) error {
	if opts.packetType != t {
		return fmt.Errorf("packet type is not %s", t)
	}
	if opts.controlFlags != 0 {
		return fmt.Errorf("invalid Control Flags (%s)", t)
	}
	if opts.remainingLength != 0 {
		return fmt.Errorf("invalid remaining length (%s)", t)
	}
	return nil
}

func writeEmpty(w *bufio.Writer, t Type) error {
	err := multierr.Combine(
		w.WriteByte(byte(t)<<packetTypeBit),
		w.WriteByte(0),
	)
	if err != nil {
		return fmt.Errorf("failed to send packet: %w", err)
	}
	return nil
}

// PingReq represents the PINGREQ Packet from MQTT specifications.
type PingReq struct {
	timestamp time.Time
}

func newPacketPingReq(opts options) (Packet, error) {
	if err := validateEmptyOptions(opts, PINGREQ); err != nil {
		return nil, err
	}
	return &PingReq{timestamp: opts.timestamp}, nil
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *PingReq) Write(w *bufio.Writer) error {
	pkt.timestamp = time.Now()
	return writeEmpty(w, PINGREQ)
}

// Read does nothing as the PINGREQ has no variable header nor payload.
func (pkt *PingReq) Read(_ *bufio.Reader) error { return nil }

// Type returns the packet type.
func (pkt *PingReq) Type() Type { return PINGREQ }

// Size returns the packet size in bytes.
func (pkt *PingReq) Size() int { return 2 }

// Timestamp returns the timestamp of the moment the packet has been sent or received.
func (pkt *PingReq) Timestamp() time.Time { return pkt.timestamp }

// PingResp represents the PINGRESP Packet from MQTT specifications.
type PingResp struct {
	timestamp time.Time
}

func newPacketPingResp(opts options) (Packet, error) {
	if err := validateEmptyOptions(opts, PINGRESP); err != nil {
		return nil, err
	}
	return &PingResp{timestamp: opts.timestamp}, nil
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *PingResp) Write(w *bufio.Writer) error {
	pkt.timestamp = time.Now()
	return writeEmpty(w, PINGRESP)
}

// Read does nothing as the PINGRESP has no variable header nor payload.
func (pkt *PingResp) Read(_ *bufio.Reader) error { return nil }

// Type returns the packet type.
func (pkt *PingResp) Type() Type { return PINGRESP }

// Size returns the packet size in bytes.
func (pkt *PingResp) Size() int { return 2 }

// Timestamp returns the timestamp of the moment the packet has been sent or received.
func (pkt *PingResp) Timestamp() time.Time { return pkt.timestamp }

// Disconnect represents the DISCONNECT Packet from MQTT specifications.
type Disconnect struct {
	timestamp time.Time
}

func newPacketDisconnect(opts options) (Packet, error) {
	if err := validateEmptyOptions(opts, DISCONNECT); err != nil {
		return nil, err
	}
	return &Disconnect{timestamp: opts.timestamp}, nil
}

// Write encodes the packet into bytes and writes it into the io.Writer.
func (pkt *Disconnect) Write(w *bufio.Writer) error {
	pkt.timestamp = time.Now()
	return writeEmpty(w, DISCONNECT)
}

// Read does nothing as the DISCONNECT has no variable header nor payload.
func (pkt *Disconnect) Read(_ *bufio.Reader) error { return nil }

// Type returns the packet type.
func (pkt *Disconnect) Type() Type { return DISCONNECT }

// Size returns the packet size in bytes.
func (pkt *Disconnect) Size() int { return 2 }

// Timestamp returns the timestamp of the moment the packet has been sent or received.
func (pkt *Disconnect) Timestamp() time.Time { return pkt.timestamp }
