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
	"errors"
	"fmt"
)

// ErrMalformedPacket indicates that the packet could not be correctly parsed.
var ErrMalformedPacket = errors.New("malformed packet")

var (
	// ErrUnacceptableProtocolVersion indicates that the broker does not support the level of the
	// MQTT protocol requested by the client.
	ErrUnacceptableProtocolVersion = &Error{
		Code:   ReturnCodeUnacceptableProtocolVersion,
		Reason: "unacceptable protocol version",
	}

	// ErrIdentifierRejected indicates that the client identifier is correct UTF-8 but not allowed.
	ErrIdentifierRejected = &Error{
		Code:   ReturnCodeIdentifierRejected,
		Reason: "client ID not allowed",
	}
)

// Error represents the errors related to the MQTT protocol which must be reported to the client
// through a CONNACK return code.
type Error struct {
	// Code represents the return code based on the MQTT specifications.
	Code ReturnCode

	// Reason is string with a human-friendly message about the error.
	Reason string
}

// Error returns a string with the error code and the reason of the error.
func (err Error) Error() string {
	return fmt.Sprintf("%d (%s)", err.Code, err.Reason)
}

func newErrMalformedPacket(msg string) error {
	return fmt.Errorf("%w: %s", ErrMalformedPacket, msg)
}
