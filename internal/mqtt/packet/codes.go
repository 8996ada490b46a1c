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

// ReturnCode represents the return code sent in CONNACK and SUBACK packets.
type ReturnCode byte

// CONNACK return codes.
const (
	ReturnCodeAccepted                    ReturnCode = 0x00
	ReturnCodeUnacceptableProtocolVersion ReturnCode = 0x01
	ReturnCodeIdentifierRejected          ReturnCode = 0x02
	ReturnCodeServerUnavailable           ReturnCode = 0x03
	ReturnCodeBadUserNameOrPassword       ReturnCode = 0x04
	ReturnCodeNotAuthorized               ReturnCode = 0x05
)

// SUBACK return codes.
const (
	ReturnCodeGrantedQoS0 ReturnCode = 0x00
	ReturnCodeGrantedQoS1 ReturnCode = 0x01
	ReturnCodeGrantedQoS2 ReturnCode = 0x02
	ReturnCodeFailure     ReturnCode = 0x80
)

var connAckCodeToString = map[ReturnCode]string{
	ReturnCodeAccepted:                    "connection accepted",
	ReturnCodeUnacceptableProtocolVersion: "unacceptable protocol version",
	ReturnCodeIdentifierRejected:          "identifier rejected",
	ReturnCodeServerUnavailable:           "server unavailable",
	ReturnCodeBadUserNameOrPassword:       "bad user name or password",
	ReturnCodeNotAuthorized:               "not authorized",
}

// String returns the human-friendly description of a CONNACK return code.
func (c ReturnCode) String() string {
	s, ok := connAckCodeToString[c]
	if !ok {
		return "unknown"
	}
	return s
}
