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
	"errors"

	"github.com/hrsystem/hrmq/internal/mqtt/topic"
)

var (
	// ErrProtocolError indicates that the client sent a packet which is not allowed in the current
	// state of the connection, or a packet violating the protocol.
	ErrProtocolError = errors.New("protocol error")

	// ErrUnknownSession indicates that the session no longer exists, typically because the client
	// disconnected while an operation on its session was pending.
	ErrUnknownSession = errors.New("unknown session")

	// ErrDuplicateRejected indicates that a session could not be registered because another session
	// with the same client ID exists and the eviction was not allowed.
	ErrDuplicateRejected = errors.New("duplicate client ID rejected")

	// ErrSubscriptionNotFound indicates that the session has no subscription with the topic filter.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrMalformedFilter indicates that a topic filter does not follow the topic filter grammar.
	ErrMalformedFilter = topic.ErrMalformedFilter

	// ErrKeepAliveExceeded indicates that the client requested a keep alive, or no keep alive at
	// all, above the maximum keep alive accepted by the broker.
	ErrKeepAliveExceeded = errors.New("keep alive exceeded")

	// ErrBrokerRunning indicates that the broker has already been started.
	ErrBrokerRunning = errors.New("broker already running")
)
