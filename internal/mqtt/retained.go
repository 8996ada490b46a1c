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
	"sort"
	"sync"

	"github.com/hrsystem/hrmq/internal/mqtt/topic"
)

// RetainedStore keeps the latest retained message of each topic.
type RetainedStore struct {
	messages map[string]Message
	mu       sync.RWMutex
}

// NewRetainedStore creates an empty RetainedStore.
func NewRetainedStore() *RetainedStore {
	return &RetainedStore{messages: make(map[string]Message)}
}

// Store replaces the retained message of the message topic. A message with an empty payload
// deletes the retained message instead. It returns false when the topic is left without a
// retained message.
func (s *RetainedStore) Store(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(msg.Payload) == 0 {
		delete(s.messages, msg.Topic)
		return false
	}

	msg.Retain = true
	s.messages[msg.Topic] = msg
	return true
}

// Get returns the retained message of the topic.
func (s *RetainedStore) Get(topicName string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[topicName]
	return msg, ok
}

// Match returns the retained messages whose topic matches the topic filter, ordered by topic.
func (s *RetainedStore) Match(filter string) []Message {
	s.mu.RLock()
	var msgs []Message
	for t, msg := range s.messages {
		if topic.Match(filter, t) {
			msgs = append(msgs, msg)
		}
	}
	s.mu.RUnlock()

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Topic < msgs[j].Topic })
	return msgs
}

// All returns every retained message, ordered by topic.
func (s *RetainedStore) All() []Message {
	s.mu.RLock()
	msgs := make([]Message, 0, len(s.messages))
	for _, msg := range s.messages {
		msgs = append(msgs, msg)
	}
	s.mu.RUnlock()

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Topic < msgs[j].Topic })
	return msgs
}

// Topics returns the topics with a retained message, ordered.
func (s *RetainedStore) Topics() []string {
	s.mu.RLock()
	topics := make([]string, 0, len(s.messages))
	for t := range s.messages {
		topics = append(topics, t)
	}
	s.mu.RUnlock()

	sort.Strings(topics)
	return topics
}

// Len returns the number of retained messages.
func (s *RetainedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
