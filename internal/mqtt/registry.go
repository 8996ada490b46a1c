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
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hrsystem/hrmq/internal/logger"
	"github.com/hrsystem/hrmq/internal/mqtt/packet"
	"github.com/hrsystem/hrmq/internal/mqtt/topic"
)

// SessionID identifies a registered session. IDs are never reused, so an evicted session and the
// session that replaced it have different IDs even though they share the client ID.
type SessionID uint64

// Session represents the state kept by the broker for a connected client.
type Session struct {
	// ID is the session identifier.
	ID SessionID

	// ClientID is the client identifier.
	ClientID string

	// ConnectedAt is the moment the session has been registered.
	ConnectedAt time.Time

	handle        io.Closer
	subscriptions map[string]packet.QoS
	removed       bool
	mu            sync.Mutex
}

// Handle returns the connection handle of the session.
func (s *Session) Handle() io.Closer {
	return s.handle
}

// SubscriptionInfo contains a copy of a subscription.
type SubscriptionInfo struct {
	Filter string     `json:"filter" yaml:"filter"`
	QoS    packet.QoS `json:"qos" yaml:"qos"`
}

// SessionInfo contains a copy of the state of a session.
type SessionInfo struct {
	ID            SessionID          `json:"-" yaml:"-"`
	ClientID      string             `json:"client_id" yaml:"client_id"`
	ConnectedAt   time.Time          `json:"connected_at" yaml:"connected_at"`
	Subscriptions []SubscriptionInfo `json:"subscriptions" yaml:"subscriptions"`
}

// Subscriber is a session with at least one subscription matching a topic, together with the
// highest QoS granted among its matching subscriptions.
type Subscriber struct {
	Session *Session
	QoS     packet.QoS
}

// Registry keeps the sessions of the connected clients and their subscriptions.
//
// The map of sessions is guarded by a read-write mutex and each session by its own mutex, so a
// subscription change in one session never blocks another session.
type Registry struct {
	log      *logger.Logger
	byClient map[string]*Session
	byID     map[SessionID]*Session
	lastID   atomic.Uint64
	mu       sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry(l *logger.Logger) *Registry {
	return &Registry{
		log:      l.WithPrefix("mqtt.registry"),
		byClient: make(map[string]*Session),
		byID:     make(map[SessionID]*Session),
	}
}

// Register registers a new session for the client. If the client already has a session, it is
// removed and its handle closed before the new session is inserted, and it is returned as evicted.
func (r *Registry) Register(clientID string, handle io.Closer) (s *Session, evicted *Session) {
	s = &Session{
		ID:            SessionID(r.lastID.Add(1)),
		ClientID:      clientID,
		ConnectedAt:   time.Now(),
		handle:        handle,
		subscriptions: make(map[string]packet.QoS),
	}

	r.mu.Lock()
	if old, ok := r.byClient[clientID]; ok {
		delete(r.byID, old.ID)
		evicted = old
	}
	r.byClient[clientID] = s
	r.byID[s.ID] = s
	r.mu.Unlock()

	if evicted != nil {
		r.log.Info().
			Str("ClientId", clientID).
			Uint64("SessionId", uint64(evicted.ID)).
			Msg("Session evicted by a new connection with the same client ID")
		r.release(evicted)
	}

	r.log.Debug().
		Str("ClientId", clientID).
		Uint64("SessionId", uint64(s.ID)).
		Msg("Session registered")
	return s, evicted
}

// AddSubscription adds the subscription into the session. If the session already has a
// subscription with the same filter, its QoS is replaced and replaced is true.
func (r *Registry) AddSubscription(id SessionID, filter string, qos packet.QoS) (
	replaced bool, err error) {

	if err = topic.ValidateFilter(filter); err != nil {
		return false, err
	}

	s, err := r.lookupID(id)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return false, fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}

	_, replaced = s.subscriptions[filter]
	s.subscriptions[filter] = qos

	r.log.Debug().
		Str("ClientId", s.ClientID).
		Str("TopicFilter", filter).
		Uint8("QoS", uint8(qos)).
		Bool("Replaced", replaced).
		Msg("Subscription added")
	return replaced, nil
}

// RemoveSubscription removes the subscription with the filter from the session.
func (r *Registry) RemoveSubscription(id SessionID, filter string) error {
	s, err := r.lookupID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	if _, ok := s.subscriptions[filter]; !ok {
		return fmt.Errorf("%w: %s", ErrSubscriptionNotFound, filter)
	}

	delete(s.subscriptions, filter)
	r.log.Debug().
		Str("ClientId", s.ClientID).
		Str("TopicFilter", filter).
		Msg("Subscription removed")
	return nil
}

// RemoveSession removes the session, clears its subscriptions and closes its handle. It returns
// false when the session had already been removed.
func (r *Registry) RemoveSession(id SessionID) bool {
	r.mu.Lock()
	s, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		if cur, found := r.byClient[s.ClientID]; found && cur.ID == id {
			delete(r.byClient, s.ClientID)
		}
	}
	r.mu.Unlock()

	if !ok {
		r.log.Trace().
			Uint64("SessionId", uint64(id)).
			Msg("Session already removed")
		return false
	}

	r.release(s)
	r.log.Debug().
		Str("ClientId", s.ClientID).
		Uint64("SessionId", uint64(id)).
		Msg("Session removed")
	return true
}

// Lookup returns the live session of the client.
func (r *Registry) Lookup(clientID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byClient[clientID]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byClient)
}

// Snapshot returns a copy of every live session, ordered by client ID.
func (r *Registry) Snapshot() []SessionInfo {
	sessions := r.sessions()
	infos := make([]SessionInfo, 0, len(sessions))

	for _, s := range sessions {
		s.mu.Lock()
		if s.removed {
			s.mu.Unlock()
			continue
		}

		info := SessionInfo{
			ID:            s.ID,
			ClientID:      s.ClientID,
			ConnectedAt:   s.ConnectedAt,
			Subscriptions: make([]SubscriptionInfo, 0, len(s.subscriptions)),
		}
		for f, qos := range s.subscriptions {
			info.Subscriptions = append(info.Subscriptions, SubscriptionInfo{Filter: f, QoS: qos})
		}
		s.mu.Unlock()

		sort.Slice(info.Subscriptions, func(i, j int) bool {
			return info.Subscriptions[i].Filter < info.Subscriptions[j].Filter
		})
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ClientID < infos[j].ClientID })
	return infos
}

// Subscribers returns every live session with at least one subscription matching the topic name.
// Each session appears once, with the highest QoS granted among its matching subscriptions.
func (r *Registry) Subscribers(topicName string) []Subscriber {
	var subs []Subscriber

	for _, s := range r.sessions() {
		matched := false
		var qos packet.QoS

		s.mu.Lock()
		if !s.removed {
			for f, q := range s.subscriptions {
				if topic.Match(f, topicName) {
					matched = true
					if q > qos {
						qos = q
					}
				}
			}
		}
		s.mu.Unlock()

		if matched {
			subs = append(subs, Subscriber{Session: s, QoS: qos})
		}
	}

	return subs
}

func (r *Registry) sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	return sessions
}

func (r *Registry) lookupID(id SessionID) (*Session, error) {
	r.mu.RLock()
	s, ok := r.byID[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	return s, nil
}

func (r *Registry) release(s *Session) {
	s.mu.Lock()
	s.removed = true
	s.subscriptions = nil
	s.mu.Unlock()

	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			r.log.Debug().
				Str("ClientId", s.ClientID).
				Msg("Failed to close session handle: " + err.Error())
		}
	}
}
