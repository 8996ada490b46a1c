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

package mocks

import "github.com/stretchr/testify/mock"

// ListenerMock is responsible to mock the server.Listener.
type ListenerMock struct {
	mock.Mock
	ListeningCh chan bool
	StopCh      chan bool
	Err         error
}

// NewListenerMock creates a ListenerMock.
func NewListenerMock() *ListenerMock {
	return &ListenerMock{
		ListeningCh: make(chan bool, 1),
		StopCh:      make(chan bool, 1),
	}
}

// Listen blocks until Stop is called, unless Err is set.
func (l *ListenerMock) Listen() error {
	l.Called()
	if l.Err != nil {
		return l.Err
	}

	l.ListeningCh <- true
	<-l.StopCh
	return nil
}

// Stop unblocks the Listen function.
func (l *ListenerMock) Stop() {
	l.Called()
	l.StopCh <- true
}

// CloserMock is responsible to mock an io.Closer, such as the connection handle of a session.
type CloserMock struct {
	mock.Mock
}

// Close records the call and returns the configured error.
func (c *CloserMock) Close() error {
	ret := c.Called()
	err, _ := ret.Get(0).(error)
	return err
}
