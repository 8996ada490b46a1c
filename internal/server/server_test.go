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

package server

import (
	"errors"
	"testing"
	"time"

	"github.com/hrsystem/hrmq/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitListening(t *testing.T, l *mocks.ListenerMock) {
	t.Helper()

	select {
	case <-l.ListeningCh:
	case <-time.After(time.Second):
		t.Fatal("listener not started")
	}
}

func TestServerStart(t *testing.T) {
	s := New(mocks.NewLoggerStub().Logger())

	l := mocks.NewListenerMock()
	l.On("Listen")
	l.On("Stop")
	s.AddListener(l)

	err := s.Start()
	require.Nil(t, err)
	waitListening(t, l)

	s.Stop()
	assert.Nil(t, s.Wait())
	l.AssertExpectations(t)
}

func TestServerStartWithoutListener(t *testing.T) {
	s := New(mocks.NewLoggerStub().Logger())

	err := s.Start()
	assert.ErrorIs(t, err, ErrNoListener)
}

func TestServerStartMultipleListeners(t *testing.T) {
	s := New(mocks.NewLoggerStub().Logger())

	l1 := mocks.NewListenerMock()
	l1.On("Listen")
	l1.On("Stop")
	s.AddListener(l1)

	l2 := mocks.NewListenerMock()
	l2.On("Listen")
	l2.On("Stop")
	s.AddListener(l2)

	require.Nil(t, s.Start())
	waitListening(t, l1)
	waitListening(t, l2)

	s.Stop()
	assert.Nil(t, s.Wait())
	l1.AssertExpectations(t)
	l2.AssertExpectations(t)
}

func TestServerListenerErrorStopsOthers(t *testing.T) {
	s := New(mocks.NewLoggerStub().Logger())

	l1 := mocks.NewListenerMock()
	l1.On("Listen")
	l1.On("Stop")
	s.AddListener(l1)

	l2 := mocks.NewListenerMock()
	l2.Err = errors.New("address in use")
	l2.On("Listen")
	s.AddListener(l2)

	require.Nil(t, s.Start())

	err := s.Wait()
	assert.ErrorContains(t, err, "address in use")
	l1.AssertExpectations(t)
	l2.AssertNotCalled(t, "Stop")
}
