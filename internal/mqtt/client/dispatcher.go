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

package client

import (
	"container/list"
	"sync"
)

// dispatcher calls the queued callbacks one at a time, in the order they were pushed, from its own
// goroutine. The queue is unbounded so pushing never blocks.
type dispatcher struct {
	queue  *list.List
	cond   *sync.Cond
	closed bool
	done   chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		queue: list.New(),
		cond:  sync.NewCond(&sync.Mutex{}),
		done:  make(chan struct{}),
	}

	go d.run()
	return d
}

func (d *dispatcher) push(fn func()) {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()

	if d.closed {
		return
	}
	d.queue.PushBack(fn)
	d.cond.Signal()
}

// close stops the dispatcher once every queued callback has been called.
func (d *dispatcher) close() {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()

	d.closed = true
	d.cond.Signal()
}

func (d *dispatcher) run() {
	defer close(d.done)

	for {
		d.cond.L.Lock()
		for d.queue.Len() == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.queue.Len() == 0 {
			d.cond.L.Unlock()
			return
		}

		fn := d.queue.Remove(d.queue.Front()).(func())
		d.cond.L.Unlock()

		fn()
	}
}
