// Copyright 2024 Alexandre Mahdhaoui
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

// Package busfake is an in-memory notification bus. Queues bound to a level
// receive every message published at that level after they were bound.
package busfake

import (
	"context"
	"sync"
	"time"

	"github.com/alexandremahdhaoui/bmnotify/pkg/broker"
	"github.com/alexandremahdhaoui/bmnotify/pkg/capture"
)

// Bus fans published messages out to the queues bound at their level.
type Bus struct {
	mu     sync.Mutex
	queues []*Queue
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{}
}

// Bind returns a new queue receiving messages published at level.
func (b *Bus) Bind(level broker.Level) *Queue {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := &Queue{bus: b, level: level, inflight: map[*Message]struct{}{}}
	b.queues = append(b.queues, q)
	return q
}

// Publish delivers body to every open queue bound at level.
func (b *Bus) Publish(level broker.Level, body []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, q := range b.queues {
		if q.level == level && !q.closed {
			q.pending = append(q.pending, &Message{body: body, queue: q})
		}
	}
}

// Queue is a bound queue. It implements capture.Source without blocking:
// an empty queue reports capture.ErrIdle immediately.
type Queue struct {
	bus   *Bus
	level broker.Level

	pending  []*Message
	inflight map[*Message]struct{}
	acked    int
	closed   bool
}

// Next implements capture.Source.
func (q *Queue) Next(ctx context.Context, _ time.Duration) (capture.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.bus.mu.Lock()
	defer q.bus.mu.Unlock()

	if q.closed {
		return nil, broker.ErrSubscriptionClosed
	}
	if len(q.pending) == 0 {
		return nil, capture.ErrIdle
	}

	m := q.pending[0]
	q.pending = q.pending[1:]
	q.inflight[m] = struct{}{}
	return m, nil
}

// Close unbinds the queue.
func (q *Queue) Close() error {
	q.bus.mu.Lock()
	defer q.bus.mu.Unlock()

	q.closed = true
	return nil
}

// Len returns the number of messages not yet delivered.
func (q *Queue) Len() int {
	q.bus.mu.Lock()
	defer q.bus.mu.Unlock()

	return len(q.pending)
}

// Acked returns the number of acknowledged messages.
func (q *Queue) Acked() int {
	q.bus.mu.Lock()
	defer q.bus.mu.Unlock()

	return q.acked
}

// Unacked returns the number of delivered but unacknowledged messages.
func (q *Queue) Unacked() int {
	q.bus.mu.Lock()
	defer q.bus.mu.Unlock()

	return len(q.inflight)
}

// Message is a delivery from a Queue.
type Message struct {
	body  []byte
	queue *Queue
}

// Body implements capture.Message.
func (m *Message) Body() []byte {
	return m.body
}

// Ack implements capture.Message.
func (m *Message) Ack() error {
	m.queue.bus.mu.Lock()
	defer m.queue.bus.mu.Unlock()

	if _, ok := m.queue.inflight[m]; ok {
		delete(m.queue.inflight, m)
		m.queue.acked++
	}
	return nil
}
