// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package io

import (
	"log"
	"sync"
	"time"
)

// Default counter parameters.
const (
	DefaultLimit  = 100
	DefaultGlitch = time.Microsecond
)

// Quadrature is an up/down counter for a two channel rotary encoder.
// Channel A is the edge input, channel B the level input:
// a rising edge on A decrements and a falling edge increments the count,
// and a low level on B inverts the edge action.
// The count is bounded by symmetric watch limits. When a limit is reached
// the count is cleared to zero and the reach handler is called with the
// limit value, so that the owner can accumulate an unbounded total.
// A pulse on A narrower than the glitch window is discarded, i.e the
// edge that started it is reverted when the edge that ends it arrives.
// If that edge had reached a limit, the handler is called again with
// the negated limit and the count is restored.
type Quadrature struct {
	mu       sync.Mutex
	count    int
	limit    int
	glitch   time.Duration
	lastA    int
	lastInc  int // Count change of the last accepted edge
	reached  int // Limit reached by the last accepted edge, or 0
	lastEdge time.Time
	onReach  func(int)
}

// NewQuadrature creates a counter with watch limits at +limit and -limit.
func NewQuadrature(limit int, glitch time.Duration) *Quadrature {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := new(Quadrature)
	q.limit = limit
	q.glitch = glitch
	q.lastA = -1
	return q
}

// OnReach registers the handler called when a watch limit is reached.
// The handler is called from the edge processing goroutine with the
// counter locked, so it must not block or call back into the counter.
func (q *Quadrature) OnReach(f func(int)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onReach = f
}

// Limit returns the watch limit of the counter.
func (q *Quadrature) Limit() int {
	return q.limit
}

// Count returns the current raw count, always within (-limit, limit).
func (q *Quadrature) Count() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count, nil
}

// Edge processes a sample of both channels taken at time t after an
// edge was signalled on channel A.
func (q *Quadrature) Edge(a, b int, t time.Time) {
	q.mu.Lock()
	if a == q.lastA {
		// No transition on A.
		q.mu.Unlock()
		return
	}
	first := q.lastA < 0
	q.lastA = a
	if first {
		q.lastEdge = t
		q.mu.Unlock()
		return
	}
	if q.glitch > 0 && t.Sub(q.lastEdge) < q.glitch {
		q.lastEdge = t
		if r := q.reached; r != 0 {
			q.count = r - q.lastInc
			q.reached = 0
			q.lastInc = 0
			if q.onReach != nil {
				q.onReach(-r)
			}
		} else {
			q.count -= q.lastInc
			q.lastInc = 0
		}
		q.mu.Unlock()
		return
	}
	q.lastEdge = t
	inc := 1
	if a == 1 {
		inc = -1
	}
	if b == 0 {
		inc = -inc
	}
	q.count += inc
	q.lastInc = inc
	q.reached = 0
	if q.count >= q.limit {
		q.reached = q.limit
	} else if q.count <= -q.limit {
		q.reached = -q.limit
	}
	if q.reached != 0 {
		q.count = 0
		// The handler runs before the lock is released, so a reader of
		// the count never sees the cleared count without the event.
		if q.onReach != nil {
			q.onReach(q.reached)
		}
	}
	q.mu.Unlock()
}

// Watch runs the edge loop for the counter, waiting for edges on a
// and sampling the level of b. Watch only returns on an input error.
func (q *Quadrature) Watch(name string, a Waiter, b Getter) error {
	for {
		av, err := a.Get()
		if err != nil {
			log.Printf("%s: encoder channel A: %v", name, err)
			return err
		}
		bv, err := b.Read()
		if err != nil {
			log.Printf("%s: encoder channel B: %v", name, err)
			return err
		}
		q.Edge(av, bv, time.Now())
	}
}
