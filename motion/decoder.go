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

package motion

import (
	"fmt"
	"sync/atomic"
	"time"
)

// EventQueueDepth is the number of watch events that can be pending.
const EventQueueDepth = 10

// Number of attempts to read a count that is consistent with the events.
const pollAttempts = 3

// Counter is a bounded up/down counter that is cleared when it reaches
// one of its watch limits.
type Counter interface {
	Count() (int, error)
}

// Decoder accumulates the total ticks of an encoder from a bounded counter.
// Each time the counter reaches a watch limit, the limit value is sent as an
// event; the events are summed into an overflow total, and the total
// ticks are the overflow plus the current count.
// The total is consistent across counter wraps as long as the events
// are drained before the counter traverses its full range again.
type Decoder struct {
	name     string
	counter  Counter
	events   chan int
	overflow int64
	wait     time.Duration
	dropped  atomic.Uint64
}

// NewDecoder creates a Decoder reading the counter provided.
// The counter's watch limit handler must be set to OnReach.
func NewDecoder(name string, c Counter) *Decoder {
	d := new(Decoder)
	d.name = name
	d.counter = c
	d.events = make(chan int, EventQueueDepth)
	return d
}

// SetWait sets how long Poll waits for a watch event before reading
// the counter. A zero wait never blocks.
func (d *Decoder) SetWait(w time.Duration) {
	d.wait = w
}

// OnReach is the watch limit handler. It never blocks: if the event
// queue is full the event is lost.
func (d *Decoder) OnReach(v int) {
	select {
	case d.events <- v:
	default:
		d.dropped.Add(1)
	}
}

// Dropped returns the number of watch events lost.
func (d *Decoder) Dropped() uint64 {
	return d.dropped.Load()
}

// Poll returns the total signed ticks since the decoder was started.
func (d *Decoder) Poll() (int64, error) {
	d.drain(d.wait)
	for i := 1; ; i++ {
		c, err := d.counter.Count()
		if err != nil {
			return 0, fmt.Errorf("%s: counter: %w", d.name, err)
		}
		// A limit reached after the drain clears the count, so if an
		// event has arrived the count must be read again.
		if len(d.events) == 0 || i == pollAttempts {
			return d.overflow + int64(c), nil
		}
		d.drain(0)
	}
}

// drain adds the pending events to the overflow total, waiting
// up to w for the first event.
func (d *Decoder) drain(w time.Duration) {
	if w > 0 {
		t := time.NewTimer(w)
		select {
		case v := <-d.events:
			d.overflow += int64(v)
		case <-t.C:
		}
		t.Stop()
	}
	for {
		select {
		case v := <-d.events:
			d.overflow += int64(v)
		default:
			return
		}
	}
}
