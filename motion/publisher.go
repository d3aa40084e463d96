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
	"sync/atomic"
	"time"
)

// DeltaQueueDepth is the capacity of the step delta channel of an axis.
const DeltaQueueDepth = 2

// Publisher sends the change in an axis's total ticks to the dispatcher.
// A delta that cannot be queued is dropped; the published total is
// advanced anyway, so the movement is lost rather than retried.
type Publisher struct {
	name     string
	decoder  *Decoder
	out      chan<- int64
	previous int64
	total    atomic.Int64
	sent     atomic.Uint64
	dropped  atomic.Uint64
}

// NewPublisher creates a Publisher polling the decoder and sending deltas on out.
func NewPublisher(name string, d *Decoder, out chan<- int64) *Publisher {
	return &Publisher{name: name, decoder: d, out: out}
}

// Publish runs one publish cycle. It returns the delta, and whether
// the delta was queued.
func (p *Publisher) Publish() (int64, bool, error) {
	total, err := p.decoder.Poll()
	if err != nil {
		return 0, false, err
	}
	delta := total - p.previous
	if delta == 0 {
		return 0, false, nil
	}
	p.previous = total
	p.total.Store(total)
	select {
	case p.out <- delta:
		p.sent.Add(1)
		return delta, true, nil
	default:
		p.dropped.Add(1)
		return delta, false, nil
	}
}

// Total returns the total ticks at the last publish.
func (p *Publisher) Total() int64 {
	return p.total.Load()
}

// Sent returns the number of deltas queued.
func (p *Publisher) Sent() uint64 {
	return p.sent.Load()
}

// Dropped returns the number of deltas discarded because the queue was full.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Run publishes forever, sleeping for period between cycles.
// Errors are logged and the loop continues.
func (p *Publisher) Run(period time.Duration) {
	for {
		if _, _, err := p.Publish(); err != nil {
			Logf("%s: publish: %v", p.name, err)
		}
		if period > 0 {
			time.Sleep(period)
		}
	}
}
