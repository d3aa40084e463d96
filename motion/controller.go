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
	"sync"
	"time"
)

// DefaultPoll is the publish period, and the decoder event wait of a
// single axis.
const DefaultPoll = 10 * time.Millisecond

// Axis bundles the decoder, publisher and dispatcher of one
// encoder/stepper pair.
type Axis struct {
	ID         AxisID
	decoder    *Decoder
	publisher  *Publisher
	dispatcher *Dispatcher
	deltas     chan int64
}

// NewAxis creates an axis reading the counter and driving out.
// The counter's limit events must be delivered to OnReach.
func NewAxis(id AxisID, c Counter, out Pulser, sel *Selector) *Axis {
	a := &Axis{ID: id, deltas: make(chan int64, DeltaQueueDepth)}
	a.decoder = NewDecoder(id.String(), c)
	a.publisher = NewPublisher(id.String(), a.decoder, a.deltas)
	a.dispatcher = NewDispatcher(id, a.deltas, sel, out)
	return a
}

// OnReach accepts a counter limit event. It is safe to call from
// an edge handler.
func (a *Axis) OnReach(v int) {
	a.decoder.OnReach(v)
}

// Decoder returns the axis decoder.
func (a *Axis) Decoder() *Decoder {
	return a.decoder
}

// Publisher returns the axis publisher.
func (a *Axis) Publisher() *Publisher {
	return a.publisher
}

// Dispatcher returns the axis dispatcher.
func (a *Axis) Dispatcher() *Dispatcher {
	return a.dispatcher
}

// AxisStatus is a snapshot of the counters of one axis.
type AxisStatus struct {
	Axis      AxisID
	Total     int64
	Sent      uint64
	Dropped   uint64 // Deltas discarded on a full queue
	Lost      uint64 // Limit events discarded on a full queue
	Bursts    uint64
	Pulses    uint64
	Failures  uint64
	LastError string
}

// Status returns the axis counters.
func (a *Axis) Status() AxisStatus {
	s := AxisStatus{
		Axis:     a.ID,
		Total:    a.publisher.Total(),
		Sent:     a.publisher.Sent(),
		Dropped:  a.publisher.Dropped(),
		Lost:     a.decoder.Dropped(),
		Bursts:   a.dispatcher.Bursts(),
		Pulses:   a.dispatcher.Pulses(),
		Failures: a.dispatcher.Failures(),
	}
	if err := a.dispatcher.LastError(); err != nil {
		s.LastError = err.Error()
	}
	return s
}

// Options controls how the controller runs the publishers.
type Options struct {
	Poll    time.Duration // Publish period; DefaultPoll if zero
	PerAxis bool          // Run one publisher goroutine per axis
}

// Controller owns the axes, the speed selector and the settings store.
type Controller struct {
	selector *Selector
	store    Store
	mu       sync.Mutex
	axes     []*Axis
	started  bool
}

// NewController creates a controller. The store may be nil, in which
// case settings changes are not persisted.
func NewController(sel *Selector, st Store) *Controller {
	return &Controller{selector: sel, store: st}
}

// Selector returns the speed selector.
func (c *Controller) Selector() *Selector {
	return c.selector
}

// AddAxis adds an axis. Axes must be added before Start.
func (c *Controller) AddAxis(a *Axis) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("axis %s: controller already started", a.ID)
	}
	for _, e := range c.axes {
		if e.ID == a.ID {
			return fmt.Errorf("axis %s: duplicate axis", a.ID)
		}
	}
	c.axes = append(c.axes, a)
	return nil
}

// Axes returns the axes in the order they were added.
func (c *Controller) Axes() []*Axis {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Axis(nil), c.axes...)
}

// Start starts the selector, the dispatchers and the publishers.
// A single axis, or PerAxis, runs a publisher per axis that waits up
// to the poll period for limit events. Otherwise one loop publishes
// all axes in turn, sleeping for the poll period between rounds.
func (c *Controller) Start(opt Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("controller already started")
	}
	if len(c.axes) == 0 {
		return fmt.Errorf("no axes configured")
	}
	c.started = true
	poll := opt.Poll
	if poll <= 0 {
		poll = DefaultPoll
	}
	c.selector.Start()
	for _, a := range c.axes {
		go a.dispatcher.Run()
	}
	if len(c.axes) == 1 || opt.PerAxis {
		for _, a := range c.axes {
			a.decoder.SetWait(poll)
			go a.publisher.Run(0)
		}
		return nil
	}
	go c.publishAll(append([]*Axis(nil), c.axes...), poll)
	return nil
}

func (c *Controller) publishAll(axes []*Axis, poll time.Duration) {
	for {
		for _, a := range axes {
			if _, _, err := a.publisher.Publish(); err != nil {
				Logf("%s: publish: %v", a.ID, err)
			}
		}
		time.Sleep(poll)
	}
}

// Update applies a settings change and persists the changed values.
func (c *Controller) Update(u Update) error {
	return c.selector.Apply(u, c.store)
}

// Status is a snapshot of the controller.
type Status struct {
	Tier        Tier
	Settings    Settings
	State       SelectorState
	Resolutions uint64
	Axes        []AxisStatus
}

// Status returns the current state of the selector and the axes.
func (c *Controller) Status() Status {
	var s Status
	s.Tier, s.Settings = c.selector.Snapshot()
	s.State = c.selector.State()
	s.Resolutions = c.selector.Resolutions()
	for _, a := range c.Axes() {
		s.Axes = append(s.Axes, a.Status())
	}
	return s
}
