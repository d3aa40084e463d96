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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrZeroFrequency is returned for a burst at a tier with no frequency set.
var ErrZeroFrequency = errors.New("tier frequency is zero")

// Pulser is the step pulse and direction output of an axis.
type Pulser interface {
	// SetDirection sets the direction output.
	SetDirection(cw bool) error
	// Pulse emits count pulses at hz pulses per second, returning
	// when the last pulse has been sent.
	Pulse(count uint64, hz uint32) error
}

// Burst is one pulse burst command.
type Burst struct {
	Clockwise bool
	Count     uint64
	Frequency uint32
	Tier      Tier
}

func (b Burst) String() string {
	d := "ccw"
	if b.Clockwise {
		d = "cw"
	}
	return fmt.Sprintf("%d pulses %s at %dHz (%s)", b.Count, d, b.Frequency, b.Tier)
}

// NewBurst creates the burst for a step delta, using the tier and settings.
// A positive delta is clockwise.
func NewBurst(delta int64, t Tier, s Settings) Burst {
	mag := delta
	if mag < 0 {
		mag = -mag
	}
	return Burst{
		Clockwise: delta > 0,
		Count:     uint64(mag) * uint64(s.StepBasic) * t.Multiplier(),
		Frequency: s.Frequency(t),
		Tier:      t,
	}
}

// BurstError is a failure to transmit a burst on an axis.
type BurstError struct {
	Axis  AxisID
	Burst Burst
	Err   error
}

func (e *BurstError) Error() string {
	return fmt.Sprintf("axis %s: burst of %s: %v", e.Axis, e.Burst, e.Err)
}

func (e *BurstError) Unwrap() error {
	return e.Err
}

// Dispatcher turns step deltas into pulse bursts for one axis.
// Each burst runs to completion before the next delta is taken.
type Dispatcher struct {
	axis     AxisID
	in       <-chan int64
	selector *Selector
	out      Pulser
	bursts   atomic.Uint64
	pulses   atomic.Uint64
	failures atomic.Uint64
	mu       sync.Mutex
	lastErr  error
}

// NewDispatcher creates a Dispatcher reading deltas from in.
func NewDispatcher(axis AxisID, in <-chan int64, sel *Selector, out Pulser) *Dispatcher {
	return &Dispatcher{axis: axis, in: in, selector: sel, out: out}
}

// Dispatch transmits the burst for one delta. The tier and settings are
// read once, before the burst starts; a later tier change does not
// alter a burst in progress.
func (d *Dispatcher) Dispatch(delta int64) (Burst, error) {
	if delta == 0 {
		return Burst{}, nil
	}
	t, s := d.selector.Snapshot()
	b := NewBurst(delta, t, s)
	if b.Frequency == 0 {
		return b, d.fail(b, ErrZeroFrequency)
	}
	if err := d.out.SetDirection(b.Clockwise); err != nil {
		return b, d.fail(b, fmt.Errorf("direction: %w", err))
	}
	if err := d.out.Pulse(b.Count, b.Frequency); err != nil {
		return b, d.fail(b, err)
	}
	d.bursts.Add(1)
	d.pulses.Add(b.Count)
	return b, nil
}

func (d *Dispatcher) fail(b Burst, err error) error {
	e := &BurstError{Axis: d.axis, Burst: b, Err: err}
	d.failures.Add(1)
	d.mu.Lock()
	d.lastErr = e
	d.mu.Unlock()
	return e
}

// Run dispatches deltas until the input channel is closed.
// A failed burst is logged, and the next delta is processed as normal.
func (d *Dispatcher) Run() {
	for delta := range d.in {
		if _, err := d.Dispatch(delta); err != nil {
			Logf("%s: %v", d.axis, err)
		}
	}
}

// Bursts returns the number of completed bursts.
func (d *Dispatcher) Bursts() uint64 {
	return d.bursts.Load()
}

// Pulses returns the number of pulses in completed bursts.
func (d *Dispatcher) Pulses() uint64 {
	return d.pulses.Load()
}

// Failures returns the number of failed bursts.
func (d *Dispatcher) Failures() uint64 {
	return d.failures.Load()
}

// LastError returns the most recent burst failure, or nil.
func (d *Dispatcher) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}
