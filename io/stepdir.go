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
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

const stepDirQueueSize = 4 // Size of queue for requests

// ErrAborted is returned for a pulse burst that was stopped before completion.
var ErrAborted = errors.New("pulse burst aborted")

type burst struct {
	count uint64
	hz    uint32
	done  chan error
}

// StepDir drives a stepper motor driver through a step pulse output
// and a direction output.
// Pulses are generated in a background goroutine; Pulse queues a burst
// and waits for it to complete.
type StepDir struct {
	step, dir Setter
	invertDir bool
	bChan     chan burst
	stopChan  chan bool
	pulses    atomic.Uint64 // Total pulses emitted
}

// NewStepDir creates and initialises a StepDir, using the step and
// direction outputs provided.
// If invert is set, clockwise is signalled as a high direction level.
func NewStepDir(step, dir Setter, invert bool) *StepDir {
	s := new(StepDir)
	s.step = step
	s.dir = dir
	s.invertDir = invert
	s.bChan = make(chan burst, stepDirQueueSize)
	s.stopChan = make(chan bool)
	s.step.Set(0)
	go s.handler()
	return s
}

// SetDirection sets the direction output. Clockwise is a low level
// unless the output is inverted.
func (s *StepDir) SetDirection(cw bool) error {
	v := 1
	if cw != s.invertDir {
		v = 0
	}
	return s.dir.Set(v)
}

// Pulse emits count pulses at hz pulses per second, and returns when the
// burst is complete.
func (s *StepDir) Pulse(count uint64, hz uint32) error {
	if count == 0 {
		return nil
	}
	if hz == 0 {
		return fmt.Errorf("pulse: invalid frequency")
	}
	c := make(chan error, 1)
	s.bChan <- burst{count: count, hz: hz, done: c}
	return <-c
}

// Pulses returns the total number of pulses emitted.
func (s *StepDir) Pulses() uint64 {
	return s.pulses.Load()
}

// Stop aborts the current burst.
func (s *StepDir) Stop() {
	s.stopChan <- true
}

// Close stops the handler and sets the step output low.
func (s *StepDir) Close() {
	close(s.stopChan)
}

// goroutine handler
// Listens on the burst channel, and runs the pulse train.
func (s *StepDir) handler() {
	for {
		select {
		case b := <-s.bChan:
			closed, err := s.run(b.count, b.hz)
			b.done <- err
			if closed {
				return
			}
		case stop := <-s.stopChan:
			if !stop {
				// channel is closed, so kill handler.
				s.step.Set(0)
				return
			}
		}
	}
}

// run generates the pulses of one burst, using a ticker at the
// burst frequency. The step output is raised on each tick and lowered
// half way through the period.
func (s *StepDir) run(count uint64, hz uint32) (bool, error) {
	period := time.Second / time.Duration(hz)
	if period <= 0 {
		period = 1
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for i := uint64(0); i < count; i++ {
		select {
		case stop := <-s.stopChan:
			s.step.Set(0)
			return !stop, ErrAborted
		case <-ticker.C:
		}
		if err := s.step.Set(1); err != nil {
			return false, err
		}
		time.Sleep(period / 2)
		if err := s.step.Set(0); err != nil {
			return false, err
		}
		s.pulses.Add(1)
	}
	return false, nil
}
