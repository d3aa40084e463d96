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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pin records the values written to an output.
type pin struct {
	mu     sync.Mutex
	values []int
	rises  int
}

func (p *pin) Set(v int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v == 1 && (len(p.values) == 0 || p.values[len(p.values)-1] == 0) {
		p.rises++
	}
	p.values = append(p.values, v)
	return nil
}

func (p *pin) last() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[len(p.values)-1]
}

func (p *pin) pulses() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rises
}

func TestStepDirPulse(t *testing.T) {
	step, dir := &pin{}, &pin{}
	s := NewStepDir(step, dir, false)
	defer s.Close()

	require.NoError(t, s.SetDirection(true))
	assert.Equal(t, 0, dir.last())
	require.NoError(t, s.Pulse(25, 20000))
	assert.Equal(t, 25, step.pulses())
	assert.Equal(t, 0, step.last())
	assert.Equal(t, uint64(25), s.Pulses())

	require.NoError(t, s.SetDirection(false))
	assert.Equal(t, 1, dir.last())
	require.NoError(t, s.Pulse(10, 20000))
	assert.Equal(t, 35, step.pulses())
	assert.Equal(t, uint64(35), s.Pulses())
}

func TestStepDirInvert(t *testing.T) {
	step, dir := &pin{}, &pin{}
	s := NewStepDir(step, dir, true)
	defer s.Close()
	require.NoError(t, s.SetDirection(true))
	assert.Equal(t, 1, dir.last())
}

func TestStepDirInvalid(t *testing.T) {
	s := NewStepDir(&pin{}, &pin{}, false)
	defer s.Close()
	assert.Error(t, s.Pulse(10, 0))
	assert.NoError(t, s.Pulse(0, 0))
}

func TestStepDirStop(t *testing.T) {
	step := &pin{}
	s := NewStepDir(step, &pin{}, false)
	defer s.Close()
	done := make(chan error, 1)
	go func() {
		done <- s.Pulse(1000000, 1000)
	}()
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrAborted)
	case <-time.After(time.Second):
		t.Fatal("burst was not aborted")
	}
	assert.Less(t, s.Pulses(), uint64(1000000))
	assert.Equal(t, 0, step.last())
}

type fakePWM struct {
	period  time.Duration
	duty    int
	enables []bool
}

func (f *fakePWM) Set(p time.Duration, d int) error {
	f.period = p
	f.duty = d
	return nil
}

func (f *fakePWM) Enable(on bool) error {
	f.enables = append(f.enables, on)
	return nil
}

func TestPwmPulser(t *testing.T) {
	pwm, dir := &fakePWM{}, &pin{}
	p := NewPwmPulser(pwm, dir, false)
	var slept time.Duration
	p.sleep = func(d time.Duration) { slept = d }

	require.NoError(t, p.SetDirection(false))
	assert.Equal(t, 1, dir.last())
	require.NoError(t, p.Pulse(3000, 1000))
	assert.Equal(t, time.Millisecond, pwm.period)
	assert.Equal(t, 50, pwm.duty)
	assert.Equal(t, 3*time.Second, slept)
	assert.Equal(t, []bool{true, false}, pwm.enables)
	assert.Error(t, p.Pulse(1, 0))
}
