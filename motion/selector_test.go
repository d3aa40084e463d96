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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorBounce(t *testing.T) {
	l := captureLog(t)
	sw := newSwitches(0b01)
	sel := NewSelector(sw.sw1, sw.sw2, DefaultSettings(), DefaultSettle)
	sel.Start()
	require.Eventually(t, func() bool { return sel.Resolutions() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, X1, sel.Tier())
	assert.Equal(t, Idle, sel.State())

	for _, code := range []int{0b00, 0b01, 0b11, 0b10} {
		sw.set(code)
		sel.Interrupt()
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, Pending, sel.State())
	require.Eventually(t, func() bool { return sel.Resolutions() == 2 }, time.Second, time.Millisecond)
	time.Sleep(3 * DefaultSettle)
	assert.Equal(t, uint64(2), sel.Resolutions())
	assert.Equal(t, X100, sel.Tier())
	assert.Equal(t, Idle, sel.State())
	assert.Equal(t, 1, l.count("tier x100"))
}

func TestSelectorUnknownCode(t *testing.T) {
	captureLog(t)
	sw := newSwitches(0b11)
	sel := NewSelector(sw.sw1, sw.sw2, DefaultSettings(), DefaultSettle)
	x1, x10, x100 := newLevel(0), newLevel(0), newLevel(0)
	sel.SetIndicators(false, x1, x10, x100)
	sel.resolve()
	assert.Equal(t, X10, sel.Tier())
	assert.Equal(t, []int{0, 1, 0}, []int{x1.get(), x10.get(), x100.get()})

	sw.set(0b00)
	sel.resolve()
	assert.Equal(t, X10, sel.Tier())
	assert.Equal(t, []int{0, 0, 0}, []int{x1.get(), x10.get(), x100.get()})
	assert.Equal(t, uint64(2), sel.Resolutions())
}

func TestSelectorActiveLow(t *testing.T) {
	captureLog(t)
	sw := newSwitches(0b10)
	sel := NewSelector(sw.sw1, sw.sw2, DefaultSettings(), DefaultSettle)
	x1, x10, x100 := newLevel(0), newLevel(0), newLevel(0)
	sel.SetIndicators(true, x1, x10, x100)
	assert.Equal(t, []int{1, 1, 1}, []int{x1.get(), x10.get(), x100.get()})
	sel.resolve()
	assert.Equal(t, []int{1, 1, 0}, []int{x1.get(), x10.get(), x100.get()})
}

func TestSetLoggerWhileRunning(t *testing.T) {
	l := captureLog(t)
	sw := newSwitches(0b01)
	sel := NewSelector(sw.sw1, sw.sw2, DefaultSettings(), 0)
	sel.Start()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			sw.set([]int{0b01, 0b11, 0b10}[i%3])
			sel.Interrupt()
			time.Sleep(100 * time.Microsecond)
		}
	}()
	var other logs
	for i := 0; i < 50; i++ {
		prev := SetLogger(func(format string, v ...interface{}) {
			other.mu.Lock()
			other.lines = append(other.lines, format)
			other.mu.Unlock()
		})
		SetLogger(prev)
	}
	<-done
	require.Eventually(t, func() bool { return sel.State() == Idle }, time.Second, time.Millisecond)
	assert.NotZero(t, l.count("speed switch: code"))
}

// hookInput is a switch input that runs a function on its first read.
type hookInput struct {
	*level
	once sync.Once
	hook func()
}

func (h *hookInput) Read() (int, error) {
	h.once.Do(h.hook)
	return h.level.Read()
}

func TestSelectorEdgeDuringResolve(t *testing.T) {
	captureLog(t)
	sw1 := &hookInput{level: newLevel(0)}
	sel := NewSelector(sw1, newLevel(1), DefaultSettings(), 30*time.Millisecond)
	sw1.hook = sel.Interrupt
	sel.Start()
	require.Eventually(t, func() bool { return sel.Resolutions() == 1 }, time.Second, time.Millisecond)
	// The edge arrived after the drain, so another resolution is due.
	assert.Equal(t, Pending, sel.State())
	require.Eventually(t, func() bool { return sel.Resolutions() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return sel.State() == Idle }, time.Second, time.Millisecond)
}

type failingOutput struct{}

func (failingOutput) Set(int) error {
	return errors.New("gpio write failed")
}

func TestSelectorIndicatorFailure(t *testing.T) {
	l := captureLog(t)
	sw := newSwitches(0b11)
	sel := NewSelector(sw.sw1, sw.sw2, DefaultSettings(), DefaultSettle)
	x1 := newLevel(0)
	sel.SetIndicators(false, x1, failingOutput{}, newLevel(0))
	sel.resolve()
	assert.Equal(t, X10, sel.Tier())
	assert.Equal(t, 0, x1.get())
	// Both the off and the on writes fail, at set up and at resolution.
	assert.Equal(t, 3, l.count("warning: indicator x10: gpio write failed"))
}
