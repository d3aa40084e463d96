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

// rotate feeds n full A pulses into q, 1ms apart, with B held at b.
func rotate(q *Quadrature, start time.Time, n, b int) time.Time {
	t := start
	for i := 0; i < n; i++ {
		t = t.Add(time.Millisecond)
		q.Edge(1, b, t)
		t = t.Add(time.Millisecond)
		q.Edge(0, b, t)
	}
	return t
}

func TestQuadratureDirection(t *testing.T) {
	q := NewQuadrature(100, DefaultGlitch)
	t0 := time.Now()
	q.Edge(0, 1, t0) // initial level
	t1 := rotate(q, t0, 5, 1)
	c, err := q.Count()
	require.NoError(t, err)
	// Each pulse is a decrement (rising) and an increment (falling).
	assert.Equal(t, 0, c)

	// Single edges.
	t1 = t1.Add(time.Millisecond)
	q.Edge(1, 1, t1)
	c, _ = q.Count()
	assert.Equal(t, -1, c)
	t1 = t1.Add(time.Millisecond)
	q.Edge(0, 0, t1)
	c, _ = q.Count()
	assert.Equal(t, -2, c, "falling edge with B low is inverted")
	t1 = t1.Add(time.Millisecond)
	q.Edge(1, 0, t1)
	c, _ = q.Count()
	assert.Equal(t, -1, c, "rising edge with B low is inverted")
}

func TestQuadratureIgnoresRepeatedLevel(t *testing.T) {
	q := NewQuadrature(100, 0)
	t0 := time.Now()
	q.Edge(1, 1, t0)
	q.Edge(0, 1, t0.Add(time.Millisecond))
	q.Edge(0, 1, t0.Add(2*time.Millisecond))
	q.Edge(0, 1, t0.Add(3*time.Millisecond))
	c, _ := q.Count()
	assert.Equal(t, 1, c)
}

func TestQuadratureLimits(t *testing.T) {
	var mu sync.Mutex
	var events []int
	q := NewQuadrature(3, 0)
	q.OnReach(func(v int) {
		mu.Lock()
		events = append(events, v)
		mu.Unlock()
	})
	t0 := time.Now()
	q.Edge(1, 1, t0)
	// Falling edges with B high increment, rising edges with B low increment.
	tm := t0
	for i := 0; i < 4; i++ {
		tm = tm.Add(time.Millisecond)
		q.Edge(0, 1, tm)
		tm = tm.Add(time.Millisecond)
		q.Edge(1, 0, tm)
	}
	// 8 increments: limit reached at 3 and 6, leaving 2.
	c, _ := q.Count()
	assert.Equal(t, 2, c)
	assert.Equal(t, []int{3, 3}, events)

	events = nil
	for i := 0; i < 3; i++ {
		tm = tm.Add(time.Millisecond)
		q.Edge(0, 0, tm)
		tm = tm.Add(time.Millisecond)
		q.Edge(1, 1, tm)
	}
	// 6 decrements from 2: -3 reached after 5, leaving -1.
	c, _ = q.Count()
	assert.Equal(t, -1, c)
	assert.Equal(t, []int{-3}, events)
}

func TestQuadratureGlitch(t *testing.T) {
	q := NewQuadrature(100, time.Microsecond)
	t0 := time.Now()
	q.Edge(1, 1, t0)
	t1 := t0.Add(time.Millisecond)
	q.Edge(0, 1, t1)
	c, _ := q.Count()
	require.Equal(t, 1, c)
	// A 500ns pulse is rejected entirely.
	q.Edge(1, 1, t1.Add(time.Millisecond))
	q.Edge(0, 1, t1.Add(time.Millisecond+500*time.Nanosecond))
	c, _ = q.Count()
	assert.Equal(t, 1, c)
}

func TestQuadratureGlitchAtLimit(t *testing.T) {
	var events []int
	q := NewQuadrature(3, time.Microsecond)
	q.OnReach(func(v int) { events = append(events, v) })
	t0 := time.Now()
	q.Edge(1, 1, t0)
	q.Edge(0, 1, t0.Add(1*time.Millisecond))
	q.Edge(1, 0, t0.Add(2*time.Millisecond))
	q.Edge(0, 1, t0.Add(3*time.Millisecond))
	c, _ := q.Count()
	require.Equal(t, 0, c)
	require.Equal(t, []int{3}, events)

	// The edge that reached the limit ends a 500ns pulse, so the
	// limit event is withdrawn and the count restored.
	q.Edge(1, 0, t0.Add(3*time.Millisecond+500*time.Nanosecond))
	c, _ = q.Count()
	assert.Equal(t, 2, c)
	assert.Equal(t, []int{3, -3}, events)

	q.Edge(0, 1, t0.Add(5*time.Millisecond))
	c, _ = q.Count()
	assert.Equal(t, 0, c)
	assert.Equal(t, []int{3, -3, 3}, events)
}

type fakeEdges struct {
	levels chan int
	b      int
}

func (f *fakeEdges) Get() (int, error) {
	v, ok := <-f.levels
	if !ok {
		return 0, assert.AnError
	}
	return v, nil
}

func (f *fakeEdges) Read() (int, error) {
	return f.b, nil
}

func TestQuadratureWatch(t *testing.T) {
	q := NewQuadrature(100, 0)
	f := &fakeEdges{levels: make(chan int, 10), b: 1}
	f.levels <- 1
	f.levels <- 0
	f.levels <- 1
	f.levels <- 0
	close(f.levels)
	err := q.Watch("test", f, f)
	require.Error(t, err)
	c, _ := q.Count()
	// The first edge only establishes the level.
	assert.Equal(t, 1, c)
}
