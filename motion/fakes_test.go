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
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// logs captures the motion log for the duration of a test.
type logs struct {
	mu    sync.Mutex
	lines []string
}

func captureLog(t *testing.T) *logs {
	l := new(logs)
	old := SetLogger(func(format string, v ...interface{}) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.lines = append(l.lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { SetLogger(old) })
	return l
}

func (l *logs) count(substr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range l.lines {
		if strings.Contains(s, substr) {
			n++
		}
	}
	return n
}

// counter is a settable hardware counter.
type counter struct {
	mu    sync.Mutex
	value int
	reads int
	err   error
	hook  func(read int) // Called on each read, before the value is returned
}

func (c *counter) Count() (int, error) {
	c.mu.Lock()
	c.reads++
	r := c.reads
	h := c.hook
	c.mu.Unlock()
	if h != nil {
		h(r)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.err
}

func (c *counter) set(v int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
}

// reach clears the count and reports the limit, as the counter does
// when it reaches a watch limit.
func (c *counter) reach(limit int, onReach func(int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = 0
	onReach(limit)
}

// pulser records the bursts sent to it.
type pulser struct {
	mu     sync.Mutex
	cw     bool
	bursts []Burst
	err    error
}

func (p *pulser) SetDirection(cw bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cw = cw
	return nil
}

func (p *pulser) Pulse(count uint64, hz uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		err := p.err
		p.err = nil
		return err
	}
	p.bursts = append(p.bursts, Burst{Clockwise: p.cw, Count: count, Frequency: hz})
	return nil
}

func (p *pulser) sent() []Burst {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Burst(nil), p.bursts...)
}

// level is a switch input or indicator output.
type level struct {
	v atomic.Int32
}

func newLevel(v int) *level {
	l := new(level)
	l.v.Store(int32(v))
	return l
}

func (l *level) Read() (int, error) {
	return int(l.v.Load()), nil
}

func (l *level) Set(v int) error {
	l.v.Store(int32(v))
	return nil
}

func (l *level) get() int {
	return int(l.v.Load())
}

// switches drives the two speed switch inputs.
type switches struct {
	sw1, sw2 *level
}

func newSwitches(code int) *switches {
	return &switches{sw1: newLevel(code >> 1 & 1), sw2: newLevel(code & 1)}
}

func (s *switches) set(code int) {
	s.sw1.Set(code >> 1 & 1)
	s.sw2.Set(code & 1)
}

var errNotFound = errors.New("not found")

// memStore is an in-memory settings store.
type memStore struct {
	mu     sync.Mutex
	values map[string]uint32
	writes []string
	errs   map[string]error
}

func newMemStore() *memStore {
	return &memStore{values: map[string]uint32{}, errs: map[string]error{}}
}

func (m *memStore) GetU32(key string) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return 0, errNotFound
	}
	return v, nil
}

func (m *memStore) SetU32(key string, v uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[key]; err != nil {
		return err
	}
	m.values[key] = v
	m.writes = append(m.writes, key)
	return nil
}

func u32(v uint32) *uint32 {
	return &v
}

// resolvedSelector returns a selector already resolved to the switch code.
func resolvedSelector(code int, s Settings) *Selector {
	sw := newSwitches(code)
	sel := NewSelector(sw.sw1, sw.sw2, s, DefaultSettle)
	sel.resolve()
	return sel
}
