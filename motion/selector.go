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
	"sync/atomic"
	"time"
)

// DefaultSettle is the delay between a switch edge and reading the switch.
const DefaultSettle = 20 * time.Millisecond

// Input is a digital input that can be read without waiting.
type Input interface {
	Read() (int, error)
}

// Output is a digital output.
type Output interface {
	Set(int) error
}

// SelectorState is the debounce state of the Selector.
type SelectorState int32

const (
	Idle    SelectorState = iota // Waiting for a switch edge
	Pending                      // Edge seen, waiting for the switch to settle
)

func (s SelectorState) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}

// Selector tracks the speed tier selected by a two bit switch.
// A switch edge only schedules a resolution; the switch is read once it
// has settled, and any further edges seen while settling are absorbed
// into that single resolution.
// The Selector also owns the motion settings, so that the tier and its
// frequency are always read together under the one lock.
type Selector struct {
	mu          sync.Mutex // Guards tier and settings
	tier        Tier
	settings    Settings
	sw1, sw2    Input
	leds        [3]Output // Indexed by Tier
	activeLow   bool
	settle      time.Duration
	edge        chan struct{}
	stateMu     sync.Mutex // Orders state changes with queued edges
	state       SelectorState
	resolutions atomic.Uint64
}

// NewSelector creates a Selector reading switch inputs sw1 (high bit) and sw2,
// starting at tier x1 with the settings provided.
func NewSelector(sw1, sw2 Input, settings Settings, settle time.Duration) *Selector {
	s := new(Selector)
	s.sw1 = sw1
	s.sw2 = sw2
	s.settings = settings
	s.tier = X1
	s.settle = settle
	s.edge = make(chan struct{}, 1)
	return s
}

// SetIndicators sets the tier indicator outputs, one for each tier.
// If activeLow is set, an indicator is on when the output is 0.
// SetIndicators must be called before Start.
func (s *Selector) SetIndicators(activeLow bool, x1, x10, x100 Output) {
	s.activeLow = activeLow
	s.leds = [3]Output{x1, x10, x100}
	s.indicate(X1, false)
}

// Interrupt signals that an edge was seen on a switch input.
// It does not wait for the resolution, and is safe to call from an
// edge handler.
func (s *Selector) Interrupt() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = Pending
	select {
	case s.edge <- struct{}{}:
	default:
		// A resolution is already scheduled.
	}
}

// Start runs an initial resolution so that the tier matches the switch,
// and starts the resolver goroutine.
func (s *Selector) Start() {
	s.Interrupt()
	go s.run()
}

// State returns the current debounce state.
func (s *Selector) State() SelectorState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Resolutions returns the number of times the switch has been read.
func (s *Selector) Resolutions() uint64 {
	return s.resolutions.Load()
}

// Tier returns the current tier.
func (s *Selector) Tier() Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier
}

// Settings returns the current settings.
func (s *Selector) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Snapshot returns the current tier and settings as one consistent read.
func (s *Selector) Snapshot() (Tier, Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier, s.settings
}

// Apply changes the settings as requested by u, and saves each changed
// value to the store. The in-memory settings are always updated; any
// failures to save are logged and returned.
func (s *Selector) Apply(u Update, st Store) error {
	s.mu.Lock()
	changed := u.apply(&s.settings)
	current := s.settings
	s.mu.Unlock()
	return persist(st, current, changed)
}

// run is the resolver goroutine.
func (s *Selector) run() {
	for range s.edge {
		time.Sleep(s.settle)
		// Edges that arrived while settling are covered by this read.
		select {
		case <-s.edge:
		default:
		}
		s.resolve()
		// An edge queued after the drain needs another resolution.
		s.stateMu.Lock()
		if len(s.edge) == 0 {
			s.state = Idle
		}
		s.stateMu.Unlock()
	}
}

// resolve reads the switch and updates the tier and indicators.
func (s *Selector) resolve() {
	code, err := s.code()
	if err != nil {
		warnf("speed switch: %v", err)
		return
	}
	s.mu.Lock()
	t, ok := ResolveCode(code, s.tier)
	s.tier = t
	s.mu.Unlock()
	s.resolutions.Add(1)
	s.indicate(t, ok)
	if ok {
		Logf("speed switch: code %02b, tier %s", code, t)
	} else {
		Logf("speed switch: code %02b not recognised, tier %s unchanged", code, t)
	}
}

func (s *Selector) code() (int, error) {
	v1, err := s.sw1.Read()
	if err != nil {
		return 0, fmt.Errorf("switch 1: %w", err)
	}
	v2, err := s.sw2.Read()
	if err != nil {
		return 0, fmt.Errorf("switch 2: %w", err)
	}
	return (v1&1)<<1 | v2&1, nil
}

// indicate turns off all the indicators, then turns on the one for
// the tier if on is set.
func (s *Selector) indicate(t Tier, on bool) {
	off, lit := 0, 1
	if s.activeLow {
		off, lit = 1, 0
	}
	for i, l := range s.leds {
		if l != nil {
			if err := l.Set(off); err != nil {
				warnf("indicator %s: %v", Tier(i), err)
			}
		}
	}
	if on && s.leds[t] != nil {
		if err := s.leds[t].Set(lit); err != nil {
			warnf("indicator %s: %v", t, err)
		}
	}
}
