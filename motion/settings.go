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
)

// Store keys for the motion settings.
const (
	KeyFreqX1    = "freq_set_x1"
	KeyFreqX10   = "freq_set_x10"
	KeyFreqX100  = "freq_set_x100"
	KeyStepBasic = "step_basic_set"
)

// Compiled in defaults, used when the store has no value.
const (
	DefaultFreqX1    = 3000
	DefaultFreqX10   = 15000
	DefaultFreqX100  = 18000
	DefaultStepBasic = 64
)

// Store is the persistent key/value storage holding the settings.
type Store interface {
	GetU32(key string) (uint32, error)
	SetU32(key string, value uint32) error
}

// Settings holds the pulse frequency of each tier, and the base
// number of pulses generated for each encoder tick.
type Settings struct {
	FreqX1    uint32
	FreqX10   uint32
	FreqX100  uint32
	StepBasic uint32
}

// DefaultSettings returns the compiled in settings.
func DefaultSettings() Settings {
	return Settings{
		FreqX1:    DefaultFreqX1,
		FreqX10:   DefaultFreqX10,
		FreqX100:  DefaultFreqX100,
		StepBasic: DefaultStepBasic,
	}
}

// Frequency returns the pulse frequency in Hz for the tier.
func (s Settings) Frequency(t Tier) uint32 {
	switch t {
	case X10:
		return s.FreqX10
	case X100:
		return s.FreqX100
	}
	return s.FreqX1
}

func (s Settings) String() string {
	return fmt.Sprintf("x1 %dHz, x10 %dHz, x100 %dHz, step %d", s.FreqX1, s.FreqX10, s.FreqX100, s.StepBasic)
}

type setting struct {
	key   string
	name  string
	field func(*Settings) *uint32
}

var settingList = []setting{
	{KeyFreqX1, "freq(x1)", func(s *Settings) *uint32 { return &s.FreqX1 }},
	{KeyFreqX10, "freq(x10)", func(s *Settings) *uint32 { return &s.FreqX10 }},
	{KeyFreqX100, "freq(x100)", func(s *Settings) *uint32 { return &s.FreqX100 }},
	{KeyStepBasic, "step basic", func(s *Settings) *uint32 { return &s.StepBasic }},
}

// LoadSettings reads the settings from the store. Any value that cannot
// be read keeps its default, and a warning is logged.
func LoadSettings(st Store) Settings {
	s := DefaultSettings()
	for _, e := range settingList {
		f := e.field(&s)
		if st == nil {
			warnf("settings: no store for %s, using default value: %d", e.key, *f)
			continue
		}
		v, err := st.GetU32(e.key)
		if err != nil {
			warnf("settings: cannot get %s (%v), using default value: %d", e.key, err, *f)
			continue
		}
		*f = v
		Logf("settings: %s = %d", e.key, v)
	}
	return s
}

// Update holds optional new values for the settings.
// A nil field is left unchanged.
type Update struct {
	FreqX1    *uint32
	FreqX10   *uint32
	FreqX100  *uint32
	StepBasic *uint32
}

func (u Update) value(key string) *uint32 {
	switch key {
	case KeyFreqX1:
		return u.FreqX1
	case KeyFreqX10:
		return u.FreqX10
	case KeyFreqX100:
		return u.FreqX100
	case KeyStepBasic:
		return u.StepBasic
	}
	return nil
}

// Empty returns true if the update changes nothing.
func (u Update) Empty() bool {
	return u.FreqX1 == nil && u.FreqX10 == nil && u.FreqX100 == nil && u.StepBasic == nil
}

// apply sets the supplied values in s, and returns the keys changed.
func (u Update) apply(s *Settings) []setting {
	var changed []setting
	for _, e := range settingList {
		if v := u.value(e.key); v != nil {
			*e.field(s) = *v
			changed = append(changed, e)
		}
	}
	return changed
}

// persist saves the values of the changed settings to the store.
// Failures are logged and returned joined together.
func persist(st Store, s Settings, changed []setting) error {
	var errs []error
	for _, e := range changed {
		v := *e.field(&s)
		Logf("settings: %s set to %d", e.name, v)
		if st == nil {
			continue
		}
		if err := st.SetU32(e.key, v); err != nil {
			warnf("settings: cannot save %s: %v", e.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", e.key, err))
			continue
		}
		Logf("settings: %s saved", e.name)
	}
	return errors.Join(errs...)
}
