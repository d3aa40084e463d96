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

package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/aamcrae/config"

	"github.com/aamcrae/mpg/io"
	"github.com/aamcrae/mpg/motion"
)

// AxisConfig holds the pin assignments of one axis.
type AxisConfig struct {
	Axis     motion.AxisID
	EncoderA int
	EncoderB int
	Step     int
	Dir      int
	PWM      int  // PWM unit used for the step output, or -1 for GPIO
	Invert   bool // Invert the direction output
}

// SwitchConfig holds the speed switch and indicator pins.
type SwitchConfig struct {
	Inputs     [2]int
	Indicators []int // Empty, or the x1, x10 and x100 indicators
	ActiveLow  bool
}

// Timing holds the timing parameters.
type Timing struct {
	Settle time.Duration
	Poll   time.Duration
	Glitch time.Duration
	Limit  int
}

// BoardConfig is the board configuration, read from a configuration file.
type BoardConfig struct {
	Axes   []AxisConfig
	Switch SwitchConfig
	Timing Timing
}

// Config reads and validates a board config.
// Sample config:
//
//	[x]                  # One section per axis: x, y, z
//	encoder=5,6          # GPIOs for encoder channels A and B
//	stepper=12,13        # GPIOs for step and direction
//	pwm=0                # Optional PWM unit driving the step output
//	invert=0             # Optional, invert the direction output
//	[switch]
//	inputs=20,21         # GPIOs for speed switch 1 and 2
//	indicators=16,19,26  # Optional LED GPIOs for x1, x10, x100
//	active-low=1         # Optional, the LEDs are lit by a low output
//	[timing]             # Optional section
//	settle=20ms          # Switch settle time
//	poll=10ms            # Publish period
//	glitch=1us           # Encoder glitch filter
//	limit=100            # Encoder counter limit
func Config(conf *config.Config) (*BoardConfig, error) {
	var bc BoardConfig
	for _, id := range motion.Axes {
		s := conf.GetSection(strings.ToLower(id.String()))
		if s == nil {
			continue
		}
		ac, err := axisConfig(s, id)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", id, err)
		}
		bc.Axes = append(bc.Axes, *ac)
	}
	if len(bc.Axes) == 0 {
		return nil, fmt.Errorf("no axes configured")
	}
	if err := checkPins(bc.Axes); err != nil {
		return nil, err
	}
	s := conf.GetSection("switch")
	if s == nil {
		return nil, fmt.Errorf("no config for switch")
	}
	n, err := s.Parse("inputs", "%d,%d", &bc.Switch.Inputs[0], &bc.Switch.Inputs[1])
	if err != nil {
		return nil, fmt.Errorf("switch inputs: %v", err)
	}
	if n != 2 {
		return nil, fmt.Errorf("switch inputs: argument count")
	}
	if s.Has("indicators") {
		leds := make([]int, 3)
		n, err = s.Parse("indicators", "%d,%d,%d", &leds[0], &leds[1], &leds[2])
		if err != nil {
			return nil, fmt.Errorf("switch indicators: %v", err)
		}
		if n != 3 {
			return nil, fmt.Errorf("switch indicators: argument count")
		}
		bc.Switch.Indicators = leds
	}
	if bc.Switch.ActiveLow, err = flagArg(s, "active-low", true); err != nil {
		return nil, fmt.Errorf("switch: %v", err)
	}
	if bc.Timing, err = timing(conf.GetSection("timing")); err != nil {
		return nil, fmt.Errorf("timing: %v", err)
	}
	return &bc, nil
}

func axisConfig(s *config.Section, id motion.AxisID) (*AxisConfig, error) {
	ac := &AxisConfig{Axis: id, PWM: -1}
	n, err := s.Parse("encoder", "%d,%d", &ac.EncoderA, &ac.EncoderB)
	if err != nil {
		return nil, fmt.Errorf("encoder: %v", err)
	}
	if n != 2 {
		return nil, fmt.Errorf("encoder: argument count")
	}
	n, err = s.Parse("stepper", "%d,%d", &ac.Step, &ac.Dir)
	if err != nil {
		return nil, fmt.Errorf("stepper: %v", err)
	}
	if n != 2 {
		return nil, fmt.Errorf("stepper: argument count")
	}
	if s.Has("pwm") {
		n, err = s.Parse("pwm", "%d", &ac.PWM)
		if err != nil {
			return nil, fmt.Errorf("pwm: %v", err)
		}
		if n != 1 || ac.PWM < 0 {
			return nil, fmt.Errorf("pwm: invalid unit")
		}
	}
	if ac.Invert, err = flagArg(s, "invert", false); err != nil {
		return nil, err
	}
	return ac, nil
}

// flagArg parses an optional 0/1 value.
func flagArg(s *config.Section, name string, def bool) (bool, error) {
	if !s.Has(name) {
		return def, nil
	}
	var v int
	n, err := s.Parse(name, "%d", &v)
	if err != nil {
		return false, fmt.Errorf("%s: %v", name, err)
	}
	if n != 1 || (v != 0 && v != 1) {
		return false, fmt.Errorf("%s: must be 0 or 1", name)
	}
	return v == 1, nil
}

func timing(s *config.Section) (Timing, error) {
	t := Timing{
		Settle: motion.DefaultSettle,
		Poll:   motion.DefaultPoll,
		Glitch: io.DefaultGlitch,
		Limit:  io.DefaultLimit,
	}
	if s == nil {
		return t, nil
	}
	for _, d := range []struct {
		name string
		v    *time.Duration
	}{
		{"settle", &t.Settle},
		{"poll", &t.Poll},
		{"glitch", &t.Glitch},
	} {
		if !s.Has(d.name) {
			continue
		}
		a, err := s.GetArg(d.name)
		if err != nil {
			return t, fmt.Errorf("%s: %v", d.name, err)
		}
		if *d.v, err = time.ParseDuration(a); err != nil {
			return t, fmt.Errorf("%s: %v", d.name, err)
		}
		if *d.v < 0 {
			return t, fmt.Errorf("%s: negative duration", d.name)
		}
	}
	if s.Has("limit") {
		n, err := s.Parse("limit", "%d", &t.Limit)
		if err != nil {
			return t, fmt.Errorf("limit: %v", err)
		}
		if n != 1 || t.Limit <= 0 {
			return t, fmt.Errorf("limit: must be positive")
		}
	}
	return t, nil
}

// checkPins rejects a GPIO used twice by the axes.
func checkPins(axes []AxisConfig) error {
	used := make(map[int]motion.AxisID)
	for _, a := range axes {
		for _, p := range []int{a.EncoderA, a.EncoderB, a.Step, a.Dir} {
			if other, ok := used[p]; ok {
				return fmt.Errorf("%s: gpio %d already used by %s", a.Axis, p, other)
			}
			used[p] = a.Axis
		}
	}
	return nil
}
