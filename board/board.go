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

// Package board builds a motion controller from a board configuration,
// connecting the encoders, stepper outputs, speed switch and indicators.
package board

import (
	"fmt"
	"log"

	"github.com/aamcrae/mpg/io"
	"github.com/aamcrae/mpg/motion"
)

// Input is an edge triggered input that can also be sampled.
type Input interface {
	io.Waiter
	io.Getter
}

// AxisDevices are the I/O devices of one axis.
type AxisDevices struct {
	ID  motion.AxisID
	A   io.Waiter // Encoder channel A, edge triggered
	B   io.Getter // Encoder channel B, sampled
	Out motion.Pulser
}

// Devices are the I/O devices of a board.
type Devices struct {
	Axes       []AxisDevices
	Switch     [2]Input
	Indicators []motion.Output // Empty, or x1, x10 and x100
}

// Board is an assembled controller and its devices.
type Board struct {
	Controller *motion.Controller
	Counters   map[motion.AxisID]*io.Quadrature
	devices    *Devices
	timing     Timing
	closers    []func()
}

// Assemble builds the controller from the devices.
// Settings are loaded from the store, which may be nil.
func Assemble(d *Devices, t Timing, activeLow bool, st motion.Store) (*Board, error) {
	if len(d.Axes) == 0 {
		return nil, fmt.Errorf("no axes")
	}
	if len(d.Indicators) != 0 && len(d.Indicators) != 3 {
		return nil, fmt.Errorf("indicators: need 3 outputs, have %d", len(d.Indicators))
	}
	sel := motion.NewSelector(d.Switch[0], d.Switch[1], motion.LoadSettings(st), t.Settle)
	if len(d.Indicators) == 3 {
		sel.SetIndicators(activeLow, d.Indicators[0], d.Indicators[1], d.Indicators[2])
	}
	b := &Board{
		Controller: motion.NewController(sel, st),
		Counters:   make(map[motion.AxisID]*io.Quadrature),
		devices:    d,
		timing:     t,
	}
	for _, ad := range d.Axes {
		q := io.NewQuadrature(t.Limit, t.Glitch)
		a := motion.NewAxis(ad.ID, q, ad.Out, sel)
		q.OnReach(a.OnReach)
		if err := b.Controller.AddAxis(a); err != nil {
			return nil, err
		}
		b.Counters[ad.ID] = q
	}
	return b, nil
}

// Start starts the encoder and switch watchers, and the controller.
func (b *Board) Start(perAxis bool) error {
	for _, ad := range b.devices.Axes {
		go b.Counters[ad.ID].Watch(ad.ID.String(), ad.A, ad.B)
	}
	sel := b.Controller.Selector()
	for i, in := range b.devices.Switch {
		go watchSwitch(i+1, in, sel)
	}
	return b.Controller.Start(motion.Options{Poll: b.timing.Poll, PerAxis: perAxis})
}

// watchSwitch reports each edge of a speed switch input to the selector.
func watchSwitch(n int, in Input, sel *motion.Selector) {
	for {
		if _, err := in.Get(); err != nil {
			log.Printf("speed switch %d: %v", n, err)
			return
		}
		sel.Interrupt()
	}
}

// Close releases the devices opened by Open.
func (b *Board) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Open opens the GPIO and PWM devices of the board, and assembles
// the controller. Any device failure is returned, and the devices
// already opened are closed.
func Open(bc *BoardConfig, st motion.Store) (b *Board, err error) {
	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()
	input := func(gpio int, e io.Edge) (*io.Gpio, error) {
		g, err := io.InputPin(gpio, e)
		if err != nil {
			return nil, fmt.Errorf("gpio %d: %v", gpio, err)
		}
		closers = append(closers, g.Close)
		return g, nil
	}
	output := func(gpio int) (*io.Gpio, error) {
		g, err := io.OutputPin(gpio)
		if err != nil {
			return nil, fmt.Errorf("gpio %d: %v", gpio, err)
		}
		closers = append(closers, g.Close)
		return g, nil
	}
	d := new(Devices)
	for _, ac := range bc.Axes {
		ad := AxisDevices{ID: ac.Axis}
		if ad.A, err = input(ac.EncoderA, io.BOTH); err != nil {
			return nil, fmt.Errorf("%s encoder A: %v", ac.Axis, err)
		}
		if ad.B, err = input(ac.EncoderB, io.NONE); err != nil {
			return nil, fmt.Errorf("%s encoder B: %v", ac.Axis, err)
		}
		dir, err := output(ac.Dir)
		if err != nil {
			return nil, fmt.Errorf("%s direction: %v", ac.Axis, err)
		}
		if ac.PWM >= 0 {
			pwm, err := io.NewHwPWM(ac.PWM)
			if err != nil {
				return nil, fmt.Errorf("%s pwm%d: %v", ac.Axis, ac.PWM, err)
			}
			closers = append(closers, pwm.Close)
			ad.Out = io.NewPwmPulser(pwm, dir, ac.Invert)
		} else {
			step, err := output(ac.Step)
			if err != nil {
				return nil, fmt.Errorf("%s step: %v", ac.Axis, err)
			}
			sd := io.NewStepDir(step, dir, ac.Invert)
			closers = append(closers, sd.Close)
			ad.Out = sd
		}
		d.Axes = append(d.Axes, ad)
	}
	for i, gpio := range bc.Switch.Inputs {
		if d.Switch[i], err = input(gpio, io.BOTH); err != nil {
			return nil, fmt.Errorf("speed switch %d: %v", i+1, err)
		}
	}
	for _, gpio := range bc.Switch.Indicators {
		led, err := output(gpio)
		if err != nil {
			return nil, fmt.Errorf("indicator: %v", err)
		}
		d.Indicators = append(d.Indicators, led)
	}
	b, err = Assemble(d, bc.Timing, bc.Switch.ActiveLow, st)
	if err != nil {
		return nil, err
	}
	b.closers = closers
	return b, nil
}
