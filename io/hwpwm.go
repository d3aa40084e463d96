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
	"fmt"
	"os"
	"time"
)

const (
	pwmBaseDir      = "/sys/class/pwm/pwmchip0/"
	pwmExportFile   = pwmBaseDir + "export"
	pwmUnexportFile = pwmBaseDir + "unexport"
	periodFile      = "/period"
	dutyFile        = "/duty_cycle"
	enableFile      = "/enable"
)

// HwPwm is a hardware PWM unit.
type HwPwm struct {
	unit    int
	base    string
	pFile   *os.File
	dFile   *os.File
	period  int64
	duty    int64
	enabled bool
}

// NewHwPWM creates a new hardware PWM controller. The unit is left disabled.
func NewHwPWM(unit int) (*HwPwm, error) {
	p := new(HwPwm)
	p.unit = unit
	p.base = fmt.Sprintf("%spwm%d", pwmBaseDir, unit)
	p.period = -1
	p.duty = -1

	pName := p.base + periodFile
	err := export(pName, pwmExportFile, unit)
	if err != nil {
		return nil, err
	}
	p.pFile, err = os.OpenFile(pName, os.O_RDWR, 0600)
	if err != nil {
		unexport(pwmUnexportFile, unit)
		return nil, err
	}
	dName := p.base + dutyFile
	err = verifyFile(dName)
	if err != nil {
		p.pFile.Close()
		unexport(pwmUnexportFile, unit)
		return nil, err
	}
	p.dFile, err = os.OpenFile(dName, os.O_RDWR, 0600)
	if err != nil {
		p.pFile.Close()
		unexport(pwmUnexportFile, unit)
		return nil, err
	}
	// Default settings
	if err := p.Set(time.Millisecond, 0); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Close disables and closes the PWM controller
func (p *HwPwm) Close() {
	p.Enable(false)
	p.pFile.Close()
	p.dFile.Close()
	unexport(pwmUnexportFile, p.unit)
}

// Enable turns the PWM output on or off.
func (p *HwPwm) Enable(on bool) error {
	if on == p.enabled {
		return nil
	}
	v := "0"
	if on {
		v = "1"
	}
	if err := writeFile(p.base+enableFile, v); err != nil {
		return err
	}
	p.enabled = on
	return nil
}

// Set sets the PWM period and the duty cycle as a percentage.
func (p *HwPwm) Set(period time.Duration, duty int) error {
	if duty < 0 || duty > 100 {
		return fmt.Errorf("%d: invalid duty cycle percentage", duty)
	}
	pNano := period.Nanoseconds()
	if pNano < 15 {
		return fmt.Errorf("invalid period %s", period)
	}
	dNano := pNano * int64(duty) / 100
	// The duty cycle must never be greater than the current period,
	// so the order of the writes depends on the direction of the change.
	if dNano > p.period {
		// Write period first
		if err := p.write(p.pFile, pNano); err != nil {
			return err
		}
		if err := p.write(p.dFile, dNano); err != nil {
			return err
		}
	} else {
		if dNano != p.duty {
			if err := p.write(p.dFile, dNano); err != nil {
				return err
			}
		}
		if pNano != p.period {
			if err := p.write(p.pFile, pNano); err != nil {
				return err
			}
		}
	}
	p.period = pNano
	p.duty = dNano
	return nil
}

func (p *HwPwm) write(f *os.File, v int64) error {
	_, err := f.WriteAt([]byte(fmt.Sprintf("%d", v)), 0)
	return err
}

// PWM is the interface of a PWM unit used as a pulse generator.
type PWM interface {
	Set(time.Duration, int) error
	Enable(bool) error
}

// PwmPulser generates step pulse bursts using a PWM unit running at
// 50% duty cycle, with a GPIO as the direction output.
// The burst length is timed, so the pulse count is only as accurate as
// the sleep resolution allows.
type PwmPulser struct {
	pwm       PWM
	dir       Setter
	invertDir bool
	sleep     func(time.Duration)
}

// NewPwmPulser creates a pulse generator from a PWM unit and a direction output.
func NewPwmPulser(pwm PWM, dir Setter, invert bool) *PwmPulser {
	return &PwmPulser{pwm: pwm, dir: dir, invertDir: invert, sleep: time.Sleep}
}

// SetDirection sets the direction output. Clockwise is a low level
// unless the output is inverted.
func (p *PwmPulser) SetDirection(cw bool) error {
	v := 1
	if cw != p.invertDir {
		v = 0
	}
	return p.dir.Set(v)
}

// Pulse runs the PWM unit at hz for the duration of count pulses.
func (p *PwmPulser) Pulse(count uint64, hz uint32) error {
	if count == 0 {
		return nil
	}
	if hz == 0 {
		return fmt.Errorf("pulse: invalid frequency")
	}
	period := time.Second / time.Duration(hz)
	if err := p.pwm.Set(period, 50); err != nil {
		return err
	}
	if err := p.pwm.Enable(true); err != nil {
		return err
	}
	p.sleep(period * time.Duration(count))
	return p.pwm.Enable(false)
}
