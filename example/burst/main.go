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

// Program to send pulse bursts to a step/direction driver.

package main

import (
	"flag"
	"log"
	"time"

	"github.com/aamcrae/mpg/io"
	"github.com/aamcrae/mpg/motion"
)

var stepPin = flag.Int("step", 12, "GPIO pin for step output")
var dirPin = flag.Int("dir", 13, "GPIO pin for direction output")
var pwmUnit = flag.Int("pwm", -1, "PWM unit for the step output, -1 to use the step GPIO")
var invert = flag.Bool("invert", false, "Invert the direction output")
var count = flag.Uint64("count", 6400, "Pulses in each burst")
var hz = flag.Uint("hz", 3000, "Pulse frequency")
var bursts = flag.Int("bursts", 4, "Number of bursts, alternating direction")

func main() {
	flag.Parse()
	dir, err := io.OutputPin(*dirPin)
	if err != nil {
		log.Fatalf("Pin %d: %v", *dirPin, err)
	}
	defer dir.Close()
	var out motion.Pulser
	if *pwmUnit >= 0 {
		pwm, err := io.NewHwPWM(*pwmUnit)
		if err != nil {
			log.Fatalf("PWM unit %d: %v", *pwmUnit, err)
		}
		defer pwm.Close()
		out = io.NewPwmPulser(pwm, dir, *invert)
	} else {
		step, err := io.OutputPin(*stepPin)
		if err != nil {
			log.Fatalf("Pin %d: %v", *stepPin, err)
		}
		defer step.Close()
		sd := io.NewStepDir(step, dir, *invert)
		defer sd.Close()
		out = sd
	}
	cw := true
	for i := 0; i < *bursts; i++ {
		now := time.Now()
		if err := out.SetDirection(cw); err != nil {
			log.Fatalf("Direction: %v", err)
		}
		if err := out.Pulse(*count, uint32(*hz)); err != nil {
			log.Fatalf("Pulse: %v", err)
		}
		log.Printf("Burst %d: %d pulses, cw %v, elapsed %s (expected %s)", i, *count, cw,
			time.Since(now), time.Duration(*count)*time.Second/time.Duration(*hz))
		cw = !cw
	}
}
