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

// Package motion converts encoder movement into stepper pulse bursts.
//
// Each axis has a Decoder that accumulates the encoder ticks from a bounded
// hardware counter, a Publisher that sends the change in ticks as a step
// delta over a small channel, and a Dispatcher that turns each delta into
// a pulse burst. The pulse count and frequency of a burst depend on the
// speed tier chosen by a switch, which is tracked by the Selector.
// The Selector is the only state shared between axes.
package motion

import (
	"fmt"
	"log"
	"sync/atomic"
)

// LogFunc is the signature of the package logger.
type LogFunc func(format string, v ...interface{})

var logger atomic.Pointer[LogFunc]

func init() {
	f := LogFunc(log.Printf)
	logger.Store(&f)
}

// SetLogger replaces the logger used for all diagnostic output from the
// package, and returns the previous one. It is safe to call while the
// controller is running.
func SetLogger(f LogFunc) LogFunc {
	return *logger.Swap(&f)
}

// Logf logs through the current logger.
func Logf(format string, v ...interface{}) {
	(*logger.Load())(format, v...)
}

func warnf(format string, v ...interface{}) {
	Logf("warning: "+format, v...)
}

// AxisID identifies one of the independently controlled axes.
type AxisID int

const (
	X AxisID = iota
	Y
	Z
)

// Axes lists all axis identities.
var Axes = []AxisID{X, Y, Z}

func (a AxisID) String() string {
	switch a {
	case X:
		return "X"
	case Y:
		return "Y"
	case Z:
		return "Z"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// ParseAxis returns the axis named by s (x, y or z, either case).
func ParseAxis(s string) (AxisID, error) {
	switch s {
	case "x", "X":
		return X, nil
	case "y", "Y":
		return Y, nil
	case "z", "Z":
		return Z, nil
	}
	return 0, fmt.Errorf("%q: unknown axis", s)
}
