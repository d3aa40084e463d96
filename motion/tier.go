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

// Tier is the speed multiplier selected by the switch.
type Tier int

const (
	X1 Tier = iota
	X10
	X100
)

// Tiers lists the tiers in ascending order.
var Tiers = []Tier{X1, X10, X100}

// Multiplier returns the pulse count multiplier of the tier.
func (t Tier) Multiplier() uint64 {
	switch t {
	case X10:
		return 10
	case X100:
		return 100
	}
	return 1
}

func (t Tier) String() string {
	switch t {
	case X1:
		return "x1"
	case X10:
		return "x10"
	case X100:
		return "x100"
	}
	return "x?"
}

// Map of 2 bit switch codes to tiers.
var switchCodes = map[int]Tier{
	0b01: X1,
	0b11: X10,
	0b10: X100,
}

// ResolveCode maps a 2 bit switch code to a tier. An unrecognised code
// returns the previous tier and false.
func ResolveCode(code int, previous Tier) (Tier, bool) {
	t, ok := switchCodes[code]
	if !ok {
		return previous, false
	}
	return t, true
}
