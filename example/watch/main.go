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

// Program to watch a quadrature encoder and print the total count.

package main

import (
	"flag"
	"log"
	"time"

	"github.com/aamcrae/mpg/io"
	"github.com/aamcrae/mpg/motion"
)

var gpioA = flag.Int("a", 5, "GPIO pin for encoder channel A")
var gpioB = flag.Int("b", 6, "GPIO pin for encoder channel B")
var limit = flag.Int("limit", io.DefaultLimit, "Counter watch limit")
var glitch = flag.Duration("glitch", io.DefaultGlitch, "Glitch filter")
var period = flag.Duration("period", 100*time.Millisecond, "Print period")

func main() {
	flag.Parse()
	a, err := io.InputPin(*gpioA, io.BOTH)
	if err != nil {
		log.Fatalf("Pin %d: %v", *gpioA, err)
	}
	defer a.Close()
	b, err := io.InputPin(*gpioB, io.NONE)
	if err != nil {
		log.Fatalf("Pin %d: %v", *gpioB, err)
	}
	defer b.Close()
	q := io.NewQuadrature(*limit, *glitch)
	d := motion.NewDecoder("encoder", q)
	q.OnReach(d.OnReach)
	go func() {
		log.Fatal(q.Watch("encoder", a, b))
	}()
	var last int64
	for {
		total, err := d.Poll()
		if err != nil {
			log.Fatalf("Poll: %v", err)
		}
		if total != last {
			log.Printf("total %d (delta %d), lost events %d", total, total-last, d.Dropped())
			last = total
		}
		time.Sleep(*period)
	}
}
