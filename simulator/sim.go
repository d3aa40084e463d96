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

// Simulator program: runs the controller with a simulated hand wheel,
// speed switch and stepper drivers.

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aamcrae/mpg/board"
	"github.com/aamcrae/mpg/console"
	"github.com/aamcrae/mpg/motion"
	"github.com/aamcrae/mpg/status"
	"github.com/aamcrae/mpg/store"
)

var port = flag.Int("port", 8080, "Web server port number")
var dbFile = flag.String("db", "", "Settings database, default is no persistence")
var rate = flag.Int("rate", 40, "Hand wheel edges per second")
var turn = flag.Int("turn", 300, "Edges before the hand wheel reverses")
var cycle = flag.Duration("cycle", 15*time.Second, "Time between speed switch changes")
var axes = flag.Int("axes", 1, "Number of simulated axes")

// Wheel is a simulated hand wheel, producing quadrature samples.
type Wheel struct {
	samples chan [2]int
	mu      sync.Mutex
	b       int
}

func newWheel() *Wheel {
	w := &Wheel{samples: make(chan [2]int, 10)}
	go w.run()
	return w
}

func (w *Wheel) run() {
	w.samples <- [2]int{0, 1}
	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	cw := true
	for n := 0; ; n++ {
		if n > 0 && n%*turn == 0 {
			cw = !cw
		}
		<-ticker.C
		// A rising edge with B low, or a falling edge with B high, counts up.
		a := (n + 1) % 2
		b := 1 - a
		if !cw {
			b = a
		}
		w.samples <- [2]int{a, b}
	}
}

func (w *Wheel) Get() (int, error) {
	s := <-w.samples
	w.mu.Lock()
	defer w.mu.Unlock()
	w.b = s[1]
	return s[0], nil
}

func (w *Wheel) Read() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.b, nil
}

// Switch is a simulated speed switch, stepping through the tiers.
type Switch struct {
	code  *atomic.Int32
	bit   int
	edges chan struct{}
}

func newSwitches() [2]*Switch {
	code := new(atomic.Int32)
	code.Store(0b01)
	s := [2]*Switch{
		{code: code, bit: 1, edges: make(chan struct{}, 1)},
		{code: code, bit: 0, edges: make(chan struct{}, 1)},
	}
	go func() {
		codes := []int32{0b01, 0b11, 0b10}
		for i := 1; ; i++ {
			time.Sleep(*cycle)
			code.Store(codes[i%len(codes)])
			for _, sw := range s {
				select {
				case sw.edges <- struct{}{}:
				default:
				}
			}
		}
	}()
	return s
}

func (s *Switch) Get() (int, error) {
	<-s.edges
	return s.Read()
}

func (s *Switch) Read() (int, error) {
	return int(s.code.Load()) >> s.bit & 1, nil
}

// Stepper is a simulated step/direction driver.
type Stepper struct {
	name     string
	cw       bool
	position atomic.Int64
}

func (s *Stepper) SetDirection(cw bool) error {
	s.cw = cw
	return nil
}

func (s *Stepper) Pulse(count uint64, hz uint32) error {
	if hz == 0 {
		return fmt.Errorf("%s: zero frequency", s.name)
	}
	time.Sleep(time.Duration(count) * time.Second / time.Duration(hz))
	if s.cw {
		s.position.Add(int64(count))
	} else {
		s.position.Add(-int64(count))
	}
	return nil
}

type led struct {
	name string
	on   int
}

func (l *led) Set(v int) error {
	if v == l.on {
		log.Printf("indicator %s on", l.name)
	}
	return nil
}

func main() {
	flag.Parse()
	if *axes < 1 || *axes > len(motion.Axes) {
		log.Fatalf("axes must be 1 to %d", len(motion.Axes))
	}
	var st motion.Store
	if *dbFile != "" {
		db, err := store.Open(*dbFile)
		if err != nil {
			log.Fatalf("%s: %v", *dbFile, err)
		}
		defer db.Close()
		st = db
	}
	sw := newSwitches()
	d := &board.Devices{
		Switch:     [2]board.Input{sw[0], sw[1]},
		Indicators: []motion.Output{&led{"x1", 0}, &led{"x10", 0}, &led{"x100", 0}},
	}
	var steppers []*Stepper
	for _, id := range motion.Axes[:*axes] {
		s := &Stepper{name: id.String()}
		steppers = append(steppers, s)
		w := newWheel()
		d.Axes = append(d.Axes, board.AxisDevices{ID: id, A: w, B: w, Out: s})
	}
	t := board.Timing{
		Settle: motion.DefaultSettle,
		Poll:   motion.DefaultPoll,
		Limit:  100,
	}
	b, err := board.Assemble(d, t, true, st)
	if err != nil {
		log.Fatalf("assemble: %v", err)
	}
	if err := b.Start(false); err != nil {
		log.Fatalf("start: %v", err)
	}
	go func() {
		log.Fatal(status.Serve(*port, 1, b.Controller))
	}()
	go func() {
		for {
			time.Sleep(5 * time.Second)
			for _, s := range steppers {
				log.Printf("%s: position %d", s.name, s.position.Load())
			}
		}
	}()
	if err := console.New(b.Controller, os.Stdin, os.Stdout).Run(); err != nil {
		log.Printf("console: %v", err)
	}
	select {}
}
