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

// Package console is a line oriented command interface for viewing
// and changing the motion settings, usable on a terminal or serial port.
package console

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/google/shlex"

	"github.com/aamcrae/mpg/motion"
)

// Prompt is printed before each command is read.
const Prompt = "mpg=> "

// Controller is the motion controller as seen by the console.
type Controller interface {
	Status() motion.Status
	Update(motion.Update) error
}

type command struct {
	help string
	run  func(c *Console, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":   {"List the commands", (*Console).help},
		"set":    {"Set motion settings, e.g set --fx10=20000", (*Console).set},
		"show":   {"Show the motion settings", (*Console).show},
		"status": {"Show the speed tier and axis counters", (*Console).status},
	}
}

// Console reads commands from an input and writes the results.
type Console struct {
	ctrl Controller
	in   io.Reader
	out  io.Writer
}

// New creates a console for the controller.
func New(ctrl Controller, in io.Reader, out io.Writer) *Console {
	return &Console{ctrl: ctrl, in: in, out: out}
}

// Run reads and executes commands until the input is closed.
func (c *Console) Run() error {
	sc := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, Prompt)
		if !sc.Scan() {
			fmt.Fprintln(c.out)
			return sc.Err()
		}
		if err := c.Exec(sc.Text()); err != nil {
			fmt.Fprintf(c.out, "%v\n", err)
		}
	}
}

// Exec runs one command line.
func (c *Console) Exec(line string) error {
	args, err := shlex.Split(strings.TrimRight(line, "\r"))
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%s: unknown command, try help", args[0])
	}
	return cmd.run(c, args[1:])
}

func (c *Console) help(args []string) error {
	var names []string
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(c.out, "  %-8s %s\n", n, commands[n].help)
	}
	return nil
}

// set parses the settings flags. Only the flags given are changed.
func (c *Console) set(args []string) error {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(c.out)
	fx1 := fs.Uint("fx1", 0, "x1 pulse frequency in Hz (500-60000)")
	fx10 := fs.Uint("fx10", 0, "x10 pulse frequency in Hz (500-60000)")
	fx100 := fs.Uint("fx100", 0, "x100 pulse frequency in Hz (500-60000)")
	step := fs.Uint("step", 0, "pulses per encoder count")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("set: %v", err)
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("set: unexpected argument %q", fs.Arg(0))
	}
	var u motion.Update
	var rangeErr error
	fs.Visit(func(f *flag.Flag) {
		var v *uint
		var p **uint32
		switch f.Name {
		case "fx1":
			v, p = fx1, &u.FreqX1
		case "fx10":
			v, p = fx10, &u.FreqX10
		case "fx100":
			v, p = fx100, &u.FreqX100
		case "step":
			v, p = step, &u.StepBasic
		}
		if *v > math.MaxUint32 {
			rangeErr = fmt.Errorf("set: %s: %d out of range", f.Name, *v)
			return
		}
		n := uint32(*v)
		*p = &n
	})
	if rangeErr != nil {
		return rangeErr
	}
	if u.Empty() {
		fs.Usage()
		return fmt.Errorf("set: no settings given")
	}
	if err := c.ctrl.Update(u); err != nil {
		// The new values are in use even if they could not be saved.
		fmt.Fprintf(c.out, "warning: %v\n", err)
	}
	return c.show(nil)
}

func (c *Console) show(args []string) error {
	s := c.ctrl.Status().Settings
	fmt.Fprintf(c.out, "freq(x1)   %d Hz\n", s.FreqX1)
	fmt.Fprintf(c.out, "freq(x10)  %d Hz\n", s.FreqX10)
	fmt.Fprintf(c.out, "freq(x100) %d Hz\n", s.FreqX100)
	fmt.Fprintf(c.out, "step basic %d\n", s.StepBasic)
	return nil
}

func (c *Console) status(args []string) error {
	s := c.ctrl.Status()
	fmt.Fprintf(c.out, "tier %s (%d Hz), switch %s, %d resolutions\n",
		s.Tier, s.Settings.Frequency(s.Tier), s.State, s.Resolutions)
	for _, a := range s.Axes {
		fmt.Fprintf(c.out, "%s: total %d, bursts %d, pulses %d, failures %d, dropped %d, lost %d\n",
			a.Axis, a.Total, a.Bursts, a.Pulses, a.Failures, a.Dropped, a.Lost)
		if a.LastError != "" {
			fmt.Fprintf(c.out, "%s: last error: %s\n", a.Axis, a.LastError)
		}
	}
	return nil
}
