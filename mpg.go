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

// MPG motion controller program

package main

import (
	"flag"
	"log"
	"os"

	"github.com/aamcrae/config"

	"github.com/aamcrae/mpg/board"
	"github.com/aamcrae/mpg/console"
	"github.com/aamcrae/mpg/motion"
	"github.com/aamcrae/mpg/status"
	"github.com/aamcrae/mpg/store"
)

var configFile = flag.String("config", "mpg.cfg", "Board configuration file")
var dbFile = flag.String("db", "mpg.db", "Settings database")
var consolePort = flag.String("console", "", "Serial port for the console (default stdin)")
var baud = flag.Int("baud", 115200, "Console serial port baud rate")
var port = flag.Int("port", 8080, "Status web server port number, 0 to disable")
var refresh = flag.Int("refresh", 2, "Status page refresh rate in seconds")
var perAxis = flag.Bool("peraxis", false, "Run a separate publisher for each axis")

func main() {
	flag.Parse()
	conf, err := config.ParseFile(*configFile)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	bc, err := board.Config(conf)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	// Without a store the defaults are used, and changes are not saved.
	var st motion.Store
	db, err := store.Open(*dbFile)
	if err != nil {
		log.Printf("warning: %s: %v, settings will not be saved", *dbFile, err)
	} else {
		defer db.Close()
		st = db
	}
	b, err := board.Open(bc, st)
	if err != nil {
		log.Fatalf("board: %v", err)
	}
	defer b.Close()
	if err := b.Start(*perAxis); err != nil {
		log.Fatalf("start: %v", err)
	}
	log.Printf("Controller started, %d axes", len(bc.Axes))
	if *port != 0 {
		go func() {
			log.Fatal(status.Serve(*port, *refresh, b.Controller))
		}()
	}
	var c *console.Console
	if *consolePort != "" {
		p, err := console.OpenSerial(*consolePort, *baud)
		if err != nil {
			log.Fatalf("%s: %v", *consolePort, err)
		}
		defer p.Close()
		c = console.New(b.Controller, p, p)
	} else {
		c = console.New(b.Controller, os.Stdin, os.Stdout)
	}
	if err := c.Run(); err != nil {
		log.Printf("console: %v", err)
	}
	// The motion loops keep running without a console.
	select {}
}
