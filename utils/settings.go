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

// Settings utility: lists and changes the motion settings in the
// settings database, e.g
//
//	settings -db mpg.db freq_set_x10=20000

package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"

	"github.com/aamcrae/mpg/motion"
	"github.com/aamcrae/mpg/store"
)

var dbFile = flag.String("db", "mpg.db", "Settings database")
var reset = flag.Bool("reset", false, "Remove the stored settings, restoring the defaults")

var keys = []string{motion.KeyFreqX1, motion.KeyFreqX10, motion.KeyFreqX100, motion.KeyStepBasic}

func main() {
	flag.Parse()
	db, err := store.Open(*dbFile)
	if err != nil {
		log.Fatalf("%s: %v", *dbFile, err)
	}
	defer db.Close()
	if *reset {
		for _, k := range keys {
			if err := db.Delete(k); err != nil {
				log.Fatalf("%v", err)
			}
		}
	}
	for _, arg := range flag.Args() {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || !slices.Contains(keys, k) {
			log.Fatalf("%s: expected one of %s=value", arg, strings.Join(keys, "|"))
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			log.Fatalf("%s: %v", arg, err)
		}
		if err := db.SetU32(k, uint32(n)); err != nil {
			log.Fatalf("%v", err)
		}
	}
	def := motion.DefaultSettings()
	defaults := []uint32{def.FreqX1, def.FreqX10, def.FreqX100, def.StepBasic}
	for i, k := range keys {
		v, err := db.GetU32(k)
		switch {
		case errors.Is(err, store.ErrNotFound):
			fmt.Printf("%-16s %d (default)\n", k, defaults[i])
		case err != nil:
			log.Fatalf("%v", err)
		default:
			fmt.Printf("%-16s %d\n", k, v)
		}
	}
}
