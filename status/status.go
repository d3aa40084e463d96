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

// Package status serves an image showing the speed tier and the
// counters of each axis.
package status

import (
	"fmt"
	"image"
	"log"
	"net/http"

	"github.com/fogleman/gg"

	"github.com/aamcrae/mpg/motion"
)

const (
	width      = 480
	lineHeight = 20
	ledY       = 30
	ledRadius  = 12
)

// Source provides the status to display.
type Source interface {
	Status() motion.Status
}

// Render draws the status. The indicator of the current tier is lit.
func Render(s motion.Status) image.Image {
	return draw(s).Image()
}

func draw(s motion.Status) *gg.Context {
	height := 80 + lineHeight*(len(s.Axes)+1)
	c := gg.NewContext(width, height)
	c.SetRGB(1, 1, 1)
	c.Clear()
	for i, t := range motion.Tiers {
		x := float64(40 + i*90)
		c.DrawCircle(x, ledY, ledRadius)
		if t == s.Tier {
			c.SetRGB(0, 0.8, 0)
		} else {
			c.SetRGB(0.85, 0.85, 0.85)
		}
		c.FillPreserve()
		c.SetRGB(0, 0, 0)
		c.SetLineWidth(2)
		c.Stroke()
		c.DrawString(t.String(), x+ledRadius+6, ledY+5)
	}
	c.SetRGB(0, 0, 0)
	y := float64(70)
	c.DrawString(fmt.Sprintf("%d Hz, step %d, switch %s", s.Settings.Frequency(s.Tier), s.Settings.StepBasic, s.State), 10, y)
	for _, a := range s.Axes {
		y += lineHeight
		if a.LastError != "" {
			c.SetRGB(0.8, 0, 0)
		} else {
			c.SetRGB(0, 0, 0)
		}
		c.DrawString(fmt.Sprintf("%s: total %d, bursts %d, pulses %d, failures %d",
			a.Axis, a.Total, a.Bursts, a.Pulses, a.Failures), 10, y)
	}
	return c
}

// Handler returns a handler that serves the status as a PNG image.
func Handler(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := draw(src.Status())
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := c.EncodePNG(w); err != nil {
			log.Printf("Error writing image: %v", err)
		}
	}
}

const page = `<!DOCTYPE html>
<html><head><meta http-equiv="refresh" content="%d"><title>mpg</title></head>
<body><img src="/status.png"></body></html>
`

// Serve starts a web server on port, serving the status image and a
// page that reloads it every refresh seconds.
func Serve(port, refresh int, src Source) error {
	mux := http.NewServeMux()
	mux.Handle("/status.png", Handler(src))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, page, refresh)
	})
	url := fmt.Sprintf(":%d", port)
	log.Printf("Starting status server on %s", url)
	server := &http.Server{Addr: url, Handler: mux}
	return server.ListenAndServe()
}
