// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pingcap/errors"
	"lockwait/pkg/workload"
)

const barChar = "█"

// Renderer prints results as a bar chart ranked by finish time.
type Renderer struct {
	// Width is the bar length of the slowest unit.
	Width int
	// Color paints the bars, meant for terminals only.
	Color bool
}

// NewRenderer creates a plain Renderer.
func NewRenderer(width int) *Renderer {
	return &Renderer{Width: width}
}

// Render writes one line per result, fastest first. Results with equal
// elapsed time keep their input order. results is not modified.
func (r *Renderer) Render(w io.Writer, results []workload.Result) error {
	sorted := make([]workload.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Elapsed < sorted[j].Elapsed
	})

	maxTime := time.Second
	if len(sorted) > 0 && sorted[len(sorted)-1].Elapsed > 0 {
		maxTime = sorted[len(sorted)-1].Elapsed
	}

	paint := color.New(color.FgGreen)
	if r.Color {
		paint.EnableColor()
	} else {
		paint.DisableColor()
	}

	for rank, res := range sorted {
		bar := strings.Repeat(barChar, r.barLen(res.Elapsed, maxTime))
		if bar != "" {
			bar = paint.Sprint(bar)
		}
		if _, err := fmt.Fprintf(w, "Finish #%02d (Tx %02d) | %s %.2fs\n",
			rank+1, res.ID, bar, res.Elapsed.Seconds()); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (r *Renderer) barLen(elapsed, maxTime time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	n := int(elapsed.Seconds() / maxTime.Seconds() * float64(r.Width))
	if n > r.Width {
		return r.Width
	}
	return n
}
