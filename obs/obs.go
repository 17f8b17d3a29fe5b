// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package obs

import (
	"fmt"
	"math"

	"github.com/radome-labs/bdamap/bda"
)

// Site is the geodetic location of the array, used to tag mapping runs and
// by the simulator. Degrees.
type Site struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Header carries the observation metadata shared by all rows.
type Header struct {
	Name string `json:"name"`
	Site Site   `json:"site"`
	// PhaseCentre is (ra, dec) in radians.
	PhaseCentre [2]float64      `json:"phase_centre"`
	Grid        bda.ChannelGrid `json:"channel_grid"`
}

// Observation holds one visibility data set as parallel per-row columns.
// Times are seconds (MJD-scaled upstream), uvw is the baseline vector in
// metres. Rows are immutable once loaded.
type Observation struct {
	Header Header

	Time     []float64
	Interval []float64
	Ant1     []int
	Ant2     []int
	UVW      [][3]float64
}

// NumRows returns the number of visibility rows.
func (o *Observation) NumRows() int { return len(o.Time) }

// Validate checks the structural invariants of the observation: equal
// column lengths, a usable channel grid with ascending channel centres,
// non-negative antenna identifiers and positive sampling intervals.
func (o *Observation) Validate() error {
	n := o.NumRows()
	if len(o.Interval) != n || len(o.Ant1) != n || len(o.Ant2) != n || len(o.UVW) != n {
		return fmt.Errorf("mismatched column lengths: time=%d interval=%d ant1=%d ant2=%d uvw=%d",
			n, len(o.Interval), len(o.Ant1), len(o.Ant2), len(o.UVW))
	}

	for r := 0; r < n; r++ {
		if o.Ant1[r] < 0 || o.Ant2[r] < 0 {
			return fmt.Errorf("row %d: negative antenna identifier (%d, %d)", r, o.Ant1[r], o.Ant2[r])
		}

		if o.Ant1[r] == o.Ant2[r] {
			return fmt.Errorf("row %d: autocorrelation (antenna %d with itself)", r, o.Ant1[r])
		}

		if o.Interval[r] <= 0 {
			return fmt.Errorf("row %d: non-positive interval %v", r, o.Interval[r])
		}
	}

	grid := &o.Header.Grid
	if grid.NumChannels() < 1 {
		return fmt.Errorf("channel grid is empty")
	}

	if len(grid.Width) != grid.NumChannels() {
		return fmt.Errorf("channel grid has %d centres but %d widths", grid.NumChannels(), len(grid.Width))
	}

	if grid.RefFreq <= 0 {
		return fmt.Errorf("non-positive reference frequency %v", grid.RefFreq)
	}

	for c := 0; c < grid.NumChannels(); c++ {
		if grid.Width[c] <= 0 {
			return fmt.Errorf("channel %d: non-positive width %v", c, grid.Width[c])
		}

		if c > 0 && grid.Freq[c] <= grid.Freq[c-1] {
			return fmt.Errorf("channel %d: centre %v not above previous %v", c, grid.Freq[c], grid.Freq[c-1])
		}
	}

	if math.Abs(o.Header.Site.Lat) > 90 || math.Abs(o.Header.Site.Lon) > 180 {
		return fmt.Errorf("site (%v, %v) outside geodetic range", o.Header.Site.Lat, o.Header.Site.Lon)
	}

	return nil
}
