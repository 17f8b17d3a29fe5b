// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package bda

import (
	"fmt"
	"sort"
)

// Baseline is an unordered antenna pair, normalised so that A1 < A2.
type Baseline struct {
	A1 int `json:"ant1"`
	A2 int `json:"ant2"`
}

// NewBaseline normalises an antenna pair into a Baseline.
func NewBaseline(ant1, ant2 int) Baseline {
	if ant1 > ant2 {
		ant1, ant2 = ant2, ant1
	}

	return Baseline{A1: ant1, A2: ant2}
}

func (b Baseline) String() string {
	return fmt.Sprintf("%d-%d", b.A1, b.A2)
}

// Index holds the derived structures the binner needs for O(1) row
// retrieval: the unique baseline and time sets, per-row indices into both,
// and a dense (baseline, time) -> row lookup table.
type Index struct {
	// Baselines lists the unique baselines in first-appearance order.
	Baselines []Baseline
	// BaselineOfRow maps each row to its index in Baselines.
	BaselineOfRow []int
	// Times lists the unique time stamps in ascending order.
	Times []float64
	// TimeOfRow maps each row to its index in Times.
	TimeOfRow []int

	blIndex map[Baseline]int
	// lookup is a dense [nbl][ntime] table flattened row-major, holding the
	// row index for each occupied (baseline, time) cell and -1 elsewhere.
	lookup []int32
}

// BuildIndex derives the unique baseline and time sets from parallel
// per-row arrays and builds the dense row lookup table. Two rows landing on
// the same (baseline, time) cell are a fatal data-integrity violation: no
// partial index is returned.
func BuildIndex(time []float64, ant1, ant2 []int) (*Index, error) {
	nrows := len(time)
	if len(ant1) != nrows || len(ant2) != nrows {
		return nil, &MapperError{
			Type: ErrorTypeInvalidParameter,
			Message: fmt.Sprintf("mismatched column lengths: time=%d ant1=%d ant2=%d",
				nrows, len(ant1), len(ant2)),
		}
	}

	ix := &Index{
		BaselineOfRow: make([]int, nrows),
		TimeOfRow:     make([]int, nrows),
		blIndex:       map[Baseline]int{},
	}

	for r := 0; r < nrows; r++ {
		bl := NewBaseline(ant1[r], ant2[r])

		i, ok := ix.blIndex[bl]
		if !ok {
			i = len(ix.Baselines)
			ix.blIndex[bl] = i
			ix.Baselines = append(ix.Baselines, bl)
		}

		ix.BaselineOfRow[r] = i
	}

	timeIndex := make(map[float64]int, nrows)
	for _, t := range time {
		timeIndex[t] = 0
	}

	ix.Times = make([]float64, 0, len(timeIndex))
	for t := range timeIndex {
		ix.Times = append(ix.Times, t)
	}

	sort.Float64s(ix.Times)

	for i, t := range ix.Times {
		timeIndex[t] = i
	}

	for r, t := range time {
		ix.TimeOfRow[r] = timeIndex[t]
	}

	ntime := len(ix.Times)

	ix.lookup = make([]int32, len(ix.Baselines)*ntime)
	for i := range ix.lookup {
		ix.lookup[i] = -1
	}

	for r := 0; r < nrows; r++ {
		cell := ix.BaselineOfRow[r]*ntime + ix.TimeOfRow[r]
		if prev := ix.lookup[cell]; prev != -1 {
			return nil, &MapperError{
				Type: ErrorTypeDuplicateSample,
				Message: fmt.Sprintf("duplicate (time, antenna1, antenna2): rows %d and %d share baseline %s at time %v",
					prev, r, ix.Baselines[ix.BaselineOfRow[r]], time[r]),
			}
		}

		ix.lookup[cell] = int32(r)
	}

	return ix, nil
}

// NumRows returns the number of input rows.
func (ix *Index) NumRows() int { return len(ix.BaselineOfRow) }

// NumBaselines returns the number of unique baselines.
func (ix *Index) NumBaselines() int { return len(ix.Baselines) }

// NumTimes returns the number of unique time stamps.
func (ix *Index) NumTimes() int { return len(ix.Times) }

// Row returns the row index for a (baseline index, time index) cell, and
// whether the cell is occupied. Absent cells are skipped by the binner,
// never treated as zero-valued rows.
func (ix *Index) Row(bl, t int) (int, bool) {
	r := ix.lookup[bl*len(ix.Times)+t]

	return int(r), r != -1
}

// BaselineIndex returns the index of a baseline in Baselines, and whether
// it is present.
func (ix *Index) BaselineIndex(b Baseline) (int, bool) {
	i, ok := ix.blIndex[b]

	return i, ok
}
