// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package bda

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testGrid(channels int, width float64) *ChannelGrid {
	g := &ChannelGrid{RefFreq: 1.4e9}
	for c := 0; c < channels; c++ {
		g.Freq = append(g.Freq, 1.4e9+(float64(c)+0.5)*width)
		g.Width = append(g.Width, width)
	}

	return g
}

func mustIndex(t *testing.T, time []float64, ant1, ant2 []int) *Index {
	t.Helper()

	ix, err := BuildIndex(time, ant1, ant2)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	return ix
}

func TestMapBaselinesConstantGeometry(t *testing.T) {
	// Three rows with identical uvw never decorrelate, so they merge into a
	// single bin whose lower edge is the first row's time minus half its
	// interval.
	ix := mustIndex(t, []float64{0, 1, 2}, []int{0, 0, 0}, []int{1, 1, 1})
	uvw := [][3]float64{{100, 200, 50}, {100, 200, 50}, {100, 200, 50}}
	interval := []float64{1, 1, 1}

	records, err := MapBaselines(ix, uvw, interval, testGrid(4, 1e6), Options{
		DecorrelationThreshold: 0.9,
		LMExtent:               0.01,
		Workers:                1,
	})
	if err != nil {
		t.Fatalf("MapBaselines: %v", err)
	}

	want := []BinRecord{{
		Baseline:     Baseline{A1: 0, A2: 1},
		BinIndex:     0,
		TimeLower:    -0.5,
		ULower:       100,
		VLower:       200,
		WLower:       50,
		NumRows:      3,
		ChanBinStart: []int{0},
	}}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestMapBaselinesImmediateClose(t *testing.T) {
	// With l = m = 1 the second row puts dphi at exactly pi, where sinc
	// vanishes: every row becomes its own bin.
	ix := mustIndex(t, []float64{0, 1}, []int{0, 0}, []int{1, 1})
	uvw := [][3]float64{{10, 20, 5}, {12, 20, 5}}
	interval := []float64{1, 1}

	records, err := MapBaselines(ix, uvw, interval, testGrid(4, 1e6), Options{
		DecorrelationThreshold: 0.5,
		LMExtent:               2,
		Workers:                1,
	})
	if err != nil {
		t.Fatalf("MapBaselines: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	for i, rec := range records {
		if rec.BinIndex != i {
			t.Errorf("record %d has bin index %d", i, rec.BinIndex)
		}

		if rec.NumRows != 1 {
			t.Errorf("bin %d merged %d rows, want 1", i, rec.NumRows)
		}
	}
}

func TestMapBaselinesDegenerateGeometry(t *testing.T) {
	// A bin forced closed while the uvw coordinate itself is the origin has
	// no geometry change to budget against.
	ix := mustIndex(t, []float64{0, 1}, []int{0, 0}, []int{1, 1})
	uvw := [][3]float64{{0, 0, 0}, {0, 0, 0}}
	interval := []float64{1, 1}

	_, err := MapBaselines(ix, uvw, interval, testGrid(4, 1e6), Options{
		DecorrelationThreshold: 1.0,
		LMExtent:               2,
		Workers:                1,
	})
	if err == nil {
		t.Fatal("MapBaselines accepted a bin with zero geometry change")
	}

	if !IsDegenerateGeometry(err) {
		t.Errorf("MapBaselines error = %v, want degenerate-geometry", err)
	}
}

func TestMapBaselinesThresholdBounds(t *testing.T) {
	// On a drifting baseline the threshold extremes bracket the map: at 1.0
	// even perfect decorrelation cannot keep a second row, so every row is
	// its own bin; at 0 every row joins and the whole scan is one bin.
	ix := mustIndex(t,
		[]float64{0, 1, 2, 3, 4, 5},
		[]int{0, 0, 0, 0, 0, 0},
		[]int{1, 1, 1, 1, 1, 1})

	var uvw [][3]float64
	var interval []float64

	for r := 0; r < 6; r++ {
		uvw = append(uvw, [3]float64{10 + 0.5*float64(r), 20, 5})
		interval = append(interval, 1)
	}

	tests := []struct {
		name      string
		threshold float64
		wantBins  int
	}{
		{name: "threshold one", threshold: 1.0, wantBins: 6},
		{name: "threshold zero", threshold: 0, wantBins: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := MapBaselines(ix, uvw, interval, testGrid(4, 1e6), Options{
				DecorrelationThreshold: tt.threshold,
				LMExtent:               1,
				Workers:                1,
			})
			if err != nil {
				t.Fatalf("MapBaselines: %v", err)
			}

			if len(records) != tt.wantBins {
				t.Fatalf("got %d bins, want %d", len(records), tt.wantBins)
			}

			rows := 0
			for _, rec := range records {
				rows += rec.NumRows
			}

			if rows != 6 {
				t.Errorf("bins account for %d rows, want 6", rows)
			}
		})
	}
}

func TestMapBaselinesInvalidOptions(t *testing.T) {
	ix := mustIndex(t, []float64{0}, []int{0}, []int{1})
	uvw := [][3]float64{{1, 1, 1}}
	interval := []float64{1}
	grid := testGrid(4, 1e6)

	tests := []struct {
		name     string
		uvw      [][3]float64
		interval []float64
		grid     *ChannelGrid
		opts     Options
	}{
		{
			name: "threshold above one", uvw: uvw, interval: interval, grid: grid,
			opts: Options{DecorrelationThreshold: 1.5, LMExtent: 1},
		},
		{
			name: "negative threshold", uvw: uvw, interval: interval, grid: grid,
			opts: Options{DecorrelationThreshold: -0.1, LMExtent: 1},
		},
		{
			name: "negative lm extent", uvw: uvw, interval: interval, grid: grid,
			opts: Options{DecorrelationThreshold: 0.9, LMExtent: -1},
		},
		{
			name: "short uvw", uvw: nil, interval: interval, grid: grid,
			opts: Options{DecorrelationThreshold: 0.9, LMExtent: 1},
		},
		{
			name: "short interval", uvw: uvw, interval: nil, grid: grid,
			opts: Options{DecorrelationThreshold: 0.9, LMExtent: 1},
		},
		{
			name: "empty grid", uvw: uvw, interval: interval, grid: &ChannelGrid{RefFreq: 1.4e9},
			opts: Options{DecorrelationThreshold: 0.9, LMExtent: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MapBaselines(ix, tt.uvw, tt.interval, tt.grid, tt.opts)
			if err == nil {
				t.Fatal("MapBaselines accepted invalid input")
			}

			if !IsInvalidParameter(err) {
				t.Errorf("MapBaselines error = %v, want invalid-parameter", err)
			}
		})
	}
}

func TestMapBaselinesObserver(t *testing.T) {
	// One join then a forced close: the residual frequency budget must be
	// threshold divided by the decorrelation carried at close time, and the
	// trailing single-row bin gets the whole budget.
	ix := mustIndex(t, []float64{0, 1, 2}, []int{0, 0, 0}, []int{1, 1, 1})
	uvw := [][3]float64{{10, 0, 0}, {10.2, 0, 0}, {11.5, 0, 0}}
	interval := []float64{1, 1, 1}

	var closes []BinClose

	records, err := MapBaselines(ix, uvw, interval, testGrid(4, 1e6), Options{
		DecorrelationThreshold: 0.9,
		LMExtent:               2,
		Workers:                1,
		Observer:               func(c BinClose) { closes = append(closes, c) },
	})
	if err != nil {
		t.Fatalf("MapBaselines: %v", err)
	}

	if len(records) != 2 || len(closes) != 2 {
		t.Fatalf("got %d records and %d closes, want 2 and 2", len(records), len(closes))
	}

	if records[0].NumRows != 2 || records[1].NumRows != 1 {
		t.Fatalf("rows per bin = %d, %d, want 2, 1", records[0].NumRows, records[1].NumRows)
	}

	// The second row joined at dt = 2 with du = 0.2 and l = m = 1.
	wantSinc := Sinc(math.Pi * 0.2 / 2)
	if math.Abs(closes[0].SincDPhi-wantSinc) > 1e-12 {
		t.Errorf("first close sinc_dphi = %v, want %v", closes[0].SincDPhi, wantSinc)
	}

	if math.Abs(closes[0].SincDPhiFreq-0.9/wantSinc) > 1e-12 {
		t.Errorf("first close sinc_dphi_freq = %v, want %v", closes[0].SincDPhiFreq, 0.9/wantSinc)
	}

	if closes[1].SincDPhi != 1 || closes[1].SincDPhiFreq != 0.9 {
		t.Errorf("trailing close = (%v, %v), want (1, 0.9)",
			closes[1].SincDPhi, closes[1].SincDPhiFreq)
	}
}

func TestMapBaselinesWorkerIndependence(t *testing.T) {
	// The map is a pure function of the input: worker count must not change
	// the result, and every row must land in exactly one bin.
	var (
		time       []float64
		ant1, ant2 []int
		uvw        [][3]float64
		interval   []float64
	)

	pairs := [][2]int{{0, 1}, {0, 2}, {1, 2}}
	rates := []float64{0.05, 0.2, 0.5}

	for d := 0; d < 10; d++ {
		ts := float64(2 * d)
		for b, p := range pairs {
			time = append(time, ts)
			ant1 = append(ant1, p[0])
			ant2 = append(ant2, p[1])
			uvw = append(uvw, [3]float64{100 + 10*float64(b) + rates[b]*ts, 50, 20})
			interval = append(interval, 2)
		}
	}

	ix := mustIndex(t, time, ant1, ant2)
	opts := Options{DecorrelationThreshold: 0.95, LMExtent: 1}

	opts.Workers = 1
	serial, err := MapBaselines(ix, uvw, interval, testGrid(8, 1e6), opts)
	if err != nil {
		t.Fatalf("MapBaselines workers=1: %v", err)
	}

	opts.Workers = 4
	parallel, err := MapBaselines(ix, uvw, interval, testGrid(8, 1e6), opts)
	if err != nil {
		t.Fatalf("MapBaselines workers=4: %v", err)
	}

	if diff := cmp.Diff(serial, parallel); diff != "" {
		t.Errorf("worker count changed the map (-serial +parallel):\n%s", diff)
	}

	// A negative count falls back to the CPU default instead of panicking.
	opts.Workers = -1
	fallback, err := MapBaselines(ix, uvw, interval, testGrid(8, 1e6), opts)
	if err != nil {
		t.Fatalf("MapBaselines workers=-1: %v", err)
	}

	if diff := cmp.Diff(serial, fallback); diff != "" {
		t.Errorf("negative worker count changed the map (-serial +fallback):\n%s", diff)
	}

	rowsOut := 0
	lastBin := map[Baseline]int{}
	lastTime := map[Baseline]float64{}

	for _, rec := range serial {
		rowsOut += rec.NumRows

		if prev, ok := lastBin[rec.Baseline]; ok {
			if rec.BinIndex != prev+1 {
				t.Errorf("baseline %s jumps from bin %d to %d", rec.Baseline, prev, rec.BinIndex)
			}

			if rec.TimeLower <= lastTime[rec.Baseline] {
				t.Errorf("baseline %s bin %d does not advance in time", rec.Baseline, rec.BinIndex)
			}
		} else if rec.BinIndex != 0 {
			t.Errorf("baseline %s starts at bin %d", rec.Baseline, rec.BinIndex)
		}

		lastBin[rec.Baseline] = rec.BinIndex
		lastTime[rec.Baseline] = rec.TimeLower
	}

	if rowsOut != len(time) {
		t.Errorf("bins account for %d rows, want %d", rowsOut, len(time))
	}
}

func TestBinChannels(t *testing.T) {
	mp := &mapper{grid: testGrid(8, 1e6)}

	tests := []struct {
		name   string
		maxDnu float64
		want   []int
	}{
		{name: "three channels per bin", maxDnu: 3e6, want: []int{0, 3, 6}},
		{name: "narrower than one channel", maxDnu: 0.5e6, want: []int{0, 1, 2, 3, 4, 5, 6, 7}},
		{name: "whole band", maxDnu: 1e9, want: []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, mp.binChannels(tt.maxDnu)); diff != "" {
				t.Errorf("binChannels(%v) mismatch (-want +got):\n%s", tt.maxDnu, diff)
			}
		})
	}
}
