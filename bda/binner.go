// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package bda

import (
	"fmt"
	"math"
	"runtime"
	"sync"
)

// ChannelGrid describes the spectral axis shared by all baselines: the
// per-channel centre frequency and width in Hz, plus the reference
// frequency used in the fractional-bandwidth relation.
type ChannelGrid struct {
	RefFreq float64   `json:"ref_freq"`
	Freq    []float64 `json:"chan_freq"`
	Width   []float64 `json:"chan_width"`
}

// NumChannels returns the number of channels in the grid.
func (g *ChannelGrid) NumChannels() int { return len(g.Freq) }

// BinRecord describes one closed time bin on one baseline together with
// the channel partition derived for it.
type BinRecord struct {
	Baseline Baseline `json:"baseline"`
	// BinIndex numbers the bins on a baseline in time order, from zero.
	BinIndex int `json:"bin_index"`
	// TimeLower is the first row's time minus half its interval.
	TimeLower float64 `json:"time_lower"`
	// ULower, VLower, WLower hold the uvw of the first row in the bin.
	ULower float64 `json:"u_lower"`
	VLower float64 `json:"v_lower"`
	WLower float64 `json:"w_lower"`
	// NumRows is how many rows were merged into the bin.
	NumRows int `json:"num_rows"`
	// ChanBinStart lists the first channel of each channel bin.
	ChanBinStart []int `json:"chan_bin_start"`
}

// BinClose is the diagnostic tuple handed to an Observer each time a bin
// closes.
type BinClose struct {
	Baseline     Baseline
	BinIndex     int
	SincDPhi     float64
	SincDPhiFreq float64
	MaxDnu       float64
	ChanBins     int
}

// Observer receives a notification on every bin close. When Options.Workers
// permits more than one worker it is invoked concurrently and must be safe
// for concurrent use.
type Observer func(BinClose)

// Options configure MapBaselines.
type Options struct {
	// DecorrelationThreshold is the minimum acceptable sinc decorrelation
	// for rows merged into a time bin, in [0, 1].
	DecorrelationThreshold float64
	// LMExtent is the maximum direction-cosine offset from the phase centre
	// to be tolerated, reduced internally to a symmetric (l, m) pair.
	LMExtent float64
	// Workers bounds the number of baselines scanned concurrently.
	// Zero or negative means runtime.NumCPU().
	Workers int
	// Observer, if set, is invoked on every bin close.
	Observer Observer
}

type mapper struct {
	ix       *Index
	uvw      [][3]float64
	interval []float64
	grid     *ChannelGrid

	threshold float64
	l, m      float64
	nMax      float64
	observer  Observer
}

// MapBaselines walks every baseline's unique times in order and partitions
// them into time bins such that the sinc decorrelation of each bin stays
// above the configured threshold, deriving for every closed bin the channel
// partition tolerated by the remaining decorrelation budget. Baselines are
// independent and are scanned concurrently; the returned records are
// ordered by (baseline, bin index) regardless of worker scheduling.
func MapBaselines(ix *Index, uvw [][3]float64, interval []float64, grid *ChannelGrid, opts Options) ([]BinRecord, error) {
	if opts.DecorrelationThreshold < 0 || opts.DecorrelationThreshold > 1 {
		return nil, &MapperError{
			Type:    ErrorTypeInvalidParameter,
			Message: fmt.Sprintf("decorrelation threshold %v outside [0, 1]", opts.DecorrelationThreshold),
		}
	}

	if opts.LMExtent < 0 {
		return nil, &MapperError{
			Type:    ErrorTypeInvalidParameter,
			Message: fmt.Sprintf("negative lm extent %v", opts.LMExtent),
		}
	}

	if len(uvw) != ix.NumRows() || len(interval) != ix.NumRows() {
		return nil, &MapperError{
			Type: ErrorTypeInvalidParameter,
			Message: fmt.Sprintf("mismatched column lengths: index=%d uvw=%d interval=%d",
				ix.NumRows(), len(uvw), len(interval)),
		}
	}

	if grid.NumChannels() < 1 || len(grid.Width) != grid.NumChannels() {
		return nil, &MapperError{
			Type: ErrorTypeInvalidParameter,
			Message: fmt.Sprintf("channel grid needs at least one channel and matching widths, got %d/%d",
				grid.NumChannels(), len(grid.Width)),
		}
	}

	l := math.Sqrt(opts.LMExtent / 2)

	// nMax = sqrt(1 - l^2 - m^2) - 1, or -1 when the extent exceeds the
	// visible hemisphere.
	nMax := -1.0
	if radicand := 1 - l*l - l*l; radicand >= 0 {
		nMax = math.Sqrt(radicand) - 1
	}

	mp := &mapper{
		ix:        ix,
		uvw:       uvw,
		interval:  interval,
		grid:      grid,
		threshold: opts.DecorrelationThreshold,
		l:         l,
		m:         l,
		nMax:      nMax,
		observer:  opts.Observer,
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	nbl := ix.NumBaselines()
	perBaseline := make([][]BinRecord, nbl)
	errs := make([]error, nbl)

	var wg sync.WaitGroup

	semaphore := make(chan struct{}, workers)

	for bl := 0; bl < nbl; bl++ {
		wg.Add(1)

		go func(bl int) {
			defer wg.Done()
			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			perBaseline[bl], errs[bl] = mp.scanBaseline(bl)
		}(bl)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var records []BinRecord
	for _, recs := range perBaseline {
		records = append(records, recs...)
	}

	return records, nil
}

// binState is the accumulator for the bin currently open on a baseline.
// A zero count means no bin is open.
type binState struct {
	count     int
	timeLower float64

	uLower, vLower, wLower float64
	// uLast, vLast, wLast track the most recent row that joined, so a
	// trailing bin can still derive its geometry change at scan end.
	uLast, vLast, wLast float64

	sincDPhi float64
}

func (mp *mapper) open(st *binState, r int) {
	st.count = 1
	st.timeLower = mp.ix.Times[mp.ix.TimeOfRow[r]] - mp.interval[r]/2
	st.uLower = mp.uvw[r][0]
	st.vLower = mp.uvw[r][1]
	st.wLower = mp.uvw[r][2]
	st.uLast = st.uLower
	st.vLast = st.vLower
	st.wLast = st.wLower
	st.sincDPhi = 0
}

func (mp *mapper) scanBaseline(bl int) ([]BinRecord, error) {
	var (
		records []BinRecord
		st      binState
	)

	tbin := 0

	for t := 0; t < mp.ix.NumTimes(); t++ {
		r, ok := mp.ix.Row(bl, t)
		if !ok {
			continue
		}

		if st.count == 0 {
			mp.open(&st, r)

			continue
		}

		dt := mp.ix.Times[t] + mp.interval[r]/2 - st.timeLower
		du := mp.uvw[r][0] - st.uLower
		dv := mp.uvw[r][1] - st.vLower
		dw := mp.uvw[r][2] - st.wLower

		dphi := math.Pi * (mp.l*du/dt + mp.m*dv/dt)
		sincDPhi := Sinc(dphi)

		if sincDPhi > mp.threshold {
			// The row joins: carry the decorrelation forward.
			st.sincDPhi = sincDPhi
			st.uLast = mp.uvw[r][0]
			st.vLast = mp.uvw[r][1]
			st.wLast = mp.uvw[r][2]
			st.count++

			continue
		}

		// The bin would decorrelate past the threshold with this row in
		// it: close it on the triggering geometry and start over here.
		record, err := mp.closeBin(bl, tbin, &st, du, dv, dw, false)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
		tbin++

		mp.open(&st, r)
	}

	// Flush the trailing open bin so its rows are not dropped from the map.
	if st.count > 0 {
		du := st.uLast - st.uLower
		dv := st.vLast - st.vLower
		dw := st.wLast - st.wLower

		record, err := mp.closeBin(bl, tbin, &st, du, dv, dw, true)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

func (mp *mapper) closeBin(bl, tbin int, st *binState, du, dv, dw float64, flush bool) (BinRecord, error) {
	var sincDPhiFreq float64

	// A single accumulated row has no time derivative to speak of, and a
	// trailing bin that accumulated no drift at all is equivalent: the bin
	// decorrelation is exactly 1 and the whole budget goes to the frequency
	// axis, with the lower uvw itself standing in as the geometry change.
	if st.count == 1 || (flush && du == 0 && dv == 0 && dw == 0) {
		du, dv, dw = st.uLower, st.vLower, st.wLower
		st.sincDPhi = 1.0
		sincDPhiFreq = mp.threshold
	} else {
		sincDPhiFreq = mp.threshold / st.sincDPhi
	}

	dphiFreq, err := InvSinc(sincDPhiFreq)
	if err != nil {
		return BinRecord{}, err
	}

	maxAbsDist := math.Sqrt(math.Abs(du)*math.Abs(mp.l) +
		math.Abs(dv)*math.Abs(mp.m) +
		math.Abs(dw)*math.Abs(mp.nMax))
	if maxAbsDist == 0 {
		return BinRecord{}, &MapperError{
			Type: ErrorTypeDegenerateGeometry,
			Message: fmt.Sprintf("zero geometry change closing bin %d on baseline %s",
				tbin, mp.ix.Baselines[bl]),
		}
	}

	// Derived from the fractional bandwidth identity
	// dnu / nu = (f_h - f_l) / (f_h + f_l).
	fracBandwidth := dphiFreq / maxAbsDist
	maxDnu := 2 * mp.grid.RefFreq * fracBandwidth

	chanBinStart := mp.binChannels(maxDnu)

	record := BinRecord{
		Baseline:     mp.ix.Baselines[bl],
		BinIndex:     tbin,
		TimeLower:    st.timeLower,
		ULower:       st.uLower,
		VLower:       st.vLower,
		WLower:       st.wLower,
		NumRows:      st.count,
		ChanBinStart: chanBinStart,
	}

	if mp.observer != nil {
		mp.observer(BinClose{
			Baseline:     record.Baseline,
			BinIndex:     tbin,
			SincDPhi:     st.sincDPhi,
			SincDPhiFreq: sincDPhiFreq,
			MaxDnu:       maxDnu,
			ChanBins:     len(chanBinStart),
		})
	}

	return record, nil
}

// binChannels partitions the channel axis into bins no wider than maxDnu,
// scanning channels in order from channel 0's lower edge. A channel bin
// always contains its first channel, even when that channel alone exceeds
// maxDnu.
func (mp *mapper) binChannels(maxDnu float64) []int {
	starts := []int{0}
	binLow := mp.grid.Freq[0] - mp.grid.Width[0]/2

	for c := 1; c < mp.grid.NumChannels(); c++ {
		upper := mp.grid.Freq[c] + mp.grid.Width[c]/2
		if upper-binLow > maxDnu {
			starts = append(starts, c)
			binLow = mp.grid.Freq[c] - mp.grid.Width[c]/2
		}
	}

	return starts
}
