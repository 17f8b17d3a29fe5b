// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package sim generates synthetic interferometric observations: an antenna
// layout, an hour-angle sweep of the baseline uvw vectors, and the closed
// form amplitude-reduction estimate for a given averaging window. It exists
// so the mapping pipeline can be exercised end to end without a telescope.
package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/radome-labs/bdamap/bda"
	"github.com/radome-labs/bdamap/obs"
)

// earthRotationRate is the sidereal angular rate in rad/s.
const earthRotationRate = 7.2921158553e-5

// mjdEpochSeconds is an arbitrary observation start, seconds on the MJD
// scale, matching how times arrive from measurement sets.
const mjdEpochSeconds = 4.85e9

// Options configure Generate.
type Options struct {
	Name string
	Site obs.Site

	// Antennas is the number of stations in the layout.
	Antennas int
	// MaxSpacing bounds the layout extent in metres.
	MaxSpacing float64

	// Dumps is the number of integrations per baseline.
	Dumps int
	// DumpTime is the integration time in seconds.
	DumpTime float64

	// Declination of the phase centre and the starting hour angle, radians.
	Declination    float64
	HourAngleStart float64

	// RefFreq, Channels and ChannelWidth define a uniform channel grid
	// centred on RefFreq, all in Hz.
	RefFreq      float64
	Channels     int
	ChannelWidth float64

	Seed int64
}

// Generate synthesises an observation. The progress callback, if non-nil,
// is invoked after each dump.
func Generate(opts Options, progress func(dump int)) (*obs.Observation, error) {
	if opts.Antennas < 2 {
		return nil, fmt.Errorf("need at least 2 antennas, got %d", opts.Antennas)
	}

	if opts.Dumps < 1 || opts.DumpTime <= 0 {
		return nil, fmt.Errorf("need at least one dump with a positive dump time, got %d x %vs",
			opts.Dumps, opts.DumpTime)
	}

	if opts.Channels < 1 || opts.ChannelWidth <= 0 || opts.RefFreq <= 0 {
		return nil, fmt.Errorf("invalid channel grid: %d channels of %v Hz at %v Hz",
			opts.Channels, opts.ChannelWidth, opts.RefFreq)
	}

	layout := antennaLayout(opts.Antennas, opts.MaxSpacing, opts.Seed)

	o := &obs.Observation{
		Header: obs.Header{
			Name:        opts.Name,
			Site:        opts.Site,
			PhaseCentre: [2]float64{0, opts.Declination},
			Grid:        channelGrid(opts.RefFreq, opts.Channels, opts.ChannelWidth),
		},
	}

	for d := 0; d < opts.Dumps; d++ {
		elapsed := (float64(d) + 0.5) * opts.DumpTime
		t := mjdEpochSeconds + elapsed
		ha := opts.HourAngleStart + earthRotationRate*elapsed

		for a1 := 0; a1 < opts.Antennas; a1++ {
			for a2 := a1 + 1; a2 < opts.Antennas; a2++ {
				lx := layout[a1][0] - layout[a2][0]
				ly := layout[a1][1] - layout[a2][1]
				lz := layout[a1][2] - layout[a2][2]

				o.Time = append(o.Time, t)
				o.Interval = append(o.Interval, opts.DumpTime)
				o.Ant1 = append(o.Ant1, a1)
				o.Ant2 = append(o.Ant2, a2)
				o.UVW = append(o.UVW, UVW(lx, ly, lz, ha, opts.Declination))
			}
		}

		if progress != nil {
			progress(d)
		}
	}

	return o, nil
}

// antennaLayout scatters n stations over a disc of the given radius, with a
// mild vertical spread. Deterministic for a given seed.
func antennaLayout(n int, radius float64, seed int64) [][3]float64 {
	if radius <= 0 {
		radius = 1000
	}

	rng := rand.New(rand.NewSource(seed))
	layout := make([][3]float64, n)

	for i := range layout {
		r := radius * math.Sqrt(rng.Float64())
		theta := 2 * math.Pi * rng.Float64()

		layout[i] = [3]float64{
			r * math.Cos(theta),
			r * math.Sin(theta),
			rng.NormFloat64() * radius * 1e-3,
		}
	}

	return layout
}

func channelGrid(refFreq float64, nchan int, width float64) bda.ChannelGrid {
	grid := bda.ChannelGrid{
		RefFreq: refFreq,
		Freq:    make([]float64, nchan),
		Width:   make([]float64, nchan),
	}

	low := refFreq - float64(nchan)*width/2

	for c := 0; c < nchan; c++ {
		grid.Freq[c] = low + (float64(c)+0.5)*width
		grid.Width[c] = width
	}

	return grid
}

// UVW rotates a baseline difference vector (Lx, Ly, Lz) in metres into the
// (u, v, w) frame for hour angle ha and declination dec. Synthesis and
// Imaging, equations 18-33 and 18-34.
func UVW(lx, ly, lz, ha, dec float64) [3]float64 {
	sinH, cosH := math.Sincos(ha)
	sinD, cosD := math.Sincos(dec)

	return [3]float64{
		lx*sinH + ly*cosH,
		-lx*sinD*cosH + ly*sinD*sinH + lz*cosD,
		lx*cosD*cosH - ly*cosD*sinH + lz*sinD,
	}
}

// UVWRate is the time derivative of UVW's u and v components as the Earth
// rotates, in metres per second.
func UVWRate(lx, ly, lz, ha, dec float64) (dudt, dvdt float64) {
	sinH, cosH := math.Sincos(ha)
	sinD := math.Sin(dec)

	dudt = earthRotationRate * (lx*cosH - ly*sinH)
	dvdt = earthRotationRate * (lx*sinD*sinH + ly*sinD*cosH)

	return dudt, dvdt
}

// ReductionEstimate is the fractional amplitude retained when averaging a
// window over which the baseline drifts at (dudt, dvdt) for a source offset
// (l, m) from the phase centre. Synthesis and Imaging, equation 18-31.
func ReductionEstimate(dudt, dvdt, l, m float64) float64 {
	return bda.Sinc(math.Pi * (dudt*l + dvdt*m))
}
