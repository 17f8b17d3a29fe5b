// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/radome-labs/bdamap/obs"
	"github.com/radome-labs/bdamap/sim"
)

var simulateOptions = struct {
	Out          string
	Name         string
	Antennas     int
	MaxSpacing   float64
	Dumps        int
	DumpTime     float64
	Declination  float64
	RefFreq      float64
	Channels     int
	ChannelWidth float64
	Seed         int64
	SiteLat      float64
	SiteLon      float64
}{}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate a synthetic observation for exercising the mapper",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		opts := sim.Options{
			Name:         simulateOptions.Name,
			Site:         obs.Site{Lat: simulateOptions.SiteLat, Lon: simulateOptions.SiteLon},
			Antennas:     simulateOptions.Antennas,
			MaxSpacing:   simulateOptions.MaxSpacing,
			Dumps:        simulateOptions.Dumps,
			DumpTime:     simulateOptions.DumpTime,
			Declination:  simulateOptions.Declination,
			RefFreq:      simulateOptions.RefFreq,
			Channels:     simulateOptions.Channels,
			ChannelWidth: simulateOptions.ChannelWidth,
			Seed:         simulateOptions.Seed,
		}

		var bar *progressbar.ProgressBar
		if isatty.IsTerminal(os.Stderr.Fd()) {
			bar = progressbar.NewOptions(opts.Dumps,
				progressbar.OptionSetDescription("Simulating "+opts.Name),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}

		o, err := sim.Generate(opts, func(_ int) {
			if bar != nil {
				_ = bar.Add(1)
			}
		})
		if err != nil {
			return fmt.Errorf("generating observation: %w", err)
		}

		if err := o.Write(simulateOptions.Out); err != nil {
			return fmt.Errorf("writing observation: %w", err)
		}

		log.Printf("Wrote %s: %s rows (%d antennas, %d dumps) to %s",
			o.Header.Name, formatInt(o.NumRows()), opts.Antennas, opts.Dumps, simulateOptions.Out)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simulateOptions.Out, "out", "", "output directory for the observation")
	simulateCmd.Flags().StringVar(&simulateOptions.Name, "name", "synthetic", "observation name")
	simulateCmd.Flags().IntVar(&simulateOptions.Antennas, "antennas", 7, "number of stations")
	simulateCmd.Flags().Float64Var(&simulateOptions.MaxSpacing, "spacing", 3000, "layout radius in metres")
	simulateCmd.Flags().IntVar(&simulateOptions.Dumps, "dumps", 120, "integrations per baseline")
	simulateCmd.Flags().Float64Var(&simulateOptions.DumpTime, "dump-time", 8, "integration time in seconds")
	simulateCmd.Flags().Float64Var(&simulateOptions.Declination, "dec", -0.5, "phase centre declination in radians")
	simulateCmd.Flags().Float64Var(&simulateOptions.RefFreq, "ref-freq", 1.4e9, "reference frequency in Hz")
	simulateCmd.Flags().IntVar(&simulateOptions.Channels, "channels", 64, "number of channels")
	simulateCmd.Flags().Float64Var(&simulateOptions.ChannelWidth, "channel-width", 1e6, "channel width in Hz")
	simulateCmd.Flags().Int64Var(&simulateOptions.Seed, "seed", 1, "layout seed")
	simulateCmd.Flags().Float64Var(&simulateOptions.SiteLat, "site-lat", -30.7, "array latitude in degrees")
	simulateCmd.Flags().Float64Var(&simulateOptions.SiteLon, "site-lon", 21.4, "array longitude in degrees")

	_ = simulateCmd.MarkFlagRequired("out")
}
