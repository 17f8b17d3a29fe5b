// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"

	"github.com/radome-labs/bdamap/bda"
	"github.com/radome-labs/bdamap/obs"
	"github.com/radome-labs/bdamap/store"
)

var mapOptions = struct {
	ObsDir    string
	DbPath    string
	Threshold float64
	LMExtent  float64
	Workers   int
	Trace     bool
}{}

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Compute the averaging map for an observation and store it",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		o, err := obs.Load(mapOptions.ObsDir)
		if err != nil {
			return fmt.Errorf("loading observation: %w", err)
		}

		log.Printf("Loaded %s: %s rows, %d channels",
			o.Header.Name, formatInt(o.NumRows()), o.Header.Grid.NumChannels())

		ix, err := bda.BuildIndex(o.Time, o.Ant1, o.Ant2)
		if err != nil {
			return fmt.Errorf("building row index: %w", err)
		}

		opts := bda.Options{
			DecorrelationThreshold: mapOptions.Threshold,
			LMExtent:               mapOptions.LMExtent,
			Workers:                mapOptions.Workers,
		}
		if mapOptions.Trace {
			opts.Observer = func(c bda.BinClose) {
				log.Printf("close %s bin %d: sinc_dphi=%.6f sinc_dphi_freq=%.6f max_dnu=%.1f chan_bins=%d",
					c.Baseline, c.BinIndex, c.SincDPhi, c.SincDPhiFreq, c.MaxDnu, c.ChanBins)
			}
		}

		records, err := bda.MapBaselines(ix, o.UVW, o.Interval, &o.Header.Grid, opts)
		if err != nil {
			return fmt.Errorf("mapping baselines: %w", err)
		}

		run, err := store.NewRun(o, opts, ix, records)
		if err != nil {
			return fmt.Errorf("preparing run: %w", err)
		}

		db, err := sql.Open("duckdb", mapOptions.DbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		repo := store.NewRunRepository(db)
		if err := repo.CreateSchema(); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}

		if err := repo.SaveRun(run, records); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}

		log.Printf("Run %s: %s rows over %s baselines mapped to %s bins (threshold %.3f)",
			run.ID,
			formatInt(run.NumRows),
			formatInt(run.NumBaselines),
			formatInt(run.NumRecords),
			run.Threshold)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(mapCmd)

	mapCmd.Flags().StringVar(&mapOptions.ObsDir, "obs", "", "directory holding observation.json and rows.csv")
	mapCmd.Flags().StringVar(&mapOptions.DbPath, "db", "bdamap.duckdb", "database file for the resulting map")
	mapCmd.Flags().Float64Var(&mapOptions.Threshold, "threshold", 0.98, "decorrelation tolerance in [0, 1]")
	mapCmd.Flags().Float64Var(&mapOptions.LMExtent, "lm", 1.0, "maximum direction-cosine offset from the phase centre")
	mapCmd.Flags().IntVar(&mapOptions.Workers, "workers", 0, "concurrent baseline scans (0 = all CPUs)")
	mapCmd.Flags().BoolVar(&mapOptions.Trace, "trace", false, "log every bin close")

	_ = mapCmd.MarkFlagRequired("obs")
}
