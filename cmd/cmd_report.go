// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/radome-labs/bdamap/store"
)

var reportOptions = struct {
	DbPath string
	RunID  string
}{}

// reportPageSize bounds how many records are pulled per query.
const reportPageSize = 10000

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise the compression achieved by a stored run",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, err := sql.Open("duckdb", reportOptions.DbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		repo := store.NewRunRepository(db)

		runID := reportOptions.RunID
		if runID == "" {
			runs, err := repo.ListRuns()
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}

			if len(runs) == 0 {
				return errors.New("no runs stored yet - run 'map' first")
			}

			runID = runs[0].ID
		}

		run, err := repo.GetRun(runID)
		if err != nil {
			return fmt.Errorf("loading run %s: %w", runID, err)
		}

		var rowsPerBin, chanBins []float64

		for offset := 0; ; offset += reportPageSize {
			records, err := repo.ListRecords(runID, reportPageSize, offset)
			if err != nil {
				return fmt.Errorf("loading records: %w", err)
			}

			if len(records) == 0 {
				break
			}

			for _, rec := range records {
				rowsPerBin = append(rowsPerBin, float64(rec.NumRows))
				chanBins = append(chanBins, float64(len(rec.ChanBinStart)))
			}
		}

		if len(rowsPerBin) == 0 {
			return fmt.Errorf("run %s has no bin records", runID)
		}

		sort.Float64s(rowsPerBin)
		sort.Float64s(chanBins)

		log.Printf("Run %s (%s, threshold %.3f, lm %.3g)",
			run.ID, run.Observation, run.Threshold, run.LMExtent)
		log.Printf("Rows: %s in, %s bins out (compression %.2fx)",
			formatInt(run.NumRows),
			formatInt(run.NumRecords),
			float64(run.NumRows)/float64(run.NumRecords))
		log.Printf("Rows per bin: mean %.2f, median %.1f, p90 %.1f, max %.0f",
			stat.Mean(rowsPerBin, nil),
			stat.Quantile(0.5, stat.Empirical, rowsPerBin, nil),
			stat.Quantile(0.9, stat.Empirical, rowsPerBin, nil),
			rowsPerBin[len(rowsPerBin)-1])
		log.Printf("Channel bins: mean %.2f, median %.1f, min %.0f",
			stat.Mean(chanBins, nil),
			stat.Quantile(0.5, stat.Empirical, chanBins, nil),
			chanBins[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportOptions.DbPath, "db", "bdamap.duckdb", "database file holding stored maps")
	reportCmd.Flags().StringVar(&reportOptions.RunID, "run", "", "run id (default: most recent)")
}
