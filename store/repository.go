// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uber/h3-go/v4"

	"github.com/radome-labs/bdamap/bda"
	"github.com/radome-labs/bdamap/obs"
)

// siteCellResolution groups runs by observatory at roughly continental
// cell sizes, coarse enough that a single site always maps to one cell.
const siteCellResolution = 2

// Run describes one mapping run: the parameters it was computed with and
// the headline counts of its result.
type Run struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Observation string    `json:"observation"`

	Threshold float64 `json:"threshold"`
	LMExtent  float64 `json:"lm_extent"`
	RefFreq   float64 `json:"ref_freq"`

	NumRows      int `json:"num_rows"`
	NumBaselines int `json:"num_baselines"`
	NumRecords   int `json:"num_records"`

	SiteLat  float64 `json:"site_lat"`
	SiteLon  float64 `json:"site_lon"`
	SiteCell string  `json:"site_cell"`
}

// Summary aggregates a run's bin records.
type Summary struct {
	RunID          string  `json:"run_id"`
	NumRecords     int     `json:"num_records"`
	NumRows        int     `json:"num_rows"`
	MeanRowsPerBin float64 `json:"mean_rows_per_bin"`
	MaxRowsPerBin  int     `json:"max_rows_per_bin"`
	MeanChanBins   float64 `json:"mean_chan_bins"`
}

// NewRun builds a Run for an observation and mapping result, assigning a
// fresh UUID and tagging it with the H3 cell of the observing site.
func NewRun(o *obs.Observation, opts bda.Options, ix *bda.Index, records []bda.BinRecord) (*Run, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(o.Header.Site.Lat, o.Header.Site.Lon), siteCellResolution)
	if err != nil {
		return nil, fmt.Errorf("computing site cell: %w", err)
	}

	return &Run{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		Observation:  o.Header.Name,
		Threshold:    opts.DecorrelationThreshold,
		LMExtent:     opts.LMExtent,
		RefFreq:      o.Header.Grid.RefFreq,
		NumRows:      ix.NumRows(),
		NumBaselines: ix.NumBaselines(),
		NumRecords:   len(records),
		SiteLat:      o.Header.Site.Lat,
		SiteLon:      o.Header.Site.Lon,
		SiteCell:     cell.String(),
	}, nil
}

// RunRepository handles persistence of mapping runs and their bin records.
type RunRepository interface {
	// CreateSchema creates the runs and bin_records tables.
	CreateSchema() error

	// SaveRun stores a run together with all its bin records.
	SaveRun(run *Run, records []bda.BinRecord) error

	// ListRuns returns all runs, newest first.
	ListRuns() ([]*Run, error)

	// GetRun returns one run by id, or sql.ErrNoRows.
	GetRun(id string) (*Run, error)

	// ListRecords returns a page of a run's bin records ordered by
	// (baseline, bin index).
	ListRecords(runID string, limit, offset int) ([]*bda.BinRecord, error)

	// Summary aggregates a run's bin records.
	Summary(runID string) (*Summary, error)
}

type sqlRunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a repository over an open DuckDB handle.
func NewRunRepository(db *sql.DB) RunRepository {
	return &sqlRunRepository{db: db}
}

func (r *sqlRunRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			observation VARCHAR NOT NULL,
			threshold DOUBLE NOT NULL,
			lm_extent DOUBLE NOT NULL,
			ref_freq DOUBLE NOT NULL,
			num_rows INTEGER NOT NULL,
			num_baselines INTEGER NOT NULL,
			num_records INTEGER NOT NULL,
			site_lat DOUBLE NOT NULL,
			site_lon DOUBLE NOT NULL,
			site_cell VARCHAR NOT NULL
		);

		CREATE TABLE IF NOT EXISTS bin_records (
			run_id VARCHAR NOT NULL,
			ant1 INTEGER NOT NULL,
			ant2 INTEGER NOT NULL,
			bin_index INTEGER NOT NULL,
			time_lower DOUBLE NOT NULL,
			u_lower DOUBLE NOT NULL,
			v_lower DOUBLE NOT NULL,
			w_lower DOUBLE NOT NULL,
			num_rows INTEGER NOT NULL,
			num_chan_bins INTEGER NOT NULL,
			chan_bin_start VARCHAR NOT NULL,
			UNIQUE(run_id, ant1, ant2, bin_index)
		);
	`)

	return err
}

func (r *sqlRunRepository) SaveRun(run *Run, records []bda.BinRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO runs(
			id, created_at, observation, threshold, lm_extent, ref_freq,
			num_rows, num_baselines, num_records, site_lat, site_lon, site_cell
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.CreatedAt,
		run.Observation,
		run.Threshold,
		run.LMExtent,
		run.RefFreq,
		run.NumRows,
		run.NumBaselines,
		run.NumRecords,
		run.SiteLat,
		run.SiteLon,
		run.SiteCell,
	); err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			err = rErr
		}

		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO bin_records(
			run_id, ant1, ant2, bin_index, time_lower,
			u_lower, v_lower, w_lower, num_rows, num_chan_bins, chan_bin_start
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			err = rErr
		}

		return err
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]

		chanBins, err := json.Marshal(rec.ChanBinStart)
		if err != nil {
			if rErr := tx.Rollback(); rErr != nil {
				err = rErr
			}

			return fmt.Errorf("marshaling channel bins: %w", err)
		}

		if _, err := stmt.Exec(
			run.ID,
			rec.Baseline.A1,
			rec.Baseline.A2,
			rec.BinIndex,
			rec.TimeLower,
			rec.ULower,
			rec.VLower,
			rec.WLower,
			rec.NumRows,
			len(rec.ChanBinStart),
			string(chanBins),
		); err != nil {
			if rErr := tx.Rollback(); rErr != nil {
				err = rErr
			}

			return fmt.Errorf("inserting bin record %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (r *sqlRunRepository) ListRuns() ([]*Run, error) {
	rows, err := r.db.Query(`
		SELECT id, created_at, observation, threshold, lm_extent, ref_freq,
		       num_rows, num_baselines, num_records, site_lat, site_lon, site_cell
		FROM runs
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}

	err := row.Scan(
		&run.ID,
		&run.CreatedAt,
		&run.Observation,
		&run.Threshold,
		&run.LMExtent,
		&run.RefFreq,
		&run.NumRows,
		&run.NumBaselines,
		&run.NumRecords,
		&run.SiteLat,
		&run.SiteLon,
		&run.SiteCell,
	)
	if err != nil {
		return nil, err
	}

	return run, nil
}

func (r *sqlRunRepository) GetRun(id string) (*Run, error) {
	row := r.db.QueryRow(`
		SELECT id, created_at, observation, threshold, lm_extent, ref_freq,
		       num_rows, num_baselines, num_records, site_lat, site_lon, site_cell
		FROM runs
		WHERE id = ?
	`, id)

	return scanRun(row)
}

func (r *sqlRunRepository) ListRecords(runID string, limit, offset int) ([]*bda.BinRecord, error) {
	rows, err := r.db.Query(`
		SELECT ant1, ant2, bin_index, time_lower,
		       u_lower, v_lower, w_lower, num_rows, chan_bin_start
		FROM bin_records
		WHERE run_id = ?
		ORDER BY ant1, ant2, bin_index
		LIMIT ? OFFSET ?
	`, runID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*bda.BinRecord

	for rows.Next() {
		rec := &bda.BinRecord{}

		var chanBins string

		if err := rows.Scan(
			&rec.Baseline.A1,
			&rec.Baseline.A2,
			&rec.BinIndex,
			&rec.TimeLower,
			&rec.ULower,
			&rec.VLower,
			&rec.WLower,
			&rec.NumRows,
			&chanBins,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(chanBins), &rec.ChanBinStart); err != nil {
			return nil, fmt.Errorf("parsing channel bins: %w", err)
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

func (r *sqlRunRepository) Summary(runID string) (*Summary, error) {
	summary := &Summary{RunID: runID}

	err := r.db.QueryRow(`
		SELECT count(*),
		       coalesce(sum(num_rows), 0),
		       coalesce(avg(num_rows), 0),
		       coalesce(max(num_rows), 0),
		       coalesce(avg(num_chan_bins), 0)
		FROM bin_records
		WHERE run_id = ?
	`, runID).Scan(
		&summary.NumRecords,
		&summary.NumRows,
		&summary.MeanRowsPerBin,
		&summary.MaxRowsPerBin,
		&summary.MeanChanBins,
	)
	if err != nil {
		return nil, err
	}

	return summary, nil
}
