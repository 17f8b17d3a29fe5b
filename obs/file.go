// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package obs

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// headerFile holds the observation metadata.
	headerFile = "observation.json"
	// rowsFile holds the visibility rows, one per line.
	rowsFile = "rows.csv"
)

var csvColumns = []string{"time", "interval", "ant1", "ant2", "u", "v", "w"}

// Load reads an observation from a directory holding observation.json and
// rows.csv, and validates it.
func Load(dir string) (*Observation, error) {
	data, err := os.ReadFile(filepath.Clean(filepath.Join(dir, headerFile)))
	if err != nil {
		return nil, fmt.Errorf("reading observation header: %w", err)
	}

	o := &Observation{}
	if err := json.Unmarshal(data, &o.Header); err != nil {
		return nil, fmt.Errorf("parsing observation header: %w", err)
	}

	f, err := os.Open(filepath.Clean(filepath.Join(dir, rowsFile)))
	if err != nil {
		return nil, fmt.Errorf("opening rows file: %w", err)
	}
	defer f.Close()

	if err := o.readRows(f); err != nil {
		return nil, err
	}

	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", dir, err)
	}

	return o, nil
}

func (o *Observation) readRows(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading rows header: %w", err)
	}

	if len(header) != len(csvColumns) {
		return fmt.Errorf("expected %d columns, got %d", len(csvColumns), len(header))
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return fmt.Errorf("reading rows: %w", err)
		}

		fields := make([]float64, len(csvColumns))
		for i, s := range record {
			fields[i], err = strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("line %d, column %s: %w", line, csvColumns[i], err)
			}
		}

		o.Time = append(o.Time, fields[0])
		o.Interval = append(o.Interval, fields[1])
		o.Ant1 = append(o.Ant1, int(fields[2]))
		o.Ant2 = append(o.Ant2, int(fields[3]))
		o.UVW = append(o.UVW, [3]float64{fields[4], fields[5], fields[6]})
	}

	return nil
}

// Write stores the observation into a directory, creating it if needed.
func (o *Observation) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating observation directory: %w", err)
	}

	data, err := json.MarshalIndent(o.Header, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling observation header: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, headerFile), data, 0o600); err != nil {
		return fmt.Errorf("writing observation header: %w", err)
	}

	f, err := os.Create(filepath.Clean(filepath.Join(dir, rowsFile)))
	if err != nil {
		return fmt.Errorf("creating rows file: %w", err)
	}

	if err := o.writeRows(f); err != nil {
		f.Close()

		return err
	}

	return f.Close()
}

func (o *Observation) writeRows(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("writing rows header: %w", err)
	}

	record := make([]string, len(csvColumns))

	for r := 0; r < o.NumRows(); r++ {
		record[0] = strconv.FormatFloat(o.Time[r], 'g', -1, 64)
		record[1] = strconv.FormatFloat(o.Interval[r], 'g', -1, 64)
		record[2] = strconv.Itoa(o.Ant1[r])
		record[3] = strconv.Itoa(o.Ant2[r])
		record[4] = strconv.FormatFloat(o.UVW[r][0], 'g', -1, 64)
		record[5] = strconv.FormatFloat(o.UVW[r][1], 'g', -1, 64)
		record[6] = strconv.FormatFloat(o.UVW[r][2], 'g', -1, 64)

		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", r, err)
		}
	}

	writer.Flush()

	return writer.Error()
}
