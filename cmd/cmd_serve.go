// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"

	"github.com/radome-labs/bdamap/server"
	"github.com/radome-labs/bdamap/store"
)

var serveOptions = struct {
	DbPath string
	Listen string
}{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored averaging maps over a local HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		if _, err := os.Stat(serveOptions.DbPath); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("database not found at %s - run 'map' first", serveOptions.DbPath)
		}

		db, err := sql.Open("duckdb", serveOptions.DbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		repo := store.NewRunRepository(db)
		if err := repo.CreateSchema(); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}

		fmt.Printf("Serving averaging maps on http://%s (local only)\n", serveOptions.Listen)

		return server.NewServer(repo).Run(serveOptions.Listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveOptions.DbPath, "db", "bdamap.duckdb", "database file holding stored maps")
	serveCmd.Flags().StringVar(&serveOptions.Listen, "listen", "localhost:8080", "listen address")
}
