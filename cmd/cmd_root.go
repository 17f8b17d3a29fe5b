// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "bdamap",
	Short: "baseline-dependent averaging maps for interferometric visibilities",
	Long: `
bdamap decides how far visibility samples can be averaged in time and
frequency on each baseline before decorrelation exceeds a tolerance, and
stores the resulting bin map for downstream averaging stages.
`,
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var countPrinter = message.NewPrinter(language.English)

// formatInt renders a count with thousands separators.
func formatInt(n int) string {
	return countPrinter.Sprintf("%d", n)
}
