// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/radome-labs/bdamap/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
