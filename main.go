// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// ebustat - eBUS Protocol Analyzer
//
// A CLI tool for monitoring and decoding eBUS heating bus telegrams
// in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/ebustat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
