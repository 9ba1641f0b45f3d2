// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ebustat/pkg/capture"
	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
)

var (
	replaySpeed     float64
	replayShowDrops bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Decode a capture file",
	Long: `Feed a capture file recorded with 'ebustat capture' through the decoder.

Without --catalog, telegrams are printed like raw_log. With --catalog, matched
records and their decoded values are printed too.

By default the capture is decoded as fast as possible. --speed 1 replays in
real time, --speed 10 ten times faster.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "Playback speed factor (0 = as fast as possible)")
	replayCmd.Flags().BoolVar(&replayShowDrops, "show-drops", false, "Show discarded telegrams")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if replaySpeed < 0 {
		return fmt.Errorf("--speed must not be negative")
	}

	cat, err := loadCatalog(false)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer f.Close()

	d := newDecoder(cat, nil)
	d.onTelegram = func(req ebus.Request, resp *ebus.Response, records []catalog.Record) {
		fmt.Print(ebus.FormatTelegram(&req, resp))
		for _, r := range records {
			fmt.Printf("  %s\n", formatRecord(r))
		}
	}
	if replayShowDrops {
		d.onDrop = func(reason ebus.DropReason, req ebus.Request) {
			fmt.Printf("[DROP] %s %s\n", reason, ebus.FormatRequest(&req))
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	n, err := capture.Replay(ctx, capture.NewReader(bufio.NewReader(f)), d.feed, capture.ReplayOptions{Speed: replaySpeed})
	d.flush()

	fmt.Printf("\nReplayed %d chunks from %s\n", n, args[0])
	fmt.Print(d.stats.String())

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
