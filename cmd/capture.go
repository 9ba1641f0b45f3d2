// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ebustat/pkg/capture"
	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
)

var (
	captureOutput   string
	captureDuration int
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record raw adapter bytes to a file",
	Long: `Record the raw byte stream from the adapter to a capture file.

Bytes are stored exactly as received, before deframing, together with their
arrival time. The file can be decoded later with 'ebustat replay', with or
without a catalog.

Examples:
  ebustat capture --port /dev/ttyUSB0 --output boiler.cbor
  ebustat capture --tcp 192.168.1.20:9999 --output night.cbor --duration 3600`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringVarP(&captureOutput, "output", "o", "", "Capture file to write")
	captureCmd.Flags().IntVar(&captureDuration, "duration", 0, "Stop after this many seconds (0 = until Ctrl+C)")
	_ = captureCmd.MarkFlagRequired("output")
}

func runCapture(cmd *cobra.Command, args []string) error {
	f, err := os.Create(captureOutput)
	if err != nil {
		return fmt.Errorf("failed to create capture file: %w", err)
	}
	defer f.Close()

	out := bufio.NewWriter(f)
	w := capture.NewWriter(out)

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("ebustat - Capture\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Output: %s\n", captureOutput)
	if captureDuration > 0 {
		fmt.Printf("Duration: %d seconds\n", captureDuration)
	}
	fmt.Printf("Press Ctrl+C to stop\n\n")

	ctx, cancel := signalContext()
	defer cancel()
	if captureDuration > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, time.Duration(captureDuration)*time.Second)
		defer timeoutCancel()
	}

	// Decode alongside recording so the operator can see the bus is alive
	d := newDecoder(nil, nil)
	d.onTelegram = func(req ebus.Request, resp *ebus.Response, _ []catalog.Record) {
		logger.Debug().
			Str("src", req.SrcHex()).
			Str("dst", req.DestHex()).
			Str("cmd", req.CommandHex()).
			Bool("response", resp != nil).
			Msg("telegram")
	}

	var writeErr error
	err = readLoop(ctx, conn, func(chunk []byte) {
		if writeErr != nil {
			return
		}
		if writeErr = w.WriteChunk(chunk); writeErr != nil {
			cancel()
			return
		}
		d.feed(chunk)
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("failed to flush capture file: %w", err)
	}

	chunks, bytes := w.Stats()
	fmt.Printf("\n--- Capture summary ---\n")
	fmt.Printf("Chunks: %d\n", chunks)
	fmt.Printf("Bytes: %d\n", bytes)
	fmt.Printf("Valid telegrams: %d\n", d.stats.ValidTelegrams)
	return nil
}
