// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
)

var (
	rawShowDrops   bool
	rawShowAdapter bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw telegram log in human-readable format",
	Long: `Continuously decode and display eBUS telegrams as they arrive.

Each telegram is shown with a timestamp, its type (broadcast, master-master or
master-slave), the request fields and, if the slave answered, the response.

Discarded telegrams (checksum errors, NACKs, length violations) and adapter
status events can be shown as well.

Supports serial, WebSocket and TCP connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawShowDrops, "show-drops", false, "Show discarded telegrams")
	rawLogCmd.Flags().BoolVar(&rawShowAdapter, "show-adapter", false, "Show adapter status events")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("ebustat - Raw Telegram Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	d := newDecoder(nil, nil)
	d.onTelegram = func(req ebus.Request, resp *ebus.Response, _ []catalog.Record) {
		fmt.Print(ebus.FormatTelegram(&req, resp))
	}
	if rawShowDrops {
		d.onDrop = func(reason ebus.DropReason, req ebus.Request) {
			fmt.Printf("[%s] [DROP] %s %s\n", time.Now().Format("15:04:05.000"), reason, ebus.FormatRequest(&req))
		}
	}
	if rawShowAdapter {
		d.onAdapter = func(ev ebus.AdapterEvent) {
			fmt.Printf("[%s] [ADAPTER] %s\n", time.Now().Format("15:04:05.000"), ebus.FormatAdapterEvent(ev))
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	err = readLoop(ctx, conn, d.feed)
	d.flush()
	fmt.Println()
	fmt.Print(d.stats.String())
	return err
}
