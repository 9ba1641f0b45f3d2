// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
)

var telegramTestTimeout int

var telegramTestCmd = &cobra.Command{
	Use:   "telegram_test",
	Short: "Test connection by waiting for a valid telegram",
	Long: `Wait for a valid eBUS telegram on the connection until timeout.

This command connects to a serial port, WebSocket or TCP adapter and waits for
any telegram that passes its checksum. Discarded telegrams and adapter events
are counted but do not end the test.

Exit codes:
  0 - Telegram received before timeout
  1 - Timeout reached without receiving a valid telegram
  2 - Connection error

Useful for checking the adapter wiring and baud rate.`,
	RunE: runTelegramTest,
}

func init() {
	rootCmd.AddCommand(telegramTestCmd)
	telegramTestCmd.Flags().IntVar(&telegramTestTimeout, "timeout", 10, "Timeout in seconds to wait for a telegram")
}

type testResult struct {
	req     ebus.Request
	resp    *ebus.Response
	skipped uint64
}

func runTelegramTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("ebustat - Telegram Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", telegramTestTimeout)
	fmt.Printf("Waiting for valid telegram...\n\n")

	resultChan := make(chan testResult, 1)
	errChan := make(chan error, 1)

	d := newDecoder(nil, nil)
	d.onTelegram = func(req ebus.Request, resp *ebus.Response, _ []catalog.Record) {
		select {
		case resultChan <- testResult{req: req, resp: resp, skipped: d.stats.Errors() + d.stats.NACKs}:
		default:
		}
	}

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				d.feed(buf[:n])
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	select {
	case res := <-resultChan:
		if res.skipped > 0 {
			fmt.Printf("(skipped %d discarded telegrams before sync)\n", res.skipped)
		}
		fmt.Printf("SUCCESS: Received valid telegram\n")
		fmt.Printf("  Type: %s\n", ebus.TelegramKind(&res.req))
		fmt.Printf("  Source: %s\n", ebus.FormatAddress(res.req.Src))
		fmt.Printf("  Destination: %s\n", ebus.FormatAddress(res.req.Dest))
		fmt.Printf("  Command: %s\n", res.req.CommandHex())
		fmt.Printf("  Length: %d bytes\n", res.req.Length)
		fmt.Printf("  CRC: 0x%02X\n", res.req.CRC)
		if res.resp != nil {
			fmt.Printf("  Response: %d bytes [%s]\n", res.resp.Length, res.resp.DataHex())
		}
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(telegramTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid telegram received within %d seconds\n", telegramTestTimeout)
		os.Exit(1)
	}

	return nil
}
