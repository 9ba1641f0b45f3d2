// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze bus errors",
	Long: `Track discarded telegrams, adapter errors and framing problems with statistics.

This command detects:
  - Checksum mismatches on requests and responses
  - Length violations (more than 16 data bytes)
  - NACKed requests and responses
  - Protocol errors (unexpected bytes where an acknowledge was due)
  - Malformed adapter escape sequences
  - Adapter bus and host errors
  - Statistics and trends (telegram rate, error rate)

By default, only errors are displayed. Use --show-all to display valid telegrams too.
With --catalog, the terminal UI also shows a table of the latest decoded values.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all telegrams (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(false)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if useTUI {
		return runTUIMode(ctx, conn, connInfo, cat)
	}
	return runTextMode(ctx, conn, connInfo, cat)
}

// printDrop prints a discarded telegram in highlighted format
func printDrop(reason ebus.DropReason, req ebus.Request) {
	timestamp := time.Now().Format("15:04:05.000")
	color := "1;31"
	if reason == ebus.DropNACK {
		color = "1;33"
	}
	fmt.Printf("[%s] \033[%smDROPPED:\033[0m %s\n", timestamp, color, reason)
	fmt.Printf("  %s\n", ebus.FormatRequest(&req))
	fmt.Printf("  >>> TELEGRAM REJECTED <<<\n\n")
}

// printAdapterEvent prints adapter errors, and other events with --show-all
func printAdapterEvent(ev ebus.AdapterEvent) {
	timestamp := time.Now().Format("15:04:05.000")
	switch ev.Kind {
	case ebus.AdapterBusError, ebus.AdapterHostError, ebus.AdapterUnknown:
		fmt.Printf("[%s] \033[1;31mADAPTER ERROR:\033[0m %s\n\n", timestamp, ebus.FormatAdapterEvent(ev))
	case ebus.AdapterReset:
		fmt.Printf("[%s] \033[1;32mADAPTER RESET:\033[0m %s\n\n", timestamp, ebus.FormatAdapterEvent(ev))
	default:
		if showAll {
			fmt.Printf("[%s] ADAPTER: %s\n", timestamp, ebus.FormatAdapterEvent(ev))
		}
	}
}

// runTUIMode runs error detection in TUI mode. The decoder runs in the
// reader goroutine and hands results to the model as messages.
func runTUIMode(ctx context.Context, conn Connection, connInfo string, cat *catalog.Catalog) error {
	m := initialModel(connInfo, statsInterval, showAll, cat != nil)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	d := newDecoder(cat, nil)
	d.onTelegram = func(req ebus.Request, resp *ebus.Response, records []catalog.Record) {
		p.Send(telegramMsg{req: req, resp: resp, records: records})
	}
	d.onDrop = func(reason ebus.DropReason, req ebus.Request) {
		p.Send(dropMsg{reason: reason, req: req})
	}
	d.onAdapter = func(ev ebus.AdapterEvent) {
		p.Send(adapterMsg{ev: ev})
	}

	go func() {
		var framing uint64
		_ = readLoop(ctx, conn, func(chunk []byte) {
			d.feed(chunk)
			if n := d.pipeline.FramingErrors(); n != framing {
				framing = n
				p.Send(framingMsg{total: n})
			}
		})
		p.Send(disconnectedMsg{})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(ctx context.Context, conn Connection, connInfo string, cat *catalog.Catalog) error {
	fmt.Printf("ebustat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All telegrams\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	d := newDecoder(cat, nil)
	synchronized := false
	var framing uint64

	d.onTelegram = func(req ebus.Request, resp *ebus.Response, records []catalog.Record) {
		if !synchronized {
			synchronized = true
			fmt.Printf("[SYNC] First valid telegram received\n\n")
		}
		if showAll {
			fmt.Print(ebus.FormatTelegram(&req, resp))
			for _, r := range records {
				fmt.Printf("  %s\n", formatRecord(r))
			}
		}
	}
	d.onDrop = printDrop
	d.onAdapter = printAdapterEvent

	// Statistics ticker
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Chunks are copied so the reader can reuse its buffer
	chunks := make(chan []byte, 16)
	go func() {
		_ = readLoop(ctx, conn, func(chunk []byte) {
			data := make([]byte, len(chunk))
			copy(data, chunk)
			chunks <- data
		})
		close(chunks)
	}()

	for {
		select {
		case data, ok := <-chunks:
			if !ok {
				d.flush()
				fmt.Println()
				fmt.Print(d.stats.String())
				return nil
			}
			d.feed(data)
			if n := d.pipeline.FramingErrors(); n != framing {
				fmt.Printf("[%s] \033[1;31mFRAMING ERROR:\033[0m %d malformed escape sequence(s) skipped\n\n",
					time.Now().Format("15:04:05.000"), n-framing)
				framing = n
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(d.stats.String())
			fmt.Println()
		}
	}
}
