// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and test a message catalog",
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a catalog file",
	Long: `Load the catalog given with --catalog and report its contents.

Exit codes:
  0 - Catalog is valid and every data type is supported
  1 - Catalog is valid but uses unsupported data types
  2 - Catalog could not be loaded`,
	RunE: runCatalogCheck,
}

var catalogDecodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode bus bytes against the catalog",
	Long: `Decode a telegram given as hex bus bytes and print the matched records.

The bytes are the logical bus symbols, starting with the source address and
ending with the slave's final ACK for master-slave telegrams. Spaces are
ignored. A leading and trailing SYN is added.

Example:
  ebustat catalog decode -c examples/vaillant.yaml "10 08 B5 09 01 0D A1 00 02 64 00 FE 00"`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogDecode,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogCheckCmd)
	catalogCmd.AddCommand(catalogDecodeCmd)
}

func runCatalogCheck(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Catalog: %s\n", settings.Catalog.Path)
	if cat.Appliance != "" {
		fmt.Printf("Appliance: %s\n", cat.Appliance)
	}
	if cat.Bus != "" {
		fmt.Printf("Bus: %s\n", cat.Bus)
	}
	fmt.Printf("Messages: %d\n", len(cat.Definitions))
	fmt.Printf("Fields: %d\n\n", cat.FieldCount())

	for _, d := range cat.Definitions {
		m := d.Message.RequestMatch
		fmt.Printf("  %-20s src=%-4s dst=%-4s pbsb=%-6s data=%-8s req=%d resp=%d  %s\n",
			d.Circuit, orAny(m.Src), orAny(m.Dst), orAny(m.PBSB), orAny(m.Data),
			len(d.Message.RequestMap), len(d.Message.ResponseMap), d.Message.Comment)
	}

	if unsupported := cat.UnsupportedTypes(); len(unsupported) > 0 {
		fmt.Printf("\nUnsupported data types: %s\n", strings.Join(unsupported, ", "))
		os.Exit(1)
	}

	fmt.Printf("\nOK\n")
	return nil
}

func orAny(pattern string) string {
	if pattern == "" {
		return "*"
	}
	return pattern
}

func runCatalogDecode(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(true)
	if err != nil {
		return err
	}

	bus, err := hex.DecodeString(strings.Join(strings.Fields(args[0]), ""))
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}

	frame := make([]byte, 0, len(bus)+2)
	frame = append(frame, ebus.SYN)
	frame = append(frame, bus...)
	frame = append(frame, ebus.SYN)

	matched := 0
	d := newDecoder(cat, nil)
	d.onTelegram = func(req ebus.Request, resp *ebus.Response, records []catalog.Record) {
		fmt.Print(ebus.FormatTelegram(&req, resp))
		for _, r := range records {
			fmt.Printf("  %s\n", formatRecord(r))
		}
		matched += len(records)
	}
	d.onDrop = func(reason ebus.DropReason, req ebus.Request) {
		fmt.Printf("DROPPED: %s %s\n", reason, ebus.FormatRequest(&req))
	}

	d.feed(ebus.EscapeEnhanced(frame))
	d.flush()

	if d.stats.ValidTelegrams == 0 {
		return fmt.Errorf("no valid telegram in input")
	}
	if matched == 0 {
		fmt.Printf("No catalog entry matched\n")
	}
	return nil
}
