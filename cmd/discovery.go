// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
)

var discoveryTimeout int

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Discover bus participants by listening",
	Long: `Listen to the bus and list every address seen.

Discovery is passive: nothing is transmitted. Masters are found from the
source of each valid telegram, slaves from the destination of telegrams they
acknowledged and answered. The commands seen for each address are listed too.

Examples:
  # Listen for 30 seconds on a serial adapter
  ebustat discovery --port /dev/ttyUSB0 --timeout 30

  # Network adapter
  ebustat discovery --tcp 192.168.1.20:9999

Exit codes:
  0 - Discovery successful (at least one participant found)
  1 - No valid telegram seen before the timeout
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 30, "Listening time in seconds")
}

// participant is one address seen on the bus
type participant struct {
	address  byte
	sent     int
	answered int
	commands map[uint16]int
}

// participants collects addresses from decoded telegrams
type participants map[byte]*participant

func (ps participants) get(addr byte) (*participant, bool) {
	p, ok := ps[addr]
	if !ok {
		p = &participant{
			address:  addr,
			commands: make(map[uint16]int),
		}
		ps[addr] = p
	}
	return p, !ok
}

// observe records the source of every telegram and the destination of every
// answered master-slave telegram. It returns the addresses seen for the
// first time.
func (ps participants) observe(req *ebus.Request, resp *ebus.Response) []byte {
	var added []byte

	src, isNew := ps.get(req.Src)
	if isNew {
		added = append(added, req.Src)
	}
	src.sent++
	src.commands[req.Command()]++

	if resp != nil {
		dst, isNew := ps.get(req.Dest)
		if isNew {
			added = append(added, req.Dest)
		}
		dst.answered++
		dst.commands[req.Command()]++
	}
	return added
}

// sorted returns participants ordered by address
func (ps participants) sorted() []*participant {
	list := make([]*participant, 0, len(ps))
	for _, p := range ps {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].address < list[j].address })
	return list
}

func (p *participant) commandList() string {
	cmds := make([]uint16, 0, len(p.commands))
	for c := range p.commands {
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i] < cmds[j] })

	parts := make([]string, 0, len(cmds))
	for _, c := range cmds {
		parts = append(parts, fmt.Sprintf("%04X(%d)", c, p.commands[c]))
	}
	return strings.Join(parts, " ")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("ebustat - Participant Discovery\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n\n", discoveryTimeout)

	found := make(participants)
	d := newDecoder(nil, nil)
	d.onTelegram = func(req ebus.Request, resp *ebus.Response, _ []catalog.Record) {
		for _, addr := range found.observe(&req, resp) {
			fmt.Printf("[%s] Found %s\n", time.Now().Format("15:04:05.000"), ebus.FormatAddress(addr))
		}
	}

	sigCtx, cancel := signalContext()
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(sigCtx, time.Duration(discoveryTimeout)*time.Second)
	defer timeoutCancel()

	if err := readLoop(ctx, conn, d.feed); err != nil {
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	}
	d.flush()

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Telegrams: %d valid, %d errors\n", d.stats.ValidTelegrams, d.stats.Errors())
	fmt.Printf("Participants found: %d\n", len(found))

	if len(found) == 0 {
		fmt.Printf("No participants discovered. Check the adapter connection and baud rate.\n")
		os.Exit(1)
	}

	fmt.Println()
	for _, p := range found.sorted() {
		fmt.Printf("  %-18s sent=%-5d answered=%-5d %s\n",
			ebus.FormatAddress(p.address), p.sent, p.answered, p.commandList())
	}

	return nil
}
