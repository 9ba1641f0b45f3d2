// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
	"github.com/Thermoquad/ebustat/pkg/metrics"
	"github.com/Thermoquad/ebustat/pkg/server"
	"github.com/Thermoquad/ebustat/pkg/sink"
)

var (
	decodeQuiet     bool
	decodeUnmatched bool
	decodeLogSink   bool
	decodeHTTP      string
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode catalog values from bus traffic",
	Long: `Match every telegram against the message catalog and decode the
named, scaled field values it describes.

Decoded records are printed and published to every configured sink:
  - MQTT:     [mqtt] section of the config file, one retained topic per field
              (<prefix>/<circuit>/<field>)
  - InfluxDB: [influxdb] section of the config file, one point per record
  - Log:      --log-sink, one structured log entry per record

With --http (or the [http] config section) a server exposes Prometheus
metrics on /metrics, the latest values on /api/values, bus statistics on
/api/stats and a live record stream on /ws.`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVarP(&decodeQuiet, "quiet", "q", false, "Do not print decoded records")
	decodeCmd.Flags().BoolVar(&decodeUnmatched, "show-unmatched", false, "Print telegrams no catalog entry matched")
	decodeCmd.Flags().BoolVar(&decodeLogSink, "log-sink", false, "Log every record as a structured entry")
	decodeCmd.Flags().StringVar(&decodeHTTP, "http", "", "Serve metrics and values on this address (e.g. :9120)")
}

func runDecode(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(true)
	if err != nil {
		return err
	}

	httpCfg := settings.HTTP
	if cmd.Flags().Changed("http") {
		httpCfg.Enabled = decodeHTTP != ""
		httpCfg.Listen = decodeHTTP
	}

	var sinks sink.Multi
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error().Err(err).Msg("closing sinks")
		}
	}()

	if settings.MQTT.Enabled {
		s, err := sink.ConnectMQTT(settings.MQTT, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, s)
	}
	if settings.InfluxDB.Enabled {
		s, err := sink.ConnectInflux(settings.InfluxDB, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, s)
	}
	if decodeLogSink {
		sinks = append(sinks, sink.NewLogSink(logger))
	}

	ctx, cancel := signalContext()
	defer cancel()

	var m *metrics.Metrics
	var srv *server.Server
	serverDone := make(chan struct{})
	if httpCfg.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		srv = server.New(reg, logger)
		sinks = append(sinks, srv)
		go func() {
			defer close(serverDone)
			if err := srv.ListenAndServe(ctx, httpCfg.Listen); err != nil {
				logger.Error().Err(err).Str("addr", httpCfg.Listen).Msg("http server failed")
				cancel()
			}
		}()
	} else {
		close(serverDone)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("ebustat - Catalog Decoder\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Catalog: %s (%d messages)\n", settings.Catalog.Path, len(cat.Definitions))
	if srv != nil {
		fmt.Printf("HTTP: %s\n", httpCfg.Listen)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	d := newDecoder(cat, m)
	d.onTelegram = func(req ebus.Request, resp *ebus.Response, records []catalog.Record) {
		if !decodeQuiet {
			if len(records) == 0 && decodeUnmatched {
				fmt.Print(ebus.FormatTelegram(&req, resp))
			}
			for _, r := range records {
				fmt.Println(formatRecord(r))
			}
		}

		if len(sinks) > 0 {
			ev := sink.Event{Request: req, Response: resp, Records: records}
			if err := sinks.Publish(ctx, ev); err != nil {
				logger.Error().Err(err).Msg("publish failed")
			}
		}
	}

	feed := d.feed
	if srv != nil {
		feed = func(chunk []byte) {
			d.feed(chunk)
			srv.UpdateStats(server.StatsFrom(d.stats))
		}
	}

	err = readLoop(ctx, conn, feed)
	d.flush()
	cancel()

	<-serverDone

	fmt.Println()
	fmt.Print(d.stats.String())
	return err
}

// formatRecord formats a record on one line
func formatRecord(r catalog.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", r.Time.Format("15:04:05.000"), r.Circuit)
	if r.Message != "" {
		fmt.Fprintf(&b, " (%s)", r.Message)
	}
	if !r.Extracted() {
		b.WriteString(": matched")
		return b.String()
	}
	b.WriteString(":")
	for _, f := range r.Fields {
		fmt.Fprintf(&b, " %s=%s", f.Name, f.Value)
		if f.Unit != "" {
			b.WriteString(f.Unit)
		}
	}
	return b.String()
}
