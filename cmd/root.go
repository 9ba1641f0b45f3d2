// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/config"
	"github.com/Thermoquad/ebustat/pkg/logging"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// TCP connection flag
	tcpAddr string

	// Decoder flags
	catalogPath    string
	parseThreshold int

	configPath string
	logLevel   string
	logFormat  string
)

var (
	settings config.Config
	logger   = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "ebustat",
	Short: "eBUS Protocol Analyzer",
	Long: `ebustat - A CLI tool for monitoring and decoding eBUS heating bus traffic
received through an enhanced-protocol adapter.

Provides commands for raw telegram logging, catalog based value decoding,
error detection and passive participant discovery.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 2400]
  WebSocket: --url ws://host/path [--username user]
  TCP:       --tcp host:9999

Settings may also be read from a TOML file with --config. Flags given on the
command line take precedence over the file.

For WebSocket authentication, the password is read from the EBUSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	PersistentPreRunE: loadSettings,
	SilenceUsage:      true,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 2400, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// TCP connection flag
	rootCmd.PersistentFlags().StringVarP(&tcpAddr, "tcp", "t", "", "TCP adapter address (host:port)")

	rootCmd.PersistentFlags().StringVarP(&catalogPath, "catalog", "c", "", "Message catalog file (YAML or JSON)")
	rootCmd.PersistentFlags().IntVar(&parseThreshold, "parse-threshold", 1, "Bytes buffered before a parse pass")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
}

// loadSettings merges the config file with the flags that were set explicitly
func loadSettings(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	applyFlags(&cfg, cmd.Flags().Changed)

	if err := cfg.Validate(); err != nil {
		return err
	}

	l, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	settings = cfg
	logger = l
	return nil
}

// applyFlags copies the explicitly set flags over cfg
func applyFlags(cfg *config.Config, changed func(name string) bool) {
	// A connection flag replaces the file's connection rather than adding to it
	if changed("port") || changed("url") || changed("tcp") {
		cfg.Connection.Port = ""
		cfg.Connection.URL = ""
		cfg.Connection.TCP = ""
	}
	if changed("port") {
		cfg.Connection.Port = portName
	}
	if changed("baud") {
		cfg.Connection.Baud = baudRate
	}
	if changed("url") {
		cfg.Connection.URL = wsURL
	}
	if changed("username") {
		cfg.Connection.Username = wsUsername
	}
	if changed("no-ssl-verify") {
		cfg.Connection.NoSSLVerify = wsNoSSLVerify
	}
	if changed("tcp") {
		cfg.Connection.TCP = tcpAddr
	}
	if changed("catalog") {
		cfg.Catalog.Path = catalogPath
	}
	if changed("parse-threshold") {
		cfg.Parser.Threshold = parseThreshold
	}
	if changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if changed("log-format") {
		cfg.Logging.Format = logFormat
	}
}

// loadCatalog loads the configured catalog, or returns nil when none is set.
// Unsupported field types are reported once here; their fields are skipped
// while decoding.
func loadCatalog(required bool) (*catalog.Catalog, error) {
	if settings.Catalog.Path == "" {
		if required {
			return nil, fmt.Errorf("--catalog must be specified")
		}
		return nil, nil
	}

	c, err := catalog.Load(settings.Catalog.Path)
	if err != nil {
		return nil, err
	}
	for _, t := range c.UnsupportedTypes() {
		logger.Warn().Str("data_type", t).Msg("unsupported data type, fields will be skipped")
	}
	logger.Info().
		Str("path", settings.Catalog.Path).
		Int("messages", len(c.Definitions)).
		Int("fields", c.FieldCount()).
		Msg("catalog loaded")
	return c, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
