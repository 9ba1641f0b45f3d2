// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the optional ebustat TOML configuration file.
// Command-line flags are applied on top of it by the cmd package.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfig is returned when a configuration value is out of range
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full configuration
type Config struct {
	Connection ConnectionConfig `toml:"connection"`
	Catalog    CatalogConfig    `toml:"catalog"`
	Parser     ParserConfig     `toml:"parser"`
	Logging    LoggingConfig    `toml:"logging"`
	MQTT       MQTTConfig       `toml:"mqtt"`
	InfluxDB   InfluxDBConfig   `toml:"influxdb"`
	HTTP       HTTPConfig       `toml:"http"`
}

// ConnectionConfig selects the byte source. Exactly one of Port, URL or TCP
// should be set.
type ConnectionConfig struct {
	Port        string `toml:"port"`
	Baud        int    `toml:"baud"`
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	NoSSLVerify bool   `toml:"no_ssl_verify"`
	TCP         string `toml:"tcp"`
}

type CatalogConfig struct {
	Path string `toml:"path"`
}

type ParserConfig struct {
	Threshold int `toml:"threshold"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MQTTConfig configures the MQTT publishing sink
type MQTTConfig struct {
	Enabled  bool   `toml:"enabled"`
	Broker   string `toml:"broker"`
	ClientID string `toml:"client_id"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Prefix   string `toml:"prefix"`
	QoS      int    `toml:"qos"`
	Retain   bool   `toml:"retain"`
}

// InfluxDBConfig configures the InfluxDB sink
type InfluxDBConfig struct {
	Enabled       bool   `toml:"enabled"`
	URL           string `toml:"url"`
	Token         string `toml:"token"`
	Org           string `toml:"org"`
	Bucket        string `toml:"bucket"`
	Measurement   string `toml:"measurement"`
	BatchSize     int    `toml:"batch_size"`
	FlushInterval string `toml:"flush_interval"`
}

// FlushDuration parses FlushInterval
func (c InfluxDBConfig) FlushDuration() (time.Duration, error) {
	if strings.TrimSpace(c.FlushInterval) == "" {
		return 0, nil
	}
	return time.ParseDuration(strings.TrimSpace(c.FlushInterval))
}

// HTTPConfig configures the metrics and live values server
type HTTPConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Connection: ConnectionConfig{Baud: 2400},
		Parser:     ParserConfig{Threshold: 1},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
		MQTT:       MQTTConfig{Prefix: "ebus", QoS: 0, Retain: true},
		InfluxDB:   InfluxDBConfig{Measurement: "ebus", BatchSize: 100, FlushInterval: "10s"},
		HTTP:       HTTPConfig{Listen: ":9120"},
	}
}

// Load reads path over the defaults. A section that names its endpoint
// without an explicit enabled key is enabled.
func Load(path string) (Config, error) {
	cfg := Default()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%w: unknown keys %s", ErrInvalidConfig, strings.Join(keys, ", "))
	}

	if meta.IsDefined("mqtt", "broker") && !meta.IsDefined("mqtt", "enabled") {
		cfg.MQTT.Enabled = true
	}
	if meta.IsDefined("influxdb", "url") && !meta.IsDefined("influxdb", "enabled") {
		cfg.InfluxDB.Enabled = true
	}
	if meta.IsDefined("http", "listen") && !meta.IsDefined("http", "enabled") {
		cfg.HTTP.Enabled = true
	}

	cfg.Connection.Port = strings.TrimSpace(cfg.Connection.Port)
	cfg.Connection.URL = strings.TrimSpace(cfg.Connection.URL)
	cfg.Connection.TCP = strings.TrimSpace(cfg.Connection.TCP)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	if c.Connection.Baud <= 0 {
		return fmt.Errorf("%w: baud must be positive, got %d", ErrInvalidConfig, c.Connection.Baud)
	}
	n := 0
	for _, s := range []string{c.Connection.Port, c.Connection.URL, c.Connection.TCP} {
		if s != "" {
			n++
		}
	}
	if n > 1 {
		return fmt.Errorf("%w: only one of port, url and tcp may be set", ErrInvalidConfig)
	}
	if c.Parser.Threshold < 1 {
		return fmt.Errorf("%w: parser threshold must be at least 1, got %d", ErrInvalidConfig, c.Parser.Threshold)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt qos must be 0, 1 or 2, got %d", ErrInvalidConfig, c.MQTT.QoS)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("%w: mqtt enabled without broker", ErrInvalidConfig)
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		return fmt.Errorf("%w: influxdb needs url and bucket", ErrInvalidConfig)
	}
	if _, err := c.InfluxDB.FlushDuration(); err != nil {
		return fmt.Errorf("%w: influxdb flush_interval: %w", ErrInvalidConfig, err)
	}
	return nil
}
