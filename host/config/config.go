// Package config loads the TOML settings shared by the host tools.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"hiticomm/host/serial"
	"hiticomm/protocol"
)

// Config is the runtime configuration of the host console and simulator
type Config struct {
	Device      string
	Baud        int
	Format      protocol.WireFormat
	Timeout     time.Duration // reply timeout of one request
	LogLevel    string
	HistoryFile string

	MetricsAddr string // empty disables the /metrics endpoint

	MQTTBroker string // empty disables the bridge
	MQTTTopic  string

	// simulator only
	EEPROMSize  int
	EEPROMFile  string
	CodeName    string
	CodeVersion string
	Broadcast   bool
}

// Default returns the settings used when no file is given
func Default() Config {
	return Config{
		Device:      "/dev/ttyACM0",
		Baud:        serial.DefaultBaud,
		Format:      protocol.Hex,
		Timeout:     time.Second,
		LogLevel:    "info",
		MQTTTopic:   "hiticomm",
		EEPROMSize:  1024,
		CodeName:    "hiticomm-sim",
		CodeVersion: "1.0",
		Broadcast:   true,
	}
}

// config.toml key mapping
type fileConfig struct {
	Device      string `toml:"device"`
	Baud        int    `toml:"baud"`
	Format      string `toml:"format"`
	TimeoutMS   int    `toml:"timeout_ms"`
	LogLevel    string `toml:"log_level"`
	HistoryFile string `toml:"history_file"`
	MetricsAddr string `toml:"metrics_addr"`
	MQTTBroker  string `toml:"mqtt_broker"`
	MQTTTopic   string `toml:"mqtt_topic"`
	Sim         struct {
		EEPROMSize  int    `toml:"eeprom_size"`
		EEPROMFile  string `toml:"eeprom_file"`
		CodeName    string `toml:"code_name"`
		CodeVersion string `toml:"code_version"`
		Broadcast   bool   `toml:"broadcast"`
	} `toml:"sim"`
}

// Load reads path over the defaults. Keys absent from the file keep their
// default value.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("device") {
		cfg.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("baud") {
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("format") {
		f, err := protocol.ParseWireFormat(strings.TrimSpace(raw.Format))
		if err != nil {
			return Config{}, fmt.Errorf("load config: unsupported format %q (expected readable, int, separator or hex)", raw.Format)
		}
		cfg.Format = f
	}
	if meta.IsDefined("timeout_ms") {
		cfg.Timeout = time.Duration(raw.TimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("history_file") {
		cfg.HistoryFile = strings.TrimSpace(raw.HistoryFile)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("mqtt_broker") {
		cfg.MQTTBroker = strings.TrimSpace(raw.MQTTBroker)
	}
	if meta.IsDefined("mqtt_topic") {
		cfg.MQTTTopic = strings.Trim(strings.TrimSpace(raw.MQTTTopic), "/")
	}
	if meta.IsDefined("sim", "eeprom_size") {
		cfg.EEPROMSize = raw.Sim.EEPROMSize
	}
	if meta.IsDefined("sim", "eeprom_file") {
		cfg.EEPROMFile = strings.TrimSpace(raw.Sim.EEPROMFile)
	}
	if meta.IsDefined("sim", "code_name") {
		cfg.CodeName = raw.Sim.CodeName
	}
	if meta.IsDefined("sim", "code_version") {
		cfg.CodeVersion = raw.Sim.CodeVersion
	}
	if meta.IsDefined("sim", "broadcast") {
		cfg.Broadcast = raw.Sim.Broadcast
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges the tools rely on
func (c Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("device is empty")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.EEPROMSize < 0 || c.EEPROMSize > 65535 {
		return fmt.Errorf("eeprom_size out of range: %d", c.EEPROMSize)
	}
	if c.MQTTBroker != "" && c.MQTTTopic == "" {
		return fmt.Errorf("mqtt_topic is required with mqtt_broker")
	}
	return nil
}
