package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/rs/zerolog"

	"hiticomm/host/board"
	"hiticomm/host/bridge"
	"hiticomm/host/config"
	"hiticomm/host/logging"
	"hiticomm/host/serial"
	"hiticomm/host/telemetry"
	"hiticomm/protocol"
)

var (
	configPath = flag.String("config", "", "TOML configuration file")
	device     = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud       = flag.Int("baud", serial.DefaultBaud, "Baud rate")
	format     = flag.String("format", "hex", "Wire format: readable, int, separator or hex")
	timeout    = flag.Duration("timeout", time.Second, "Reply timeout")
	logLevel   = flag.String("log-level", "info", "Log level")
	metrics    = flag.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9102)")
	mqttBroker = flag.String("mqtt", "", "MQTT broker URL (e.g. tcp://localhost:1883)")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	logger := logging.New("hiticomm-host", cfg.LogLevel)

	portCfg := serial.DefaultConfig(cfg.Device)
	portCfg.Baud = cfg.Baud
	client, err := board.Dial(portCfg, cfg.Format, cfg.Timeout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect")
	}
	defer client.Close()

	if cfg.MetricsAddr != "" {
		m := telemetry.New()
		m.Attach(client)
		go serveMetrics(cfg.MetricsAddr, m, logger)
	}
	if cfg.MQTTBroker != "" {
		br, err := bridge.Connect(cfg.MQTTBroker, cfg.MQTTTopic, client, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("mqtt")
		}
		br.Attach(client)
		defer br.Close()
	}

	info, err := client.Identify()
	if err != nil {
		logger.Warn().Err(err).Msg("board did not answer B")
	} else {
		printInfo(os.Stdout, info)
	}

	editor := newLineEditor("hiticomm> ", cfg.HistoryFile)
	defer editor.close()
	if editor.interactive() {
		fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	}

	con := newConsole(client, os.Stdout)
	for {
		line, err := editor.getLine()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("read input")
			os.Exit(1)
		}

		args, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if err := con.exec(args); err != nil {
			if errors.Is(err, errQuit) {
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

// loadConfig reads the file, then applies the flags given on the command line
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}

	var ferr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = *device
		case "baud":
			cfg.Baud = *baud
		case "format":
			wf, err := protocol.ParseWireFormat(strings.TrimSpace(*format))
			if err != nil {
				ferr = fmt.Errorf("-format %q: %w", *format, err)
			}
			cfg.Format = wf
		case "timeout":
			cfg.Timeout = *timeout
		case "log-level":
			cfg.LogLevel = *logLevel
		case "metrics":
			cfg.MetricsAddr = *metrics
		case "mqtt":
			cfg.MQTTBroker = *mqttBroker
		}
	})
	if ferr != nil {
		return cfg, ferr
	}
	return cfg, cfg.Validate()
}

func serveMetrics(addr string, m *telemetry.Metrics, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}
