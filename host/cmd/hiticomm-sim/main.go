// Command hiticomm-sim runs a simulated HITIComm board on a serial device,
// typically one end of a virtual null-modem pair (socat, com0com).
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"hiticomm/core"
	"hiticomm/host/config"
	"hiticomm/host/logging"
	"hiticomm/host/serial"
	"hiticomm/protocol"
)

var (
	configPath = flag.String("config", "", "TOML configuration file")
	device     = flag.String("device", "", "Serial device to serve (overrides the config file)")
	format     = flag.String("format", "", "Wire format: readable, int, separator or hex")
	eepromFile = flag.String("eeprom", "", "EEPROM image file, kept between runs")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

// simPort joins the polled input and the raw output of the serial device
type simPort struct {
	*serial.StreamSource
	io.Writer
}

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *format != "" {
		f, err := protocol.ParseWireFormat(*format)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: -format: %v\n", err)
			os.Exit(1)
		}
		cfg.Format = f
	}
	if *eepromFile != "" {
		cfg.EEPROMFile = *eepromFile
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New("hiticomm-sim", cfg.LogLevel)

	portCfg := serial.DefaultConfig(cfg.Device)
	portCfg.Baud = cfg.Baud
	port, err := serial.Open(portCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open serial port")
	}
	defer port.Close()

	eeprom, err := openEEPROM(cfg.EEPROMFile, cfg.EEPROMSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("eeprom")
	}

	sessCfg := core.DefaultConfig()
	sessCfg.Format = cfg.Format
	sessCfg.Broadcast = cfg.Broadcast
	sessCfg.CodeName = cfg.CodeName
	sessCfg.CodeVersion = cfg.CodeVersion

	board := core.NewBoard(core.DefaultLayout())
	defer board.Shutdown()
	src := serial.NewStreamSource(port, 1024)
	session := core.NewSession(sessCfg, simPort{src, port}, board, eeprom, core.NewSystemClock())

	if err := session.SendBoardStarted(); err != nil {
		logger.Fatal().Err(err).Msg("announce")
	}
	logger.Info().
		Str("device", port.Device()).
		Stringer("format", cfg.Format).
		Int("eeprom", eeprom.Size()).
		Uint32("x_interval_ms", session.Config().XInterval).
		Msg("board started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	run(session, board, eeprom, src, sig, logger)

	if err := eeprom.save(); err != nil {
		logger.Error().Err(err).Msg("save eeprom")
	}
	s := session.Stats()
	logger.Info().
		Uint32("lines", s.Lines).
		Uint32("rejected", s.Rejected).
		Uint32("cycles", s.XCycles).
		Msg("board stopped")
}

// run is the board main loop: one protocol step per millisecond, inputs
// refreshed every 100 ms and the EEPROM image saved every second.
func run(session *core.Session, board *core.Board, eeprom *fileEEPROM, src *serial.StreamSource, stop <-chan os.Signal, logger zerolog.Logger) {
	step := time.NewTicker(time.Millisecond)
	defer step.Stop()
	inputs := time.NewTicker(100 * time.Millisecond)
	defer inputs.Stop()
	persist := time.NewTicker(time.Second)
	defer persist.Stop()

	start := time.Now()
	for {
		select {
		case <-stop:
			return
		case <-src.Done():
			logger.Error().Err(src.Err()).Msg("serial link closed")
			return
		case <-step.C:
			if err := session.Communicate(); err != nil {
				logger.Warn().Err(err).Msg("write")
			}
		case now := <-inputs.C:
			simulateInputs(board, now.Sub(start))
		case <-persist.C:
			if err := eeprom.save(); err != nil {
				logger.Error().Err(err).Msg("save eeprom")
			}
			if n := src.Dropped(); n > 0 {
				logger.Debug().Uint64("dropped", n).Msg("input overrun")
			}
		}
	}
}

// simulateInputs drives the analog inputs with phase-shifted sine waves and
// toggles digital pin 2 once a second.
func simulateInputs(board *core.Board, t time.Duration) {
	const period = 10 * time.Second
	phase := 2 * math.Pi * float64(t%period) / float64(period)
	n := board.Count(core.ClassAnalogInput)
	for i := 0; i < n; i++ {
		v := 512 + 511*math.Sin(phase+float64(i)*math.Pi/3)
		board.SetAnalog(i, uint16(v))
	}
	board.SetInput(2, (t/time.Second)%2 == 1)
}
