// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// xbeemon prints every API frame an XBee radio sends. It can query a few
// AT registers on startup so there is something to see.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/ZaparooProject/go-xbee"
	"github.com/ZaparooProject/go-xbee/transport/spi"
	"github.com/ZaparooProject/go-xbee/transport/uart"
	"periph.io/x/conn/v3/physic"
)

// Package-level flag variables
var (
	flagDevice  string
	flagAttn    string
	flagLogDir  string
	flagConfig  string
	flagQuery   string
	flagBaud    int
	flagSPIHz   int
	flagEscaped bool
	flagEscLen  bool
	flagDebug   bool
	flagSPI     bool
	flagList    bool
)

func init() {
	flag.StringVar(&flagDevice, "device", "", "Serial port or SPI device (e.g. /dev/ttyUSB0, /dev/spidev0.0)")
	flag.IntVar(&flagBaud, "baud", uart.DefaultBaudRate, "UART baud rate, must match the radio's BD setting")
	flag.BoolVar(&flagEscaped, "escaped", false, "Use API mode 2 (escaped)")
	flag.BoolVar(&flagEscLen, "escape-length", true, "In API mode 2, stuff the length bytes too (radio firmware does)")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagSPI, "spi", false, "Open the device as SPI even if its name does not say so")
	flag.StringVar(&flagAttn, "attn", "", "GPIO wired to the radio's SPI nATTN pin (SPI only)")
	flag.IntVar(&flagSPIHz, "spi-hz", 1_000_000, "SPI clock in Hz")
	flag.StringVar(&flagLogDir, "log", "", "Write a session log to this directory")
	flag.BoolVar(&flagList, "list", false, "List serial ports and exit")
	flag.StringVar(&flagConfig, "config", "", "TOML config file; flags given on the command line win")
	flag.StringVar(&flagQuery, "query", "", "AT registers to query on startup, comma separated (e.g. NI,VR)")
}

func parseConfig() (*config, error) {
	cfg := defaultConfig()

	if flagConfig != "" {
		if err := loadFileConfig(flagConfig, cfg); err != nil {
			return nil, err
		}
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlags(cfg, set)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Enable debug output if --debug flag is set
	if cfg.debug {
		xbee.SetDebugEnabled(true)
	}

	return cfg, nil
}

// applyFlags copies the flags present on the command line into cfg
func applyFlags(cfg *config, set map[string]bool) {
	if set["device"] {
		cfg.device = flagDevice
	}
	if set["baud"] {
		cfg.baud = flagBaud
	}
	if set["escaped"] {
		cfg.escaped = flagEscaped
	}
	if set["escape-length"] {
		cfg.escapeLength = flagEscLen
	}
	if set["debug"] {
		cfg.debug = flagDebug
	}
	if set["spi"] {
		cfg.spi = flagSPI
	}
	if set["attn"] {
		cfg.attnPin = flagAttn
	}
	if set["spi-hz"] {
		cfg.spiHz = flagSPIHz
	}
	if set["log"] {
		cfg.logDir = flagLogDir
	}
	if set["list"] {
		cfg.list = flagList
	}
	if set["query"] {
		cfg.queries = splitQueries(flagQuery)
	}
}

type closableTransport interface {
	xbee.Transport
	Close() error
}

// newTransport opens the device named in cfg. Paths mentioning spi open
// the SPI transport; everything else is a serial port.
func newTransport(cfg *config) (closableTransport, error) {
	if cfg.device == "" {
		return nil, errors.New("empty device path")
	}

	if cfg.spi || strings.Contains(strings.ToLower(cfg.device), "spi") {
		opts := []spi.Option{spi.WithSpeed(physic.Frequency(cfg.spiHz) * physic.Hertz)}
		if cfg.attnPin != "" {
			opts = append(opts, spi.WithAttentionPin(cfg.attnPin))
		}
		transport, err := spi.New(cfg.device, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport for %s: %w", cfg.device, err)
		}
		return transport, nil
	}

	transport, err := uart.New(cfg.device, uart.WithBaudRate(cfg.baud))
	if err != nil {
		return nil, fmt.Errorf("failed to create UART transport for %s: %w", cfg.device, err)
	}
	return transport, nil
}

func listPorts(out io.Writer) error {
	ports, err := uart.Ports()
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}
	if len(ports) == 0 {
		_, _ = fmt.Fprintln(out, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		_, _ = fmt.Fprintln(out, p.String())
	}
	return nil
}

// lockedWriter serializes output from the reader goroutine and main
type lockedWriter struct {
	w  io.Writer
	mu sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p) //nolint:wrapcheck // pass-through
}

// formatResponse renders one frame on a single line, fields sorted by name
func formatResponse(r *xbee.Response) string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "%s (0x%02X)", r.ID, r.Frame)
	for _, name := range names {
		_, _ = fmt.Fprintf(&b, " %s=%s", name, formatField(r.Fields[name]))
	}
	return b.String()
}

// formatField prints bytes as hex, and as text too when they are printable
func formatField(data []byte) string {
	hex := fmt.Sprintf("%X", data)
	if len(data) < 2 {
		return hex
	}
	for _, c := range data {
		if c < 0x20 || c > 0x7E {
			return hex
		}
	}
	return fmt.Sprintf("%s(%q)", hex, data)
}

// monitor runs the device in async mode until ctx is cancelled or the
// transport fails. It owns transport and closes it.
func monitor(ctx context.Context, transport closableTransport, cfg *config, out io.Writer) error {
	out = &lockedWriter{w: out}
	fatal := make(chan error, 1)

	device, err := xbee.New(transport,
		xbee.WithEscaped(cfg.escaped),
		xbee.WithEscapedLength(cfg.escapeLength),
		xbee.WithTranslator(xbeeTable()),
		xbee.WithCallback(func(r *xbee.Response) {
			_, _ = fmt.Fprintln(out, formatResponse(r))
		}),
		xbee.WithErrorCallback(func(err error) {
			if xbee.IsFatal(err) {
				select {
				case fatal <- err:
				default:
				}
				return
			}
			_, _ = fmt.Fprintf(out, "bad frame: %v\n", err)
		}),
	)
	if err != nil {
		_ = transport.Close()
		return fmt.Errorf("failed to start device: %w", err)
	}

	// Close first so Halt does not wait on a silent radio
	defer func() {
		if err := transport.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close transport: %v\n", err)
		}
		device.Halt()
	}()

	for i, q := range cfg.queries {
		params := xbee.Params{"frame_id": {byte(i%255 + 1)}, "command": []byte(q)}
		if err := device.Send("at", params); err != nil {
			return fmt.Errorf("query %s: %w", q, err)
		}
	}

	_, _ = fmt.Fprintln(out, "Monitoring API frames. Press Ctrl+C to stop...")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-fatal:
		return fmt.Errorf("reader stopped: %w", err)
	}
}

func run(ctx context.Context, cfg *config) error {
	if cfg.list {
		return listPorts(os.Stdout)
	}
	if cfg.device == "" {
		return errors.New("no device given, use -device or -list")
	}

	if cfg.logDir != "" {
		path, err := xbee.InitSessionLog(cfg.logDir)
		if err != nil {
			return err //nolint:wrapcheck // already descriptive
		}
		_, _ = fmt.Printf("Session log: %s\n", path)
		defer func() { _ = xbee.CloseSessionLog() }()
	}

	transport, err := newTransport(cfg)
	if err != nil {
		return err
	}
	xbee.Debugf("opened %s (escaped=%v)", cfg.device, cfg.escaped)

	return monitor(ctx, transport, cfg, os.Stdout)
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			// User requested shutdown, exit cleanly
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
