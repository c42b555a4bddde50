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

package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ZaparooProject/go-xbee/transport/uart"
)

type config struct {
	device  string
	attnPin string
	logDir  string
	queries []string
	baud    int
	spiHz   int
	escaped bool
	// Stuff length bytes in escaped mode, as the radio firmware does
	escapeLength bool
	debug        bool
	spi          bool
	list         bool
}

func defaultConfig() *config {
	return &config{
		baud:         uart.DefaultBaudRate,
		spiHz:        1_000_000,
		escapeLength: true,
	}
}

// xbeemon.toml key mapping. Keys left out of the file keep their defaults.
type fileConfig struct {
	Device       string        `toml:"device"`
	LogDir       string        `toml:"log_dir"`
	Queries      []string      `toml:"queries"`
	SPI          spiFileConfig `toml:"spi"`
	Baud         int           `toml:"baud"`
	Escaped      bool          `toml:"escaped"`
	EscapeLength bool          `toml:"escape_length"` // false for peers that send literal lengths
	Debug        bool          `toml:"debug"`
}

type spiFileConfig struct {
	AttentionPin string `toml:"attention_pin"`
	SpeedHz      int    `toml:"speed_hz"`
	Enabled      bool   `toml:"enabled"`
}

// loadFileConfig overlays the TOML file at path onto cfg
func loadFileConfig(path string, cfg *config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("device") {
		cfg.device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("baud") {
		cfg.baud = raw.Baud
	}
	if meta.IsDefined("escaped") {
		cfg.escaped = raw.Escaped
	}
	if meta.IsDefined("escape_length") {
		cfg.escapeLength = raw.EscapeLength
	}
	if meta.IsDefined("debug") {
		cfg.debug = raw.Debug
	}
	if meta.IsDefined("log_dir") {
		cfg.logDir = strings.TrimSpace(raw.LogDir)
	}
	if meta.IsDefined("queries") {
		cfg.queries = normalizeQueries(raw.Queries)
	}
	if meta.IsDefined("spi", "enabled") {
		cfg.spi = raw.SPI.Enabled
	}
	if meta.IsDefined("spi", "attention_pin") {
		cfg.attnPin = strings.TrimSpace(raw.SPI.AttentionPin)
	}
	if meta.IsDefined("spi", "speed_hz") {
		cfg.spiHz = raw.SPI.SpeedHz
	}

	return cfg.validate()
}

func (c *config) validate() error {
	if c.baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.baud)
	}
	if c.spiHz <= 0 {
		return fmt.Errorf("invalid SPI speed %d Hz", c.spiHz)
	}
	for _, q := range c.queries {
		if len(q) != 2 {
			return fmt.Errorf("invalid AT command %q: want two characters", q)
		}
	}
	return nil
}

// splitQueries parses the -query flag, e.g. "NI,VR,ID"
func splitQueries(s string) []string {
	return normalizeQueries(strings.Split(s, ","))
}

// normalizeQueries trims and upper-cases AT command names, dropping blanks
func normalizeQueries(queries []string) []string {
	var out []string
	for _, q := range queries {
		if q = strings.ToUpper(strings.TrimSpace(q)); q != "" {
			out = append(out, q)
		}
	}
	return out
}
