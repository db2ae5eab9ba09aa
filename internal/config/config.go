// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the YAML description of an IOC: the cards to
// configure and the records to bind to them.
package config // import "github.com/go-lpc/evr/internal/config"

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the content of an IOC configuration file:
//
//	cards:
//	  - name: evr1
//	    host: 192.168.1.20
//	    port: 2000
//	    frequency: 125
//	records:
//	  - name: EVR1:ENA
//	    link: "evr1:enable"
//	monitor:
//	  period: 5s
type Config struct {
	Cards   []Card   `yaml:"cards"`
	Records []Record `yaml:"records"`
	Monitor Monitor  `yaml:"monitor"`
}

type Card struct {
	Name      string `yaml:"name"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Frequency int    `yaml:"frequency"` // event clock, in MHz
}

// PortString and FreqString return the card parameters in the textual
// form accepted by the registry.
func (c Card) PortString() string { return strconv.Itoa(c.Port) }
func (c Card) FreqString() string { return strconv.Itoa(c.Frequency) }

type Record struct {
	Name string `yaml:"name"`
	Link string `yaml:"link"`
}

type Monitor struct {
	Period time.Duration `yaml:"period"`
}

// Load reads and validates the configuration file fname.
func Load(fname string) (*Config, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("config: could not read %q: %w", fname, err)
	}

	cfg, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("config: could not load %q: %w", fname, err)
	}
	return cfg, nil
}

// Decode decodes and validates a configuration from r.
// Unknown fields are rejected.
func Decode(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: could not decode: %w", err)
	}

	err = Validate(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the shape of the configuration.
// Value ranges are checked by the registry when cards are configured.
func Validate(cfg *Config) error {
	cards := make(map[string]struct{}, len(cfg.Cards))
	for i, c := range cfg.Cards {
		switch {
		case c.Name == "":
			return fmt.Errorf("config: card #%d has no name", i)
		case c.Host == "":
			return fmt.Errorf("config: card %q has no host", c.Name)
		case c.Port == 0:
			return fmt.Errorf("config: card %q has no port", c.Name)
		case c.Frequency == 0:
			return fmt.Errorf("config: card %q has no frequency", c.Name)
		}
		if _, dup := cards[c.Name]; dup {
			return fmt.Errorf("config: duplicate card %q", c.Name)
		}
		cards[c.Name] = struct{}{}
	}

	recs := make(map[string]struct{}, len(cfg.Records))
	for i, r := range cfg.Records {
		switch {
		case r.Name == "":
			return fmt.Errorf("config: record #%d has no name", i)
		case r.Link == "":
			return fmt.Errorf("config: record %q has no link", r.Name)
		}
		if _, dup := recs[r.Name]; dup {
			return fmt.Errorf("config: duplicate record %q", r.Name)
		}
		recs[r.Name] = struct{}{}
	}

	if cfg.Monitor.Period < 0 {
		return fmt.Errorf("config: invalid monitor period %v", cfg.Monitor.Period)
	}
	return nil
}
