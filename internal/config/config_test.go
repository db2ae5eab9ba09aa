// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	const raw = `
cards:
  - name: evr1
    host: 192.168.1.20
    port: 2000
    frequency: 125
  - name: evr2
    host: evr2.lab
    port: 2001
    frequency: 100
records:
  - name: EVR1:ENA
    link: "evr1:enable"
  - name: EVR2:P3-DLY
    link: "evr2:setPulserDelay parameter=3"
monitor:
  period: 2s
`
	fname := filepath.Join(t.TempDir(), "ioc.yaml")
	err := os.WriteFile(fname, []byte(raw), 0644)
	if err != nil {
		t.Fatalf("could not create config file: %+v", err)
	}

	cfg, err := Load(fname)
	if err != nil {
		t.Fatalf("could not load config: %+v", err)
	}

	want := &Config{
		Cards: []Card{
			{Name: "evr1", Host: "192.168.1.20", Port: 2000, Frequency: 125},
			{Name: "evr2", Host: "evr2.lab", Port: 2001, Frequency: 100},
		},
		Records: []Record{
			{Name: "EVR1:ENA", Link: "evr1:enable"},
			{Name: "EVR2:P3-DLY", Link: "evr2:setPulserDelay parameter=3"},
		},
		Monitor: Monitor{Period: 2 * time.Second},
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("invalid config:\ngot= %+v\nwant=%+v", cfg, want)
	}

	if got, want := cfg.Cards[0].PortString(), "2000"; got != want {
		t.Fatalf("invalid port: got=%q, want=%q", got, want)
	}
	if got, want := cfg.Cards[1].FreqString(), "100"; got != want {
		t.Fatalf("invalid frequency: got=%q, want=%q", got, want)
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected an error loading a missing file")
	}
}

func TestDecodeInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "unknown-field",
			raw:  "cards:\n  - name: evr1\n    ip: 1.2.3.4\n",
			want: "field ip not found",
		},
		{
			name: "no-name",
			raw:  "cards:\n  - host: h\n    port: 1\n    frequency: 1\n",
			want: "card #0 has no name",
		},
		{
			name: "no-host",
			raw:  "cards:\n  - name: evr1\n    port: 1\n    frequency: 1\n",
			want: `card "evr1" has no host`,
		},
		{
			name: "no-port",
			raw:  "cards:\n  - name: evr1\n    host: h\n    frequency: 1\n",
			want: `card "evr1" has no port`,
		},
		{
			name: "dup-card",
			raw: `
cards:
  - {name: evr1, host: h, port: 1, frequency: 1}
  - {name: evr1, host: h, port: 2, frequency: 1}
`,
			want: `duplicate card "evr1"`,
		},
		{
			name: "no-link",
			raw:  "records:\n  - name: R1\n",
			want: `record "R1" has no link`,
		},
		{
			name: "dup-record",
			raw: `
records:
  - {name: R1, link: "evr1:enable"}
  - {name: R1, link: "evr1:flush"}
`,
			want: `duplicate record "R1"`,
		},
		{
			name: "bad-period",
			raw:  "monitor:\n  period: -1s\n",
			want: "invalid monitor period",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.raw))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("invalid error:\ngot= %v\nwant=%v", err, tc.want)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	if err != nil {
		t.Fatalf("could not decode empty config: %+v", err)
	}
	if len(cfg.Cards) != 0 || len(cfg.Records) != 0 {
		t.Fatalf("invalid empty config: %+v", cfg)
	}
}
