// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioc

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/go-lpc/evr/evr"
)

func TestTokenize(t *testing.T) {
	for _, tc := range []struct {
		line string
		want []string
		err  bool
	}{
		{line: "", want: nil},
		{line: "   # a comment", want: nil},
		{line: "evrInit", want: []string{"evrInit"}},
		{line: "dbpf EVR1:ENA 1 # enable", want: []string{"dbpf", "EVR1:ENA", "1"}},
		{
			line: `dbLoadRecord EVR1:P0 "evr1:setPulserDelay parameter=0"`,
			want: []string{"dbLoadRecord", "EVR1:P0", "evr1:setPulserDelay parameter=0"},
		},
		{
			line: `dbLoadRecord("EVR1:P0", "evr1:setPulserDelay parameter=0")`,
			want: []string{"dbLoadRecord", "EVR1:P0", "evr1:setPulserDelay parameter=0"},
		},
		{line: `evrConfigure("evr1","10.0.0.1",2000,125)`, want: []string{"evrConfigure", "evr1", "10.0.0.1", "2000", "125"}},
		{line: `dbpf R "#1"`, want: []string{"dbpf", "R", "#1"}},
		{line: `dbpf R ""`, want: []string{"dbpf", "R", ""}},
		{line: `dbLoadRecord R "evr1:enable`, err: true},
	} {
		t.Run(tc.line, func(t *testing.T) {
			got, err := tokenize(tc.line)
			switch {
			case tc.err && err == nil:
				t.Fatalf("expected an error, got=%q", got)
			case tc.err:
				return
			case err != nil:
				t.Fatalf("could not tokenize: %+v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("invalid tokens:\ngot= %q\nwant=%q", got, tc.want)
			}
		})
	}
}

func TestShell(t *testing.T) {
	const (
		pulser0      = 16   // pulse select of pulser 0
		pulseWidthLo = 0x72 // pulser width, low half
	)

	var (
		b   = newBench()
		ioc = newIOC(t, b)
		o   = new(strings.Builder)
		sh  = NewShell(ioc, o)
		ctx = context.Background()
	)

	const script = `
# bench cards
evrConfigure evr1 127.0.0.1 2000 125
evrConfigure evr2 127.0.0.1 2001 100

dbLoadRecord EVR1:ENA "evr1:enable"
dbLoadRecord EVR1:FW  "evr1:getFirmwareVersion"
dbLoadRecord("EVR2:P0-WID", "evr2:setPulserWidth parameter=0")

evrInit
dbpf EVR1:ENA 1
dbpf EVR2:P0-WID 2.5
dbgf EVR1:FW
exit
dbpf EVR1:ENA 0
`
	err := sh.Run(ctx, strings.NewReader(script))
	if err != nil {
		t.Fatalf("could not run script: %+v", err)
	}

	want := "EVR1:ENA = 1\nEVR2:P0-WID = 2.5\nEVR1:FW = 4611\n"
	if got := o.String(); got != want {
		t.Fatalf("invalid output:\ngot:\n%s\nwant:\n%s", got, want)
	}

	card, err := ioc.Card("evr1")
	if err != nil {
		t.Fatalf("could not open card: %+v", err)
	}
	ena, err := card.IsEnabled(ctx)
	if err != nil {
		t.Fatalf("could not read card: %+v", err)
	}
	if !ena {
		t.Fatalf("card not enabled: commands after exit were run")
	}
	if got, want := b.dev("evr2").Banked(pulser0, pulseWidthLo), uint16(250); got != want {
		t.Fatalf("invalid pulser width: got=%d, want=%d", got, want)
	}

	o.Reset()
	err = sh.Exec(ctx, "dbl")
	if err != nil {
		t.Fatalf("could not list records: %+v", err)
	}
	if got, want := o.String(), strings.Join([]string{
		"EVR1:ENA\tevr1:enable",
		"EVR1:FW\tevr1:getFirmwareVersion",
		"EVR2:P0-WID\tevr2:setPulserWidth parameter=0",
	}, "\n")+"\n"; got != want {
		t.Fatalf("invalid dbl output:\ngot:\n%s\nwant:\n%s", got, want)
	}

	o.Reset()
	err = sh.Exec(ctx, "evrReport")
	if err != nil {
		t.Fatalf("could not report: %+v", err)
	}
	if got, want := o.String(), "Found evr1 @ 127.0.0.1:2000\nFound evr2 @ 127.0.0.1:2001\n"; got != want {
		t.Fatalf("invalid report:\ngot:\n%s\nwant:\n%s", got, want)
	}

	o.Reset()
	err = sh.Exec(ctx, "help")
	if err != nil {
		t.Fatalf("could not run help: %+v", err)
	}
	for _, name := range shellNames() {
		if !strings.Contains(o.String(), name) {
			t.Fatalf("missing command %q in help", name)
		}
	}

	err = sh.Exec(ctx, "evrFactoryReset evr1")
	if err != nil {
		t.Fatalf("could not reset card: %+v", err)
	}

	for _, tc := range []struct {
		line string
		err  error
	}{
		{"explode", evr.ErrSyntax},
		{"evrConfigure evr3", evr.ErrSyntax},
		{"dbgf", evr.ErrSyntax},
		{"evrReport high", evr.ErrSyntax},
		{"evrInit now", evr.ErrSyntax},
		{"dbgf EVR9:X", ErrNoRecord},
		{"dbpf EVR1:FW 1", nil},
		{"evrFactoryReset evr9", evr.ErrNotFound},
		{"exit", ErrQuit},
	} {
		t.Run(tc.line, func(t *testing.T) {
			err := sh.Exec(ctx, tc.line)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if tc.err != nil && !errors.Is(err, tc.err) {
				t.Fatalf("invalid error: got=%+v, want=%+v", err, tc.err)
			}
		})
	}

	err = sh.Run(ctx, strings.NewReader("evrReport\nexplode\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("invalid script error: %+v", err)
	}
}

func TestComplete(t *testing.T) {
	var (
		ioc = newIOC(t, newBench())
		sh  = NewShell(ioc, new(strings.Builder))
		ctx = context.Background()
	)

	err := ioc.LoadConfig(ctx, testConfig)
	if err != nil {
		t.Fatalf("could not load config: %+v", err)
	}

	for _, tc := range []struct {
		line string
		want []string
	}{
		{"db", []string{"dbLoadConfig", "dbLoadRecord", "dbgf", "dbl", "dbpf"}},
		{"evrI", []string{"evrInit"}},
		{"xyz", nil},
		{"dbgf EVR1:P3", []string{"dbgf EVR1:P3-DLY", "dbgf EVR1:P3-DLY-RB"}},
		{"dbpf EVR2:", []string{"dbpf EVR2:FW", "dbpf EVR2:CLK"}},
		{"dbpf EVR2:FW 1", nil},
		{"evrFactoryReset ", []string{"evrFactoryReset evr1", "evrFactoryReset evr2"}},
	} {
		t.Run(tc.line, func(t *testing.T) {
			got := sh.Complete(tc.line)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("invalid completion:\ngot= %q\nwant=%q", got, tc.want)
			}
		})
	}
}
