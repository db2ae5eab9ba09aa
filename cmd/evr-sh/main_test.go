// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	tlog "github.com/go-daq/tdaq/log"
)

func TestRun(t *testing.T) {
	tmp := t.TempDir()
	write := func(name, content string) string {
		fname := filepath.Join(tmp, name)
		err := os.WriteFile(fname, []byte(content), 0644)
		if err != nil {
			t.Fatalf("could not write %q: %+v", name, err)
		}
		return fname
	}

	var (
		msg = tlog.NewMsgStream("evr-sh", tlog.LvlError, io.Discard)
		cfg = write("ioc.yaml", `
cards:
  - {name: evr1, host: 127.0.0.1, port: 2000, frequency: 125}
records:
  - {name: EVR1:FW, link: "evr1:getFirmwareVersion"}
`)
		ok = write("ok.cmd", `
evrConfigure evr2 127.0.0.1 2001 100
dbLoadRecord EVR2:ENA "evr2:enable"
dbl
`)
		bad = write("bad.cmd", "evrConfigure evr3\n")
	)

	for _, tc := range []struct {
		name   string
		cfg    string
		script string
		fail   bool
	}{
		{name: "empty"},
		{name: "cfg", cfg: cfg},
		{name: "script", cfg: cfg, script: ok},
		{name: "bad-script", script: bad, fail: true},
		{name: "missing-script", script: filepath.Join(tmp, "missing.cmd"), fail: true},
		{name: "missing-cfg", cfg: filepath.Join(tmp, "missing.yaml"), fail: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := run(tc.cfg, "", "evr", tc.script, true, msg)
			switch {
			case tc.fail && err == nil:
				t.Fatalf("expected an error")
			case !tc.fail && err != nil:
				t.Fatalf("could not run: %+v", err)
			}
		})
	}
}
