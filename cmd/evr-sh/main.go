// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command evr-sh is an interactive shell driving event receiver cards.
//
// Usage: evr-sh [options]
//
// Example:
//
//	$> evr-sh -f st.cmd
//	evr> dbpf EVR1:ENA 1
//	EVR1:ENA = 1
//	evr> exit
package main // import "github.com/go-lpc/evr/cmd/evr-sh"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	tlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/evr"
	"github.com/go-lpc/evr/conddb"
	"github.com/go-lpc/evr/ioc"
	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("evr-sh: ")
	log.SetFlags(0)

	var (
		script  = flag.String("f", "", "startup script to run before the prompt")
		cfg     = flag.String("cfg", "", "YAML configuration file to load")
		dbname  = flag.String("db", "", "name of the configuration database to load from")
		name    = flag.String("ioc", "evr", "name of the IOC in the configuration database")
		batch   = flag.Bool("batch", false, "exit after the startup script")
		verbose = flag.Bool("v", false, "enable verbose mode")
		version = flag.Bool("version", false, "print version and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `evr-sh is an interactive shell driving event receiver cards.

Usage: evr-sh [options]

Options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if *version {
		vers, sum := evr.Version()
		fmt.Printf("evr-sh %s %s\n", vers, sum)
		return
	}

	lvl := tlog.LvlInfo
	if *verbose {
		lvl = tlog.LvlDebug
	}

	err := run(*cfg, *dbname, *name, *script, *batch, tlog.NewMsgStream("evr-sh", lvl, os.Stdout))
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(cfg, dbname, name, script string, batch bool, msg tlog.MsgStream) error {
	dev := ioc.New(ioc.WithLogger(msg))
	defer func() {
		err := dev.Close()
		if err != nil {
			log.Printf("could not close IOC: %+v", err)
		}
	}()

	sh := ioc.NewShell(dev, os.Stdout)
	ctx := context.Background()

	err := load(ctx, dev, sh, cfg, dbname, name, script)
	if err != nil {
		return err
	}

	if !batch {
		prompt(ctx, sh)
	}
	return nil
}

func load(ctx context.Context, dev *ioc.IOC, sh *ioc.Shell, cfg, dbname, name, script string) error {
	if cfg != "" {
		err := dev.LoadFile(ctx, cfg)
		if err != nil {
			return fmt.Errorf("could not load configuration file: %w", err)
		}
	}

	if dbname != "" {
		db, err := conddb.Open(dbname)
		if err != nil {
			return fmt.Errorf("could not open configuration db: %w", err)
		}
		defer db.Close()

		err = dev.LoadDB(ctx, db, name)
		if err != nil {
			return fmt.Errorf("could not load configuration db: %w", err)
		}
	}

	if script != "" {
		f, err := os.Open(script)
		if err != nil {
			return fmt.Errorf("could not open startup script: %w", err)
		}
		defer f.Close()

		err = sh.Run(ctx, f)
		if err != nil {
			return fmt.Errorf("could not run startup script %q: %w", script, err)
		}
	}

	return nil
}

func prompt(ctx context.Context, sh *ioc.Shell) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(sh.Complete)

	hist := history()
	if f, err := os.Open(hist); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(hist)
		if err != nil {
			log.Printf("could not save history: %+v", err)
			return
		}
		defer f.Close()
		_, err = line.WriteHistory(f)
		if err != nil {
			log.Printf("could not save history: %+v", err)
		}
	}()

	for {
		cmd, err := line.Prompt("evr> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				log.Printf("could not read line: %+v", err)
			}
			return
		}
		line.AppendHistory(cmd)

		err = sh.Exec(ctx, cmd)
		switch {
		case errors.Is(err, ioc.ErrQuit):
			return
		case err != nil:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func history() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, ".evr_history")
}
