// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command evr-srv starts a TDAQ server driving a set of event receiver cards.
//
// Usage: evr-srv [tdaq-options] [config.yaml]
//
// The configuration file is loaded on /config, unless the command carries
// the path of another one.
// When EVR_PMON is set to a duration, the CPU and memory usage of the
// server are logged to evr-srv-pmon.log at that frequency.
package main // import "github.com/go-lpc/evr/cmd/evr-srv"

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/evr"
	"github.com/go-lpc/evr/ioc"
	"github.com/sbinet/pmon"
)

func main() {
	log.SetPrefix("evr-srv: ")
	log.SetFlags(0)

	cmd := flags.New()

	if vers, _ := evr.Version(); vers != "" {
		log.Printf("version: %s", vers)
	}

	fname := ""
	if len(cmd.Args) > 0 {
		fname = cmd.Args[0]
	}

	if v := os.Getenv("EVR_PMON"); v != "" {
		freq, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("could not parse EVR_PMON=%q: %+v", v, err)
		}
		stop, err := monitor(freq)
		if err != nil {
			log.Fatalf("could not start self-monitoring: %+v", err)
		}
		defer stop()
	}

	dev := ioc.New()
	defer dev.Close()

	ctl := ioc.NewServer(dev, fname)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", ctl.OnConfig)
	srv.CmdHandle("/init", ctl.OnInit)
	srv.CmdHandle("/reset", ctl.OnReset)
	srv.CmdHandle("/start", ctl.OnStart)
	srv.CmdHandle("/stop", ctl.OnStop)
	srv.CmdHandle("/quit", ctl.OnQuit)

	srv.OutputHandle("/status", ctl.Status)

	srv.RunHandle(ctl.Run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

func monitor(freq time.Duration) (func(), error) {
	p, err := pmon.Monitor(os.Getpid())
	if err != nil {
		return nil, fmt.Errorf("could not monitor pid=%d: %w", os.Getpid(), err)
	}

	f, err := os.Create("evr-srv-pmon.log")
	if err != nil {
		return nil, fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		err := p.Run()
		if err != nil {
			log.Printf("could not run pmon: %+v", err)
		}
	}()

	return func() {
		err := f.Close()
		if err != nil {
			log.Printf("could not close pmon log file: %+v", err)
		}
	}, nil
}
