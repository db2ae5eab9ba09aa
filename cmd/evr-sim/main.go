// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command evr-sim simulates event receiver cards over UDP.
//
// Usage: evr-sim [options] [addr1 [addr2 ...]]
//
// Each address serves one simulated card. By default, one card is
// served on :2000.
package main // import "github.com/go-lpc/evr/cmd/evr-sim"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	tlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/evr/evr/evrsim"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetPrefix("evr-sim: ")
	log.SetFlags(0)

	var (
		fw      = flag.Uint("fw", evrsim.DefaultFirmware, "firmware version reported by the cards")
		drop    = flag.Int("drop", 0, "number of retransmissions of each request to ignore")
		verbose = flag.Bool("v", false, "enable verbose mode")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `evr-sim simulates event receiver cards over UDP.

Usage: evr-sim [options] [addr1 [addr2 ...]]

Example:

 $> evr-sim -fw=0x1203 :2000 :2001

Options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	addrs := flag.Args()
	if len(addrs) == 0 {
		addrs = []string{":2000"}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, addrs, uint16(*fw), *drop, *verbose)
	if err != nil {
		log.Fatalf("could not run simulator: %+v", err)
	}
}

func run(ctx context.Context, addrs []string, fw uint16, drop int, verbose bool) error {
	lvl := tlog.LvlInfo
	if verbose {
		lvl = tlog.LvlDebug
	}

	grp, ctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		srv, err := evrsim.Listen(
			addr, evrsim.New(evrsim.WithFirmware(fw)),
			evrsim.WithDrop(drop),
			evrsim.WithLogger(tlog.NewMsgStream("evr-sim", lvl, os.Stdout)),
		)
		if err != nil {
			return fmt.Errorf("could not listen on %q: %w", addr, err)
		}
		defer srv.Close()

		log.Printf("serving card on %v...", srv.Addr())
		grp.Go(func() error {
			return srv.Serve(ctx)
		})
	}

	return grp.Wait()
}
