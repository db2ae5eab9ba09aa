// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package evr drives VME-EVR-230/RF event receiver timing cards over UDP.
//
// Cards are declared in a Registry, brought up once with Registry.Init and
// then driven through the methods of Card. Every Card method holds the
// card lock for the whole register sequence it issues, so that composite
// "select then act" sequences never interleave.
package evr // import "github.com/go-lpc/evr/evr"

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/go-daq/tdaq/log"
)

const (
	NameLen  = 30  // maximum length of a card name
	MaxCards = 10  // default registry capacity
	MaxFreq  = 125 // maximum event frequency, in MHz

	NumPulsers    = 14
	NumPDPs       = 4
	NumCMLs       = 3
	NumPrescalers = 3
	NumTTLs       = 8
	NumUNIVs      = 4
	NumLevels     = 7
	NumTriggers   = 7
	NumDbus       = 8
	NumEvents     = 256
	NumSources    = 64

	// MaxCMLPrescaler is the largest prescaler whose two phases fit the
	// 16-bit high-phase and low-phase registers.
	MaxCMLPrescaler = 2 * 0xffff

	DefaultTimeout = 1000 * time.Millisecond
	DefaultRetries = 3
)

// Option configures a Registry or a UDP transport.
type Option func(*config)

type config struct {
	msg      log.MsgStream
	dial     Dialer
	lookup   func(ctx context.Context, host string) ([]net.IP, error)
	capacity int

	timeout  time.Duration
	retries  int
	refcheck bool

	observe func(card string, rtt time.Duration, err error)
}

func newConfig() config {
	return config{
		msg:      log.NewMsgStream("evr", log.LvlInfo, os.Stdout),
		lookup:   lookupIPv4,
		capacity: MaxCards,
		timeout:  DefaultTimeout,
		retries:  DefaultRetries,
		refcheck: true,
	}
}

// WithLogger sets the message stream used to report progress and failures.
func WithLogger(msg log.MsgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithDialer replaces the UDP transport factory used by Registry.Init.
func WithDialer(dial Dialer) Option {
	return func(cfg *config) {
		cfg.dial = dial
	}
}

// WithCapacity sets the maximum number of cards a registry accepts.
func WithCapacity(n int) Option {
	return func(cfg *config) {
		cfg.capacity = n
	}
}

// WithTimeout sets the per-attempt reply timeout of UDP transports.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		cfg.timeout = timeout
	}
}

// WithRetries sets the number of send-wait-receive attempts of UDP
// transports.
func WithRetries(n int) Option {
	return func(cfg *config) {
		cfg.retries = n
	}
}

// WithoutRefCheck disables reply correlation on the reference field.
// The most recent datagram received on the socket is then taken as the
// reply to the pending request.
func WithoutRefCheck() Option {
	return func(cfg *config) {
		cfg.refcheck = false
	}
}

// WithObserver registers a function called after every register exchange
// with the card name, the round-trip time and the exchange error.
func WithObserver(f func(card string, rtt time.Duration, err error)) Option {
	return func(cfg *config) {
		cfg.observe = f
	}
}

// WithResolver replaces the host name resolver used by Registry.Configure.
func WithResolver(lookup func(ctx context.Context, host string) ([]net.IP, error)) Option {
	return func(cfg *config) {
		cfg.lookup = lookup
	}
}

func lookupIPv4(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip4", host)
}
