// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ioc implements an input/output controller for event receiver
// cards: it owns the card registry, the records bound to the cards and
// the workers processing them.
package ioc // import "github.com/go-lpc/evr/ioc"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/evr/devsup"
	"github.com/go-lpc/evr/evr"
	"github.com/go-lpc/evr/internal/config"
)

var (
	ErrNoRecord    = errors.New("ioc: no such record")
	ErrInitialized = errors.New("ioc: already initialized")
)

// Source provides the configuration of an IOC.
// *conddb.DB implements Source.
type Source interface {
	Config(ctx context.Context, ioc string) (*config.Config, error)
}

// IOC is an input/output controller.
type IOC struct {
	msg     log.MsgStream
	reg     *evr.Registry
	ad      *devsup.Adaptor
	lat     *latency
	period  time.Duration // link monitor period
	timeout time.Duration // timeout of record accesses

	mu    sync.RWMutex
	recs  map[string]*devsup.Record
	order []string // records in load order
	init  bool

	quit context.CancelFunc
	done chan error

	alerts alerter
}

type options struct {
	msg     log.MsgStream
	evr     []evr.Option
	workers int
	period  time.Duration
	timeout time.Duration
	alert   func(card string, n int, err error)
}

// Option configures an IOC.
type Option func(*options)

// WithLogger sets the message stream of the IOC and of its components.
func WithLogger(msg log.MsgStream) Option {
	return func(o *options) {
		o.msg = msg
	}
}

// WithCardOptions sets options of the card registry.
func WithCardOptions(opts ...evr.Option) Option {
	return func(o *options) {
		o.evr = append(o.evr, opts...)
	}
}

// WithWorkers sets the number of workers processing records.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMonitor sets the period of the link monitor.
func WithMonitor(period time.Duration) Option {
	return func(o *options) {
		o.period = period
	}
}

// WithTimeout sets the time allowed to complete a record access.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithAlert sets the function called when the link monitor fails to
// reach a card. n is the number of consecutive failures.
// The default sends a mail when SMTP credentials are available.
func WithAlert(f func(card string, n int, err error)) Option {
	return func(o *options) {
		o.alert = f
	}
}

// New creates a new IOC.
func New(opts ...Option) *IOC {
	o := options{
		msg:     log.NewMsgStream("ioc", log.LvlInfo, os.Stdout),
		workers: 4,
		period:  5 * time.Second,
		timeout: 10 * time.Second,
		alert:   alertMail,
	}
	for _, opt := range opts {
		opt(&o)
	}

	lat := newLatency()
	cardOpts := append([]evr.Option{
		evr.WithLogger(o.msg),
		evr.WithObserver(lat.observe),
	}, o.evr...)
	reg := evr.NewRegistry(cardOpts...)

	return &IOC{
		msg:     o.msg,
		reg:     reg,
		ad:      devsup.NewAdaptor(reg, devsup.WithLogger(o.msg), devsup.WithWorkers(o.workers)),
		lat:     lat,
		period:  o.period,
		timeout: o.timeout,
		recs:    make(map[string]*devsup.Record),
		alerts:  alerter{n: make(map[string]int), send: o.alert},
	}
}

// Configure declares a card.
func (ioc *IOC) Configure(ctx context.Context, name, host, port, freq string) error {
	return ioc.reg.Configure(ctx, name, host, port, freq)
}

// LoadRecord declares a record named name, bound to link.
// Records loaded after Init are bound immediately.
func (ioc *IOC) LoadRecord(name, link string) error {
	rec, err := devsup.NewRecord(name, link)
	if err != nil {
		return fmt.Errorf("ioc: could not load record %q: %w", name, err)
	}

	ioc.mu.Lock()
	defer ioc.mu.Unlock()

	if _, dup := ioc.recs[name]; dup {
		return fmt.Errorf("ioc: duplicate record %q: %w", name, evr.ErrSyntax)
	}

	if ioc.init {
		err = ioc.ad.Bind(rec)
		if err != nil {
			return fmt.Errorf("ioc: could not load record %q: %w", name, err)
		}
	}

	ioc.recs[name] = rec
	ioc.order = append(ioc.order, name)
	return nil
}

// LoadConfig declares the cards and records of cfg.
// The configuration is loaded as a whole: on failure, the IOC is left
// unchanged.
func (ioc *IOC) LoadConfig(ctx context.Context, cfg *config.Config) error {
	err := config.Validate(cfg)
	if err != nil {
		return fmt.Errorf("ioc: invalid configuration: %v: %w", err, evr.ErrSyntax)
	}

	recs := make([]*devsup.Record, len(cfg.Records))
	for i, r := range cfg.Records {
		recs[i], err = devsup.NewRecord(r.Name, r.Link)
		if err != nil {
			return fmt.Errorf("ioc: could not load record %q: %w", r.Name, err)
		}
	}

	cards := make([]evr.CardConfig, len(cfg.Cards))
	for i, c := range cfg.Cards {
		cards[i] = evr.CardConfig{
			Name: c.Name,
			Host: c.Host,
			Port: c.PortString(),
			Freq: c.FreqString(),
		}
	}

	ioc.mu.Lock()
	defer ioc.mu.Unlock()

	for _, rec := range recs {
		if _, dup := ioc.recs[rec.Name()]; dup {
			return fmt.Errorf("ioc: duplicate record %q: %w", rec.Name(), evr.ErrSyntax)
		}
	}

	// cards can only be added before Init, and records only bound after.
	if len(cards) > 0 {
		err = ioc.reg.ConfigureAll(ctx, cards...)
		if err != nil {
			return fmt.Errorf("ioc: could not configure cards: %w", err)
		}
	}
	if ioc.init {
		for _, rec := range recs {
			err := ioc.ad.Bind(rec)
			if err != nil {
				return fmt.Errorf("ioc: could not load record %q: %w", rec.Name(), err)
			}
		}
	}

	for _, rec := range recs {
		ioc.recs[rec.Name()] = rec
		ioc.order = append(ioc.order, rec.Name())
	}
	if cfg.Monitor.Period > 0 {
		ioc.period = cfg.Monitor.Period
	}
	return nil
}

// LoadFile declares the cards and records of the YAML configuration file fname.
func (ioc *IOC) LoadFile(ctx context.Context, fname string) error {
	cfg, err := config.Load(fname)
	if err != nil {
		return fmt.Errorf("ioc: could not load configuration: %w", err)
	}
	return ioc.LoadConfig(ctx, cfg)
}

// LoadDB declares the cards and records stored in db for the IOC named name.
func (ioc *IOC) LoadDB(ctx context.Context, db Source, name string) error {
	cfg, err := db.Config(ctx, name)
	if err != nil {
		return fmt.Errorf("ioc: could not retrieve configuration of %q: %w", name, err)
	}
	return ioc.LoadConfig(ctx, cfg)
}

// Init brings up every configured card, binds the records and starts
// processing them.
func (ioc *IOC) Init(ctx context.Context) error {
	ioc.mu.Lock()
	defer ioc.mu.Unlock()

	if ioc.init {
		return ErrInitialized
	}

	err := ioc.reg.Init(ctx)
	if err != nil {
		return fmt.Errorf("ioc: could not initialize cards: %w", err)
	}

	for _, name := range ioc.order {
		err := ioc.ad.Bind(ioc.recs[name])
		if err != nil {
			return fmt.Errorf("ioc: could not initialize record %q: %w", name, err)
		}
	}

	run, quit := context.WithCancel(context.Background())
	ioc.quit = quit
	ioc.done = make(chan error, 1)
	go func() {
		ioc.done <- ioc.ad.Run(run)
	}()
	ioc.init = true

	ioc.msg.Infof("initialized %d card(s), %d record(s)", ioc.reg.Len(), len(ioc.order))
	return nil
}

// Initialized reports whether Init completed.
func (ioc *IOC) Initialized() bool {
	ioc.mu.RLock()
	defer ioc.mu.RUnlock()
	return ioc.init
}

// Record returns the record named name.
func (ioc *IOC) Record(name string) (*devsup.Record, error) {
	ioc.mu.RLock()
	defer ioc.mu.RUnlock()

	rec, ok := ioc.recs[name]
	if !ok {
		return nil, fmt.Errorf("ioc: could not find record %q: %w", name, ErrNoRecord)
	}
	return rec, nil
}

// Records returns the records in load order.
func (ioc *IOC) Records() []*devsup.Record {
	ioc.mu.RLock()
	defer ioc.mu.RUnlock()

	recs := make([]*devsup.Record, len(ioc.order))
	for i, name := range ioc.order {
		recs[i] = ioc.recs[name]
	}
	return recs
}

// Cards returns the configured cards.
func (ioc *IOC) Cards() []*evr.Card {
	return ioc.reg.Cards()
}

// Card returns the card named name.
func (ioc *IOC) Card(name string) (*evr.Card, error) {
	return ioc.reg.Open(name)
}

// Put parses val according to the kind of the output record name, writes
// it and waits for the card to be updated.
func (ioc *IOC) Put(ctx context.Context, name, val string) (devsup.Value, error) {
	rec, err := ioc.Record(name)
	if err != nil {
		return devsup.Value{}, err
	}

	v, err := devsup.ParseValue(rec.Link().Cmd.Kind(), val)
	if err != nil {
		return devsup.Value{}, fmt.Errorf("ioc: could not put %q: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, ioc.timeout)
	defer cancel()

	err = ioc.ad.Put(ctx, rec, v)
	if err != nil {
		return v, fmt.Errorf("ioc: could not put %q: %w", name, err)
	}
	return v, nil
}

// Get returns the value of the record name.
// Input records are processed first; output records return the last
// value written.
func (ioc *IOC) Get(ctx context.Context, name string) (devsup.Value, error) {
	rec, err := ioc.Record(name)
	if err != nil {
		return devsup.Value{}, err
	}

	if rec.Link().Cmd.Output() {
		return rec.Value(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, ioc.timeout)
	defer cancel()

	v, err := ioc.ad.Sync(ctx, rec)
	if err != nil {
		return v, fmt.Errorf("ioc: could not get %q: %w", name, err)
	}
	return v, nil
}

// FactoryReset runs the factory reset sequence on the card named name.
func (ioc *IOC) FactoryReset(ctx context.Context, name string) error {
	card, err := ioc.reg.Open(name)
	if err != nil {
		return fmt.Errorf("ioc: could not reset card: %w", err)
	}
	return card.FactoryReset(ctx)
}

// Report writes the list of cards to w.
// With detail > 0 the state and latency of each card are added; with
// detail > 1 the records are listed.
func (ioc *IOC) Report(ctx context.Context, w io.Writer, detail int) error {
	err := ioc.reg.Report(w)
	if err != nil {
		return fmt.Errorf("ioc: could not report cards: %w", err)
	}
	if detail <= 0 {
		return nil
	}

	for _, st := range ioc.probe(ctx) {
		fmt.Fprintf(w, "  %v\n", st)
		fmt.Fprintf(w, "  %s\n", ioc.lat.summary(st.Card))
	}

	if detail <= 1 {
		return nil
	}

	recs := ioc.Records()
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Name() < recs[j].Name()
	})
	for _, rec := range recs {
		fmt.Fprintf(w, "  %v\n", rec)
	}
	return nil
}

// Close stops processing records and closes the cards.
func (ioc *IOC) Close() error {
	ioc.mu.Lock()
	quit, done := ioc.quit, ioc.done
	ioc.quit = nil
	ioc.mu.Unlock()

	if quit != nil {
		quit()
		err := <-done
		if err != nil {
			ioc.msg.Errorf("could not stop record processing: %+v", err)
		}
	}

	err := ioc.reg.Close()
	if err != nil {
		return fmt.Errorf("ioc: could not close cards: %w", err)
	}
	return nil
}
