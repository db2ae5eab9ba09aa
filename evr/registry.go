// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/evr/evr/internal/regs"
)

// Registry is the bounded table of configured cards.
//
// Cards are appended with Configure until Init is called.
// The table is never modified afterwards.
type Registry struct {
	cfg config
	msg log.MsgStream

	mu    sync.RWMutex
	cards []*Card
	init  bool
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.dial == nil {
		opts := []Option{
			WithLogger(cfg.msg),
			WithTimeout(cfg.timeout),
			WithRetries(cfg.retries),
		}
		if !cfg.refcheck {
			opts = append(opts, WithoutRefCheck())
		}
		cfg.dial = func(ctx context.Context, addr *net.UDPAddr) (Transport, error) {
			return DialUDP(ctx, addr, opts...)
		}
	}
	return &Registry{
		cfg:   cfg,
		msg:   cfg.msg,
		cards: make([]*Card, 0, cfg.capacity),
	}
}

// Configure declares a new card.
//
// host is a numeric IPv4 address or a host name resolved through DNS.
// port and freq are decimal strings. No socket is opened.
// On failure, the registry is left unchanged.
func (reg *Registry) Configure(ctx context.Context, name, host, port, freq string) error {
	return reg.ConfigureAll(ctx, CardConfig{Name: name, Host: host, Port: port, Freq: freq})
}

// CardConfig describes a card to declare, with the arguments of Configure.
type CardConfig struct {
	Name string
	Host string
	Port string
	Freq string
}

// ConfigureAll declares cards, all or none of them.
// On failure, the registry is left unchanged.
func (reg *Registry) ConfigureAll(ctx context.Context, cards ...CardConfig) error {
	batch := make([]*Card, 0, len(cards))
	for _, c := range cards {
		card, err := reg.newCard(ctx, c)
		if err != nil {
			return err
		}
		batch = append(batch, card)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.init {
		return fmt.Errorf("evr: could not configure cards: %w", ErrInitialized)
	}

	if n := len(reg.cards) + len(batch); n > reg.cfg.capacity {
		return fmt.Errorf("evr: could not configure %d card(s) (capacity=%d): %w", len(batch), reg.cfg.capacity, ErrCapacity)
	}

	seen := make(map[string]bool, len(reg.cards)+len(batch))
	for _, card := range reg.cards {
		seen[card.name] = true
	}
	for _, card := range batch {
		if seen[card.name] {
			return fmt.Errorf("evr: duplicate card name %q: %w", card.name, ErrSyntax)
		}
		seen[card.name] = true
	}

	reg.cards = append(reg.cards, batch...)
	for _, card := range batch {
		reg.msg.Debugf("configured card %q @ %v (%d MHz)", card.name, card.addr, card.freq)
	}
	return nil
}

func (reg *Registry) newCard(ctx context.Context, c CardConfig) (*Card, error) {
	name := c.Name
	switch {
	case name == "":
		return nil, fmt.Errorf("evr: empty card name: %w", ErrSyntax)
	case len(name) > NameLen:
		return nil, fmt.Errorf("evr: card name %q longer than %d bytes: %w", name, NameLen, ErrSyntax)
	case strings.IndexFunc(name, invalidNameRune) >= 0:
		return nil, fmt.Errorf("evr: card name %q is not a printable identifier: %w", name, ErrSyntax)
	}

	p, err := strconv.ParseUint(c.Port, 10, 16)
	if err != nil || p == 0 {
		return nil, fmt.Errorf("evr: invalid port %q for card %q (want 1..65535): %w", c.Port, name, ErrSyntax)
	}

	f, err := strconv.ParseUint(c.Freq, 10, 16)
	if err != nil || f == 0 || f > MaxFreq {
		return nil, fmt.Errorf("evr: invalid frequency %q for card %q (want 1..%d MHz): %w", c.Freq, name, MaxFreq, ErrSyntax)
	}

	ip, err := reg.resolve(ctx, c.Host)
	if err != nil {
		return nil, fmt.Errorf("evr: could not resolve host %q of card %q: %v: %w", c.Host, name, err, ErrSyntax)
	}

	return &Card{
		name: name,
		addr: &net.UDPAddr{IP: ip, Port: int(p)},
		freq: uint16(f),
		msg:  reg.msg,
		obs:  reg.cfg.observe,
	}, nil
}

// invalidNameRune reports whether r may not appear in a card name.
// Record links are split on white space and on the first ':'.
func invalidNameRune(r rune) bool {
	return r == ':' || r == utf8.RuneError || unicode.IsSpace(r) || !unicode.IsPrint(r)
}

func (reg *Registry) resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		ip4 := ip.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("evr: %q is not an IPv4 address", host)
		}
		return ip4, nil
	}

	ips, err := reg.cfg.lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("evr: no IPv4 address for %q", host)
}

// Open returns the card named name.
func (reg *Registry) Open(name string) (*Card, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	for _, card := range reg.cards {
		if card.name == name {
			return card, nil
		}
	}
	return nil, fmt.Errorf("evr: could not find card %q: %w", name, ErrNotFound)
}

// Cards returns the configured cards, in configuration order.
func (reg *Registry) Cards() []*Card {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	cards := make([]*Card, len(reg.cards))
	copy(cards, reg.cards)
	return cards
}

// Len returns the number of configured cards.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.cards)
}

// Init connects every card and brings it up: the card is disabled, its
// microsecond divider is set to its event frequency and its event map
// is flushed.
// Init stops at the first failing card. It may only be called once.
func (reg *Registry) Init(ctx context.Context) error {
	reg.mu.Lock()
	if reg.init {
		reg.mu.Unlock()
		return fmt.Errorf("evr: could not init registry: %w", ErrInitialized)
	}
	reg.init = true
	cards := reg.cards
	reg.mu.Unlock()

	for _, card := range cards {
		err := reg.bringUp(ctx, card)
		if err != nil {
			return fmt.Errorf("evr: could not initialize card %q: %w", card.name, err)
		}
		reg.msg.Infof("card %q @ %v initialized", card.name, card.addr)
	}
	return nil
}

func (reg *Registry) bringUp(ctx context.Context, card *Card) error {
	return card.locked(func() error {
		if card.tr == nil {
			tr, err := reg.cfg.dial(ctx, card.Addr())
			if err != nil {
				return fmt.Errorf("evr: could not connect to %v: %v: %w", card.addr, err, ErrLink)
			}
			card.tr = tr
		}

		err := card.write(ctx, regs.CONTROL, 0)
		if err != nil {
			return err
		}

		err = card.write(ctx, regs.USEC_DIVIDER, card.freq)
		if err != nil {
			return err
		}

		return card.write(ctx, regs.CONTROL, regs.O_FLUSH)
	})
}

// Report writes one line per configured card to w.
func (reg *Registry) Report(w io.Writer) error {
	for _, card := range reg.Cards() {
		_, err := fmt.Fprintf(w, "Found %s @ %v:%d\n", card.name, card.addr.IP, card.addr.Port)
		if err != nil {
			return fmt.Errorf("evr: could not write report: %w", err)
		}
	}
	return nil
}

// Close closes the transports of all cards.
func (reg *Registry) Close() error {
	var first error
	for _, card := range reg.Cards() {
		err := card.locked(func() error {
			if card.tr == nil {
				return nil
			}
			err := card.tr.Close()
			card.tr = nil
			return err
		})
		if err != nil && first == nil {
			first = fmt.Errorf("evr: could not close card %q: %w", card.name, err)
		}
	}
	return first
}

var std = NewRegistry()

// Configure declares a new card in the process-wide registry.
func Configure(ctx context.Context, name, host, port, freq string) error {
	return std.Configure(ctx, name, host, port, freq)
}

// Open returns the card named name from the process-wide registry.
func Open(name string) (*Card, error) {
	return std.Open(name)
}

// Init brings up every card of the process-wide registry.
func Init(ctx context.Context) error {
	return std.Init(ctx)
}

// Report writes the process-wide registry report to w.
func Report(w io.Writer) error {
	return std.Report(w)
}
