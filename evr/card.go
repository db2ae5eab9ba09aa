// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/evr/evr/wire"
)

// Card is a configured event receiver.
//
// The name, address and event frequency of a card never change once it
// has been configured. Its transport is created by Registry.Init.
type Card struct {
	name string
	addr *net.UDPAddr
	freq uint16 // event frequency, in MHz

	msg log.MsgStream
	obs func(card string, rtt time.Duration, err error)

	mu sync.Mutex // serializes register exchanges
	tr Transport
}

// Name returns the name the card was configured with.
func (card *Card) Name() string { return card.name }

// Addr returns the UDP address of the card.
func (card *Card) Addr() *net.UDPAddr {
	addr := *card.addr
	return &addr
}

// Frequency returns the event frequency of the card, in MHz.
func (card *Card) Frequency() uint16 { return card.freq }

func (card *Card) String() string {
	return fmt.Sprintf("%s@%v", card.name, card.addr)
}

// locked runs f while holding the card lock.
func (card *Card) locked(f func() error) error {
	card.mu.Lock()
	defer card.mu.Unlock()
	return f()
}

func (card *Card) exchange(ctx context.Context, req wire.Msg) (wire.Msg, error) {
	if card.tr == nil {
		return wire.Msg{}, fmt.Errorf("evr: card %q has no transport: %w", card.name, ErrLink)
	}

	start := time.Now()
	rep, err := card.tr.Exchange(ctx, req)
	if card.obs != nil {
		card.obs(card.name, time.Since(start), err)
	}
	return rep, err
}

// read returns the content of register reg.
// The caller must hold the card lock.
func (card *Card) read(ctx context.Context, reg uint8) (uint16, error) {
	rep, err := card.exchange(ctx, wire.NewRead(reg))
	if err != nil {
		return 0, fmt.Errorf("evr: could not read register 0x%02x of %q: %w", reg, card.name, err)
	}
	return rep.Data, nil
}

// write writes v into register reg. The reply payload is ignored.
// The caller must hold the card lock.
func (card *Card) write(ctx context.Context, reg uint8, v uint16) error {
	_, err := card.exchange(ctx, wire.NewWrite(reg, v))
	if err != nil {
		return fmt.Errorf("evr: could not write 0x%04x to register 0x%02x of %q: %w", v, reg, card.name, err)
	}
	return nil
}

// writeVerify writes v into register reg and reads it back.
// The caller must hold the card lock.
func (card *Card) writeVerify(ctx context.Context, reg uint8, v uint16) error {
	return card.writeVerifyMask(ctx, reg, v, 0xffff)
}

// writeVerifyMask writes v into register reg and checks that the bits
// selected by mask read back unchanged.
// The caller must hold the card lock.
func (card *Card) writeVerifyMask(ctx context.Context, reg uint8, v, mask uint16) error {
	err := card.write(ctx, reg, v)
	if err != nil {
		return err
	}

	got, err := card.read(ctx, reg)
	if err != nil {
		return err
	}

	if got&mask != v&mask {
		return fmt.Errorf(
			"evr: register 0x%02x of %q read back 0x%04x, want 0x%04x (mask=0x%04x): %w",
			reg, card.name, got, v, mask, ErrReadback,
		)
	}
	return nil
}

// write32 writes v into the register pair at reg, high half first.
// Both halves are verified.
func (card *Card) write32(ctx context.Context, reg uint8, v uint32) error {
	err := card.writeVerify(ctx, reg, uint16(v>>16))
	if err != nil {
		return err
	}
	return card.writeVerify(ctx, reg+2, uint16(v))
}

func (card *Card) read32(ctx context.Context, reg uint8) (uint32, error) {
	hi, err := card.read(ctx, reg)
	if err != nil {
		return 0, err
	}
	lo, err := card.read(ctx, reg+2)
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}

// setBit sets or clears bit i of the mask register reg, preserving the
// other bits, and verifies the result.
func (card *Card) setBit(ctx context.Context, reg uint8, i int, on bool) error {
	v, err := card.read(ctx, reg)
	if err != nil {
		return err
	}
	if on {
		v |= 1 << i
	} else {
		v &^= 1 << i
	}
	return card.writeVerify(ctx, reg, v)
}

func (card *Card) bit(ctx context.Context, reg uint8, i int) (bool, error) {
	v, err := card.read(ctx, reg)
	if err != nil {
		return false, err
	}
	return v&(1<<i) != 0, nil
}

// ReadRegister returns the content of register reg.
func (card *Card) ReadRegister(ctx context.Context, reg uint8) (uint16, error) {
	var v uint16
	err := card.locked(func() error {
		var err error
		v, err = card.read(ctx, reg)
		return err
	})
	return v, err
}

// WriteRegister writes v into register reg without reading it back.
func (card *Card) WriteRegister(ctx context.Context, reg uint8, v uint16) error {
	return card.locked(func() error {
		return card.write(ctx, reg, v)
	})
}

// WriteAndVerify writes v into register reg and checks it reads back
// unchanged.
func (card *Card) WriteAndVerify(ctx context.Context, reg uint8, v uint16) error {
	return card.locked(func() error {
		return card.writeVerify(ctx, reg, v)
	})
}
