// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"context"

	"github.com/go-lpc/evr/evr/internal/regs"
)

func (card *Card) selectPDP(ctx context.Context, i int) error {
	return card.writeVerify(ctx, regs.PULSE_SELECT, uint16(i))
}

// pdpScale selects PDP i and returns its prescaler.
// A zero prescaler divides by one.
func (card *Card) pdpScale(ctx context.Context, i int) (uint32, error) {
	err := card.selectPDP(ctx, i)
	if err != nil {
		return 0, err
	}
	p, err := card.read(ctx, regs.PULSE_PRESCALE)
	if err != nil {
		return 0, err
	}
	if p == 0 {
		p = 1
	}
	return uint32(p), nil
}

// EnablePDP enables or disables the programmable delay pulser i.
func (card *Card) EnablePDP(ctx context.Context, i int, on bool) error {
	if err := checkIndex("PDP", i, NumPDPs); err != nil {
		return err
	}
	return card.locked(func() error {
		return card.setBit(ctx, regs.PDP_ENABLE, i, on)
	})
}

// IsPDPEnabled reports whether the programmable delay pulser i is enabled.
func (card *Card) IsPDPEnabled(ctx context.Context, i int) (bool, error) {
	if err := checkIndex("PDP", i, NumPDPs); err != nil {
		return false, err
	}
	var ok bool
	err := card.locked(func() error {
		var err error
		ok, err = card.bit(ctx, regs.PDP_ENABLE, i)
		return err
	})
	return ok, err
}

// SetPDPPrescaler programs the prescaler of PDP i.
func (card *Card) SetPDPPrescaler(ctx context.Context, i int, p uint16) error {
	if err := checkIndex("PDP", i, NumPDPs); err != nil {
		return err
	}
	return card.locked(func() error {
		return card.setPDPPrescaler(ctx, i, p)
	})
}

func (card *Card) setPDPPrescaler(ctx context.Context, i int, p uint16) error {
	err := card.selectPDP(ctx, i)
	if err != nil {
		return err
	}
	return card.writeVerify(ctx, regs.PULSE_PRESCALE, p)
}

// PDPPrescaler returns the prescaler of PDP i.
func (card *Card) PDPPrescaler(ctx context.Context, i int) (uint16, error) {
	if err := checkIndex("PDP", i, NumPDPs); err != nil {
		return 0, err
	}
	var p uint16
	err := card.locked(func() error {
		err := card.selectPDP(ctx, i)
		if err != nil {
			return err
		}
		p, err = card.read(ctx, regs.PULSE_PRESCALE)
		return err
	})
	return p, err
}

// SetPDPDelay programs the delay of PDP i, in microseconds.
// The delay is expressed in prescaled event clock cycles, so its range
// depends on the prescaler currently programmed.
func (card *Card) SetPDPDelay(ctx context.Context, i int, us float64) error {
	return card.setPDPTiming(ctx, i, regs.PULSE_DELAY, us)
}

// PDPDelay returns the delay of PDP i, in microseconds.
func (card *Card) PDPDelay(ctx context.Context, i int) (float64, error) {
	return card.pdpTiming(ctx, i, regs.PULSE_DELAY)
}

// SetPDPWidth programs the width of PDP i, in microseconds.
func (card *Card) SetPDPWidth(ctx context.Context, i int, us float64) error {
	return card.setPDPTiming(ctx, i, regs.PULSE_WIDTH, us)
}

// PDPWidth returns the width of PDP i, in microseconds.
func (card *Card) PDPWidth(ctx context.Context, i int) (float64, error) {
	return card.pdpTiming(ctx, i, regs.PULSE_WIDTH)
}

func (card *Card) setPDPTiming(ctx context.Context, i int, reg uint8, us float64) error {
	if err := checkIndex("PDP", i, NumPDPs); err != nil {
		return err
	}
	return card.locked(func() error {
		scale, err := card.pdpScale(ctx, i)
		if err != nil {
			return err
		}
		cycles, err := toCycles(us, card.freq, scale, max32)
		if err != nil {
			return err
		}
		return card.write32(ctx, reg, uint32(cycles))
	})
}

func (card *Card) pdpTiming(ctx context.Context, i int, reg uint8) (float64, error) {
	if err := checkIndex("PDP", i, NumPDPs); err != nil {
		return 0, err
	}
	var (
		scale  uint32
		cycles uint32
	)
	err := card.locked(func() error {
		var err error
		scale, err = card.pdpScale(ctx, i)
		if err != nil {
			return err
		}
		cycles, err = card.read32(ctx, reg)
		return err
	})
	if err != nil {
		return 0, err
	}
	return toMicros(uint64(cycles), card.freq, scale), nil
}
