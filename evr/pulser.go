// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"context"

	"github.com/go-lpc/evr/evr/internal/regs"
)

// selectPulser points the shared pulse register bank at pulser i.
func (card *Card) selectPulser(ctx context.Context, i int) error {
	return card.writeVerify(ctx, regs.PULSE_SELECT, uint16(i+regs.PULSE_SELECT_OFFSET))
}

// EnablePulser enables or disables pulser i, leaving the other pulsers
// untouched.
func (card *Card) EnablePulser(ctx context.Context, i int, on bool) error {
	if err := checkIndex("pulser", i, NumPulsers); err != nil {
		return err
	}
	return card.locked(func() error {
		return card.setBit(ctx, regs.PULSE_ENABLE, i, on)
	})
}

// IsPulserEnabled reports whether pulser i is enabled.
func (card *Card) IsPulserEnabled(ctx context.Context, i int) (bool, error) {
	if err := checkIndex("pulser", i, NumPulsers); err != nil {
		return false, err
	}
	var ok bool
	err := card.locked(func() error {
		var err error
		ok, err = card.bit(ctx, regs.PULSE_ENABLE, i)
		return err
	})
	return ok, err
}

// SetPulserDelay programs the delay of pulser i, in microseconds.
// The delay is truncated to a whole number of event clock cycles.
func (card *Card) SetPulserDelay(ctx context.Context, i int, us float64) error {
	if err := checkIndex("pulser", i, NumPulsers); err != nil {
		return err
	}
	cycles, err := toCycles(us, card.freq, 1, max32)
	if err != nil {
		return err
	}
	return card.locked(func() error {
		return card.setPulserDelay(ctx, i, uint32(cycles))
	})
}

func (card *Card) setPulserDelay(ctx context.Context, i int, cycles uint32) error {
	err := card.selectPulser(ctx, i)
	if err != nil {
		return err
	}
	return card.write32(ctx, regs.PULSE_DELAY, cycles)
}

// PulserDelay returns the delay of pulser i, in microseconds.
func (card *Card) PulserDelay(ctx context.Context, i int) (float64, error) {
	if err := checkIndex("pulser", i, NumPulsers); err != nil {
		return 0, err
	}
	var cycles uint32
	err := card.locked(func() error {
		err := card.selectPulser(ctx, i)
		if err != nil {
			return err
		}
		cycles, err = card.read32(ctx, regs.PULSE_DELAY)
		return err
	})
	if err != nil {
		return 0, err
	}
	return toMicros(uint64(cycles), card.freq, 1), nil
}

// SetPulserWidth programs the width of pulser i, in microseconds.
// Pulser widths are 16-bit wide: only the low half of the width register
// pair is used.
func (card *Card) SetPulserWidth(ctx context.Context, i int, us float64) error {
	if err := checkIndex("pulser", i, NumPulsers); err != nil {
		return err
	}
	cycles, err := toCycles(us, card.freq, 1, max16)
	if err != nil {
		return err
	}
	return card.locked(func() error {
		return card.setPulserWidth(ctx, i, uint16(cycles))
	})
}

func (card *Card) setPulserWidth(ctx context.Context, i int, cycles uint16) error {
	err := card.selectPulser(ctx, i)
	if err != nil {
		return err
	}
	return card.writeVerify(ctx, regs.PULSE_WIDTH+2, cycles)
}

// PulserWidth returns the width of pulser i, in microseconds.
func (card *Card) PulserWidth(ctx context.Context, i int) (float64, error) {
	if err := checkIndex("pulser", i, NumPulsers); err != nil {
		return 0, err
	}
	var cycles uint16
	err := card.locked(func() error {
		err := card.selectPulser(ctx, i)
		if err != nil {
			return err
		}
		cycles, err = card.read(ctx, regs.PULSE_WIDTH+2)
		return err
	})
	if err != nil {
		return 0, err
	}
	return toMicros(uint64(cycles), card.freq, 1), nil
}
