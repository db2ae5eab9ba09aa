// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"context"

	"github.com/go-lpc/evr/evr/internal/regs"
)

// SetTTLSource routes the internal signal src to front panel TTL output i.
func (card *Card) SetTTLSource(ctx context.Context, i, src int) error {
	if err := checkIndex("TTL", i, NumTTLs); err != nil {
		return err
	}
	if err := checkIndex("source", src, NumSources); err != nil {
		return err
	}
	return card.WriteAndVerify(ctx, regs.TTL(i), uint16(src))
}

// TTLSource returns the internal signal routed to front panel TTL output i.
func (card *Card) TTLSource(ctx context.Context, i int) (int, error) {
	if err := checkIndex("TTL", i, NumTTLs); err != nil {
		return 0, err
	}
	v, err := card.ReadRegister(ctx, regs.TTL(i))
	return int(v), err
}

// SetUNIVSource routes the internal signal src to front panel universal
// output i.
func (card *Card) SetUNIVSource(ctx context.Context, i, src int) error {
	if err := checkIndex("UNIV", i, NumUNIVs); err != nil {
		return err
	}
	if err := checkIndex("source", src, NumSources); err != nil {
		return err
	}
	return card.WriteAndVerify(ctx, regs.UNIV(i), uint16(src))
}

// UNIVSource returns the internal signal routed to front panel universal
// output i.
func (card *Card) UNIVSource(ctx context.Context, i int) (int, error) {
	if err := checkIndex("UNIV", i, NumUNIVs); err != nil {
		return 0, err
	}
	v, err := card.ReadRegister(ctx, regs.UNIV(i))
	return int(v), err
}

// EnableLevel enables or disables the level output i.
func (card *Card) EnableLevel(ctx context.Context, i int, on bool) error {
	return card.enableOutput(ctx, "level", regs.LEVEL_ENABLE, i, NumLevels, on)
}

// IsLevelEnabled reports whether the level output i is enabled.
func (card *Card) IsLevelEnabled(ctx context.Context, i int) (bool, error) {
	return card.isOutputEnabled(ctx, "level", regs.LEVEL_ENABLE, i, NumLevels)
}

// EnableTrigger enables or disables the trigger output i.
func (card *Card) EnableTrigger(ctx context.Context, i int, on bool) error {
	return card.enableOutput(ctx, "trigger", regs.TRIGGER_ENABLE, i, NumTriggers, on)
}

// IsTriggerEnabled reports whether the trigger output i is enabled.
func (card *Card) IsTriggerEnabled(ctx context.Context, i int) (bool, error) {
	return card.isOutputEnabled(ctx, "trigger", regs.TRIGGER_ENABLE, i, NumTriggers)
}

// EnableDbus enables or disables the distributed bus output i.
func (card *Card) EnableDbus(ctx context.Context, i int, on bool) error {
	return card.enableOutput(ctx, "dbus", regs.DBUS_ENABLE, i, NumDbus, on)
}

// IsDbusEnabled reports whether the distributed bus output i is enabled.
func (card *Card) IsDbusEnabled(ctx context.Context, i int) (bool, error) {
	return card.isOutputEnabled(ctx, "dbus", regs.DBUS_ENABLE, i, NumDbus)
}

func (card *Card) enableOutput(ctx context.Context, what string, reg uint8, i, n int, on bool) error {
	if err := checkIndex(what, i, n); err != nil {
		return err
	}
	return card.locked(func() error {
		return card.setBit(ctx, reg, i, on)
	})
}

func (card *Card) isOutputEnabled(ctx context.Context, what string, reg uint8, i, n int) (bool, error) {
	if err := checkIndex(what, i, n); err != nil {
		return false, err
	}
	var ok bool
	err := card.locked(func() error {
		var err error
		ok, err = card.bit(ctx, reg, i)
		return err
	})
	return ok, err
}

// ResetPolarity restores the default polarity of every pulse output.
func (card *Card) ResetPolarity(ctx context.Context) error {
	return card.locked(func() error {
		return card.resetPolarity(ctx)
	})
}

func (card *Card) resetPolarity(ctx context.Context) error {
	err := card.writeVerify(ctx, regs.PULSE_POLARITY, 0)
	if err != nil {
		return err
	}
	return card.writeVerify(ctx, regs.PULSE_POLARITY+2, 0)
}

// MuxFrontPanel routes the four programmable delay pulsers to the four
// front panel universal outputs.
func (card *Card) MuxFrontPanel(ctx context.Context) error {
	return card.locked(func() error {
		return card.muxFrontPanel(ctx)
	})
}

func (card *Card) muxFrontPanel(ctx context.Context) error {
	for i, src := range []uint16{
		regs.FP_MUX_PDP0,
		regs.FP_MUX_PDP1,
		regs.FP_MUX_PDP2,
		regs.FP_MUX_PDP3,
	} {
		err := card.writeVerify(ctx, regs.UNIV(i), src)
		if err != nil {
			return err
		}
	}
	return nil
}
