// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"context"
	"fmt"

	"github.com/go-lpc/evr/evr/internal/regs"
)

// FactoryReset brings the card back to a known state:
//   - the card is disabled and its clock divider set to its frequency,
//   - level, trigger and distributed bus outputs are disabled,
//   - pulse polarities are reset,
//   - every PDP is disabled, with prescaler 1, zero delay and zero width,
//   - every pulser is disabled, with zero delay and zero width,
//   - the PDPs are routed to the universal outputs,
//   - the external event is reset to 0,
//   - the event map is flushed.
//
// The card lock is held for the whole sequence.
// FactoryReset is never run by Registry.Init.
func (card *Card) FactoryReset(ctx context.Context) error {
	err := card.locked(func() error {
		return card.factoryReset(ctx)
	})
	if err != nil {
		return fmt.Errorf("evr: could not reset card %q: %w", card.name, err)
	}
	card.msg.Infof("card %q reset to factory state", card.name)
	return nil
}

func (card *Card) factoryReset(ctx context.Context) error {
	err := card.enable(ctx, false)
	if err != nil {
		return err
	}

	err = card.writeVerify(ctx, regs.USEC_DIVIDER, card.freq)
	if err != nil {
		return err
	}

	for _, out := range []struct {
		reg uint8
		n   int
	}{
		{regs.LEVEL_ENABLE, NumLevels},
		{regs.TRIGGER_ENABLE, NumTriggers},
		{regs.DBUS_ENABLE, NumDbus},
	} {
		err = card.clearBits(ctx, out.reg, out.n)
		if err != nil {
			return err
		}
	}

	err = card.resetPolarity(ctx)
	if err != nil {
		return err
	}

	for i := 0; i < NumPDPs; i++ {
		err = card.setBit(ctx, regs.PDP_ENABLE, i, false)
		if err != nil {
			return err
		}
		err = card.setPDPPrescaler(ctx, i, 1)
		if err != nil {
			return err
		}
		// the PDP is still selected.
		err = card.write32(ctx, regs.PULSE_DELAY, 0)
		if err != nil {
			return err
		}
		err = card.write32(ctx, regs.PULSE_WIDTH, 0)
		if err != nil {
			return err
		}
	}

	for i := 0; i < NumPulsers; i++ {
		err = card.setBit(ctx, regs.PULSE_ENABLE, i, false)
		if err != nil {
			return err
		}
		err = card.setPulserDelay(ctx, i, 0)
		if err != nil {
			return err
		}
		err = card.setPulserWidth(ctx, i, 0)
		if err != nil {
			return err
		}
	}

	err = card.muxFrontPanel(ctx)
	if err != nil {
		return err
	}

	err = card.write(ctx, regs.EXTERNAL_EVENT, 0)
	if err != nil {
		return err
	}

	return card.flush(ctx)
}

// clearBits clears the n low bits of the mask register reg.
func (card *Card) clearBits(ctx context.Context, reg uint8, n int) error {
	v, err := card.read(ctx, reg)
	if err != nil {
		return err
	}
	return card.writeVerify(ctx, reg, v&^uint16(1<<n-1))
}
