// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"context"
	"fmt"

	"github.com/go-lpc/evr/evr/internal/regs"
)

// EnableCML enables or disables the CML output bank i.
// The bank is always left in frequency mode.
func (card *Card) EnableCML(ctx context.Context, i int, on bool) error {
	if err := checkIndex("CML", i, NumCMLs); err != nil {
		return err
	}
	v := uint16(regs.CML_FREQ_MODE)
	if on {
		v |= regs.CML_ENABLE
	}
	return card.WriteAndVerify(ctx, regs.CML(i), v)
}

// IsCMLEnabled reports whether the CML output bank i is enabled.
func (card *Card) IsCMLEnabled(ctx context.Context, i int) (bool, error) {
	if err := checkIndex("CML", i, NumCMLs); err != nil {
		return false, err
	}
	v, err := card.ReadRegister(ctx, regs.CML(i))
	if err != nil {
		return false, err
	}
	return v&regs.CML_ENABLE != 0, nil
}

// SetCMLPrescaler programs the output period of CML bank i, in event
// clock cycles. The period is split into a high phase of p/2 cycles and
// a low phase of the remaining cycles.
func (card *Card) SetCMLPrescaler(ctx context.Context, i int, p uint32) error {
	if err := checkIndex("CML", i, NumCMLs); err != nil {
		return err
	}
	if p > MaxCMLPrescaler {
		return fmt.Errorf("evr: CML prescaler %d exceeds %d: %w", p, MaxCMLPrescaler, ErrRange)
	}

	var (
		hi = p / 2
		lo = p - hi
	)
	return card.locked(func() error {
		err := card.writeVerify(ctx, regs.CML(i)+regs.CML_HP, uint16(hi))
		if err != nil {
			return err
		}
		return card.writeVerify(ctx, regs.CML(i)+regs.CML_LP, uint16(lo))
	})
}

// CMLPrescaler returns the output period of CML bank i, in event clock
// cycles.
func (card *Card) CMLPrescaler(ctx context.Context, i int) (uint32, error) {
	if err := checkIndex("CML", i, NumCMLs); err != nil {
		return 0, err
	}
	var p uint32
	err := card.locked(func() error {
		hi, err := card.read(ctx, regs.CML(i)+regs.CML_HP)
		if err != nil {
			return err
		}
		lo, err := card.read(ctx, regs.CML(i)+regs.CML_LP)
		if err != nil {
			return err
		}
		p = uint32(hi) + uint32(lo)
		return nil
	})
	return p, err
}
