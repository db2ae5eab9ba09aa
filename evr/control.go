// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"context"
	"fmt"

	"github.com/go-lpc/evr/evr/internal/regs"
)

const enableMask = regs.O_EVR_ENABLE | regs.O_MAP_ENABLE

// Enable enables or disables the card and its event map.
func (card *Card) Enable(ctx context.Context, on bool) error {
	return card.locked(func() error {
		return card.enable(ctx, on)
	})
}

func (card *Card) enable(ctx context.Context, on bool) error {
	var v uint16
	if on {
		v = enableMask
	}
	return card.writeVerifyMask(ctx, regs.CONTROL, v, enableMask)
}

// IsEnabled reports whether the card is enabled.
func (card *Card) IsEnabled(ctx context.Context) (bool, error) {
	var ok bool
	err := card.locked(func() error {
		v, err := card.read(ctx, regs.CONTROL)
		ok = v&regs.O_EVR_ENABLE != 0
		return err
	})
	return ok, err
}

// Flush pulses the flush bit of the control register, clearing the event
// map RAM. The other control bits are preserved, except the RX violation
// reset bit which is never written back.
func (card *Card) Flush(ctx context.Context) error {
	return card.locked(func() error {
		return card.flush(ctx)
	})
}

func (card *Card) flush(ctx context.Context) error {
	ctl, err := card.read(ctx, regs.CONTROL)
	if err != nil {
		return err
	}
	return card.write(ctx, regs.CONTROL, (ctl&^regs.O_RX_VIOLATION)|regs.O_FLUSH)
}

// SetClock programs the microsecond divider, in MHz.
func (card *Card) SetClock(ctx context.Context, freq uint16) error {
	if freq == 0 || freq > MaxFreq {
		return fmt.Errorf("evr: invalid clock divider %d (want 1..%d): %w", freq, MaxFreq, ErrRange)
	}
	return card.locked(func() error {
		return card.writeVerify(ctx, regs.USEC_DIVIDER, freq)
	})
}

// Clock returns the microsecond divider, in MHz.
func (card *Card) Clock(ctx context.Context) (uint16, error) {
	return card.ReadRegister(ctx, regs.USEC_DIVIDER)
}

// SetExternalEvent assigns the event code generated on the external
// input. The register is written without being read back.
func (card *Card) SetExternalEvent(ctx context.Context, event int) error {
	if err := checkIndex("event", event, NumEvents); err != nil {
		return err
	}
	return card.locked(func() error {
		return card.write(ctx, regs.EXTERNAL_EVENT, uint16(event))
	})
}

// ExternalEvent returns the event code assigned to the external input.
func (card *Card) ExternalEvent(ctx context.Context) (int, error) {
	v, err := card.ReadRegister(ctx, regs.EXTERNAL_EVENT)
	return int(v), err
}

// FirmwareVersion returns the content of the firmware revision register.
func (card *Card) FirmwareVersion(ctx context.Context) (uint16, error) {
	return card.ReadRegister(ctx, regs.FIRMWARE)
}

// ResetRxViolation clears the receive violation flag.
func (card *Card) ResetRxViolation(ctx context.Context) error {
	return card.locked(func() error {
		ctl, err := card.read(ctx, regs.CONTROL)
		if err != nil {
			return err
		}
		return card.write(ctx, regs.CONTROL, ctl|regs.O_RX_VIOLATION)
	})
}

// IsRxViolation reports whether a receive violation was detected on the
// event link since the last reset.
func (card *Card) IsRxViolation(ctx context.Context) (bool, error) {
	v, err := card.ReadRegister(ctx, regs.CONTROL)
	if err != nil {
		return false, err
	}
	return v&regs.O_RX_VIOLATION != 0, nil
}

// SetMap programs the action bitmap triggered by event.
func (card *Card) SetMap(ctx context.Context, event int, bits uint16) error {
	if err := checkIndex("event", event, NumEvents); err != nil {
		return err
	}
	return card.locked(func() error {
		err := card.writeVerify(ctx, regs.MAP_ADDRESS, uint16(event))
		if err != nil {
			return err
		}
		return card.writeVerify(ctx, regs.MAP_DATA, bits)
	})
}

// Map returns the action bitmap triggered by event.
func (card *Card) Map(ctx context.Context, event int) (uint16, error) {
	if err := checkIndex("event", event, NumEvents); err != nil {
		return 0, err
	}
	var bits uint16
	err := card.locked(func() error {
		err := card.writeVerify(ctx, regs.MAP_ADDRESS, uint16(event))
		if err != nil {
			return err
		}
		bits, err = card.read(ctx, regs.MAP_DATA)
		return err
	})
	return bits, err
}

// SetPrescaler programs the top-level prescaler i.
func (card *Card) SetPrescaler(ctx context.Context, i int, v uint16) error {
	if err := checkIndex("prescaler", i, NumPrescalers); err != nil {
		return err
	}
	return card.WriteAndVerify(ctx, regs.Prescaler(i), v)
}

// Prescaler returns the top-level prescaler i.
func (card *Card) Prescaler(ctx context.Context, i int) (uint16, error) {
	if err := checkIndex("prescaler", i, NumPrescalers); err != nil {
		return 0, err
	}
	return card.ReadRegister(ctx, regs.Prescaler(i))
}
