// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs describes the register map of the VME-EVR-230/RF.
package regs // import "github.com/go-lpc/evr/evr/internal/regs"

// Register offsets, relative to the board base address.
// All registers are 16-bit wide.
const (
	CONTROL        = 0x00
	MAP_ADDRESS    = 0x02
	MAP_DATA       = 0x04
	PULSE_ENABLE   = 0x06
	LEVEL_ENABLE   = 0x08
	TRIGGER_ENABLE = 0x0a
	PDP_ENABLE     = 0x18
	PULSE_SELECT   = 0x1a
	DBUS_ENABLE    = 0x24
	PULSE_PRESCALE = 0x28
	FIRMWARE       = 0x2e

	FP_TTL7 = 0x3e
	FP_TTL0 = 0x40
	FP_TTL1 = 0x42
	FP_TTL2 = 0x44
	FP_TTL3 = 0x46
	FP_TTL4 = 0x48
	FP_TTL5 = 0x4a
	FP_TTL6 = 0x4c

	USEC_DIVIDER   = 0x4e
	EXTERNAL_EVENT = 0x50
	CLOCK_CONTROL  = 0x52
	PULSE_POLARITY = 0x68
	PULSE_DELAY    = 0x6c // high half; low half at +2
	PULSE_WIDTH    = 0x70 // high half; low half at +2

	PRESCALER_0  = 0x74
	PRESCALER_1  = 0x76
	PRESCALER_2  = 0x78
	FRAC_DIVIDER = 0x80

	FP_UNIV0    = 0x90
	FP_UNIV1    = 0x92
	FP_UNIV2    = 0x94
	FP_UNIV3    = 0x96
	FP_UNIVGPIO = 0x98

	CML4_ENABLE = 0xb0
	CML5_ENABLE = 0xd0
	CML6_ENABLE = 0xf0

	CML_STRIDE = 0x20
	CML_HP     = 0x04 // high-phase length, relative to the bank
	CML_LP     = 0x06 // low-phase length, relative to the bank
)

// Control register bits.
const (
	O_EVR_ENABLE   = 0x8000
	O_MAP_ENABLE   = 0x0200
	O_FLUSH        = 0x0080
	O_RX_VIOLATION = 0x0001 // reads as violation flag, write 1 to reset
)

// CML enable register bits.
const (
	CML_FREQ_MODE = 0x0010
	CML_ENABLE    = 0x0001
)

// PULSE_SELECT_OFFSET is added to a pulser index before it is written to
// PULSE_SELECT. PDP indices are written as-is.
const PULSE_SELECT_OFFSET = 16

// Front panel multiplexer sources.
const (
	FP_MUX_PDP0 = 0
	FP_MUX_PDP1 = 1
	FP_MUX_PDP2 = 2
	FP_MUX_PDP3 = 3
	FP_MUX_OTP0 = 11
	FP_MUX_PRE0 = 40
	FP_MUX_PRE1 = 41
	FP_MUX_PRE2 = 42
)

// TTL returns the routing register of front panel TTL output i.
func TTL(i int) uint8 {
	if i == 7 {
		return FP_TTL7
	}
	return uint8(FP_TTL0 + 2*i)
}

// UNIV returns the routing register of front panel universal output i.
func UNIV(i int) uint8 {
	return uint8(FP_UNIV0 + 2*i)
}

// CML returns the enable register of CML bank i.
func CML(i int) uint8 {
	return uint8(CML4_ENABLE + CML_STRIDE*i)
}

// Prescaler returns the register of top-level prescaler i.
func Prescaler(i int) uint8 {
	return uint8(PRESCALER_0 + 2*i)
}
