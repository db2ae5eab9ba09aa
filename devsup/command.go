// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package devsup

import (
	"context"
	"fmt"
	"math"

	"github.com/go-lpc/evr/evr"
)

// Command is an operation on a card.
//
// The set of commands is closed: every implementation is declared in this
// package, with its channel index already validated.
type Command interface {
	// Name returns the command name as written in record links.
	Name() string
	// Kind returns the kind of value the command consumes or produces.
	Kind() Kind
	// Output reports whether the command writes the record value to the card.
	Output() bool

	exec(ctx context.Context, card *evr.Card, v Value) (Value, error)
}

// Indexed is implemented by commands acting on one channel of a card.
type Indexed interface {
	Command
	Index() int
}

type (
	boolIn   struct{}
	boolOut  struct{}
	intIn    struct{}
	intOut   struct{}
	floatIn  struct{}
	floatOut struct{}
	action   struct{}
)

func (boolIn) Kind() Kind     { return Bool }
func (boolIn) Output() bool   { return false }
func (boolOut) Kind() Kind    { return Bool }
func (boolOut) Output() bool  { return true }
func (intIn) Kind() Kind      { return Int }
func (intIn) Output() bool    { return false }
func (intOut) Kind() Kind     { return Int }
func (intOut) Output() bool   { return true }
func (floatIn) Kind() Kind    { return Float }
func (floatIn) Output() bool  { return false }
func (floatOut) Kind() Kind   { return Float }
func (floatOut) Output() bool { return true }
func (action) Kind() Kind     { return None }
func (action) Output() bool   { return true }

func toU16(v int64) (uint16, error) {
	if v < 0 || v > math.MaxUint16 {
		return 0, fmt.Errorf("devsup: value %d outside [0, %d]: %w", v, math.MaxUint16, evr.ErrRange)
	}
	return uint16(v), nil
}

func toU32(v int64) (uint32, error) {
	if v < 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("devsup: value %d outside [0, %d]: %w", v, uint32(math.MaxUint32), evr.ErrRange)
	}
	return uint32(v), nil
}

func toInt(v int64) (int, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("devsup: value %d out of range: %w", v, evr.ErrRange)
	}
	return int(v), nil
}

func boolResult(v bool, err error) (Value, error)     { return BoolValue(v), err }
func floatResult(v float64, err error) (Value, error) { return FloatValue(v), err }
func intResult(v int, err error) (Value, error)       { return IntValue(int64(v)), err }
func u16Result(v uint16, err error) (Value, error)    { return IntValue(int64(v)), err }
func u32Result(v uint32, err error) (Value, error)    { return IntValue(int64(v)), err }

// Card-wide commands.
type (
	Enable           struct{ boolOut }
	IsEnabled        struct{ boolIn }
	Flush            struct{ action }
	SetClock         struct{ intOut }
	GetClock         struct{ intIn }
	SetExternalEvent struct{ intOut }
	GetExternalEvent struct{ intIn }
	GetFirmware      struct{ intIn }
	ResetRxViolation struct{ action }
	IsRxViolation    struct{ boolIn }
	ResetPolarity    struct{ action }
	MuxFrontPanel    struct{ action }
	FactoryReset     struct{ action }
)

func (Enable) Name() string           { return "enable" }
func (IsEnabled) Name() string        { return "isEnabled" }
func (Flush) Name() string            { return "flush" }
func (SetClock) Name() string         { return "setClock" }
func (GetClock) Name() string         { return "getClock" }
func (SetExternalEvent) Name() string { return "setExternalEvent" }
func (GetExternalEvent) Name() string { return "getExternalEvent" }
func (GetFirmware) Name() string      { return "getFirmwareVersion" }
func (ResetRxViolation) Name() string { return "resetRxViolation" }
func (IsRxViolation) Name() string    { return "isRxViolation" }
func (ResetPolarity) Name() string    { return "resetPolarity" }
func (MuxFrontPanel) Name() string    { return "muxFrontPanel" }
func (FactoryReset) Name() string     { return "factoryReset" }

func (Enable) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.Enable(ctx, v.Bool)
}

func (IsEnabled) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return boolResult(card.IsEnabled(ctx))
}

func (Flush) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.Flush(ctx)
}

func (SetClock) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	freq, err := toU16(v.Int)
	if err != nil {
		return v, err
	}
	return v, card.SetClock(ctx, freq)
}

func (GetClock) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return u16Result(card.Clock(ctx))
}

func (SetExternalEvent) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	ev, err := toInt(v.Int)
	if err != nil {
		return v, err
	}
	return v, card.SetExternalEvent(ctx, ev)
}

func (GetExternalEvent) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return intResult(card.ExternalEvent(ctx))
}

func (GetFirmware) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return u16Result(card.FirmwareVersion(ctx))
}

func (ResetRxViolation) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.ResetRxViolation(ctx)
}

func (IsRxViolation) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return boolResult(card.IsRxViolation(ctx))
}

func (ResetPolarity) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.ResetPolarity(ctx)
}

func (MuxFrontPanel) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.MuxFrontPanel(ctx)
}

func (FactoryReset) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.FactoryReset(ctx)
}

// Pulser commands.
type (
	EnablePulser struct {
		boolOut
		Pulser int
	}
	IsPulserEnabled struct {
		boolIn
		Pulser int
	}
	SetPulserDelay struct {
		floatOut
		Pulser int
	}
	GetPulserDelay struct {
		floatIn
		Pulser int
	}
	SetPulserWidth struct {
		floatOut
		Pulser int
	}
	GetPulserWidth struct {
		floatIn
		Pulser int
	}
)

func (EnablePulser) Name() string    { return "enablePulser" }
func (IsPulserEnabled) Name() string { return "isEnabledPulser" }
func (SetPulserDelay) Name() string  { return "setPulserDelay" }
func (GetPulserDelay) Name() string  { return "getPulserDelay" }
func (SetPulserWidth) Name() string  { return "setPulserWidth" }
func (GetPulserWidth) Name() string  { return "getPulserWidth" }

func (cmd EnablePulser) Index() int    { return cmd.Pulser }
func (cmd IsPulserEnabled) Index() int { return cmd.Pulser }
func (cmd SetPulserDelay) Index() int  { return cmd.Pulser }
func (cmd GetPulserDelay) Index() int  { return cmd.Pulser }
func (cmd SetPulserWidth) Index() int  { return cmd.Pulser }
func (cmd GetPulserWidth) Index() int  { return cmd.Pulser }

func (cmd EnablePulser) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.EnablePulser(ctx, cmd.Pulser, v.Bool)
}

func (cmd IsPulserEnabled) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return boolResult(card.IsPulserEnabled(ctx, cmd.Pulser))
}

func (cmd SetPulserDelay) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.SetPulserDelay(ctx, cmd.Pulser, v.Float)
}

func (cmd GetPulserDelay) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return floatResult(card.PulserDelay(ctx, cmd.Pulser))
}

func (cmd SetPulserWidth) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.SetPulserWidth(ctx, cmd.Pulser, v.Float)
}

func (cmd GetPulserWidth) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return floatResult(card.PulserWidth(ctx, cmd.Pulser))
}

// Programmable delay pulser commands.
type (
	EnablePDP struct {
		boolOut
		PDP int
	}
	IsPDPEnabled struct {
		boolIn
		PDP int
	}
	SetPDPPrescaler struct {
		intOut
		PDP int
	}
	GetPDPPrescaler struct {
		intIn
		PDP int
	}
	SetPDPDelay struct {
		floatOut
		PDP int
	}
	GetPDPDelay struct {
		floatIn
		PDP int
	}
	SetPDPWidth struct {
		floatOut
		PDP int
	}
	GetPDPWidth struct {
		floatIn
		PDP int
	}
)

func (EnablePDP) Name() string       { return "enablePdp" }
func (IsPDPEnabled) Name() string    { return "isEnabledPdp" }
func (SetPDPPrescaler) Name() string { return "setPdpPrescaler" }
func (GetPDPPrescaler) Name() string { return "getPdpPrescaler" }
func (SetPDPDelay) Name() string     { return "setPdpDelay" }
func (GetPDPDelay) Name() string     { return "getPdpDelay" }
func (SetPDPWidth) Name() string     { return "setPdpWidth" }
func (GetPDPWidth) Name() string     { return "getPdpWidth" }

func (cmd EnablePDP) Index() int       { return cmd.PDP }
func (cmd IsPDPEnabled) Index() int    { return cmd.PDP }
func (cmd SetPDPPrescaler) Index() int { return cmd.PDP }
func (cmd GetPDPPrescaler) Index() int { return cmd.PDP }
func (cmd SetPDPDelay) Index() int     { return cmd.PDP }
func (cmd GetPDPDelay) Index() int     { return cmd.PDP }
func (cmd SetPDPWidth) Index() int     { return cmd.PDP }
func (cmd GetPDPWidth) Index() int     { return cmd.PDP }

func (cmd EnablePDP) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.EnablePDP(ctx, cmd.PDP, v.Bool)
}

func (cmd IsPDPEnabled) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return boolResult(card.IsPDPEnabled(ctx, cmd.PDP))
}

func (cmd SetPDPPrescaler) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	p, err := toU16(v.Int)
	if err != nil {
		return v, err
	}
	return v, card.SetPDPPrescaler(ctx, cmd.PDP, p)
}

func (cmd GetPDPPrescaler) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return u16Result(card.PDPPrescaler(ctx, cmd.PDP))
}

func (cmd SetPDPDelay) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.SetPDPDelay(ctx, cmd.PDP, v.Float)
}

func (cmd GetPDPDelay) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return floatResult(card.PDPDelay(ctx, cmd.PDP))
}

func (cmd SetPDPWidth) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.SetPDPWidth(ctx, cmd.PDP, v.Float)
}

func (cmd GetPDPWidth) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return floatResult(card.PDPWidth(ctx, cmd.PDP))
}

// CML commands.
type (
	EnableCML struct {
		boolOut
		CML int
	}
	IsCMLEnabled struct {
		boolIn
		CML int
	}
	SetCMLPrescaler struct {
		intOut
		CML int
	}
	GetCMLPrescaler struct {
		intIn
		CML int
	}
)

func (EnableCML) Name() string       { return "enableCml" }
func (IsCMLEnabled) Name() string    { return "isEnabledCml" }
func (SetCMLPrescaler) Name() string { return "setCmlPrescaler" }
func (GetCMLPrescaler) Name() string { return "getCmlPrescaler" }

func (cmd EnableCML) Index() int       { return cmd.CML }
func (cmd IsCMLEnabled) Index() int    { return cmd.CML }
func (cmd SetCMLPrescaler) Index() int { return cmd.CML }
func (cmd GetCMLPrescaler) Index() int { return cmd.CML }

func (cmd EnableCML) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.EnableCML(ctx, cmd.CML, v.Bool)
}

func (cmd IsCMLEnabled) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return boolResult(card.IsCMLEnabled(ctx, cmd.CML))
}

func (cmd SetCMLPrescaler) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	p, err := toU32(v.Int)
	if err != nil {
		return v, err
	}
	return v, card.SetCMLPrescaler(ctx, cmd.CML, p)
}

func (cmd GetCMLPrescaler) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return u32Result(card.CMLPrescaler(ctx, cmd.CML))
}

// Event map and prescaler commands.
type (
	SetMap struct {
		intOut
		Event int
	}
	GetMap struct {
		intIn
		Event int
	}
	SetPrescaler struct {
		intOut
		Prescaler int
	}
	GetPrescaler struct {
		intIn
		Prescaler int
	}
)

func (SetMap) Name() string       { return "setMap" }
func (GetMap) Name() string       { return "getMap" }
func (SetPrescaler) Name() string { return "setPrescaler" }
func (GetPrescaler) Name() string { return "getPrescaler" }

func (cmd SetMap) Index() int       { return cmd.Event }
func (cmd GetMap) Index() int       { return cmd.Event }
func (cmd SetPrescaler) Index() int { return cmd.Prescaler }
func (cmd GetPrescaler) Index() int { return cmd.Prescaler }

func (cmd SetMap) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	bits, err := toU16(v.Int)
	if err != nil {
		return v, err
	}
	return v, card.SetMap(ctx, cmd.Event, bits)
}

func (cmd GetMap) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return u16Result(card.Map(ctx, cmd.Event))
}

func (cmd SetPrescaler) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	p, err := toU16(v.Int)
	if err != nil {
		return v, err
	}
	return v, card.SetPrescaler(ctx, cmd.Prescaler, p)
}

func (cmd GetPrescaler) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return u16Result(card.Prescaler(ctx, cmd.Prescaler))
}

// Output routing and enable commands.
type (
	SetTTLSource struct {
		intOut
		TTL int
	}
	GetTTLSource struct {
		intIn
		TTL int
	}
	SetUNIVSource struct {
		intOut
		UNIV int
	}
	GetUNIVSource struct {
		intIn
		UNIV int
	}
	EnableLevel struct {
		boolOut
		Level int
	}
	IsLevelEnabled struct {
		boolIn
		Level int
	}
	EnableTrigger struct {
		boolOut
		Trigger int
	}
	IsTriggerEnabled struct {
		boolIn
		Trigger int
	}
	EnableDbus struct {
		boolOut
		Dbus int
	}
	IsDbusEnabled struct {
		boolIn
		Dbus int
	}
)

func (SetTTLSource) Name() string     { return "setTTLSource" }
func (GetTTLSource) Name() string     { return "getTTLSource" }
func (SetUNIVSource) Name() string    { return "setUNIVSource" }
func (GetUNIVSource) Name() string    { return "getUNIVSource" }
func (EnableLevel) Name() string      { return "enableLevel" }
func (IsLevelEnabled) Name() string   { return "isEnabledLevel" }
func (EnableTrigger) Name() string    { return "enableTrigger" }
func (IsTriggerEnabled) Name() string { return "isEnabledTrigger" }
func (EnableDbus) Name() string       { return "enableDbus" }
func (IsDbusEnabled) Name() string    { return "isEnabledDbus" }

func (cmd SetTTLSource) Index() int     { return cmd.TTL }
func (cmd GetTTLSource) Index() int     { return cmd.TTL }
func (cmd SetUNIVSource) Index() int    { return cmd.UNIV }
func (cmd GetUNIVSource) Index() int    { return cmd.UNIV }
func (cmd EnableLevel) Index() int      { return cmd.Level }
func (cmd IsLevelEnabled) Index() int   { return cmd.Level }
func (cmd EnableTrigger) Index() int    { return cmd.Trigger }
func (cmd IsTriggerEnabled) Index() int { return cmd.Trigger }
func (cmd EnableDbus) Index() int       { return cmd.Dbus }
func (cmd IsDbusEnabled) Index() int    { return cmd.Dbus }

func (cmd SetTTLSource) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	src, err := toInt(v.Int)
	if err != nil {
		return v, err
	}
	return v, card.SetTTLSource(ctx, cmd.TTL, src)
}

func (cmd GetTTLSource) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return intResult(card.TTLSource(ctx, cmd.TTL))
}

func (cmd SetUNIVSource) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	src, err := toInt(v.Int)
	if err != nil {
		return v, err
	}
	return v, card.SetUNIVSource(ctx, cmd.UNIV, src)
}

func (cmd GetUNIVSource) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return intResult(card.UNIVSource(ctx, cmd.UNIV))
}

func (cmd EnableLevel) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.EnableLevel(ctx, cmd.Level, v.Bool)
}

func (cmd IsLevelEnabled) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return boolResult(card.IsLevelEnabled(ctx, cmd.Level))
}

func (cmd EnableTrigger) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.EnableTrigger(ctx, cmd.Trigger, v.Bool)
}

func (cmd IsTriggerEnabled) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return boolResult(card.IsTriggerEnabled(ctx, cmd.Trigger))
}

func (cmd EnableDbus) exec(ctx context.Context, card *evr.Card, v Value) (Value, error) {
	return v, card.EnableDbus(ctx, cmd.Dbus, v.Bool)
}

func (cmd IsDbusEnabled) exec(ctx context.Context, card *evr.Card, _ Value) (Value, error) {
	return boolResult(card.IsDbusEnabled(ctx, cmd.Dbus))
}
