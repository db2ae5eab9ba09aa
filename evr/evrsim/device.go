// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package evrsim simulates the register file of a VME-EVR-230/RF board.
//
// A Device can be used in-process, as an evr.Transport, or served over
// UDP with a Server.
package evrsim // import "github.com/go-lpc/evr/evr/evrsim"

import (
	"context"
	"net"
	"sync"

	"github.com/go-lpc/evr/evr"
	"github.com/go-lpc/evr/evr/internal/regs"
	"github.com/go-lpc/evr/evr/wire"
)

// DefaultFirmware is the firmware revision reported by default.
const DefaultFirmware = 0x1203

// bank holds the registers selected by PULSE_SELECT.
type bank struct {
	prescale uint16
	delay    [2]uint16
	width    [2]uint16
}

// Device is a simulated event receiver.
type Device struct {
	mu sync.Mutex

	regs  [256]uint16
	maps  [evr.NumEvents]uint16
	banks map[uint16]*bank
	rxvio bool
	stuck map[uint8]uint16

	reqs []wire.Msg
}

// Option configures a simulated device.
type Option func(*Device)

// WithFirmware sets the firmware revision reported by the device.
func WithFirmware(v uint16) Option {
	return func(dev *Device) {
		dev.regs[regs.FIRMWARE] = v
	}
}

// WithRegister presets register reg to v.
func WithRegister(reg uint8, v uint16) Option {
	return func(dev *Device) {
		dev.regs[reg] = v
	}
}

// New returns a simulated device with all registers cleared.
func New(opts ...Option) *Device {
	dev := &Device{
		banks: make(map[uint16]*bank),
		stuck: make(map[uint8]uint16),
	}
	dev.regs[regs.FIRMWARE] = DefaultFirmware
	for _, opt := range opts {
		opt(dev)
	}
	return dev
}

// Handle processes one request and returns the reply.
func (dev *Device) Handle(req wire.Msg) wire.Msg {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.reqs = append(dev.reqs, req)

	rep := req
	rep.Status = 0
	reg := req.Reg()
	switch req.Access {
	case wire.Write:
		dev.store(reg, req.Data)
	case wire.Read:
		rep.Data = dev.load(reg)
	default:
		rep.Status = 0xff
	}
	return rep
}

func (dev *Device) bank() *bank {
	sel := dev.regs[regs.PULSE_SELECT]
	b, ok := dev.banks[sel]
	if !ok {
		b = new(bank)
		dev.banks[sel] = b
	}
	return b
}

func (dev *Device) store(reg uint8, v uint16) {
	switch reg {
	case regs.CONTROL:
		if v&regs.O_FLUSH != 0 {
			dev.maps = [evr.NumEvents]uint16{}
		}
		if v&regs.O_RX_VIOLATION != 0 {
			dev.rxvio = false
		}
		dev.regs[reg] = v &^ (regs.O_FLUSH | regs.O_RX_VIOLATION)
	case regs.MAP_DATA:
		dev.maps[uint8(dev.regs[regs.MAP_ADDRESS])] = v
	case regs.PULSE_PRESCALE:
		dev.bank().prescale = v
	case regs.PULSE_DELAY, regs.PULSE_DELAY + 2:
		dev.bank().delay[(reg-regs.PULSE_DELAY)/2] = v
	case regs.PULSE_WIDTH, regs.PULSE_WIDTH + 2:
		dev.bank().width[(reg-regs.PULSE_WIDTH)/2] = v
	case regs.FIRMWARE:
		// read-only
	default:
		dev.regs[reg] = v
	}
}

func (dev *Device) load(reg uint8) uint16 {
	if v, ok := dev.stuck[reg]; ok {
		return v
	}
	switch reg {
	case regs.CONTROL:
		v := dev.regs[reg]
		if dev.rxvio {
			v |= regs.O_RX_VIOLATION
		}
		return v
	case regs.MAP_DATA:
		return dev.maps[uint8(dev.regs[regs.MAP_ADDRESS])]
	case regs.PULSE_PRESCALE:
		return dev.bank().prescale
	case regs.PULSE_DELAY, regs.PULSE_DELAY + 2:
		return dev.bank().delay[(reg-regs.PULSE_DELAY)/2]
	case regs.PULSE_WIDTH, regs.PULSE_WIDTH + 2:
		return dev.bank().width[(reg-regs.PULSE_WIDTH)/2]
	}
	return dev.regs[reg]
}

// Register returns the current content of register reg, as a read request
// would, without logging the access.
func (dev *Device) Register(reg uint8) uint16 {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.load(reg)
}

// Banked returns the content of the banked register reg for the pulse
// select value sel.
func (dev *Device) Banked(sel uint16, reg uint8) uint16 {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	old := dev.regs[regs.PULSE_SELECT]
	defer func() { dev.regs[regs.PULSE_SELECT] = old }()
	dev.regs[regs.PULSE_SELECT] = sel
	return dev.load(reg)
}

// Map returns the action bitmap stored for event.
func (dev *Device) Map(event uint8) uint16 {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.maps[event]
}

// SetRxViolation raises or clears the receive violation flag.
func (dev *Device) SetRxViolation(v bool) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.rxvio = v
}

// Stick makes every read of register reg return v, whatever was written.
func (dev *Device) Stick(reg uint8, v uint16) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.stuck[reg] = v
}

// Requests returns the requests handled so far.
func (dev *Device) Requests() []wire.Msg {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return append([]wire.Msg(nil), dev.reqs...)
}

// Writes returns the write requests handled so far.
func (dev *Device) Writes() []wire.Msg {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	var ws []wire.Msg
	for _, req := range dev.reqs {
		if req.Access == wire.Write {
			ws = append(ws, req)
		}
	}
	return ws
}

// ResetLog forgets the requests handled so far.
func (dev *Device) ResetLog() {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.reqs = dev.reqs[:0]
}

// Exchange implements evr.Transport.
func (dev *Device) Exchange(ctx context.Context, req wire.Msg) (wire.Msg, error) {
	if err := ctx.Err(); err != nil {
		return wire.Msg{}, err
	}
	return dev.Handle(req), nil
}

// Close implements evr.Transport.
func (dev *Device) Close() error { return nil }

// Dial is an evr.Dialer connecting every card to dev.
func (dev *Device) Dial(ctx context.Context, addr *net.UDPAddr) (evr.Transport, error) {
	return dev, nil
}

// Bench serves a set of named devices in-process.
type Bench map[string]*Device

// Dial is an evr.Dialer connecting each card to the device registered
// under its address.
func (b Bench) Dial(ctx context.Context, addr *net.UDPAddr) (evr.Transport, error) {
	dev, ok := b[addr.String()]
	if !ok {
		return nil, &net.OpError{Op: "dial", Net: "udp4", Addr: addr, Err: errNoDevice}
	}
	return dev, nil
}

var _ evr.Transport = (*Device)(nil)
