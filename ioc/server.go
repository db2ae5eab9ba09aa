// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioc

import (
	"bytes"
	"fmt"

	"github.com/go-daq/tdaq"
)

// Server exposes an IOC to the run control.
type Server struct {
	ioc *IOC
	cfg string // default configuration file

	status chan []byte
}

// NewServer returns a run control server for ioc.
// cfg is the configuration file loaded on /config when the command
// carries none.
func NewServer(ioc *IOC, cfg string) *Server {
	return &Server{
		ioc:    ioc,
		cfg:    cfg,
		status: make(chan []byte, 16),
	}
}

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	fname := srv.cfg
	if len(req.Body) > 0 {
		dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
		fname = dec.ReadStr()
		if err := dec.Err(); err != nil {
			ctx.Msg.Errorf("could not decode /config request: %+v", err)
			return fmt.Errorf("could not decode /config request: %w", err)
		}
	}
	if fname == "" {
		ctx.Msg.Errorf("no configuration file")
		return fmt.Errorf("no configuration file")
	}

	err := srv.ioc.LoadFile(ctx.Ctx, fname)
	if err != nil {
		ctx.Msg.Errorf("could not load configuration %q: %+v", fname, err)
		return fmt.Errorf("could not load configuration %q: %w", fname, err)
	}
	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	err := srv.ioc.Init(ctx.Ctx)
	if err != nil {
		ctx.Msg.Errorf("could not initialize IOC: %+v", err)
		return fmt.Errorf("could not initialize IOC: %w", err)
	}
	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	for _, card := range srv.ioc.Cards() {
		err := card.FactoryReset(ctx.Ctx)
		if err != nil {
			ctx.Msg.Errorf("could not reset card %q: %+v", card.Name(), err)
			return fmt.Errorf("could not reset card %q: %w", card.Name(), err)
		}
	}
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return srv.enable(ctx, true)
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	return srv.enable(ctx, false)
}

func (srv *Server) enable(ctx tdaq.Context, on bool) error {
	for _, card := range srv.ioc.Cards() {
		err := card.Enable(ctx.Ctx, on)
		if err != nil {
			ctx.Msg.Errorf("could not enable=%v card %q: %+v", on, card.Name(), err)
			return fmt.Errorf("could not enable=%v card %q: %w", on, card.Name(), err)
		}
	}
	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	err := srv.ioc.Close()
	if err != nil {
		ctx.Msg.Errorf("could not close IOC: %+v", err)
		return fmt.Errorf("could not close IOC: %w", err)
	}
	return nil
}

// Status publishes the card statuses collected by the link monitor.
func (srv *Server) Status(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case raw := <-srv.status:
		dst.Body = raw
	}
	return nil
}

// Run runs the link monitor.
func (srv *Server) Run(ctx tdaq.Context) error {
	return srv.ioc.Monitor(ctx.Ctx, func(sts []Status) {
		raw, err := encodeStatus(sts)
		if err != nil {
			ctx.Msg.Errorf("could not encode card statuses: %+v", err)
			return
		}
		select {
		case srv.status <- raw:
		default:
			ctx.Msg.Warnf("status queue full: dropping card statuses")
		}
	})
}

// encodeStatus encodes the statuses as:
//
//	u32 n
//	n x { str card; bool ok; bool enabled; bool rx-violation; u16 firmware }
func encodeStatus(sts []Status) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteU32(uint32(len(sts)))
	for _, st := range sts {
		enc.WriteStr(st.Card)
		enc.WriteBool(st.Err == nil)
		enc.WriteBool(st.Enabled)
		enc.WriteBool(st.RxViolation)
		enc.WriteU16(st.Firmware)
	}
	return buf.Bytes(), enc.Err()
}

// DecodeStatus decodes a /status frame body.
func DecodeStatus(raw []byte) ([]Status, error) {
	dec := tdaq.NewDecoder(bytes.NewReader(raw))
	n := int(dec.ReadU32())
	var sts []Status
	for i := 0; i < n && dec.Err() == nil; i++ {
		var st Status
		st.Card = dec.ReadStr()
		ok := dec.ReadBool()
		st.Enabled = dec.ReadBool()
		st.RxViolation = dec.ReadBool()
		st.Firmware = dec.ReadU16()
		if !ok {
			st.Err = fmt.Errorf("ioc: card %q unreachable", st.Card)
		}
		sts = append(sts, st)
	}
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("ioc: could not decode statuses: %w", err)
	}
	return sts, nil
}
