// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evrsim

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/evr/evr/internal/regs"
	"github.com/go-lpc/evr/evr/wire"
)

func TestDevice(t *testing.T) {
	dev := New(WithFirmware(0x42))

	for _, tc := range []struct {
		name string
		req  wire.Msg
		want uint16
	}{
		{"firmware", wire.NewRead(regs.FIRMWARE), 0x42},
		{"firmware-ro", wire.NewWrite(regs.FIRMWARE, 1), 1},
		{"firmware-unchanged", wire.NewRead(regs.FIRMWARE), 0x42},
		{"write-ctl", wire.NewWrite(regs.CONTROL, 0x8281), 0x8281},
		{"read-ctl", wire.NewRead(regs.CONTROL), 0x8200},
		{"select-pdp1", wire.NewWrite(regs.PULSE_SELECT, 1), 1},
		{"prescale-pdp1", wire.NewWrite(regs.PULSE_PRESCALE, 7), 7},
		{"select-pdp2", wire.NewWrite(regs.PULSE_SELECT, 2), 2},
		{"prescale-pdp2", wire.NewRead(regs.PULSE_PRESCALE), 0},
		{"reselect-pdp1", wire.NewWrite(regs.PULSE_SELECT, 1), 1},
		{"prescale-pdp1-again", wire.NewRead(regs.PULSE_PRESCALE), 7},
		{"map-addr", wire.NewWrite(regs.MAP_ADDRESS, 3), 3},
		{"map-data", wire.NewWrite(regs.MAP_DATA, 0xbeef), 0xbeef},
		{"map-read", wire.NewRead(regs.MAP_DATA), 0xbeef},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			req.Ref = 77
			rep := dev.Handle(req)
			if rep.Data != tc.want {
				t.Fatalf("invalid reply data: got=0x%x, want=0x%x", rep.Data, tc.want)
			}
			if rep.Ref != req.Ref || rep.Addr != req.Addr || rep.Access != req.Access {
				t.Fatalf("reply does not echo request: req=%v rep=%v", req, rep)
			}
		})
	}

	if got := dev.Map(3); got != 0xbeef {
		t.Fatalf("invalid map: got=0x%x", got)
	}
	dev.Handle(wire.NewWrite(regs.CONTROL, regs.O_FLUSH))
	if got := dev.Map(3); got != 0 {
		t.Fatalf("map not flushed: got=0x%x", got)
	}

	if got, want := len(dev.Writes()), 9; got != want {
		t.Fatalf("invalid number of writes: got=%d, want=%d", got, want)
	}
	dev.ResetLog()
	if n := len(dev.Requests()); n != 0 {
		t.Fatalf("log not reset: %d requests", n)
	}
}

func TestServer(t *testing.T) {
	dev := New()
	srv, err := Listen("127.0.0.1:0", dev,
		WithDrop(1),
		WithLogger(log.NewMsgStream("evrsim", log.LvlError, io.Discard)),
	)
	if err != nil {
		t.Fatalf("could not listen: %+v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	conn, err := net.DialUDP("udp4", nil, srv.Addr())
	if err != nil {
		t.Fatalf("could not dial: %+v", err)
	}
	defer conn.Close()

	req := wire.NewWrite(regs.FRAC_DIVIDER, 0x1234)
	req.Ref = 1
	raw, _ := req.MarshalBinary()

	buf := make([]byte, 32)
	for i, wantReply := range []bool{false, true} {
		_, err = conn.Write(raw)
		if err != nil {
			t.Fatalf("could not send request #%d: %+v", i, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := conn.Read(buf)
		switch {
		case wantReply && err != nil:
			t.Fatalf("no reply to request #%d: %+v", i, err)
		case !wantReply && err == nil:
			t.Fatalf("request #%d should have been dropped", i)
		case !wantReply:
			continue
		}
		rep, err := wire.Decode(buf[:n])
		if err != nil {
			t.Fatalf("could not decode reply: %+v", err)
		}
		if rep != req {
			t.Fatalf("invalid reply: got=%v, want=%v", rep, req)
		}
	}

	if got := dev.Register(regs.FRAC_DIVIDER); got != 0x1234 {
		t.Fatalf("invalid register: got=0x%x", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("server failed: %+v", err)
	}
}
