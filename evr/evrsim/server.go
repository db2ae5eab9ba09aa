// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evrsim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/evr/evr/wire"
)

var errNoDevice = errors.New("evrsim: no device at address")

// Server serves a Device over UDP.
type Server struct {
	dev  *Device
	conn *net.UDPConn
	msg  log.MsgStream

	drop   int  // number of receipts of a request left unanswered
	silent bool // never answer

	mu    sync.Mutex
	last  [wire.Size]byte
	count int
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithDrop makes the server ignore the first n receipts of every request.
// Retransmissions of a request are recognized by their identical content.
func WithDrop(n int) ServerOption {
	return func(srv *Server) {
		srv.drop = n
	}
}

// Silent makes the server discard all traffic.
func Silent() ServerOption {
	return func(srv *Server) {
		srv.silent = true
	}
}

// WithLogger sets the message stream of the server.
func WithLogger(msg log.MsgStream) ServerOption {
	return func(srv *Server) {
		srv.msg = msg
	}
}

// Listen creates a server for dev bound to the UDP address addr.
// Use "127.0.0.1:0" to pick a free port.
func Listen(addr string, dev *Device, opts ...ServerOption) (*Server, error) {
	uaddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("evrsim: could not resolve %q: %w", addr, err)
	}

	conn, err := net.ListenUDP("udp4", uaddr)
	if err != nil {
		return nil, fmt.Errorf("evrsim: could not listen on %q: %w", addr, err)
	}

	srv := &Server{
		dev:  dev,
		conn: conn,
		msg:  log.NewMsgStream("evrsim", log.LvlInfo, os.Stdout),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv, nil
}

// Addr returns the address the server listens on.
func (srv *Server) Addr() *net.UDPAddr {
	return srv.conn.LocalAddr().(*net.UDPAddr)
}

// Device returns the served device.
func (srv *Server) Device() *Device { return srv.dev }

// Close stops the server.
func (srv *Server) Close() error {
	return srv.conn.Close()
}

// Serve answers requests until ctx is done or the server is closed.
func (srv *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = srv.conn.Close()
	}()

	var (
		buf [wire.Size + 1]byte
		out [wire.Size]byte
	)
	for {
		n, addr, err := srv.conn.ReadFromUDP(buf[:])
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("evrsim: could not read request: %w", err)
		}

		req, err := wire.Decode(buf[:n])
		if err != nil {
			srv.msg.Warnf("dropping invalid request from %v: %+v", addr, err)
			continue
		}

		if srv.skip(buf[:wire.Size]) {
			srv.msg.Debugf("dropping %v", req)
			continue
		}

		rep := srv.dev.Handle(req)
		rep.Encode(out[:])
		_, err = srv.conn.WriteToUDP(out[:], addr)
		if err != nil {
			srv.msg.Errorf("could not send reply to %v: %+v", addr, err)
		}
	}
}

// SetSilent switches the server between discarding all traffic and
// answering requests.
func (srv *Server) SetSilent(v bool) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.silent = v
}

func (srv *Server) skip(raw []byte) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.silent {
		return true
	}
	if srv.drop <= 0 {
		return false
	}

	if string(raw) != string(srv.last[:]) {
		copy(srv.last[:], raw)
		srv.count = 0
	}
	srv.count++
	return srv.count <= srv.drop
}
