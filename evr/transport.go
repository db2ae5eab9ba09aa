// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/evr/evr/wire"
)

// Transport exchanges single register messages with one card.
// Exchange is never called concurrently on the same Transport.
type Transport interface {
	Exchange(ctx context.Context, req wire.Msg) (wire.Msg, error)
	Close() error
}

// Dialer creates the transport of the card reachable at addr.
type Dialer func(ctx context.Context, addr *net.UDPAddr) (Transport, error)

var errShortRead = errors.New("evr: short receive")

// udpTransport is a connected UDP endpoint with bounded retries.
type udpTransport struct {
	conn    net.Conn
	msg     log.MsgStream
	timeout time.Duration
	retries int
	check   bool

	ref uint32
	buf [wire.Size + 1]byte // one extra byte to catch oversized datagrams
}

// DialUDP connects a datagram endpoint to the card at addr.
// Only WithLogger, WithTimeout, WithRetries and WithoutRefCheck apply.
func DialUDP(ctx context.Context, addr *net.UDPAddr, opts ...Option) (Transport, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp4", addr.String())
	if err != nil {
		return nil, fmt.Errorf("evr: could not dial %v: %w", addr, err)
	}
	return newUDPTransport(conn, cfg), nil
}

func newUDPTransport(conn net.Conn, cfg config) *udpTransport {
	retries := cfg.retries
	if retries <= 0 {
		retries = 1
	}
	return &udpTransport{
		conn:    conn,
		msg:     cfg.msg,
		timeout: cfg.timeout,
		retries: retries,
		check:   cfg.refcheck,
	}
}

func (tr *udpTransport) Close() error {
	return tr.conn.Close()
}

// Exchange sends req and waits for its reply, retrying the whole
// send-wait-receive cycle on short sends, timeouts and short receives.
// All attempts of one exchange carry the same reference, so that a late
// reply to an earlier attempt still completes the exchange.
// Without reference checks, the reference is sent as zero.
func (tr *udpTransport) Exchange(ctx context.Context, req wire.Msg) (wire.Msg, error) {
	req.Ref = 0
	if tr.check {
		tr.ref++
		if tr.ref == 0 {
			tr.ref = 1
		}
		req.Ref = tr.ref
	}

	var err error
	for i := 0; i < tr.retries; i++ {
		if e := ctx.Err(); e != nil {
			return wire.Msg{}, fmt.Errorf("evr: exchange %v aborted: %v: %w", req, e, ErrLink)
		}

		var rep wire.Msg
		rep, err = tr.attempt(ctx, req)
		if err == nil {
			return rep, nil
		}
		tr.msg.Debugf("attempt %d/%d for %v failed: %+v", i+1, tr.retries, req, err)
	}

	return wire.Msg{}, fmt.Errorf(
		"evr: no reply to %v after %d attempts: %v: %w",
		req, tr.retries, err, ErrLink,
	)
}

func (tr *udpTransport) attempt(ctx context.Context, req wire.Msg) (wire.Msg, error) {
	req.Encode(tr.buf[:wire.Size])
	n, err := tr.conn.Write(tr.buf[:wire.Size])
	switch {
	case err != nil:
		return wire.Msg{}, fmt.Errorf("could not send request: %w", err)
	case n != wire.Size:
		return wire.Msg{}, io.ErrShortWrite
	}

	deadline := time.Now().Add(tr.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	err = tr.conn.SetReadDeadline(deadline)
	if err != nil {
		return wire.Msg{}, fmt.Errorf("could not set read deadline: %w", err)
	}

	for {
		n, err := tr.conn.Read(tr.buf[:])
		if err != nil {
			return wire.Msg{}, fmt.Errorf("could not receive reply: %w", err)
		}
		if n != wire.Size {
			return wire.Msg{}, fmt.Errorf("received %d bytes: %w", n, errShortRead)
		}

		rep, err := wire.Decode(tr.buf[:n])
		if err != nil {
			return wire.Msg{}, err
		}
		if tr.check && (rep.Ref != req.Ref || rep.Addr != req.Addr) {
			tr.msg.Debugf("dropping stale reply %v (want ref=%d)", rep, req.Ref)
			continue
		}
		return rep, nil
	}
}
