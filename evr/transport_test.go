// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr_test

import (
	"context"
	"errors"
	"net"
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-lpc/evr/evr"
	"github.com/go-lpc/evr/evr/evrsim"
	"github.com/go-lpc/evr/evr/internal/regs"
	"github.com/go-lpc/evr/evr/wire"
)

func serve(t *testing.T, dev *evrsim.Device, opts ...evrsim.ServerOption) *evrsim.Server {
	t.Helper()

	srv, err := evrsim.Listen("127.0.0.1:0", dev, append([]evrsim.ServerOption{evrsim.WithLogger(quiet)}, opts...)...)
	if err != nil {
		t.Fatalf("could not start simulator: %+v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("simulator failed: %+v", err)
		}
	})
	return srv
}

func TestUDPDropReplies(t *testing.T) {
	dev := evrsim.New(evrsim.WithRegister(regs.CONTROL, 0x8200))
	srv := serve(t, dev, evrsim.WithDrop(2))

	ctx := context.Background()
	tr, err := evr.DialUDP(ctx, srv.Addr(), evr.WithLogger(quiet))
	if err != nil {
		t.Fatalf("could not dial simulator: %+v", err)
	}
	defer tr.Close()

	start := time.Now()
	rep, err := tr.Exchange(ctx, wire.NewRead(regs.CONTROL))
	if err != nil {
		t.Fatalf("could not read control: %+v", err)
	}
	elapsed := time.Since(start)

	if rep.Data != 0x8200 {
		t.Fatalf("invalid control: got=0x%04x, want=0x8200", rep.Data)
	}
	if elapsed > 3*time.Second {
		t.Fatalf("exchange took too long: %v", elapsed)
	}
	if n := len(dev.Requests()); n != 1 {
		t.Fatalf("invalid number of handled requests: got=%d, want=1", n)
	}
}

func TestUDPSilent(t *testing.T) {
	dev := evrsim.New()
	srv := serve(t, dev)

	var (
		ctx  = context.Background()
		reg  = evr.NewRegistry(evr.WithLogger(quiet))
		port = srv.Addr().Port
	)

	err := reg.Configure(ctx, "evr1", "127.0.0.1", strconv.Itoa(port), "125")
	if err != nil {
		t.Fatalf("could not configure card: %+v", err)
	}
	defer reg.Close()

	err = reg.Init(ctx)
	if err != nil {
		t.Fatalf("could not init card: %+v", err)
	}

	card, err := reg.Open("evr1")
	if err != nil {
		t.Fatalf("could not open card: %+v", err)
	}

	srv.SetSilent(true)

	start := time.Now()
	err = card.Enable(ctx, true)
	elapsed := time.Since(start)

	if !errors.Is(err, evr.ErrLink) {
		t.Fatalf("invalid error: got=%v, want=%v", err, evr.ErrLink)
	}
	if elapsed < 2900*time.Millisecond || elapsed > 4*time.Second {
		t.Fatalf("invalid failure delay: %v", elapsed)
	}
}

func TestUDPContext(t *testing.T) {
	srv := serve(t, evrsim.New(), evrsim.Silent())

	tr, err := evr.DialUDP(context.Background(), srv.Addr(), evr.WithLogger(quiet))
	if err != nil {
		t.Fatalf("could not dial simulator: %+v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = tr.Exchange(ctx, wire.NewRead(regs.CONTROL))
	if !errors.Is(err, evr.ErrLink) {
		t.Fatalf("invalid error: got=%v, want=%v", err, evr.ErrLink)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("context deadline not honoured: %v", elapsed)
	}
}

// rogue is a UDP peer answering each request with a scripted list of
// datagrams derived from the request.
type rogue struct {
	conn *net.UDPConn
	wg   sync.WaitGroup
}

func newRogue(t *testing.T, script func(n int, req wire.Msg) [][]byte) *rogue {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("could not listen: %+v", err)
	}

	r := &rogue{conn: conn}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		buf := make([]byte, 64)
		for n := 0; ; n++ {
			sz, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			req, err := wire.Decode(buf[:sz])
			if err != nil {
				continue
			}
			for _, p := range script(n, req) {
				_, _ = conn.WriteToUDP(p, addr)
			}
		}
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		r.wg.Wait()
	})
	return r
}

func (r *rogue) addr() *net.UDPAddr {
	return r.conn.LocalAddr().(*net.UDPAddr)
}

func encode(msg wire.Msg) []byte {
	p, _ := msg.MarshalBinary()
	return p
}

func TestUDPStaleReply(t *testing.T) {
	script := func(n int, req wire.Msg) [][]byte {
		stale := req
		stale.Ref--
		stale.Data = 0xdead

		rep := req
		rep.Data = 0x1234
		return [][]byte{encode(stale), encode(rep)}
	}

	for _, tc := range []struct {
		name string
		opts []evr.Option
		want uint16
	}{
		{"ref-check", nil, 0x1234},
		{"no-ref-check", []evr.Option{evr.WithoutRefCheck()}, 0xdead},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := newRogue(t, script)

			ctx := context.Background()
			opts := append([]evr.Option{evr.WithLogger(quiet), evr.WithTimeout(200 * time.Millisecond)}, tc.opts...)
			tr, err := evr.DialUDP(ctx, r.addr(), opts...)
			if err != nil {
				t.Fatalf("could not dial: %+v", err)
			}
			defer tr.Close()

			rep, err := tr.Exchange(ctx, wire.NewRead(regs.FIRMWARE))
			if err != nil {
				t.Fatalf("could not exchange: %+v", err)
			}
			if rep.Data != tc.want {
				t.Fatalf("invalid reply: got=0x%04x, want=0x%04x", rep.Data, tc.want)
			}
		})
	}
}

func TestUDPReference(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts []evr.Option
		want []uint32
	}{
		{"ref-check", nil, []uint32{1, 2, 3}},
		{"no-ref-check", []evr.Option{evr.WithoutRefCheck()}, []uint32{0, 0, 0}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var (
				mu   sync.Mutex
				refs []uint32
			)
			r := newRogue(t, func(n int, req wire.Msg) [][]byte {
				mu.Lock()
				defer mu.Unlock()
				refs = append(refs, req.Ref)
				return [][]byte{encode(req)}
			})

			ctx := context.Background()
			opts := append([]evr.Option{evr.WithLogger(quiet), evr.WithTimeout(200 * time.Millisecond)}, tc.opts...)
			tr, err := evr.DialUDP(ctx, r.addr(), opts...)
			if err != nil {
				t.Fatalf("could not dial: %+v", err)
			}
			defer tr.Close()

			for range tc.want {
				_, err := tr.Exchange(ctx, wire.NewRead(regs.CONTROL))
				if err != nil {
					t.Fatalf("could not exchange: %+v", err)
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if !reflect.DeepEqual(refs, tc.want) {
				t.Fatalf("invalid references: got=%v, want=%v", refs, tc.want)
			}
		})
	}
}

func TestUDPShortReply(t *testing.T) {
	var (
		mu    sync.Mutex
		seen  int
		first uint32
	)
	r := newRogue(t, func(n int, req wire.Msg) [][]byte {
		mu.Lock()
		defer mu.Unlock()
		seen++
		if n == 0 {
			first = req.Ref
			return [][]byte{{0x01, 0x02, 0x03}}
		}
		if req.Ref != first {
			return nil
		}
		rep := req
		rep.Data = 0x4242
		return [][]byte{encode(rep)}
	})

	ctx := context.Background()
	tr, err := evr.DialUDP(ctx, r.addr(), evr.WithLogger(quiet), evr.WithTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatalf("could not dial: %+v", err)
	}
	defer tr.Close()

	rep, err := tr.Exchange(ctx, wire.NewRead(regs.CONTROL))
	if err != nil {
		t.Fatalf("could not exchange: %+v", err)
	}
	if rep.Data != 0x4242 {
		t.Fatalf("invalid reply: got=0x%04x", rep.Data)
	}

	mu.Lock()
	defer mu.Unlock()
	if seen != 2 {
		t.Fatalf("retransmission should reuse the same request: seen=%d", seen)
	}
}

func TestUDPRetries(t *testing.T) {
	var (
		mu   sync.Mutex
		seen int
	)
	r := newRogue(t, func(n int, req wire.Msg) [][]byte {
		mu.Lock()
		defer mu.Unlock()
		seen++
		return nil
	})

	ctx := context.Background()
	tr, err := evr.DialUDP(ctx, r.addr(),
		evr.WithLogger(quiet),
		evr.WithTimeout(50*time.Millisecond),
		evr.WithRetries(5),
	)
	if err != nil {
		t.Fatalf("could not dial: %+v", err)
	}
	defer tr.Close()

	_, err = tr.Exchange(ctx, wire.NewRead(regs.CONTROL))
	if !errors.Is(err, evr.ErrLink) {
		t.Fatalf("invalid error: got=%v, want=%v", err, evr.ErrLink)
	}

	// let the last datagram reach the peer.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if seen != 5 {
		t.Fatalf("invalid number of attempts: got=%d, want=5", seen)
	}
}

// gate is a transport blocking each exchange until released.
type gate struct {
	enter   chan struct{}
	release chan struct{}
}

func (g *gate) Exchange(ctx context.Context, req wire.Msg) (wire.Msg, error) {
	g.enter <- struct{}{}
	<-g.release
	return req, nil
}

func (g *gate) Close() error { return nil }

func TestDistinctCardsDoNotSerialize(t *testing.T) {
	gates := map[string]*gate{
		"127.0.0.1:2048": {enter: make(chan struct{}), release: make(chan struct{})},
		"127.0.0.1:2049": {enter: make(chan struct{}), release: make(chan struct{})},
	}
	dial := func(ctx context.Context, addr *net.UDPAddr) (evr.Transport, error) {
		return gates[addr.String()], nil
	}

	reg := evr.NewRegistry(evr.WithLogger(quiet), evr.WithDialer(dial))
	ctx := context.Background()
	for i, name := range []string{"evr1", "evr2"} {
		err := reg.Configure(ctx, name, "127.0.0.1", strconv.Itoa(2048+i), "125")
		if err != nil {
			t.Fatalf("could not configure %s: %+v", name, err)
		}
	}

	// bring-up: three exchanges per card.
	go func() {
		for _, addr := range []string{"127.0.0.1:2048", "127.0.0.1:2049"} {
			for i := 0; i < 3; i++ {
				<-gates[addr].enter
				gates[addr].release <- struct{}{}
			}
		}
	}()
	err := reg.Init(ctx)
	if err != nil {
		t.Fatalf("could not init: %+v", err)
	}

	errc := make(chan error, 2)
	for _, name := range []string{"evr1", "evr2"} {
		card, err := reg.Open(name)
		if err != nil {
			t.Fatalf("could not open %s: %+v", name, err)
		}
		go func() {
			_, err := card.ReadRegister(ctx, regs.CONTROL)
			errc <- err
		}()
	}

	// both exchanges must be in flight at the same time.
	timeout := time.After(2 * time.Second)
	for _, addr := range []string{"127.0.0.1:2048", "127.0.0.1:2049"} {
		select {
		case <-gates[addr].enter:
		case <-timeout:
			t.Fatalf("exchange on %s blocked by the other card", addr)
		}
	}
	for _, addr := range []string{"127.0.0.1:2048", "127.0.0.1:2049"} {
		gates[addr].release <- struct{}{}
	}
	for i := 0; i < 2; i++ {
		if err := <-errc; err != nil {
			t.Fatalf("could not read register: %+v", err)
		}
	}
}
