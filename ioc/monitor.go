// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioc

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go-hep.org/x/hep/hbook"
	"golang.org/x/sync/errgroup"
	mail "gopkg.in/gomail.v2"
)

// Status is the state of a card as seen by the link monitor.
type Status struct {
	Card        string
	Enabled     bool
	RxViolation bool
	Firmware    uint16
	Err         error
}

func (st Status) String() string {
	if st.Err != nil {
		return fmt.Sprintf("%s: link error: %v", st.Card, st.Err)
	}
	return fmt.Sprintf(
		"%s: firmware=0x%04x enabled=%v rx-violation=%v",
		st.Card, st.Firmware, st.Enabled, st.RxViolation,
	)
}

// probe reads the state of every card concurrently.
func (ioc *IOC) probe(ctx context.Context) []Status {
	var (
		cards = ioc.Cards()
		sts   = make([]Status, len(cards))
		grp   errgroup.Group
	)
	for i := range cards {
		i := i
		card := cards[i]
		grp.Go(func() error {
			st := Status{Card: card.Name()}
			st.Firmware, st.Err = card.FirmwareVersion(ctx)
			if st.Err == nil {
				st.Enabled, st.Err = card.IsEnabled(ctx)
			}
			if st.Err == nil {
				st.RxViolation, st.Err = card.IsRxViolation(ctx)
			}
			sts[i] = st
			return nil
		})
	}
	_ = grp.Wait()
	return sts
}

// Monitor probes the cards every monitor period until ctx is done.
// Each round of statuses is passed to f, when f is not nil.
// Cards failing to answer raise alerts.
func (ioc *IOC) Monitor(ctx context.Context, f func(sts []Status)) error {
	ioc.mu.RLock()
	period := ioc.period
	ioc.mu.RUnlock()

	tick := time.NewTicker(period)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			sts := ioc.probe(ctx)
			if ctx.Err() != nil {
				return nil
			}
			for _, st := range sts {
				ioc.alerts.check(ioc, st)
			}
			if f != nil {
				f(sts)
			}
		}
	}
}

type alerter struct {
	mu   sync.Mutex
	n    map[string]int // consecutive failures per card
	send func(card string, n int, err error)
}

const maxAlerts = 5

func (a *alerter) check(ioc *IOC, st Status) {
	a.mu.Lock()
	if st.Err == nil {
		delete(a.n, st.Card)
		a.mu.Unlock()
		return
	}
	a.n[st.Card]++
	n := a.n[st.Card]
	a.mu.Unlock()

	ioc.msg.Errorf("could not probe card %q (failure #%d): %+v", st.Card, n, st.Err)
	if n <= maxAlerts && a.send != nil {
		a.send(st.Card, n, st.Err)
	}
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = split(os.Getenv("MAIL_TGTS"))
)

func alertMail(card string, n int, err error) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[evr] link alert: card %q", card))
	msg.SetBody("text/plain", fmt.Sprintf("card: %q\nfailures: %d\nerror: %v",
		card, n, err,
	))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err = dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

// atoi returns 0 for an invalid value, so that alertMail reports the
// missing credentials.
func atoi(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("invalid mail port %q: %+v", s, err)
		return 0
	}
	return v
}

func split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// latency histograms the round-trip time of the exchanges with each card.
type latency struct {
	mu   sync.Mutex
	hs   map[string]*hbook.H1D
	errs map[string]int
}

func newLatency() *latency {
	return &latency{
		hs:   make(map[string]*hbook.H1D),
		errs: make(map[string]int),
	}
}

func (lat *latency) observe(card string, rtt time.Duration, err error) {
	lat.mu.Lock()
	defer lat.mu.Unlock()

	if err != nil {
		lat.errs[card]++
		return
	}

	h, ok := lat.hs[card]
	if !ok {
		// 0-100ms, 0.5ms bins.
		h = hbook.NewH1D(200, 0, 100)
		h.Annotation()["name"] = card
		lat.hs[card] = h
	}
	h.Fill(float64(rtt)/float64(time.Millisecond), 1)
}

// stats returns the number of exchanges, the number of failed exchanges
// and the mean round-trip time in milliseconds.
func (lat *latency) stats(card string) (n int64, nerr int, mean float64) {
	lat.mu.Lock()
	defer lat.mu.Unlock()

	nerr = lat.errs[card]
	h, ok := lat.hs[card]
	if !ok {
		return 0, nerr, 0
	}
	return h.Entries(), nerr, h.XMean()
}

func (lat *latency) summary(card string) string {
	n, nerr, mean := lat.stats(card)
	return fmt.Sprintf("%s: exchanges=%d errors=%d rtt-mean=%.3fms", card, n, nerr, mean)
}
