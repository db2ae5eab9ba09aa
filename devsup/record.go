// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package devsup

import (
	"fmt"
	"sync"

	"github.com/go-lpc/evr/evr"
)

// Record is a named process variable bound to one card operation.
type Record struct {
	name string
	link Link

	mu   sync.Mutex // record scan lock
	card *evr.Card
	pact bool // processing active
	job  *job
	val  Value
	stat Alarm
	sevr Severity
	err  error

	hooks   []func(rec *Record)
	waiters []chan struct{}
}

// NewRecord creates a record named name from its link description.
// The record is undefined until it has been processed once.
func NewRecord(name, link string) (*Record, error) {
	if name == "" {
		return nil, fmt.Errorf("devsup: empty record name: %w", evr.ErrSyntax)
	}
	lnk, err := Parse(link)
	if err != nil {
		return nil, fmt.Errorf("devsup: could not parse link of record %q: %w", name, err)
	}
	return &Record{
		name: name,
		link: lnk,
		val:  Value{Kind: lnk.Cmd.Kind()},
		stat: UDFAlarm,
		sevr: Invalid,
	}, nil
}

func (rec *Record) Name() string { return rec.name }
func (rec *Record) Link() Link   { return rec.link }

// Value returns the current value of the record.
func (rec *Record) Value() Value {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.val
}

// SetValue sets the value an output record writes on its next processing.
func (rec *Record) SetValue(v Value) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	switch {
	case !rec.link.Cmd.Output():
		return fmt.Errorf("devsup: record %q is read-only: %w", rec.name, ErrReadOnly)
	case v.Kind != rec.link.Cmd.Kind():
		return fmt.Errorf(
			"devsup: invalid value kind %v for record %q (want %v): %w",
			v.Kind, rec.name, rec.link.Cmd.Kind(), evr.ErrSyntax,
		)
	case rec.pact:
		return fmt.Errorf("devsup: could not set record %q: %w", rec.name, ErrActive)
	}
	rec.val = v
	return nil
}

// Alarm returns the alarm status and severity of the record.
func (rec *Record) Alarm() (Alarm, Severity) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.stat, rec.sevr
}

// Err returns the error of the last completed processing.
func (rec *Record) Err() error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.err
}

// Active reports whether the record is being processed.
func (rec *Record) Active() bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.pact
}

// Bound reports whether the record is attached to a card.
func (rec *Record) Bound() bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.card != nil
}

// OnComplete registers f to be called after each completed processing,
// outside of the record scan lock.
func (rec *Record) OnComplete(f func(rec *Record)) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.hooks = append(rec.hooks, f)
}

func (rec *Record) String() string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return fmt.Sprintf("%s %q val=%v stat=%v sevr=%v", rec.name, rec.link, rec.val, rec.stat, rec.sevr)
}
