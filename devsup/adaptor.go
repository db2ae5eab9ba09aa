// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package devsup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/evr/evr"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnbound   = errors.New("devsup: record not bound to a card")
	ErrActive    = errors.New("devsup: record processing active")
	ErrReadOnly  = errors.New("devsup: read-only record")
	ErrQueueFull = errors.New("devsup: job queue full")
	ErrStopped   = errors.New("devsup: adaptor stopped")
)

// Lookup resolves card names.
// *evr.Registry implements Lookup.
type Lookup interface {
	Open(name string) (*evr.Card, error)
}

// job is one asynchronous record operation.
type job struct {
	rec  *Record
	in   Value
	out  Value
	err  error
	done bool
}

// Adaptor runs record operations on a bounded pool of workers.
type Adaptor struct {
	msg     log.MsgStream
	cards   Lookup
	workers int
	queue   chan *job

	once    sync.Once
	quit    chan struct{}
	mu      sync.RWMutex // guards the queue senders against stop
	stopped bool
}

// Option configures an Adaptor.
type Option func(*Adaptor)

// WithLogger sets the message stream used to report failed jobs.
func WithLogger(msg log.MsgStream) Option {
	return func(a *Adaptor) {
		a.msg = msg
	}
}

// WithWorkers sets the number of workers running jobs.
func WithWorkers(n int) Option {
	return func(a *Adaptor) {
		a.workers = n
	}
}

// WithQueue sets the number of jobs that may wait for a worker.
func WithQueue(n int) Option {
	return func(a *Adaptor) {
		a.queue = make(chan *job, n)
	}
}

// NewAdaptor creates an adaptor resolving record links through cards.
func NewAdaptor(cards Lookup, opts ...Option) *Adaptor {
	a := &Adaptor{
		msg:     log.NewMsgStream("devsup", log.LvlInfo, os.Stdout),
		cards:   cards,
		workers: 4,
		queue:   make(chan *job, 256),
		quit:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.workers <= 0 {
		a.workers = 1
	}
	return a
}

// Bind attaches rec to the card named in its link.
func (a *Adaptor) Bind(rec *Record) error {
	card, err := a.cards.Open(rec.link.Card)
	if err != nil {
		return fmt.Errorf("devsup: could not bind record %q: %w", rec.name, err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.card = card
	return nil
}

// Run runs the workers until ctx is done.
// Once Run has returned, the jobs still queued are completed with an
// ErrLink error and new operations are rejected with ErrStopped.
func (a *Adaptor) Run(ctx context.Context) error {
	grp, ctx := errgroup.WithContext(ctx)
	for i := 0; i < a.workers; i++ {
		grp.Go(func() error {
			return a.work(ctx)
		})
	}
	err := grp.Wait()
	a.stop()
	return err
}

func (a *Adaptor) stop() {
	a.once.Do(func() { close(a.quit) })

	// wait for the senders in flight.
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()

	for {
		select {
		case j := <-a.queue:
			a.abort(j)
		default:
			return
		}
	}
}

// abort completes j without running it.
func (a *Adaptor) abort(j *job) {
	err := fmt.Errorf("devsup: adaptor stopped before running record %q: %w", j.rec.name, evr.ErrLink)
	a.msg.Errorf("%+v", err)
	a.finish(j, Value{}, err)
}

func (a *Adaptor) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-a.queue:
			if ctx.Err() != nil {
				a.abort(j)
				continue
			}
			a.exec(ctx, j)
		}
	}
}

// Process runs the issue phase of rec: the record is marked active and
// its operation is queued. Process returns before the operation runs;
// the record hooks are called once it has completed.
// Process never blocks: when the job queue is full, the record is left
// inactive and ErrQueueFull is returned.
// Run must be running for queued operations to make progress.
func (a *Adaptor) Process(rec *Record) error {
	return a.issue(context.Background(), rec, nil, false)
}

// Sync processes rec and waits for the operation to complete.
// It returns the record value and the operation error.
// Sync waits for room in the job queue until ctx is done.
func (a *Adaptor) Sync(ctx context.Context, rec *Record) (Value, error) {
	done := make(chan struct{})
	err := a.issue(ctx, rec, done, true)
	if err != nil {
		return Value{}, err
	}

	select {
	case <-done:
	case <-ctx.Done():
		return Value{}, fmt.Errorf("devsup: record %q did not complete: %w", rec.name, ctx.Err())
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.val, rec.err
}

// Put sets the value of the output record rec and processes it.
func (a *Adaptor) Put(ctx context.Context, rec *Record, v Value) error {
	err := rec.SetValue(v)
	if err != nil {
		return err
	}
	_, err = a.Sync(ctx, rec)
	return err
}

// issue runs the issue phase of rec and queues its job.
// When wait is set, issue waits for room in the queue until ctx is done.
func (a *Adaptor) issue(ctx context.Context, rec *Record, done chan struct{}, wait bool) error {
	rec.mu.Lock()
	j, err := a.process(rec)
	if err == nil && j != nil && done != nil {
		rec.waiters = append(rec.waiters, done)
	}
	rec.mu.Unlock()

	if err != nil || j == nil {
		return err
	}

	err = a.enqueue(ctx, j, wait)
	if err != nil {
		// records are never issued twice while active: the waiters are ours.
		rec.mu.Lock()
		rec.job = nil
		rec.pact = false
		rec.waiters = nil
		rec.mu.Unlock()
		return fmt.Errorf("devsup: could not queue record %q: %w", rec.name, err)
	}
	return nil
}

func (a *Adaptor) enqueue(ctx context.Context, j *job, wait bool) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.stopped {
		return ErrStopped
	}

	if !wait {
		select {
		case a.queue <- j:
			return nil
		default:
			return ErrQueueFull
		}
	}

	select {
	case a.queue <- j:
		return nil
	case <-a.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// process is the record processing entry point.
// It must be called with the record scan lock held.
//
// When the record is not active, a job is created and returned: the
// caller queues it once the lock is released.
// When the record is active and its job has completed, the result is
// published and the record made inactive again.
func (a *Adaptor) process(rec *Record) (*job, error) {
	if rec.pact {
		if rec.job == nil || !rec.job.done {
			return nil, fmt.Errorf("devsup: could not process record %q: %w", rec.name, ErrActive)
		}
		a.complete(rec)
		return nil, nil
	}

	if rec.card == nil {
		return nil, fmt.Errorf("devsup: could not process record %q: %w", rec.name, ErrUnbound)
	}

	j := &job{rec: rec, in: rec.val}
	rec.job = j
	rec.pact = true
	return j, nil
}

func (a *Adaptor) complete(rec *Record) {
	var (
		j      = rec.job
		output = rec.link.Cmd.Output()
	)
	if j.err == nil && !output {
		rec.val = j.out
	}
	rec.stat, rec.sevr = alarmOf(j.err, output)
	rec.err = j.err
	rec.job = nil
	rec.pact = false
}

func (a *Adaptor) exec(ctx context.Context, j *job) {
	rec := j.rec
	out, err := rec.link.Cmd.exec(ctx, rec.card, j.in)
	if err != nil {
		a.msg.Errorf("record %q (%v) failed: %+v", rec.name, rec.link, err)
	}
	a.finish(j, out, err)
}

// finish stores the result of j and runs the complete phase of its record.
func (a *Adaptor) finish(j *job, out Value, err error) {
	rec := j.rec

	rec.mu.Lock()
	j.out = out
	j.err = err
	j.done = true
	_, _ = a.process(rec)
	var (
		hooks   = rec.hooks
		waiters = rec.waiters
	)
	rec.waiters = nil
	rec.mu.Unlock()

	for _, f := range hooks {
		f(rec)
	}
	for _, ch := range waiters {
		close(ch)
	}
}
