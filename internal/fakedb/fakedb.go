// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedb provides an in-memory database/sql driver, named "fakedb",
// serving canned result sets.
package fakedb // import "github.com/go-lpc/evr/internal/fakedb"

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"
)

// Query is a statement received by the driver.
type Query struct {
	SQL  string
	Args []driver.Value
}

var state struct {
	mu      sync.Mutex // serializes Run calls
	rows    []Rows
	queries []Query
}

// Run runs f while the driver serves rows: the i-th query issued by f
// receives the i-th result set.
// Run returns the queries issued by f.
func Run(ctx context.Context, f func(ctx context.Context) error, rows ...Rows) ([]Query, error) {
	state.mu.Lock()
	defer state.mu.Unlock()

	state.rows = rows
	state.queries = nil
	defer func() {
		state.rows = nil
		state.queries = nil
	}()

	err := f(ctx)
	return append([]Query(nil), state.queries...), err
}

func init() {
	sql.Register("fakedb", &Driver{})
}

type Driver struct{}

func (drv *Driver) Open(name string) (driver.Conn, error) {
	return &Conn{}, nil
}

type Conn struct{}

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{query: query}, nil
}

func (c *Conn) Close() error {
	return nil
}

func (c *Conn) Begin() (driver.Tx, error) {
	return nil, fmt.Errorf("fakedb: transactions not supported")
}

type Stmt struct {
	query string
}

func (stmt *Stmt) Close() error {
	return nil
}

// NumInput returns -1: placeholders are not checked.
func (stmt *Stmt) NumInput() int {
	return -1
}

func (stmt *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, fmt.Errorf("fakedb: exec not supported")
}

// Query records the statement and returns the next canned result set.
func (stmt *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	state.queries = append(state.queries, Query{
		SQL:  stmt.query,
		Args: append([]driver.Value(nil), args...),
	})
	if len(state.rows) == 0 {
		return nil, fmt.Errorf("fakedb: no result set for query %q", stmt.query)
	}

	rows := state.rows[0]
	state.rows = state.rows[1:]
	if rows.Err != nil {
		return nil, rows.Err
	}
	return &rows, nil
}

// Rows is a canned result set.
// A non-nil Err makes the query fail.
type Rows struct {
	Names  []string
	Values [][]driver.Value
	Err    error
}

func (rows *Rows) Columns() []string {
	return rows.Names
}

func (rows *Rows) Close() error {
	return nil
}

func (rows *Rows) Next(dest []driver.Value) error {
	if len(rows.Values) == 0 {
		return io.EOF
	}
	copy(dest, rows.Values[0])
	rows.Values = rows.Values[1:]
	return nil
}

var (
	_ driver.Driver = (*Driver)(nil)
	_ driver.Conn   = (*Conn)(nil)
	_ driver.Stmt   = (*Stmt)(nil)
	_ driver.Rows   = (*Rows)(nil)
)
