// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb retrieves the configuration of event receiver cards and
// of their records from the experiment database.
package conddb // import "github.com/go-lpc/evr/conddb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/go-lpc/evr/internal/config"
)

var (
	host = "localhost"
	usr  = "username"
	pwd  = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to retrieve the cards and records
// configuration from the database.
type DB struct {
	db   *sql.DB
	name string // name of the database
}

// Open opens a connection to the database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Name() string { return db.name }

func (db *DB) Close() error {
	return db.db.Close()
}

// Cards returns the cards declared for the IOC named ioc, in declaration
// order.
func (db *DB) Cards(ctx context.Context, ioc string) ([]config.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var cards []config.Card
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT name, host, port, frequency FROM evr_cards
WHERE ioc=?
ORDER BY identifier
`,
		ioc,
	)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not query cards of %q: %w", ioc, err)
	}
	defer rows.Close()

	for rows.Next() {
		var card config.Card
		err = rows.Scan(&card.Name, &card.Host, &card.Port, &card.Frequency)
		if err != nil {
			return nil, fmt.Errorf("conddb: could not scan card %d: %w", len(cards), err)
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conddb: could not scan db for cards: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("conddb: context error while retrieving cards: %w", err)
	}

	return cards, nil
}

// Records returns the record bindings declared for the IOC named ioc.
func (db *DB) Records(ctx context.Context, ioc string) ([]config.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var recs []config.Record
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT evr_records.name, evr_records.link FROM evr_records
JOIN evr_cards ON evr_cards.identifier=evr_records.card
WHERE evr_cards.ioc=?
ORDER BY evr_records.identifier
`,
		ioc,
	)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not query records of %q: %w", ioc, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec config.Record
		err = rows.Scan(&rec.Name, &rec.Link)
		if err != nil {
			return nil, fmt.Errorf("conddb: could not scan record %d: %w", len(recs), err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conddb: could not scan db for records: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("conddb: context error while retrieving records: %w", err)
	}

	return recs, nil
}

// Config returns the validated configuration of the IOC named ioc.
func (db *DB) Config(ctx context.Context, ioc string) (*config.Config, error) {
	cards, err := db.Cards(ctx, ioc)
	if err != nil {
		return nil, err
	}

	recs, err := db.Records(ctx, ioc)
	if err != nil {
		return nil, err
	}

	cfg := &config.Config{Cards: cards, Records: recs}
	err = config.Validate(cfg)
	if err != nil {
		return nil, fmt.Errorf("conddb: invalid configuration for %q: %w", ioc, err)
	}
	return cfg, nil
}
