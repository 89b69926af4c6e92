// Copyright (c) 2025 The PoSPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package logdb persists applied pool operations in sqlite for later
// inspection through the API.
package logdb

import (
	"context"
	"database/sql"
	"math/big"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/pospool/pospool/pool"
	"github.com/pospool/pospool/pospool"
)

const eventTableSchema = `CREATE TABLE IF NOT EXISTS event (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	op TEXT NOT NULL,
	participant BLOB(20) NOT NULL,
	units INTEGER NOT NULL,
	value TEXT NOT NULL,
	blockNumber INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS event_participant ON event(participant);
CREATE INDEX IF NOT EXISTS event_blockNumber ON event(blockNumber);`

type LogDB struct {
	path          string
	db            *sql.DB
	driverVersion string
}

// New creates or opens the operation log at the given path.
func New(path string) (logDB *LogDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if logDB == nil {
			db.Close()
		}
	}()
	if _, err := db.Exec(eventTableSchema); err != nil {
		return nil, err
	}

	driverVer, _, _ := sqlite3.Version()
	return &LogDB{
		path,
		db,
		driverVer,
	}, nil
}

// NewMem creates an operation log in ram.
func NewMem() (*LogDB, error) {
	return New(":memory:")
}

// Close closes the log db.
func (db *LogDB) Close() {
	db.db.Close()
}

func (db *LogDB) Path() string {
	return db.path
}

// Record implements pool.Recorder.
func (db *LogDB) Record(ev *pool.Event) error {
	value := "0"
	if ev.Value != nil {
		value = ev.Value.String()
	}
	_, err := db.db.Exec(
		"INSERT INTO event(op, participant, units, value, blockNumber) VALUES(?,?,?,?,?)",
		ev.Op, ev.Participant.Bytes(), int64(ev.Units), value, int64(ev.Block))
	return errors.Wrap(err, "failed to insert event")
}

// EventFilter narrows a query; nil fields match everything.
type EventFilter struct {
	Op          string
	Participant *pospool.Address
	FromBlock   uint64
	ToBlock     uint64
	Limit       uint64
}

// Filter returns recorded operations matching the filter, oldest first.
func (db *LogDB) Filter(ctx context.Context, filter *EventFilter) ([]*pool.Event, error) {
	stmt := "SELECT op, participant, units, value, blockNumber FROM event WHERE 1"
	var args []any
	if filter != nil {
		if filter.Op != "" {
			stmt += " AND op = ?"
			args = append(args, filter.Op)
		}
		if filter.Participant != nil {
			stmt += " AND participant = ?"
			args = append(args, filter.Participant.Bytes())
		}
		if filter.FromBlock > 0 {
			stmt += " AND blockNumber >= ?"
			args = append(args, int64(filter.FromBlock))
		}
		if filter.ToBlock > 0 {
			stmt += " AND blockNumber <= ?"
			args = append(args, int64(filter.ToBlock))
		}
	}
	stmt += " ORDER BY seq"
	if filter != nil && filter.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, int64(filter.Limit))
	}

	rows, err := db.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query events")
	}
	defer rows.Close()

	var events []*pool.Event
	for rows.Next() {
		var (
			op          string
			participant []byte
			units       int64
			value       string
			blockNumber int64
		)
		if err := rows.Scan(&op, &participant, &units, &value, &blockNumber); err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}
		amount, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return nil, errors.New("corrupted event value")
		}
		events = append(events, &pool.Event{
			Op:          op,
			Participant: pospool.BytesToAddress(participant),
			Units:       uint64(units),
			Value:       amount,
			Block:       uint64(blockNumber),
		})
	}
	return events, rows.Err()
}
