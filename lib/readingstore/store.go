// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package readingstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/plantwatch/plantwatch/lib/clock"
	"github.com/plantwatch/plantwatch/lib/schema/telemetry"
	"github.com/plantwatch/plantwatch/lib/sqlitepool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS sensor_data (
		timestamp    TEXT NOT NULL,
		machine_id   TEXT NOT NULL,
		machine_name TEXT NOT NULL,
		temperature  REAL NOT NULL,
		humidity     REAL NOT NULL,
		current_r    REAL NOT NULL,
		current_y    REAL NOT NULL,
		current_b    REAL NOT NULL,
		power_factor REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sensor_data_machine ON sensor_data(machine_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_sensor_data_time ON sensor_data(timestamp);
	CREATE INDEX IF NOT EXISTS idx_sensor_data_name ON sensor_data(machine_name, timestamp);
`

// readingColumns is the SELECT list scanned by scanReading.
const readingColumns = `timestamp, machine_id, machine_name, temperature,
	humidity, current_r, current_y, current_b, power_factor`

// Store is the SQLite-backed reading store. Store is safe for
// concurrent use.
type Store struct {
	pool     *sqlitepool.Pool
	clock    clock.Clock
	location *time.Location
	logger   *slog.Logger

	// writeMu serializes Append so timestamp assignment and commit
	// happen in the same order.
	writeMu sync.Mutex
}

// StoreConfig holds the parameters for opening a Store.
type StoreConfig struct {
	// Path is the SQLite database file. Created if missing; the parent
	// directory must exist.
	Path string

	// PoolSize is the number of connections. Defaults to 4 if zero or
	// negative.
	PoolSize int

	// Synchronous is the SQLite synchronous mode, "FULL" or "NORMAL".
	// Empty means FULL.
	Synchronous string

	// Location is the zone ingestion timestamps are recorded in.
	// Required.
	Location *time.Location

	// Clock provides ingestion timestamps. Required.
	Clock clock.Clock

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

// OpenStore opens (creating if needed) the reading database at
// cfg.Path and verifies the schema is usable.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("readingstore: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("readingstore: Logger is required")
	}
	if cfg.Location == nil {
		return nil, fmt.Errorf("readingstore: Location is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:        cfg.Path,
		PoolSize:    poolSize,
		Synchronous: cfg.Synchronous,
		Logger:      cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, persistenceError("open", err)
	}

	store := &Store{
		pool:     pool,
		clock:    cfg.Clock,
		location: cfg.Location,
		logger:   cfg.Logger,
	}

	// Take one connection now so a bad path or unwritable file fails
	// at startup rather than on the first reading.
	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, persistenceError("open", err)
	}
	pool.Put(conn)

	return store, nil
}

// Close closes the connection pool, blocking until borrowed
// connections are returned.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Location returns the zone ingestion timestamps are recorded in.
func (s *Store) Location() *time.Location {
	return s.location
}

// Append stamps reading with the current time (second resolution, in
// the store's zone), inserts it, and returns the stamped reading once
// the row is committed. Any Timestamp already set on reading is
// overwritten.
func (s *Store) Append(ctx context.Context, reading telemetry.Reading) (stamped telemetry.Reading, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return telemetry.Reading{}, persistenceError("append", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return telemetry.Reading{}, persistenceError("append", fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		endTransaction(&err)
		if err != nil {
			stamped = telemetry.Reading{}
			err = persistenceError("append", err)
		}
	}()

	reading.Timestamp = s.now()

	err = sqlitex.Execute(conn, `INSERT INTO sensor_data
		(timestamp, machine_id, machine_name, temperature, humidity,
		 current_r, current_y, current_b, power_factor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				reading.Timestamp.Format(telemetry.TimestampLayout),
				reading.MachineID,
				reading.MachineName,
				reading.Temperature,
				reading.Humidity,
				reading.CurrentR,
				reading.CurrentY,
				reading.CurrentB,
				reading.PowerFactor,
			},
		})
	if err != nil {
		return telemetry.Reading{}, err
	}
	return reading, nil
}

// QueryRecent returns up to limit readings for machineID, newest
// first. A non-positive limit returns no readings.
func (s *Store) QueryRecent(ctx context.Context, machineID string, limit int) ([]telemetry.Reading, error) {
	if limit <= 0 {
		return []telemetry.Reading{}, nil
	}
	readings, err := s.queryReadings(ctx,
		`SELECT `+readingColumns+` FROM sensor_data
		WHERE machine_id = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?`,
		machineID, limit)
	if err != nil {
		return nil, persistenceError("query recent", err)
	}
	return readings, nil
}

// QueryRange returns every reading stamped at or after since, oldest
// first. A non-empty namePrefix restricts results to machines whose
// name starts with it; the match is case-insensitive for ASCII letters
// and treats '%' and '_' literally.
func (s *Store) QueryRange(ctx context.Context, since time.Time, namePrefix string) ([]telemetry.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM sensor_data WHERE timestamp >= ?`
	args := []any{s.formatTimestamp(since)}
	if namePrefix != "" {
		query += ` AND machine_name LIKE ? ESCAPE '\'`
		args = append(args, likePrefix(namePrefix))
	}
	query += ` ORDER BY timestamp ASC, rowid ASC`

	readings, err := s.queryReadings(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("query range", err)
	}
	return readings, nil
}

// ListMachines returns the distinct (machine_id, machine_name) pairs
// in the store, sorted by id then name. A machine that has reported
// under more than one name appears once per name. namePrefix filters
// as in QueryRange.
func (s *Store) ListMachines(ctx context.Context, namePrefix string) ([]telemetry.Machine, error) {
	query := `SELECT DISTINCT machine_id, machine_name FROM sensor_data`
	var args []any
	if namePrefix != "" {
		query += ` WHERE machine_name LIKE ? ESCAPE '\'`
		args = append(args, likePrefix(namePrefix))
	}
	query += ` ORDER BY machine_id, machine_name`

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, persistenceError("list machines", err)
	}
	defer s.pool.Put(conn)

	machines := []telemetry.Machine{}
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			machines = append(machines, telemetry.Machine{
				MachineID:   stmt.ColumnText(0),
				MachineName: stmt.ColumnText(1),
			})
			return nil
		},
	})
	if err != nil {
		return nil, persistenceError("list machines", err)
	}
	return machines, nil
}

// LatestPerMachine returns the most recently stored reading of every
// machine, sorted by machine_id. Used to warm the latest-state cache
// at startup.
func (s *Store) LatestPerMachine(ctx context.Context) ([]telemetry.Reading, error) {
	readings, err := s.queryReadings(ctx,
		`SELECT d.timestamp, d.machine_id, d.machine_name, d.temperature,
			d.humidity, d.current_r, d.current_y, d.current_b, d.power_factor
		FROM (SELECT DISTINCT machine_id FROM sensor_data) AS m
		JOIN sensor_data AS d ON d.rowid = (
			SELECT rowid FROM sensor_data
			WHERE machine_id = m.machine_id
			ORDER BY timestamp DESC, rowid DESC
			LIMIT 1)
		ORDER BY d.machine_id`)
	if err != nil {
		return nil, persistenceError("latest per machine", err)
	}
	return readings, nil
}

// Count returns the total number of stored readings.
func (s *Store) Count(ctx context.Context) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, persistenceError("count", err)
	}
	defer s.pool.Put(conn)

	var count int64
	err = sqlitex.Execute(conn, `SELECT count(*) FROM sensor_data`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, persistenceError("count", err)
	}
	return count, nil
}

func (s *Store) queryReadings(ctx context.Context, query string, args ...any) ([]telemetry.Reading, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	readings := []telemetry.Reading{}
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			reading, err := s.scanReading(stmt)
			if err != nil {
				return err
			}
			readings = append(readings, reading)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return readings, nil
}

func (s *Store) scanReading(stmt *sqlite.Stmt) (telemetry.Reading, error) {
	timestamp, err := time.ParseInLocation(telemetry.TimestampLayout, stmt.ColumnText(0), s.location)
	if err != nil {
		return telemetry.Reading{}, fmt.Errorf("parsing stored timestamp: %w", err)
	}
	return telemetry.Reading{
		Timestamp:   timestamp,
		MachineID:   stmt.ColumnText(1),
		MachineName: stmt.ColumnText(2),
		Temperature: stmt.ColumnFloat(3),
		Humidity:    stmt.ColumnFloat(4),
		CurrentR:    stmt.ColumnFloat(5),
		CurrentY:    stmt.ColumnFloat(6),
		CurrentB:    stmt.ColumnFloat(7),
		PowerFactor: stmt.ColumnFloat(8),
	}, nil
}

func (s *Store) now() time.Time {
	return s.clock.Now().In(s.location).Truncate(time.Second)
}

// formatTimestamp renders t in the stored layout. Stored timestamps
// have no sub-second part, so a bound with one is rounded up to keep
// the comparison "at or after t".
func (s *Store) formatTimestamp(t time.Time) string {
	local := t.In(s.location)
	if truncated := local.Truncate(time.Second); !truncated.Equal(local) {
		local = truncated.Add(time.Second)
	}
	return local.Format(telemetry.TimestampLayout)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
