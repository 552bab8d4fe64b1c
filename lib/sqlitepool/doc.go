// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite connection pools with Plantwatch's
// standard pragmas.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers [Pool.Take]
// a connection, do their work, and [Pool.Put] it back. A connection is
// not safe for concurrent use; each goroutine holds its own for the
// duration of its work.
//
// # Pragmas
//
// Every pooled connection runs:
//
//   - journal_mode=WAL: readers never block the writer and the writer
//     never blocks readers. Range queries from dashboards run alongside
//     ingestion.
//   - synchronous=FULL by default: a committed reading survives power
//     loss. [Config].Synchronous may lower this to NORMAL, which only
//     survives process crashes.
//   - busy_timeout=5000: wait up to five seconds for the write lock.
//   - cache_size=-8192: 8 MB page cache per connection.
//   - temp_store=MEMORY.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:     "/var/lib/plantwatch/sensor_data.db",
//	    PoolSize: 4,
//	    Logger:   logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
// The package applies pragmas and exposes zombiezen types directly. SQL
// is written by the caller.
package sqlitepool
