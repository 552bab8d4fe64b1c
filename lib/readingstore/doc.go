// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package readingstore is the durable, append-only record of every
// accepted telemetry reading.
//
// Rows live in a single SQLite table, sensor_data, with one row per
// reading. The store assigns each reading's ingestion timestamp inside
// its write lock, so timestamps never decrease in commit order unless
// the wall clock steps backwards. Ties within one second are broken by
// rowid, which is also commit order.
//
// Appends are serialized twice: an in-process mutex orders writers
// before they reach SQLite, and each append runs in an IMMEDIATE
// transaction so a second process sharing the file cannot interleave.
// An append that returns nil is committed and visible to every query
// started afterwards.
//
// Every failure is reported as a [*PersistenceError] naming the
// operation. The store never retries.
package readingstore
