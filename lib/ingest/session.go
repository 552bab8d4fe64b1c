// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/plantwatch/plantwatch/lib/netutil"
	"github.com/plantwatch/plantwatch/lib/schema/telemetry"
)

// runSession handles one connection from accept to close.
func (l *Listener) runSession(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	l.stats.ActiveSessions.Add(1)
	l.metrics.sessionStarted()
	logger := l.logger.With(
		"session", uuid.NewString(),
		"remote", conn.RemoteAddr().String(),
	)

	outcome := l.serveConnection(ctx, conn, logger)

	l.metrics.sessionFinished(outcome)
	l.stats.ActiveSessions.Add(-1)
	l.stats.record(outcome)
}

func (l *Listener) serveConnection(ctx context.Context, conn net.Conn, logger *slog.Logger) Outcome {
	if l.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(l.readTimeout)); err != nil {
			logger.Debug("setting read deadline failed", "error", err)
		}
	}
	// Shutdown interrupts a session still waiting for its message. A
	// session that has already read its message runs to completion.
	stop := context.AfterFunc(ctx, func() {
		if err := conn.SetReadDeadline(time.Now()); err != nil {
			logger.Debug("interrupting read failed", "error", err)
		}
	})
	defer stop()

	buffer := make([]byte, l.bufferSize)
	n, err := conn.Read(buffer)
	if n == 0 {
		if err == nil || netutil.IsExpectedCloseError(err) {
			logger.Debug("connection closed without data")
			return OutcomeEmpty
		}
		if ctx.Err() != nil {
			logger.Debug("session interrupted by shutdown")
			return OutcomeEmpty
		}
		if netutil.IsTimeout(err) {
			logger.Info("no message before read deadline", "read_timeout", l.readTimeout)
			return OutcomeNetworkError
		}
		logger.Warn("read failed", "error", &NetworkError{Op: "read", Err: err})
		return OutcomeNetworkError
	}
	// Bytes that arrived before an error are still the message.
	payload := buffer[:n]
	l.metrics.payloadReceived(n)

	return l.ingest(context.WithoutCancel(ctx), payload, logger)
}

// ingest runs one received message through decode, validate, store,
// cache and feed.
func (l *Listener) ingest(ctx context.Context, payload []byte, logger *slog.Logger) Outcome {
	message, err := telemetry.Decode(payload)
	if err != nil {
		logger.Warn("rejected undecodable message",
			"bytes", len(payload),
			"payload_hash", payloadHash(payload),
			"error", err,
		)
		return OutcomeDecodeError
	}

	reading, err := telemetry.Validate(message)
	if err != nil {
		logger.Warn("rejected invalid reading",
			"payload_hash", payloadHash(payload),
			"error", err,
		)
		if errors.Is(err, telemetry.ErrTypeMismatch) {
			return OutcomeTypeMismatch
		}
		return OutcomeMissingField
	}
	logger = logger.With("machine_id", reading.MachineID)

	started := time.Now()
	stored, err := l.store.Append(ctx, reading)
	l.metrics.appendObserved(time.Since(started))
	if err != nil {
		logger.Error("storing reading failed", "error", err)
		return OutcomePersistenceError
	}

	l.cache.Update(stored)
	if l.feed != nil && !l.feed.Publish(stored) {
		logger.Debug("feed buffer full, reading not published")
	}

	logger.Debug("reading stored",
		"machine_name", stored.MachineName,
		"timestamp", stored.Timestamp,
	)
	return OutcomeAccepted
}

// payloadHash returns a short BLAKE3 digest of a rejected payload so
// repeated bad messages can be correlated without logging their
// content.
func payloadHash(payload []byte) string {
	digest := blake3.Sum256(payload)
	return hex.EncodeToString(digest[:8])
}
