// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/plantwatch/plantwatch/lib/clock"
	"github.com/plantwatch/plantwatch/lib/schema/telemetry"
)

// DefaultBufferSize is the read size New applies when
// Config.BufferSize is not positive.
const DefaultBufferSize = 1024

// acceptBackoff is the pause after a failed accept, so a persistent
// condition such as EMFILE does not spin the loop.
const acceptBackoff = 50 * time.Millisecond

// Appender persists a validated reading and returns it with its
// ingestion timestamp. *readingstore.Store implements it.
type Appender interface {
	Append(ctx context.Context, reading telemetry.Reading) (telemetry.Reading, error)
}

// Updater records a stored reading as its machine's latest state.
// *lateststate.Cache implements it.
type Updater interface {
	Update(reading telemetry.Reading)
}

// Publisher receives each stored reading for best-effort fan-out.
// *feed.Publisher implements it.
type Publisher interface {
	Publish(reading telemetry.Reading) bool
}

// Config holds the parameters for a Listener.
type Config struct {
	// BufferSize is the most bytes read from one connection. A longer
	// message is truncated and fails to decode. Defaults to
	// DefaultBufferSize.
	BufferSize int

	// MaxSessions bounds concurrently running sessions. Zero means
	// unbounded.
	MaxSessions int

	// ReadTimeout bounds the wait for a connection's message. Zero
	// disables the deadline.
	ReadTimeout time.Duration

	// Store receives every validated reading. Required.
	Store Appender

	// Cache is updated after each successful append. Required.
	Cache Updater

	// Feed is offered each stored reading. Optional.
	Feed Publisher

	// Metrics records Prometheus metrics. Optional.
	Metrics *Metrics

	// Clock times the accept backoff. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives session and listener messages. Required.
	Logger *slog.Logger
}

// Listener accepts ingest connections and runs a session for each.
type Listener struct {
	bufferSize  int
	maxSessions int
	readTimeout time.Duration

	store   Appender
	cache   Updater
	feed    Publisher
	metrics *Metrics
	clock   clock.Clock
	logger  *slog.Logger

	stats Stats

	// sessions tracks running sessions so Serve can wait for them on
	// shutdown.
	sessions sync.WaitGroup
}

// New validates cfg and returns a Listener. Call Serve to start
// accepting.
func New(cfg Config) (*Listener, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ingest: Store is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("ingest: Cache is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("ingest: Logger is required")
	}

	listener := &Listener{
		bufferSize:  cfg.BufferSize,
		maxSessions: cfg.MaxSessions,
		readTimeout: cfg.ReadTimeout,
		store:       cfg.Store,
		cache:       cfg.Cache,
		feed:        cfg.Feed,
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}
	if listener.bufferSize <= 0 {
		listener.bufferSize = DefaultBufferSize
	}
	if cfg.MaxSessions < 0 {
		return nil, fmt.Errorf("ingest: MaxSessions must not be negative, got %d", cfg.MaxSessions)
	}
	if cfg.ReadTimeout < 0 {
		return nil, fmt.Errorf("ingest: ReadTimeout must not be negative, got %v", cfg.ReadTimeout)
	}
	if listener.clock == nil {
		listener.clock = clock.Real()
	}
	return listener, nil
}

// Stats returns the listener's counters.
func (l *Listener) Stats() *Stats {
	return &l.stats
}

// Serve accepts connections on listener until ctx is cancelled or the
// listener is closed, running one session per connection. Accept
// failures are logged and the loop continues. On return the listener
// is closed and every session has finished.
func (l *Listener) Serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	// Unblock Accept when the context is cancelled.
	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	var slots chan struct{}
	if l.maxSessions > 0 {
		slots = make(chan struct{}, l.maxSessions)
	}

	l.logger.Info("ingest listener started",
		"address", listener.Addr().String(),
		"buffer_size", l.bufferSize,
		"max_sessions", l.maxSessions,
		"read_timeout", l.readTimeout,
	)

	for {
		if slots != nil {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return l.drain()
			}
		}

		conn, err := listener.Accept()
		if err != nil {
			if slots != nil {
				<-slots
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return l.drain()
			}
			l.stats.NetworkErrors.Add(1)
			l.metrics.acceptFailed()
			l.logger.Error("accept failed",
				"error", &NetworkError{Op: "accept", Err: err},
			)
			select {
			case <-l.clock.After(acceptBackoff):
			case <-ctx.Done():
				return l.drain()
			}
			continue
		}

		l.sessions.Add(1)
		go func() {
			defer l.sessions.Done()
			if slots != nil {
				defer func() { <-slots }()
			}
			l.runSession(ctx, conn)
		}()
	}
}

func (l *Listener) drain() error {
	l.sessions.Wait()
	l.logger.Info("ingest listener stopped")
	return nil
}
