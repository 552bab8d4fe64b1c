// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package feed publishes stored readings to a Kafka topic for
// downstream consumers (alerting, analytics) that want a push stream
// instead of polling the query interfaces.
//
// Publication is best-effort and never affects ingestion: Publish
// enqueues without blocking and drops the reading when the buffer is
// full. A single Run goroutine drains the buffer in batches. Each
// message is the reading's JSON encoding keyed by machine_id, so a
// machine's readings land on one partition in order.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"github.com/plantwatch/plantwatch/lib/schema/telemetry"
)

// DefaultBuffer is the queue length used when Config.Buffer is zero.
const DefaultBuffer = 1024

// maxBatch bounds how many queued readings one WriteMessages call
// carries.
const maxBatch = 100

// Writer is the subset of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, messages ...kafka.Message) error
	Close() error
}

// Config holds the parameters for a Publisher.
type Config struct {
	// Writer delivers messages. Required. NewKafkaWriter builds the
	// production writer.
	Writer Writer

	// Buffer is the number of readings that can wait for delivery.
	// Defaults to DefaultBuffer.
	Buffer int

	// Logger receives delivery failures. Required.
	Logger *slog.Logger
}

// Publisher fans stored readings out to Kafka.
type Publisher struct {
	writer  Writer
	queue   chan telemetry.Reading
	logger  *slog.Logger
	stats   Stats

	// mu orders Publish's enqueue against Run's final drain: once
	// closed is set under the write lock, nothing else enters queue.
	mu     sync.RWMutex
	closed bool
}

// Stats counts publisher outcomes. Fields are read with Load.
type Stats struct {
	Published atomic.Uint64
	Dropped   atomic.Uint64
	Failed    atomic.Uint64
}

// NewKafkaWriter returns a writer for topic on brokers. Messages with
// the same key go to the same partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// New returns a Publisher. Call Run to start delivery.
func New(cfg Config) (*Publisher, error) {
	if cfg.Writer == nil {
		return nil, fmt.Errorf("feed: Writer is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("feed: Logger is required")
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Publisher{
		writer: cfg.Writer,
		queue:  make(chan telemetry.Reading, buffer),
		logger: cfg.Logger,
	}, nil
}

// Publish queues reading for delivery and reports whether it was
// queued. It never blocks. Readings published after Run has returned
// are dropped.
func (p *Publisher) Publish(reading telemetry.Reading) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.stats.Dropped.Add(1)
		return false
	}
	select {
	case p.queue <- reading:
		return true
	default:
		p.stats.Dropped.Add(1)
		return false
	}
}

// Stats returns the publisher's counters.
func (p *Publisher) Stats() *Stats {
	return &p.stats
}

// Run delivers queued readings until ctx is cancelled, then closes the
// writer. Readings still queued at cancellation are counted as
// dropped.
func (p *Publisher) Run(ctx context.Context) error {
	defer func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		for {
			select {
			case <-p.queue:
				p.stats.Dropped.Add(1)
			default:
				if err := p.writer.Close(); err != nil {
					p.logger.Warn("closing feed writer", "error", err)
				}
				return
			}
		}
	}()

	batch := make([]kafka.Message, 0, maxBatch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case reading := <-p.queue:
			batch = batch[:0]
			batch = p.appendMessage(batch, reading)
		fill:
			for len(batch) < maxBatch {
				select {
				case reading := <-p.queue:
					batch = p.appendMessage(batch, reading)
				default:
					break fill
				}
			}
			p.deliver(ctx, batch)
		}
	}
}

func (p *Publisher) appendMessage(batch []kafka.Message, reading telemetry.Reading) []kafka.Message {
	value, err := json.Marshal(reading)
	if err != nil {
		p.stats.Failed.Add(1)
		p.logger.Error("encoding reading for feed",
			"machine_id", reading.MachineID,
			"error", err,
		)
		return batch
	}
	return append(batch, kafka.Message{
		Key:   []byte(reading.MachineID),
		Value: value,
		Time:  reading.Timestamp,
	})
}

func (p *Publisher) deliver(ctx context.Context, batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}
	err := p.writer.WriteMessages(ctx, batch...)
	if err == nil {
		p.stats.Published.Add(uint64(len(batch)))
		return
	}
	if errors.Is(err, context.Canceled) {
		p.stats.Dropped.Add(uint64(len(batch)))
		return
	}
	p.stats.Failed.Add(uint64(len(batch)))
	p.logger.Warn("feed delivery failed",
		"messages", len(batch),
		"error", err,
	)
}
