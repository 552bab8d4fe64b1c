// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/plantwatch/plantwatch/lib/clock"
	"github.com/plantwatch/plantwatch/lib/codec"
	"github.com/plantwatch/plantwatch/lib/process"
	"github.com/plantwatch/plantwatch/lib/schema/telemetry"
	"github.com/plantwatch/plantwatch/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// senderOptions holds the parsed command line.
type senderOptions struct {
	Address  string
	File     string
	CBOR     bool
	Count    int
	Interval time.Duration
	Timeout  time.Duration

	Reading telemetry.Reading
}

func run() error {
	var options senderOptions
	var showVersion bool

	flagSet := pflag.NewFlagSet("plantwatch-sender", pflag.ContinueOnError)
	options.addFlags(flagSet)
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print("plantwatch-sender")
		return nil
	}

	payload, err := options.payload(os.Stdin)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return send(ctx, options, payload, clock.Real(), newLogger())
}

func (o *senderOptions) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.Address, "address", "127.0.0.1:65437", "ingestion listener address")
	flagSet.StringVar(&o.File, "file", "", "send this file's contents instead of a reading built from flags (- for stdin)")
	flagSet.BoolVar(&o.CBOR, "cbor", false, "encode the message as CBOR instead of JSON")
	flagSet.IntVar(&o.Count, "count", 1, "number of messages to send")
	flagSet.DurationVar(&o.Interval, "interval", 5*time.Second, "pause between messages when --count > 1")
	flagSet.DurationVar(&o.Timeout, "timeout", 5*time.Second, "connect and write timeout per message")

	flagSet.StringVar(&o.Reading.MachineID, "machine-id", "M1", "machine_id field")
	flagSet.StringVar(&o.Reading.MachineName, "machine-name", "K2-M1", "machine_name field")
	flagSet.Float64Var(&o.Reading.Temperature, "temperature", 30, "temperature field")
	flagSet.Float64Var(&o.Reading.Humidity, "humidity", 50, "humidity field")
	flagSet.Float64Var(&o.Reading.CurrentR, "current-r", 4, "current_r field")
	flagSet.Float64Var(&o.Reading.CurrentY, "current-y", 4, "current_y field")
	flagSet.Float64Var(&o.Reading.CurrentB, "current-b", 4, "current_b field")
	flagSet.Float64Var(&o.Reading.PowerFactor, "power-factor", 0.95, "power_factor field")
}

// payload builds the bytes written on each connection.
func (o *senderOptions) payload(stdin io.Reader) ([]byte, error) {
	if o.File == "" {
		message := readingMessage(o.Reading)
		if o.CBOR {
			return codec.Marshal(message)
		}
		return json.Marshal(message)
	}

	var data []byte
	var err error
	if o.File == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(o.File)
	}
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	if !o.CBOR {
		return data, nil
	}

	var message map[string]any
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("--cbor needs a JSON object to re-encode: %w", err)
	}
	return codec.Marshal(message)
}

// readingMessage is the wire form of a reading. The ingestion
// timestamp is the service's to assign, so it is never sent.
func readingMessage(reading telemetry.Reading) map[string]any {
	return map[string]any{
		telemetry.FieldMachineID:   reading.MachineID,
		telemetry.FieldMachineName: reading.MachineName,
		telemetry.FieldTemperature: reading.Temperature,
		telemetry.FieldHumidity:    reading.Humidity,
		telemetry.FieldCurrentR:    reading.CurrentR,
		telemetry.FieldCurrentY:    reading.CurrentY,
		telemetry.FieldCurrentB:    reading.CurrentB,
		telemetry.FieldPowerFactor: reading.PowerFactor,
	}
}

// send writes payload options.Count times, one connection each.
func send(ctx context.Context, options senderOptions, payload []byte, clk clock.Clock, logger *slog.Logger) error {
	if options.Count <= 0 {
		return fmt.Errorf("--count must be positive, got %d", options.Count)
	}

	for i := range options.Count {
		if i > 0 {
			select {
			case <-clk.After(options.Interval):
			case <-ctx.Done():
				return nil
			}
		}
		if err := sendOnce(ctx, options.Address, payload, options.Timeout); err != nil {
			return err
		}
		logger.Info("message sent",
			"address", options.Address,
			"bytes", len(payload),
			"sequence", i+1,
		)
	}
	return nil
}

func sendOnce(ctx context.Context, address string, payload []byte, timeout time.Duration) error {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", address, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("writing to %s: %w", address, err)
	}
	return nil
}

// newLogger logs text to a terminal and JSON otherwise.
func newLogger() *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, options))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, options))
}
