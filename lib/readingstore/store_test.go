// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package readingstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/plantwatch/plantwatch/lib/clock"
	"github.com/plantwatch/plantwatch/lib/schema/telemetry"
)

var storeTestClockEpoch = time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func testLocation(t *testing.T) *time.Location {
	t.Helper()
	location, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Minimal containers may lack tzdata; a fixed zone with the
		// same offset exercises the same code.
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return location
}

func openTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()

	fakeClock := clock.Fake(storeTestClockEpoch)

	store, err := OpenStore(StoreConfig{
		Path:     filepath.Join(t.TempDir(), "readings_test.db"),
		PoolSize: 2,
		Location: testLocation(t),
		Clock:    fakeClock,
		Logger:   testLogger(),
	})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("store.Close: %v", err)
		}
	})
	return store, fakeClock
}

func testReading(machineID, machineName string, temperature float64) telemetry.Reading {
	return telemetry.Reading{
		MachineID:   machineID,
		MachineName: machineName,
		Temperature: temperature,
		Humidity:    40,
		CurrentR:    5,
		CurrentY:    5.1,
		CurrentB:    4.9,
		PowerFactor: 0.95,
	}
}

func mustAppend(t *testing.T, store *Store, reading telemetry.Reading) telemetry.Reading {
	t.Helper()
	stamped, err := store.Append(context.Background(), reading)
	if err != nil {
		t.Fatalf("Append(%s): %v", reading.MachineID, err)
	}
	return stamped
}

func TestOpenStoreRequiresDependencies(t *testing.T) {
	base := StoreConfig{
		Path:     filepath.Join(t.TempDir(), "x.db"),
		Location: time.UTC,
		Clock:    clock.Fake(storeTestClockEpoch),
		Logger:   testLogger(),
	}

	tests := []struct {
		name   string
		mutate func(*StoreConfig)
	}{
		{"no clock", func(c *StoreConfig) { c.Clock = nil }},
		{"no logger", func(c *StoreConfig) { c.Logger = nil }},
		{"no location", func(c *StoreConfig) { c.Location = nil }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := base
			test.mutate(&config)
			if store, err := OpenStore(config); err == nil {
				store.Close()
				t.Fatal("OpenStore succeeded, want error")
			}
		})
	}
}

func TestOpenStoreBadPathIsPersistenceError(t *testing.T) {
	_, err := OpenStore(StoreConfig{
		Path:     filepath.Join(t.TempDir(), "missing", "dir", "readings.db"),
		Location: time.UTC,
		Clock:    clock.Fake(storeTestClockEpoch),
		Logger:   testLogger(),
	})
	if err == nil {
		t.Fatal("OpenStore succeeded on a path whose directory does not exist")
	}
	var persistence *PersistenceError
	if !errors.As(err, &persistence) {
		t.Fatalf("error %v (%T) is not a *PersistenceError", err, err)
	}
	if persistence.Op != "open" {
		t.Errorf("Op = %q, want open", persistence.Op)
	}
}

func TestAppendThenQueryRecent(t *testing.T) {
	store, fakeClock := openTestStore(t)
	ctx := context.Background()

	fakeClock.Set(storeTestClockEpoch.Add(1500 * time.Millisecond))
	input := testReading("M1", "plant1_press", 21.5)
	stamped := mustAppend(t, store, input)

	wantTimestamp := storeTestClockEpoch.Add(time.Second)
	if !stamped.Timestamp.Equal(wantTimestamp) {
		t.Errorf("stamped Timestamp = %v, want %v (truncated to the second)", stamped.Timestamp, wantTimestamp)
	}
	if stamped.Timestamp.Location() != store.Location() {
		t.Errorf("stamped zone = %v, want %v", stamped.Timestamp.Location(), store.Location())
	}

	readings, err := store.QueryRecent(ctx, "M1", 1)
	if err != nil {
		t.Fatalf("QueryRecent: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("QueryRecent returned %d readings, want 1", len(readings))
	}
	got := readings[0]
	if !got.Timestamp.Equal(wantTimestamp) {
		t.Errorf("stored Timestamp = %v, want %v", got.Timestamp, wantTimestamp)
	}
	got.Timestamp = time.Time{}
	if got != input {
		t.Errorf("stored reading = %+v, want %+v", got, input)
	}
}

func TestAppendIgnoresCallerTimestamp(t *testing.T) {
	store, _ := openTestStore(t)

	input := testReading("M1", "plant1_press", 20)
	input.Timestamp = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	stamped := mustAppend(t, store, input)

	if !stamped.Timestamp.Equal(storeTestClockEpoch) {
		t.Errorf("Timestamp = %v, want store clock %v", stamped.Timestamp, storeTestClockEpoch)
	}
}

func TestStoredTimestampUsesConfiguredZone(t *testing.T) {
	store, _ := openTestStore(t)
	mustAppend(t, store, testReading("M1", "plant1_press", 20))

	conn, err := store.pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer store.pool.Put(conn)

	stmt := conn.Prep("SELECT timestamp FROM sensor_data")
	defer stmt.Reset()
	hasRow, err := stmt.Step()
	if err != nil || !hasRow {
		t.Fatalf("Step: hasRow=%v err=%v", hasRow, err)
	}
	// 04:00 UTC is 09:30 in India Standard Time.
	if got, want := stmt.ColumnText(0), "2026-03-02 09:30:00"; got != want {
		t.Errorf("stored timestamp text = %q, want %q", got, want)
	}
}

func TestQueryRecentNewestFirstWithLimit(t *testing.T) {
	store, fakeClock := openTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		mustAppend(t, store, testReading("M1", "plant1_press", float64(i)))
		fakeClock.Advance(time.Minute)
	}
	mustAppend(t, store, testReading("M2", "plant1_lathe", 99))

	readings, err := store.QueryRecent(ctx, "M1", 3)
	if err != nil {
		t.Fatalf("QueryRecent: %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("got %d readings, want 3", len(readings))
	}
	for i, want := range []float64{4, 3, 2} {
		if readings[i].Temperature != want {
			t.Errorf("readings[%d].Temperature = %v, want %v", i, readings[i].Temperature, want)
		}
		if readings[i].MachineID != "M1" {
			t.Errorf("readings[%d].MachineID = %q, want M1", i, readings[i].MachineID)
		}
	}

	none, err := store.QueryRecent(ctx, "M1", 0)
	if err != nil {
		t.Fatalf("QueryRecent limit 0: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("limit 0 returned %d readings", len(none))
	}

	unknown, err := store.QueryRecent(ctx, "nope", 10)
	if err != nil {
		t.Fatalf("QueryRecent unknown machine: %v", err)
	}
	if unknown == nil || len(unknown) != 0 {
		t.Errorf("unknown machine returned %v, want empty non-nil slice", unknown)
	}
}

func TestSameSecondAppendsOrderedByCommit(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	// The fake clock never moves, so every row shares one timestamp.
	for i := range 4 {
		mustAppend(t, store, testReading("M1", "plant1_press", float64(i)))
	}

	recent, err := store.QueryRecent(ctx, "M1", 10)
	if err != nil {
		t.Fatalf("QueryRecent: %v", err)
	}
	for i, want := range []float64{3, 2, 1, 0} {
		if recent[i].Temperature != want {
			t.Errorf("recent[%d].Temperature = %v, want %v", i, recent[i].Temperature, want)
		}
	}

	ranged, err := store.QueryRange(ctx, storeTestClockEpoch, "")
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	for i, want := range []float64{0, 1, 2, 3} {
		if ranged[i].Temperature != want {
			t.Errorf("ranged[%d].Temperature = %v, want %v", i, ranged[i].Temperature, want)
		}
	}
}

func TestQueryRangeSinceAndPrefix(t *testing.T) {
	store, fakeClock := openTestStore(t)
	ctx := context.Background()

	mustAppend(t, store, testReading("M1", "plant1_press", 1))
	fakeClock.Advance(time.Hour)
	cutoff := fakeClock.Now()
	mustAppend(t, store, testReading("M2", "plant2_lathe", 2))
	fakeClock.Advance(time.Hour)
	mustAppend(t, store, testReading("M1", "plant1_press", 3))
	mustAppend(t, store, testReading("M3", "Plant1_mill", 4))

	tests := []struct {
		name   string
		since  time.Time
		prefix string
		want   []float64
	}{
		{"everything", storeTestClockEpoch, "", []float64{1, 2, 3, 4}},
		{"since cutoff", cutoff, "", []float64{2, 3, 4}},
		{"since is inclusive", cutoff, "plant2", []float64{2}},
		{"prefix", storeTestClockEpoch, "plant1", []float64{1, 3, 4}},
		{"prefix and since", cutoff, "plant1", []float64{3, 4}},
		{"sub-second bound rounds up", cutoff.Add(time.Millisecond), "", []float64{3, 4}},
		{"future", cutoff.Add(24 * time.Hour), "", nil},
		{"no match", storeTestClockEpoch, "plant9", nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			readings, err := store.QueryRange(ctx, test.since, test.prefix)
			if err != nil {
				t.Fatalf("QueryRange: %v", err)
			}
			var got []float64
			for _, reading := range readings {
				got = append(got, reading.Temperature)
			}
			if fmt.Sprint(got) != fmt.Sprint(test.want) {
				t.Errorf("temperatures = %v, want %v", got, test.want)
			}
		})
	}
}

func TestQueryRangePrefixWildcardsAreLiteral(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	mustAppend(t, store, testReading("M1", "line_a", 1))
	mustAppend(t, store, testReading("M2", "lineXa", 2))
	mustAppend(t, store, testReading("M3", "100%_rated", 3))

	readings, err := store.QueryRange(ctx, storeTestClockEpoch, "line_")
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(readings) != 1 || readings[0].MachineID != "M1" {
		t.Errorf("prefix line_ matched %+v, want only M1", readings)
	}

	readings, err = store.QueryRange(ctx, storeTestClockEpoch, "100%")
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(readings) != 1 || readings[0].MachineID != "M3" {
		t.Errorf("prefix 100%% matched %+v, want only M3", readings)
	}
}

func TestListMachines(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	mustAppend(t, store, testReading("M2", "plant2_lathe", 1))
	mustAppend(t, store, testReading("M1", "plant1_press", 1))
	mustAppend(t, store, testReading("M1", "plant1_press", 2))
	mustAppend(t, store, testReading("M1", "plant1_press_renamed", 3))

	machines, err := store.ListMachines(ctx, "")
	if err != nil {
		t.Fatalf("ListMachines: %v", err)
	}
	want := []telemetry.Machine{
		{MachineID: "M1", MachineName: "plant1_press"},
		{MachineID: "M1", MachineName: "plant1_press_renamed"},
		{MachineID: "M2", MachineName: "plant2_lathe"},
	}
	if fmt.Sprint(machines) != fmt.Sprint(want) {
		t.Errorf("ListMachines = %v, want %v", machines, want)
	}

	filtered, err := store.ListMachines(ctx, "plant2")
	if err != nil {
		t.Fatalf("ListMachines prefix: %v", err)
	}
	if len(filtered) != 1 || filtered[0].MachineID != "M2" {
		t.Errorf("ListMachines(plant2) = %v", filtered)
	}
}

func TestLatestPerMachine(t *testing.T) {
	store, fakeClock := openTestStore(t)
	ctx := context.Background()

	mustAppend(t, store, testReading("M1", "plant1_press", 1))
	mustAppend(t, store, testReading("M2", "plant2_lathe", 10))
	fakeClock.Advance(time.Minute)
	mustAppend(t, store, testReading("M1", "plant1_press", 2))
	mustAppend(t, store, testReading("M1", "plant1_press", 3))

	latest, err := store.LatestPerMachine(ctx)
	if err != nil {
		t.Fatalf("LatestPerMachine: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("got %d readings, want 2", len(latest))
	}
	if latest[0].MachineID != "M1" || latest[0].Temperature != 3 {
		t.Errorf("latest[0] = %+v, want M1 with temperature 3", latest[0])
	}
	if latest[1].MachineID != "M2" || latest[1].Temperature != 10 {
		t.Errorf("latest[1] = %+v, want M2 with temperature 10", latest[1])
	}
}

func TestReadingsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	config := StoreConfig{
		Path:     path,
		Location: testLocation(t),
		Clock:    clock.Fake(storeTestClockEpoch),
		Logger:   testLogger(),
	}

	store, err := OpenStore(config)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	mustAppend(t, store, testReading("M1", "plant1_press", 1))
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenStore(config)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("Count after reopen = %d, want 1", count)
	}
}

func TestConcurrentAppends(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	const writers = 16
	const perWriter = 10

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			machineID := fmt.Sprintf("M%02d", w)
			for i := range perWriter {
				if _, err := store.Append(ctx, testReading(machineID, "plant1_"+machineID, float64(i))); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Append: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != writers*perWriter {
		t.Errorf("Count = %d, want %d", count, writers*perWriter)
	}

	machines, err := store.ListMachines(ctx, "")
	if err != nil {
		t.Fatalf("ListMachines: %v", err)
	}
	if len(machines) != writers {
		t.Errorf("ListMachines returned %d machines, want %d", len(machines), writers)
	}
}

func TestAppendCancelledContext(t *testing.T) {
	store, _ := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Hold every pool connection so Take has to wait on the context.
	for range 2 {
		conn, err := store.pool.Take(context.Background())
		if err != nil {
			t.Fatalf("Take: %v", err)
		}
		defer store.pool.Put(conn)
	}

	_, err := store.Append(ctx, testReading("M1", "plant1_press", 1))
	var persistence *PersistenceError
	if !errors.As(err, &persistence) {
		t.Fatalf("Append with cancelled context: error %v (%T), want *PersistenceError", err, err)
	}
	if persistence.Op != "append" {
		t.Errorf("Op = %q, want append", persistence.Op)
	}
}

func TestExampleReadingInPlantRange(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	example := telemetry.Reading{
		MachineID:   "M1",
		MachineName: "K2-M1",
		Temperature: 50,
		Humidity:    80,
		CurrentR:    7,
		CurrentY:    3,
		CurrentB:    2,
		PowerFactor: 0.9,
	}
	mustAppend(t, store, example)

	readings, err := store.QueryRange(ctx, storeTestClockEpoch.Add(-7*24*time.Hour), "K2")
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("got %d readings, want 1", len(readings))
	}
	got := readings[0]
	got.Timestamp = time.Time{}
	if got != example {
		t.Errorf("got %+v, want %+v", got, example)
	}
}
