// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeT records Fatalf calls instead of stopping the test.
type fakeT struct {
	failed  bool
	message string
}

func (f *fakeT) Helper() {}

func (f *fakeT) Fatalf(format string, args ...any) {
	f.failed = true
	f.message = fmt.Sprintf(format, args...)
	// Mirror testing.T: Fatalf does not return.
	panic(f)
}

func capture(f *fakeT, body func()) {
	defer func() {
		if recovered := recover(); recovered != nil && recovered != f {
			panic(recovered)
		}
	}()
	body()
}

func TestRequireReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second, "value"); got != 7 {
		t.Errorf("RequireReceive = %d, want 7", got)
	}

	fake := &fakeT{}
	capture(fake, func() {
		RequireReceive(fake, make(chan int), 10*time.Millisecond, "waiting for %s", "nothing")
	})
	if !fake.failed || !strings.Contains(fake.message, "waiting for nothing") {
		t.Errorf("timeout not reported: failed=%v message=%q", fake.failed, fake.message)
	}
}

func TestRequireClosed(t *testing.T) {
	ch := make(chan struct{})
	close(ch)
	RequireClosed(t, ch, time.Second, "closed channel")

	fake := &fakeT{}
	capture(fake, func() {
		RequireClosed(fake, make(chan struct{}), 10*time.Millisecond, "never closed")
	})
	if !fake.failed {
		t.Error("RequireClosed on an open channel did not fail")
	}
}

func TestEventually(t *testing.T) {
	var counter atomic.Int32
	go func() {
		for range 3 {
			counter.Add(1)
		}
	}()
	Eventually(t, 5*time.Second, func() bool { return counter.Load() == 3 }, "counter")

	fake := &fakeT{}
	capture(fake, func() {
		Eventually(fake, 10*time.Millisecond, func() bool { return false }, "never true")
	})
	if !fake.failed || !strings.Contains(fake.message, "never true") {
		t.Errorf("Eventually did not fail: %+v", fake)
	}
}

func TestUniqueID(t *testing.T) {
	first := UniqueID("M")
	second := UniqueID("M")
	if first == second {
		t.Errorf("UniqueID returned %q twice", first)
	}
	if !strings.HasPrefix(first, "M-") {
		t.Errorf("UniqueID(M) = %q, want M- prefix", first)
	}
}
