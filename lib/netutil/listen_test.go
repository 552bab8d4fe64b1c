// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"testing"
	"time"
)

func TestListenAcceptsConnections(t *testing.T) {
	listener, err := Listen(context.Background(), "127.0.0.1:0", ListenOptions{})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
		close(accepted)
	}()

	client, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	select {
	case conn, ok := <-accepted:
		if !ok {
			t.Fatal("Accept failed")
		}
		conn.Close()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Accept")
	}
}

func TestListenReusePortAllowsSecondBind(t *testing.T) {
	options := ListenOptions{ReusePort: true}
	first, err := Listen(context.Background(), "127.0.0.1:0", options)
	if err != nil {
		t.Fatalf("first Listen: %v", err)
	}
	defer first.Close()

	second, err := Listen(context.Background(), first.Addr().String(), options)
	if err != nil {
		t.Fatalf("second Listen with ReusePort on %s: %v", first.Addr(), err)
	}
	second.Close()
}

func TestListenWithoutReusePortConflicts(t *testing.T) {
	first, err := Listen(context.Background(), "127.0.0.1:0", ListenOptions{})
	if err != nil {
		t.Fatalf("first Listen: %v", err)
	}
	defer first.Close()

	second, err := Listen(context.Background(), first.Addr().String(), ListenOptions{})
	if err == nil {
		second.Close()
		t.Fatal("second Listen on a bound address succeeded without ReusePort")
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"EOF", io.EOF, true},
		{"wrapped EOF", errors.Join(errors.New("read"), io.EOF), true},
		{"closed", net.ErrClosed, true},
		{"reset", syscall.ECONNRESET, true},
		{"broken pipe", &net.OpError{Op: "write", Err: syscall.EPIPE}, true},
		{"refused", syscall.ECONNREFUSED, false},
		{"other", errors.New("boom"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	listener, err := Listen(context.Background(), "127.0.0.1:0", ListenOptions{})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	client, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	client.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	_, err = client.Read(make([]byte, 1))
	if !IsTimeout(err) {
		t.Errorf("IsTimeout(%v) = false after deadline expiry", err)
	}
	if IsTimeout(io.EOF) {
		t.Error("IsTimeout(io.EOF) = true")
	}
}
