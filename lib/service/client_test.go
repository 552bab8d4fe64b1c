// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/plantwatch/plantwatch/lib/codec"
)

func TestClientCall(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())
	server.Handle("recent", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			Action    string `cbor:"action"`
			MachineID string `cbor:"machine_id"`
			Limit     int    `cbor:"limit"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]any{
			"action":     request.Action,
			"machine_id": request.MachineID,
			"limit":      request.Limit,
		}, nil
	})
	startServer(t, server, socketPath)

	client := NewServiceClient(socketPath)

	var result struct {
		Action    string `cbor:"action"`
		MachineID string `cbor:"machine_id"`
		Limit     int    `cbor:"limit"`
	}
	err := client.Call(context.Background(), "recent", map[string]any{
		"machine_id": "M1",
		"limit":      5,
	}, &result)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Action != "recent" || result.MachineID != "M1" || result.Limit != 5 {
		t.Errorf("server saw %+v", result)
	}
}

func TestClientCallNilResult(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())
	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		return map[string]any{"uptime_seconds": 1}, nil
	})
	startServer(t, server, socketPath)

	if err := NewServiceClient(socketPath).Call(context.Background(), "status", nil, nil); err != nil {
		t.Fatalf("Call with nil result: %v", err)
	}
}

func TestClientCallServiceError(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())
	server.Handle("latest", func(ctx context.Context, raw []byte) (any, error) {
		return nil, errors.New("machine_id is required")
	})
	startServer(t, server, socketPath)

	err := NewServiceClient(socketPath).Call(context.Background(), "latest", nil, nil)
	var serviceError *ServiceError
	if !errors.As(err, &serviceError) {
		t.Fatalf("error %v (%T) is not a *ServiceError", err, err)
	}
	if serviceError.Action != "latest" || serviceError.Message != "machine_id is required" {
		t.Errorf("ServiceError = %+v", serviceError)
	}
}

func TestClientCallConnectionError(t *testing.T) {
	client := NewServiceClient(filepath.Join(t.TempDir(), "missing.sock"))

	err := client.Call(context.Background(), "status", nil, nil)
	if err == nil {
		t.Fatal("Call to a missing socket succeeded")
	}
	var serviceError *ServiceError
	if errors.As(err, &serviceError) {
		t.Errorf("connection failure reported as *ServiceError: %v", err)
	}
}
