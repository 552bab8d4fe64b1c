// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/plantwatch/plantwatch/lib/codec"
)

// ActionFunc answers one query socket request. raw is the whole CBOR
// request map, action field included; the handler decodes its own
// fields (machine_id, limit, since, name_prefix) from it.
//
// A nil result yields {ok: true}. A non-nil result is CBOR-encoded
// into the response's data field. An error yields {ok: false} with the
// error text, which the CLI prints verbatim.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the envelope of every query socket reply.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// SocketServer answers local queries (status counters, latest
// readings, stored history, machine lists) on a Unix socket. A
// connection carries one CBOR request and one CBOR response.
//
// Register actions with Handle before calling Serve. Unknown actions
// get an error response.
type SocketServer struct {
	socketPath string
	handlers   map[string]ActionFunc
	logger     *slog.Logger

	// requests tracks in-flight queries so Serve can wait for them.
	requests sync.WaitGroup
}

// NewSocketServer returns a server for socketPath.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	return &SocketServer{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		logger:     logger,
	}
}

// Handle registers handler for action. It panics on a duplicate
// action and must not be called once Serve has started.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

const (
	// socketMode restricts queries to the service user and group.
	socketMode = 0o660

	// requestReadTimeout bounds the wait for a client's request. The
	// CLI writes its request immediately after connecting.
	requestReadTimeout = 30 * time.Second

	// responseWriteTimeout bounds writing a reply. A range reply over
	// a week of readings from a large plant is the biggest.
	responseWriteTimeout = 30 * time.Second

	// maxRequestSize caps one request. Queries carry at most a
	// machine id, a limit, a timestamp and a name prefix.
	maxRequestSize = 64 * 1024

	// socketAcceptBackoff is the pause after a failed accept.
	socketAcceptBackoff = 50 * time.Millisecond
)

// Serve listens on the socket path and answers queries until ctx is
// cancelled, then waits for in-flight queries before returning. A
// stale socket file from an earlier run is replaced; the file is
// removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("service: removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("service: listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	if err := os.Chmod(s.socketPath, socketMode); err != nil {
		return fmt.Errorf("service: setting permissions on %s: %w", s.socketPath, err)
	}

	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	s.logger.Info("query socket listening",
		"path", s.socketPath,
		"actions", len(s.handlers),
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("query socket accept failed", "error", err)
			select {
			case <-time.After(socketAcceptBackoff):
				continue
			case <-ctx.Done():
			}
			break
		}

		s.requests.Add(1)
		go func() {
			defer s.requests.Done()
			s.answer(ctx, conn)
		}()
	}

	s.requests.Wait()
	s.logger.Info("query socket stopped")
	return nil
}

// answer reads one request from conn, dispatches it, and writes the
// reply.
func (s *SocketServer) answer(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(requestReadTimeout)); err != nil {
		s.logger.Debug("setting query read deadline failed", "error", err)
	}

	// A CBOR value is self-delimiting, so one Decode reads exactly one
	// request.
	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		s.writeError(conn, fmt.Sprintf("unknown action %q", header.Action))
		return
	}

	started := time.Now()
	result, err := s.dispatch(ctx, header.Action, handler, raw)
	s.logger.Debug("query answered",
		"action", header.Action,
		"duration", time.Since(started),
		"ok", err == nil,
	)
	if err != nil {
		s.writeError(conn, err.Error())
		return
	}
	s.writeSuccess(conn, result)
}

// dispatch runs handler, turning a panic into an error reply so one
// bad query cannot take the service down with it.
func (s *SocketServer) dispatch(ctx context.Context, action string, handler ActionFunc, raw []byte) (result any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("query action panicked",
				"action", action,
				"panic", recovered,
			)
			result, err = nil, fmt.Errorf("internal error in action %q", action)
		}
	}()
	return handler(ctx, raw)
}

// writeError sends {ok: false, error: message}. The connection is
// closing either way, so a write failure is only logged.
func (s *SocketServer) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(responseWriteTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{Error: message}); err != nil {
		s.logger.Debug("writing query error reply failed", "error", err)
	}
}

// writeSuccess sends {ok: true}, with result encoded into data when it
// is non-nil.
func (s *SocketServer) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(responseWriteTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: encoding reply: %v", err))
			return
		}
		response.Data = data
	}

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("writing query reply failed", "error", err)
	}
}
