// Copyright 2026 The Plantwatch Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plantwatch/plantwatch/lib/clock"
	"github.com/plantwatch/plantwatch/lib/schema/telemetry"
)

const (
	defaultRecentLimit = 100
	maxRecentLimit     = 10000
)

// Store is the read side of the reading store.
type Store interface {
	QueryRecent(ctx context.Context, machineID string, limit int) ([]telemetry.Reading, error)
	QueryRange(ctx context.Context, since time.Time, namePrefix string) ([]telemetry.Reading, error)
	ListMachines(ctx context.Context, namePrefix string) ([]telemetry.Machine, error)
}

// Cache is the read side of the latest-state cache.
type Cache interface {
	Get(machineID string) (telemetry.Reading, bool)
	Snapshot() []telemetry.Reading
}

// Config holds the dependencies of the API handler.
type Config struct {
	Store Store
	Cache Cache

	// Location is the zone bare dates in ?since= are read in, and the
	// zone whose midnight starts the default weekly window.
	Location *time.Location

	// Clock provides "now" for the default range window.
	Clock clock.Clock

	// Registerer receives the HTTP metrics. Gatherer is exposed on
	// /metrics. Both are normally the same *prometheus.Registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Logger *slog.Logger
}

type api struct {
	store    Store
	cache    Cache
	location *time.Location
	clock    clock.Clock
	logger   *slog.Logger
}

// NewHandler returns the API's root handler.
func NewHandler(cfg Config) (http.Handler, error) {
	switch {
	case cfg.Store == nil:
		return nil, fmt.Errorf("httpapi: Store is required")
	case cfg.Cache == nil:
		return nil, fmt.Errorf("httpapi: Cache is required")
	case cfg.Location == nil:
		return nil, fmt.Errorf("httpapi: Location is required")
	case cfg.Clock == nil:
		return nil, fmt.Errorf("httpapi: Clock is required")
	case cfg.Registerer == nil || cfg.Gatherer == nil:
		return nil, fmt.Errorf("httpapi: Registerer and Gatherer are required")
	case cfg.Logger == nil:
		return nil, fmt.Errorf("httpapi: Logger is required")
	}

	a := &api{
		store:    cfg.Store,
		cache:    cfg.Cache,
		location: cfg.Location,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}

	router := mux.NewRouter()
	router.Use(newMetrics(cfg.Registerer).middleware)

	router.HandleFunc("/health", a.health).Methods(http.MethodGet)
	router.HandleFunc("/machines", a.machines).Methods(http.MethodGet)
	router.HandleFunc("/latest", a.latestAll).Methods(http.MethodGet)
	router.HandleFunc("/machines/{id}/latest", a.latest).Methods(http.MethodGet)
	router.HandleFunc("/machines/{id}/readings", a.recent).Methods(http.MethodGet)
	router.HandleFunc("/readings", a.readings).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var handler http.Handler = router
	handler = handlers.CustomLoggingHandler(io.Discard, handler, a.logRequest)
	handler = gzhttp.GzipHandler(handler)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelError)),
	)(handler)
	return handler, nil
}

// logRequest routes gorilla's access log through slog.
func (a *api) logRequest(_ io.Writer, params handlers.LogFormatterParams) {
	a.logger.Debug("http request",
		"method", params.Request.Method,
		"path", params.URL.Path,
		"status", params.StatusCode,
		"bytes", params.Size,
		"remote", params.Request.RemoteAddr,
	)
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) machines(w http.ResponseWriter, r *http.Request) {
	machines, err := a.store.ListMachines(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		a.storeFailure(w, r, err)
		return
	}
	if machines == nil {
		machines = []telemetry.Machine{}
	}
	writeJSON(w, http.StatusOK, machines)
}

func (a *api) latest(w http.ResponseWriter, r *http.Request) {
	machineID := mux.Vars(r)["id"]
	reading, ok := a.cache.Get(machineID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no reading from machine %q since the service started", machineID))
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (a *api) latestAll(w http.ResponseWriter, r *http.Request) {
	writeReadings(w, a.cache.Snapshot())
}

func (a *api) recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q: want a positive integer", raw))
			return
		}
		limit = min(parsed, maxRecentLimit)
	}

	readings, err := a.store.QueryRecent(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		a.storeFailure(w, r, err)
		return
	}
	writeReadings(w, readings)
}

func (a *api) readings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	since := telemetry.ReportWindowStart(a.clock.Now(), a.location)
	if raw := query.Get("since"); raw != "" {
		parsed, err := parseSince(raw, a.location)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		since = parsed
	}

	readings, err := a.store.QueryRange(r.Context(), since, query.Get("prefix"))
	if err != nil {
		a.storeFailure(w, r, err)
		return
	}
	writeReadings(w, readings)
}

func (a *api) storeFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		// Client went away; nobody is reading the response.
		return
	}
	a.logger.Error("http query failed",
		"path", r.URL.Path,
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "store query failed")
}

// parseSince accepts RFC 3339 or a bare date in location.
func parseSince(raw string, location *time.Location) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	if parsed, err := time.ParseInLocation(time.DateOnly, raw, location); err == nil {
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("invalid since %q: want RFC 3339 or YYYY-MM-DD", raw)
}

// writeReadings renders an empty result as [] rather than null.
func writeReadings(w http.ResponseWriter, readings []telemetry.Reading) {
	if readings == nil {
		readings = []telemetry.Reading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
