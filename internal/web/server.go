// Package web serves the agent's history, the latest account ranking and its Prometheus
// metrics over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/burrowland/liquidator/internal/cache"
	"github.com/burrowland/liquidator/internal/logger"
	"github.com/burrowland/liquidator/internal/metrics"
	"github.com/burrowland/liquidator/internal/state"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	defaultCycleLimit   = 20
	maxCycleLimit       = 100
	defaultAccountLimit = 50
	shutdownTimeout     = 5 * time.Second
)

// Store is the cycle history the API reads.
type Store interface {
	Ping(ctx context.Context) error
	GetRecentCycles(ctx context.Context, limit int, kind types.CycleKind) ([]types.CycleSnapshot, error)
	GetLatestCycle(ctx context.Context) (*types.CycleSnapshot, error)
	GetCycleByID(ctx context.Context, snapshotID int64) (*types.CycleSnapshot, error)
	LoadActiveParameters(ctx context.Context, configName string) (*state.StoredParameters, error)
	GetProfitSummary(ctx context.Context) (*state.ProfitSummary, error)
}

// Snapshots is the cached scan output the API reads.
type Snapshots interface {
	GetRanking(ctx context.Context) (cache.Ranking, error)
	GetPools(ctx context.Context) (cache.PoolSnapshot, error)
}

// WebServer handles HTTP requests for the liquidator's state. Store and Snapshots may be
// nil; their endpoints then answer 503.
type WebServer struct {
	router     *mux.Router
	port       string
	store      Store
	snapshots  Snapshots
	configName string
	startedAt  time.Time
	logger     zerolog.Logger
}

// NewWebServer creates a new web server instance. configName selects the parameter set
// served by /api/parameters.
func NewWebServer(port string, store Store, snapshots Snapshots, configName string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:     mux.NewRouter(),
		port:       port,
		store:      store,
		snapshots:  snapshots,
		configName: configName,
		startedAt:  time.Now(),
		logger:     logger.GetForComponent("web_server"),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/accounts", ws.handleGetAccounts).Methods("GET")
	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/cycles", ws.handleGetCycles).Methods("GET")
	api.HandleFunc("/cycles/latest", ws.handleGetLatestCycle).Methods("GET")
	api.HandleFunc("/cycles/{id:[0-9]+}", ws.handleGetCycle).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")
	api.HandleFunc("/performance", ws.handleGetPerformance).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the router.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until ctx is done, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	ws.logger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		ws.logger.Info().Msg("Shutting down web server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// handleHealth reports the database connection and the last cycle. Any problem answers 503.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false
	dbHealthy := false
	cycleInfo := map[string]interface{}{
		"current_cycle":     0,
		"last_cycle_time":   nil,
		"last_cycle_status": "unknown",
	}

	if ws.store != nil {
		if err := ws.store.Ping(r.Context()); err != nil {
			hasErrors = true
		} else {
			dbHealthy = true
		}

		latest, err := ws.store.GetLatestCycle(r.Context())
		switch {
		case err == nil:
			cycleInfo = map[string]interface{}{
				"current_cycle":     latest.CycleNumber,
				"last_cycle_time":   latest.Timestamp,
				"last_cycle_status": latest.Outcome,
				"last_cycle_kind":   latest.Kind,
			}
			if latest.Outcome == types.OutcomeFailed {
				hasErrors = true
			}
		case errors.Is(err, state.ErrNotFound):
			// No cycle has run yet.
		default:
			hasErrors = true
		}
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if hasErrors {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.startedAt).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "burrow-liquidator",
			"version": "1.0.0",
		},
		"liquidator_status": map[string]interface{}{
			"database_configured": ws.store != nil,
			"database_healthy":    dbHealthy,
			"has_recent_errors":   hasErrors,
			"cycle_info":          cycleInfo,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetAccounts returns the cached ranking, least healthy first.
func (ws *WebServer) handleGetAccounts(w http.ResponseWriter, r *http.Request) {
	if ws.snapshots == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Cache not configured")
		return
	}
	limit := parseLimit(r, defaultAccountLimit, 0)

	ranking, err := ws.snapshots.GetRanking(r.Context())
	if errors.Is(err, cache.ErrCacheMiss) {
		ws.writeErrorResponse(w, http.StatusNotFound, "No ranking available yet")
		return
	}
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get ranking")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve ranking")
		return
	}

	accounts := ranking.Accounts
	if limit < len(accounts) {
		accounts = accounts[:limit]
	}
	response := map[string]interface{}{
		"accounts":   accounts,
		"count":      len(accounts),
		"total":      len(ranking.Accounts),
		"updated_at": ranking.UpdatedAt,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPools returns the cached exchange listing.
func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	if ws.snapshots == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Cache not configured")
		return
	}
	pools, err := ws.snapshots.GetPools(r.Context())
	if errors.Is(err, cache.ErrCacheMiss) {
		ws.writeErrorResponse(w, http.StatusNotFound, "No pools available yet")
		return
	}
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get pools")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve pools")
		return
	}

	response := map[string]interface{}{
		"pools":      pools.Pools,
		"count":      len(pools.Pools),
		"updated_at": pools.UpdatedAt,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetCycles returns recent cycles, optionally of one kind.
func (ws *WebServer) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	if !ws.requireStore(w) {
		return
	}
	limit := parseLimit(r, defaultCycleLimit, maxCycleLimit)

	kind := types.CycleKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", types.CycleLiquidation, types.CycleRebalance:
	default:
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid cycle kind")
		return
	}

	cycles, err := ws.store.GetRecentCycles(r.Context(), limit, kind)
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get recent cycles")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycles")
		return
	}

	response := map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetCycle returns a specific cycle by ID
func (ws *WebServer) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	if !ws.requireStore(w) {
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid cycle ID")
		return
	}

	cycle, err := ws.store.GetCycleByID(r.Context(), id)
	if errors.Is(err, state.ErrNotFound) {
		ws.writeErrorResponse(w, http.StatusNotFound, "Cycle not found")
		return
	}
	if err != nil {
		ws.logger.Error().Err(err).Int64("cycleId", id).Msg("Failed to get cycle")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycle")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// handleGetLatestCycle returns the most recent cycle
func (ws *WebServer) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	if !ws.requireStore(w) {
		return
	}
	cycle, err := ws.store.GetLatestCycle(r.Context())
	if errors.Is(err, state.ErrNotFound) {
		ws.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
		return
	}
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get latest cycle")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve latest cycle")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// handleGetParameters returns the active engine parameters
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	if !ws.requireStore(w) {
		return
	}
	params, err := ws.store.LoadActiveParameters(r.Context(), ws.configName)
	if errors.Is(err, state.ErrNotFound) {
		ws.writeErrorResponse(w, http.StatusNotFound, "No active parameters")
		return
	}
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get engine parameters")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve engine parameters")
		return
	}

	response := map[string]interface{}{
		"parameters": params,
		"timestamp":  time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPerformance returns the aggregated liquidation results
func (ws *WebServer) handleGetPerformance(w http.ResponseWriter, r *http.Request) {
	if !ws.requireStore(w) {
		return
	}
	summary, err := ws.store.GetProfitSummary(r.Context())
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get profit summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve performance metrics")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

func (ws *WebServer) requireStore(w http.ResponseWriter) bool {
	if ws.store == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Database not configured")
		return false
	}
	return true
}

// parseLimit reads ?limit=, ignoring values that are not positive or exceed maxLimit (0: no
// maximum).
func parseLimit(r *http.Request, def, maxLimit int) int {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def
	}
	parsedLimit, err := strconv.Atoi(limitStr)
	if err != nil || parsedLimit <= 0 || (maxLimit > 0 && parsedLimit > maxLimit) {
		return def
	}
	return parsedLimit
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		ws.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
