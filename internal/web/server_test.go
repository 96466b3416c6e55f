package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/burrowland/liquidator/internal/cache"
	"github.com/burrowland/liquidator/internal/config"
	"github.com/burrowland/liquidator/internal/logger"
	"github.com/burrowland/liquidator/internal/state"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	pingErr   error
	latest    *types.CycleSnapshot
	cycles    []types.CycleSnapshot
	params    *state.StoredParameters
	summary   *state.ProfitSummary
	gotLimit  int
	gotKind   types.CycleKind
	gotID     int64
	gotConfig string
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStore) GetRecentCycles(ctx context.Context, limit int, kind types.CycleKind) ([]types.CycleSnapshot, error) {
	f.gotLimit, f.gotKind = limit, kind
	return f.cycles, nil
}

func (f *fakeStore) GetLatestCycle(ctx context.Context) (*types.CycleSnapshot, error) {
	if f.latest == nil {
		return nil, state.ErrNotFound
	}
	return f.latest, nil
}

func (f *fakeStore) GetCycleByID(ctx context.Context, snapshotID int64) (*types.CycleSnapshot, error) {
	f.gotID = snapshotID
	for i := range f.cycles {
		if f.cycles[i].SnapshotID == snapshotID {
			return &f.cycles[i], nil
		}
	}
	return nil, state.ErrNotFound
}

func (f *fakeStore) LoadActiveParameters(ctx context.Context, configName string) (*state.StoredParameters, error) {
	f.gotConfig = configName
	if f.params == nil {
		return nil, state.ErrNotFound
	}
	return f.params, nil
}

func (f *fakeStore) GetProfitSummary(ctx context.Context) (*state.ProfitSummary, error) {
	if f.summary == nil {
		return nil, errors.New("connection reset")
	}
	return f.summary, nil
}

func setupTestCache(t *testing.T) *cache.RedisCache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func get(t *testing.T, ws *WebServer, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func executedCycle(id int64) types.CycleSnapshot {
	return types.CycleSnapshot{
		SnapshotID:  id,
		CycleNumber: int(id) + 100,
		Kind:        types.CycleLiquidation,
		Outcome:     types.OutcomeExecuted,
		Timestamp:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		AccountID:   "rekt.near",
		ProfitUSD:   decimal.RequireFromString("12.5"),
	}
}

func TestHealth(t *testing.T) {
	require := require.New(t)

	latest := executedCycle(1)
	store := &fakeStore{latest: &latest}
	ws := NewWebServer("", store, nil, config.DEFAULT_PARAMETERS_CONFIG_NAME)

	for _, path := range []string{"/health", "/api/health"} {
		rec, body := get(t, ws, path)
		require.Equal(http.StatusOK, rec.Code, path)
		require.Equal("OK", body["status"])
		status := body["liquidator_status"].(map[string]interface{})
		require.Equal(true, status["database_healthy"])
		info := status["cycle_info"].(map[string]interface{})
		require.Equal(float64(101), info["current_cycle"])
		require.Equal("executed", info["last_cycle_status"])
	}
	rec, _ := get(t, ws, "/health")
	require.Equal("*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthDegraded(t *testing.T) {
	require := require.New(t)

	ws := NewWebServer("", &fakeStore{pingErr: errors.New("connection refused")}, nil, "default")
	rec, body := get(t, ws, "/health")
	require.Equal(http.StatusServiceUnavailable, rec.Code)
	require.Equal("DEGRADED", body["status"])

	failed := executedCycle(2)
	failed.Outcome = types.OutcomeFailed
	ws = NewWebServer("", &fakeStore{latest: &failed}, nil, "default")
	rec, _ = get(t, ws, "/health")
	require.Equal(http.StatusServiceUnavailable, rec.Code)
}

func TestHealthWithoutDatabase(t *testing.T) {
	require := require.New(t)

	ws := NewWebServer("", nil, nil, "default")
	rec, body := get(t, ws, "/health")
	require.Equal(http.StatusOK, rec.Code)
	status := body["liquidator_status"].(map[string]interface{})
	require.Equal(false, status["database_configured"])

	rec, _ = get(t, ws, "/api/cycles")
	require.Equal(http.StatusServiceUnavailable, rec.Code)
	rec, _ = get(t, ws, "/api/accounts")
	require.Equal(http.StatusServiceUnavailable, rec.Code)
}

func TestGetCycles(t *testing.T) {
	require := require.New(t)

	store := &fakeStore{cycles: []types.CycleSnapshot{executedCycle(2), executedCycle(1)}}
	ws := NewWebServer("", store, nil, "default")

	rec, body := get(t, ws, "/api/cycles?limit=5&kind=rebalance")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal(5, store.gotLimit)
	require.Equal(types.CycleRebalance, store.gotKind)
	require.Equal(float64(2), body["count"])

	// out of range limits fall back to the default
	_, body = get(t, ws, "/api/cycles?limit=1000")
	require.Equal(defaultCycleLimit, store.gotLimit)
	require.Equal(types.CycleKind(""), store.gotKind)
	require.Equal(float64(defaultCycleLimit), body["limit"])

	rec, body = get(t, ws, "/api/cycles?kind=swap")
	require.Equal(http.StatusBadRequest, rec.Code)
	require.Equal(true, body["error"])
}

func TestGetCycleByID(t *testing.T) {
	require := require.New(t)

	store := &fakeStore{cycles: []types.CycleSnapshot{executedCycle(7)}}
	ws := NewWebServer("", store, nil, "default")

	rec, _ := get(t, ws, "/api/cycles/7")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal(int64(7), store.gotID)

	var cycle types.CycleSnapshot
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &cycle))
	require.Equal("rekt.near", cycle.AccountID)
	require.True(cycle.ProfitUSD.Equal(decimal.RequireFromString("12.5")))

	rec, _ = get(t, ws, "/api/cycles/8")
	require.Equal(http.StatusNotFound, rec.Code)

	// ids must be numeric
	rec, _ = get(t, ws, "/api/cycles/abc")
	require.Equal(http.StatusNotFound, rec.Code)
}

func TestGetLatestCycle(t *testing.T) {
	require := require.New(t)

	store := &fakeStore{}
	ws := NewWebServer("", store, nil, "default")
	rec, _ := get(t, ws, "/api/cycles/latest")
	require.Equal(http.StatusNotFound, rec.Code)

	latest := executedCycle(3)
	store.latest = &latest
	rec, body := get(t, ws, "/api/cycles/latest")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal(float64(3), body["snapshot_id"])
}

func TestGetAccounts(t *testing.T) {
	require := require.New(t)
	c := setupTestCache(t)
	ws := NewWebServer("", nil, c, "default")

	rec, _ := get(t, ws, "/api/accounts")
	require.Equal(http.StatusNotFound, rec.Code)

	require.NoError(c.SetRanking(context.Background(), []types.AccountSummary{
		{AccountID: "rekt.near", HealthFactor: decimal.RequireFromString("0.75")},
		{AccountID: "bob.near", HealthFactor: decimal.RequireFromString("0.99")},
		{AccountID: "alice.near", HealthFactor: decimal.RequireFromString("1.6")},
	}))

	rec, body := get(t, ws, "/api/accounts?limit=2")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal(float64(2), body["count"])
	require.Equal(float64(3), body["total"])
	accounts := body["accounts"].([]interface{})
	require.Equal("rekt.near", accounts[0].(map[string]interface{})["account_id"])
}

func TestGetPools(t *testing.T) {
	require := require.New(t)
	c := setupTestCache(t)
	ws := NewWebServer("", nil, c, "default")

	rec, _ := get(t, ws, "/api/pools")
	require.Equal(http.StatusNotFound, rec.Code)

	require.NoError(c.SetPools(context.Background(), []types.RawPool{{ID: 0, Kind: types.PoolKindSimple}}))
	rec, body := get(t, ws, "/api/pools")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal(float64(1), body["count"])
}

func TestGetParameters(t *testing.T) {
	require := require.New(t)

	store := &fakeStore{}
	ws := NewWebServer("", store, nil, "aggressive")
	rec, _ := get(t, ws, "/api/parameters")
	require.Equal(http.StatusNotFound, rec.Code)
	require.Equal("aggressive", store.gotConfig)

	store.params = &state.StoredParameters{ParamsID: 4, Version: 2, ConfigName: "aggressive", IsActive: true, Parameters: config.DefaultEngineParameters}
	rec, body := get(t, ws, "/api/parameters")
	require.Equal(http.StatusOK, rec.Code)
	params := body["parameters"].(map[string]interface{})
	require.Equal(float64(2), params["version"])
}

func TestGetPerformance(t *testing.T) {
	require := require.New(t)

	store := &fakeStore{}
	ws := NewWebServer("", store, nil, "default")
	rec, _ := get(t, ws, "/api/performance")
	require.Equal(http.StatusInternalServerError, rec.Code)

	store.summary = &state.ProfitSummary{TotalProfitUSD: decimal.RequireFromString("42.5"), TotalCycles: 10, ExecutedCycles: 3}
	rec, body := get(t, ws, "/api/performance")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal("42.5", body["total_profit_usd"])
	require.Equal(float64(3), body["executed_cycles"])
}

func TestMetricsEndpoint(t *testing.T) {
	require := require.New(t)

	ws := NewWebServer("", nil, nil, "default")
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(http.StatusOK, rec.Code)
	require.Contains(rec.Body.String(), "liquidator_accounts_scanned")
}

func TestHandlerErrorsReachConfiguredWriters(t *testing.T) {
	require := require.New(t)

	var out bytes.Buffer
	logger.Initialize("info", &out)
	t.Cleanup(func() { logger.Initialize("info") })

	ws := NewWebServer("", &fakeStore{}, nil, "default")
	rec, _ := get(t, ws, "/api/performance")
	require.Equal(http.StatusInternalServerError, rec.Code)
	require.Contains(out.String(), "Failed to get profit summary")
	require.Contains(out.String(), `"component":"web_server"`)
}
