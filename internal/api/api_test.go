package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/position"
)

func testStatus() StatusProvider {
	return StatusFunc(func() []LoopStatus {
		return []LoopStatus{
			{
				Symbol:   "BTCUSDT",
				Interval: "1h",
				Running:  true,
				Positions: []position.Record{
					{Side: market.Long, EntryTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EntryPrice: 42000},
				},
			},
			{Symbol: "ETHUSDT", Interval: "4h", LastError: "insufficient backfill"},
		}
	})
}

func get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	NewRouter(testStatus()).ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPositions(t *testing.T) {
	rec := get(t, "/positions")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []LoopStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
	require.Len(t, got[0].Positions, 1)
	assert.Equal(t, market.Long, got[0].Positions[0].Side)
	assert.Equal(t, 42000.0, got[0].Positions[0].EntryPrice)
	assert.Equal(t, "insufficient backfill", got[1].LastError)
}

func TestPositionsBySymbol(t *testing.T) {
	rec := get(t, "/positions/ETHUSDT")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"interval":"4h"`)

	rec = get(t, "/positions/XRPUSDT")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
