package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hedger/market"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('trades','balances')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["trades"])
	assert.True(t, found["balances"])
}

func TestSQLiteOpenAndClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	open := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tradeID, err := j.RecordOpen(ctx, Trade{
		Symbol:     "BTCUSDT",
		Side:       market.Long,
		Quantity:   "0.012",
		EntryPrice: 64000,
		StopLoss:   63000,
		TakeProfit: 66000,
		OpenTime:   open,
		Protected:  true,
	})
	require.NoError(t, err)
	assert.Len(t, tradeID, 26)

	trades, err := j.List(ctx, "BTCUSDT", 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Open())
	assert.Equal(t, tradeID, trades[0].ID)
	assert.Equal(t, market.Long, trades[0].Side)
	assert.Equal(t, "0.012", trades[0].Quantity)
	assert.True(t, trades[0].Protected)
	assert.True(t, open.Equal(trades[0].OpenTime))

	closed := open.Add(72 * time.Hour)
	require.NoError(t, j.RecordClose(ctx, "BTCUSDT", market.Long, closed, ReasonTimeout))

	trades, err = j.List(ctx, "BTCUSDT", 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.False(t, trades[0].Open())
	assert.True(t, closed.Equal(trades[0].CloseTime))
	assert.Equal(t, ReasonTimeout, trades[0].CloseReason)
}

func TestSQLiteCloseTouchesOnlyMatchingSide(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err := j.RecordOpen(ctx, Trade{Symbol: "ETHUSDT", Side: market.Long, Quantity: "1", OpenTime: ts})
	require.NoError(t, err)
	_, err = j.RecordOpen(ctx, Trade{Symbol: "ETHUSDT", Side: market.Short, Quantity: "1", OpenTime: ts.Add(time.Minute)})
	require.NoError(t, err)

	require.NoError(t, j.RecordClose(ctx, "ETHUSDT", market.Short, ts.Add(time.Hour), ReasonExchange))

	trades, err := j.List(ctx, "ETHUSDT", 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	// newest first
	assert.Equal(t, market.Short, trades[0].Side)
	assert.False(t, trades[0].Open())
	assert.Equal(t, market.Long, trades[1].Side)
	assert.True(t, trades[1].Open())
}

func TestSQLiteCloseWithoutOpenRow(t *testing.T) {
	t.Parallel()
	j, _ := newTestSQLite(t)
	assert.NoError(t, j.RecordClose(context.Background(), "XRPUSDT", market.Long, time.Now(), ReasonExchange))
}

func TestSQLiteListFilterAndLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, sym := range []string{"BTCUSDT", "ETHUSDT", "BTCUSDT"} {
		_, err := j.RecordOpen(ctx, Trade{Symbol: sym, Side: market.Long, Quantity: "1", OpenTime: ts.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	all, err := j.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	btc, err := j.List(ctx, "BTCUSDT", 0)
	require.NoError(t, err)
	assert.Len(t, btc, 2)

	one, err := j.List(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "BTCUSDT", one[0].Symbol)
}

func TestSQLiteRecordBalance(t *testing.T) {
	t.Parallel()
	j, path := newTestSQLite(t)

	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordBalance(context.Background(), BalanceSnapshot{Time: ts, Symbol: "BTCUSDT", Balance: 1234.5}))
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var bal float64
	require.NoError(t, db.QueryRow(`SELECT balance FROM balances WHERE symbol = ?`, "BTCUSDT").Scan(&bal))
	assert.Equal(t, 1234.5, bal)
}
