package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/pkg/id"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// RecordOpen inserts t and returns its ID. An empty t.ID gets a ULID
// stamped with t.OpenTime.
func (j *SQLite) RecordOpen(ctx context.Context, t Trade) (string, error) {
	if t.ID == "" {
		t.ID = id.At(t.OpenTime)
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trades
		(trade_id, symbol, side, quantity, entry_price, stop_loss, take_profit, protected, open_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, string(t.Side), t.Quantity, t.EntryPrice,
		t.StopLoss, t.TakeProfit, t.Protected, t.OpenTime.UTC(),
	)
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// RecordClose stamps the newest open trade for (symbol, side). Closing a
// side with no open trade is not an error: positions adopted from the
// exchange never had an open row.
func (j *SQLite) RecordClose(ctx context.Context, symbol string, side market.Side, at time.Time, reason string) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE trades SET close_time = ?, close_reason = ?
		WHERE trade_id = (
			SELECT trade_id FROM trades
			WHERE symbol = ? AND side = ? AND close_time IS NULL
			ORDER BY trade_id DESC LIMIT 1
		)`,
		at.UTC(), reason, symbol, string(side),
	)
	return err
}

func (j *SQLite) RecordBalance(ctx context.Context, b BalanceSnapshot) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO balances (time, symbol, balance) VALUES (?, ?, ?)`,
		b.Time.UTC(), b.Symbol, b.Balance,
	)
	return err
}

// List returns trades newest first. An empty symbol lists every symbol;
// limit <= 0 means no limit.
func (j *SQLite) List(ctx context.Context, symbol string, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT trade_id, symbol, side, quantity, entry_price, stop_loss, take_profit,
		       protected, open_time, close_time, close_reason
		FROM trades
		WHERE ? = '' OR symbol = ?
		ORDER BY trade_id DESC
		LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var (
			rec       Trade
			side      string
			closeTime sql.NullTime
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Symbol,
			&side,
			&rec.Quantity,
			&rec.EntryPrice,
			&rec.StopLoss,
			&rec.TakeProfit,
			&rec.Protected,
			&rec.OpenTime,
			&closeTime,
			&rec.CloseReason,
		); err != nil {
			return nil, err
		}
		rec.Side = market.Side(side)
		rec.OpenTime = rec.OpenTime.UTC()
		if closeTime.Valid {
			rec.CloseTime = closeTime.Time.UTC()
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
