package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity TEXT NOT NULL,
	entry_price REAL NOT NULL,
	stop_loss REAL NOT NULL,
	take_profit REAL NOT NULL,
	protected INTEGER NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME,
	close_reason TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol_side ON trades(symbol, side, close_time);

CREATE TABLE IF NOT EXISTS balances (
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	balance REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_balances_time ON balances(time);
`
