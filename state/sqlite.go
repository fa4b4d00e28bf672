package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS position_state (
	symbol TEXT PRIMARY KEY,
	long_open INTEGER NOT NULL,
	short_open INTEGER NOT NULL,
	position_data TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// SQLiteStore keeps one row per symbol, so a save touches only its own
// symbol and needs no document-wide lock.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("empty state path")
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, symbol string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT long_open, short_open, position_data FROM position_state WHERE symbol = ?`, symbol)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, symbol string, e Entry) error {
	data, err := json.Marshal(e.clone().PositionData)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO position_state (symbol, long_open, short_open, position_data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			long_open = excluded.long_open,
			short_open = excluded.short_open,
			position_data = excluded.position_data,
			updated_at = excluded.updated_at`,
		symbol, e.LongOpen, e.ShortOpen, string(data), time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) Dump(ctx context.Context) (Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, long_open, short_open, position_data FROM position_state ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doc := Document{}
	for rows.Next() {
		var (
			symbol     string
			long, shrt bool
			data       string
		)
		if err := rows.Scan(&symbol, &long, &shrt, &data); err != nil {
			return nil, err
		}
		e := Entry{LongOpen: long, ShortOpen: shrt}
		if err := json.Unmarshal([]byte(data), &e.PositionData); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, symbol, err)
		}
		doc[symbol] = e
	}
	return doc, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanEntry(row *sql.Row) (Entry, error) {
	var (
		e    Entry
		data string
	)
	if err := row.Scan(&e.LongOpen, &e.ShortOpen, &data); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(data), &e.PositionData); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return e, nil
}
