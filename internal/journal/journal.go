// Package journal persists executed trades to SQLite for analysis and audit.
// The in-memory ledger stays authoritative; the journal is write-behind.
package journal

import (
	"database/sql"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trading-botv1/internal/portfolio"
)

// Journal is an append-only trade log backed by SQLite.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id          TEXT PRIMARY KEY,
		symbol      TEXT NOT NULL,
		side        TEXT NOT NULL,
		qty         INTEGER NOT NULL,
		price       TEXT NOT NULL,
		value       TEXT NOT NULL,
		realized    TEXT NOT NULL,
		strategy    TEXT,
		reason      TEXT,
		executed_at DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_executed_at ON trades(executed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("trade journal opened", "path", path)
	return &Journal{db: db}, nil
}

// RecordTrade persists one executed trade. Prices are stored as decimal
// strings to keep exact values.
func (j *Journal) RecordTrade(t portfolio.Trade, strategy, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO trades (id, symbol, side, qty, price, value, realized, strategy, reason, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Symbol,
		string(t.Side),
		t.Qty,
		t.Price.String(),
		t.Value.String(),
		t.Realized.String(),
		strategy,
		reason,
		t.Timestamp.Format(time.RFC3339),
	)
	return err
}

// Record is one journalled trade row.
type Record struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Qty        int64  `json:"qty"`
	Price      string `json:"price"`
	Value      string `json:"value"`
	Realized   string `json:"realized"`
	Strategy   string `json:"strategy"`
	Reason     string `json:"reason"`
	ExecutedAt string `json:"executed_at"`
}

// Recent returns the last limit trades, newest first.
func (j *Journal) Recent(limit int) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, symbol, side, qty, price, value, realized, strategy, reason, executed_at
		 FROM trades ORDER BY executed_at DESC, created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Side, &r.Qty, &r.Price,
			&r.Value, &r.Realized, &r.Strategy, &r.Reason, &r.ExecutedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
