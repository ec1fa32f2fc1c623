package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
)

// CHSignalStore is the ClickHouse audit trail of accepted signals.
// The full signal is kept as JSON in payload; the other columns exist for querying.
type CHSignalStore struct {
	db    *sql.DB
	table string
}

var _ domrepo.SignalStore = (*CHSignalStore)(nil)

func NewCHSignalStore(db *sql.DB, database string) *CHSignalStore {
	return &CHSignalStore{db: db, table: database + ".signals"}
}

func (s *CHSignalStore) Init(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHSignalStore) Store(ctx context.Context, sig *models.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, symbol, direction, score, confidence, regime, primary_timeframe,
        priority, entry_price, stop_loss, take_profit, created_at, expires_at, payload)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, q,
		sig.ID,
		sig.Symbol,
		string(sig.Direction),
		sig.ConfluenceScore,
		sig.Confidence,
		string(sig.Regime),
		string(sig.PrimaryTimeframe),
		uint8(sig.Priority),
		sig.EntryPrice,
		sig.StopLoss,
		sig.TakeProfit,
		sig.CreatedAt,
		sig.ExpiresAt,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("store signal %s: %w", sig.ID, err)
	}
	return nil
}

// Recent returns up to limit signals for symbol, newest first.
func (s *CHSignalStore) Recent(ctx context.Context, symbol string, limit int) ([]*models.Signal, error) {
	q := fmt.Sprintf("SELECT payload FROM %s FINAL WHERE symbol = ? ORDER BY created_at DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("recent signals: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Signal, 0, limit)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		var sig models.Signal
		if err := json.Unmarshal([]byte(payload), &sig); err != nil {
			return nil, fmt.Errorf("decode signal: %w", err)
		}
		out = append(out, &sig)
	}
	return out, rows.Err()
}

func (s *CHSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHSignalStore) Close() error {
	return nil
}

