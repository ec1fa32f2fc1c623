package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/pkg/logger"
)

// CHBarStore reads OHLCV bars from the <db>.bars table.
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *logger.Logger
}

var _ domrepo.BarStore = (*CHBarStore)(nil)

func NewCHBarStore(db *sql.DB, database string, l *logger.Logger) *CHBarStore {
	return &CHBarStore{db: db, table: database + ".bars", l: l}
}

func (s *CHBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf models.Timeframe) ([]models.MarketBar, error) {
	const qtpl = `
        SELECT ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND timeframe = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	start := time.Now()
	out, err := s.query(ctx, fmt.Sprintf(qtpl, s.table), symbol, tf, 256, symbol, string(tf), from, to)
	if err != nil {
		s.l.Error("clickhouse get_bars failed",
			logger.String("symbol", symbol),
			logger.String("tf", string(tf)),
			logger.Error(err))
		return nil, fmt.Errorf("get bars: %w", err)
	}
	s.l.Debug("clickhouse get_bars ok",
		logger.String("symbol", symbol),
		logger.String("tf", string(tf)),
		logger.Int("rows", len(out)),
		logger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

// GetLatestNBars returns up to n of the most recent bars, oldest first.
func (s *CHBarStore) GetLatestNBars(ctx context.Context, symbol string, n int, tf models.Timeframe) ([]models.MarketBar, error) {
	const qtpl = `
        SELECT ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND timeframe = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	start := time.Now()
	out, err := s.query(ctx, fmt.Sprintf(qtpl, s.table), symbol, tf, n, symbol, string(tf), n)
	if err != nil {
		s.l.Error("clickhouse latest_bars failed",
			logger.String("symbol", symbol),
			logger.String("tf", string(tf)),
			logger.Int("limit", n),
			logger.Error(err))
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("clickhouse latest_bars ok",
		logger.String("symbol", symbol),
		logger.String("tf", string(tf)),
		logger.Int("rows", len(out)),
		logger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func (s *CHBarStore) query(ctx context.Context, q, symbol string, tf models.Timeframe, hint int, args ...interface{}) ([]models.MarketBar, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.MarketBar, 0, hint)
	for rows.Next() {
		b := models.MarketBar{Symbol: symbol, Timeframe: tf}
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
