package repository

import "fmt"

// Schema returns the idempotent DDL for the bar and signal tables in db.
func Schema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars (
            symbol LowCardinality(String),
            timeframe LowCardinality(String),
            ts DateTime64(3, 'UTC'),
            open Decimal(38, 12),
            high Decimal(38, 12),
            low Decimal(38, 12),
            close Decimal(38, 12),
            volume Decimal(38, 12)
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, timeframe, ts)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signals (
            id UUID,
            symbol LowCardinality(String),
            direction LowCardinality(String),
            score Float64,
            confidence Float64,
            regime LowCardinality(String),
            primary_timeframe LowCardinality(String),
            priority UInt8,
            entry_price Nullable(Decimal(38, 12)),
            stop_loss Nullable(Decimal(38, 12)),
            take_profit Nullable(Decimal(38, 12)),
            created_at DateTime64(3, 'UTC'),
            expires_at DateTime64(3, 'UTC'),
            payload String
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, created_at, id)
        TTL toDateTime(created_at) + INTERVAL 90 DAY`, db),
	}
}
