package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

// Client manages a ClickHouse connection pool behind database/sql.
type Client struct {
	db *sql.DB
}

func defaultConfig() *ClientConfig {
	return &ClientConfig{
		Port:            9000,
		Database:        "default",
		User:            "default",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
	}
}

// NewClient opens the pool and pings the server.
func NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}

	db := ch.OpenDB(buildOptions(cfg))
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Client{db: db}, nil
}

// NewFromDB wraps an existing pool.
func NewFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func (c *Client) DB() *sql.DB {
	return c.db
}

func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func buildOptions(cfg *ClientConfig) *ch.Options {
	settings := ch.Settings{}
	if cfg.MaxExecTime > 0 {
		settings["max_execution_time"] = int(cfg.MaxExecTime.Seconds())
	}
	if cfg.AsyncInsert {
		settings["async_insert"] = 1
		if cfg.WaitForAsync {
			settings["wait_for_async_insert"] = 1
		}
	}

	protocol := ch.Native
	if cfg.UseHTTP {
		protocol = ch.HTTP
	}
	return &ch.Options{
		Addr:     []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Protocol: protocol,
		Auth: ch.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings:    settings,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
		Compression: &ch.Compression{Method: ch.CompressionLZ4},
	}
}
