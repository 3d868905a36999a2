package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// Client owns the pooled GORM connection shared by repositories.
type Client struct {
	conn *gorm.DB
}

// New opens the configured database and applies pool limits. SQLite is only
// used for local runs; the DSN is then a file path.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("database DSN is required")
	}

	var dialector gorm.Dialector
	if cfg.UseSQLite {
		dialector = sqlite.Open(dsn)
	} else {
		dialector = postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true})
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}

	client := &Client{conn: conn}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	limitPool(sqlDB, cfg)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s database: %w", client.Dialect(), err)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"db_dialect":        client.Dialect(),
		"db_max_open_conns": cfg.MaxOpenConns,
	}), "database connection established")
	return client, nil
}

// limitPool applies the positive pool settings and leaves database/sql
// defaults for the rest.
func limitPool(sqlDB *sql.DB, cfg config.DBConfig) {
	if n := cfg.MaxOpenConns; n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := cfg.MaxIdleConns; n > 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if d := cfg.ConnMaxLifetime; d > 0 {
		sqlDB.SetConnMaxLifetime(d)
	}
	if d := cfg.ConnMaxIdleTime; d > 0 {
		sqlDB.SetConnMaxIdleTime(d)
	}
}

// NewFromConn wraps an already opened connection, mostly for tests.
func NewFromConn(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

// Dialect names the goose dialect for the open connection.
func (c *Client) Dialect() string {
	if c.conn.Dialector.Name() == "sqlite" {
		return DialectSQLite
	}
	return DialectPostgres
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	return err
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	return err
}

// WithTx runs fn in a transaction. Returning an error or panicking rolls it back.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
