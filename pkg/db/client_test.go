package db

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error is not a violation")
	}
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "ux_vouchers_reservation_enabled"}, "ux_vouchers_reservation_enabled") {
		t.Fatal("expected pgx unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "other"}, "ux_vouchers_reservation_enabled") {
		t.Fatal("constraint mismatch should not match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatal("foreign key violation is not unique")
	}
	if !IsUniqueViolation(&pq.Error{Code: "23505"}, "") {
		t.Fatal("expected lib/pq unique violation")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: vouchers.voucher_code"), "") {
		t.Fatal("expected sqlite unique violation")
	}
}

func TestUniqueViolationFromSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:unique_violation?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.Exec(`CREATE TABLE keyed (k TEXT PRIMARY KEY)`).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := conn.Exec(`INSERT INTO keyed (k) VALUES ('a')`).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	err = conn.Exec(`INSERT INTO keyed (k) VALUES ('a')`).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestDialect(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	if client.Dialect() != DialectSQLite {
		t.Fatalf("unexpected dialect %q", client.Dialect())
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := newTestDB(t)
	client := NewFromConn(conn)

	func() {
		defer func() { _ = recover() }()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var count int64
	if err := conn.Model(&testModel{}).Where("name = ?", "panicked").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic to roll back, found %d rows", count)
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{DSN: "  "}, nil); err == nil {
		t.Fatal("expected blank dsn to fail")
	}
}

func TestNewOpensSQLiteAndLogsDialect(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Format: logger.FormatJSON, Output: buf})
	cfg := config.DBConfig{
		DSN:          filepath.Join(t.TempDir(), "bookings.db"),
		UseSQLite:    true,
		MaxOpenConns: 1,
	}

	client, err := New(context.Background(), cfg, logg)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if client.Dialect() != DialectSQLite {
		t.Fatalf("expected %s dialect, got %s", DialectSQLite, client.Dialect())
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if !strings.Contains(buf.String(), `"db_dialect":"sqlite3"`) {
		t.Fatalf("expected connection log with dialect, got %s", buf.String())
	}
}

func TestQueryLoggerReportsFailuresAndSlowQueries(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Format: logger.FormatJSON, Output: buf})
	ql := newQueryLogger(logg, 10*time.Millisecond)
	sqlFn := func() (string, int64) { return "SELECT 1", 1 }

	ql.Trace(context.Background(), time.Now(), sqlFn, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast query should not log, got %s", buf.String())
	}

	ql.Trace(context.Background(), time.Now(), sqlFn, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("record not found should not log, got %s", buf.String())
	}

	ql.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn, nil)
	if !strings.Contains(buf.String(), "slow db query") {
		t.Fatalf("expected slow query warning, got %s", buf.String())
	}

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), sqlFn, errors.New("syntax"))
	if !strings.Contains(buf.String(), "db query failed") || !strings.Contains(buf.String(), "SELECT 1") {
		t.Fatalf("expected failure entry, got %s", buf.String())
	}

	buf.Reset()
	ql.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), sqlFn, errors.New("syntax"))
	if buf.Len() != 0 {
		t.Fatalf("silent mode should not log, got %s", buf.String())
	}
}
