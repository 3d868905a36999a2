// Package dbtest opens in-memory SQLite databases carrying the booking schema
// for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var seq atomic.Int64

// JSON columns are BLOB so json.RawMessage fields scan back as bytes.
var schema = []string{
	`CREATE TABLE resources (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  title TEXT NOT NULL,
  booking_type TEXT NOT NULL,
  enabled INTEGER NOT NULL DEFAULT 1,
  publication_status TEXT NOT NULL DEFAULT 'draft',
  attributes BLOB,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE reservations (
  id TEXT PRIMARY KEY,
  resource_id TEXT NOT NULL,
  owner_id TEXT NOT NULL,
  guest_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  hold_expires_at DATETIME,
  start_date_time TEXT,
  end_date_time TEXT,
  check_in_date TEXT,
  check_out_date TEXT,
  enabled INTEGER NOT NULL DEFAULT 1,
  payment_provider TEXT,
  payment_reference TEXT,
  version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE payment_ledger_entries (
  id TEXT PRIMARY KEY,
  reservation_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  provider_event_id TEXT NOT NULL,
  provider_payment_id TEXT,
  event_type TEXT NOT NULL,
  amount TEXT NOT NULL DEFAULT '0',
  currency TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  raw_payload TEXT NOT NULL,
  processed_at DATETIME NOT NULL,
  CONSTRAINT ux_payment_ledger_provider_event UNIQUE (provider_event_id)
)`,
	`CREATE TABLE vouchers (
  id TEXT PRIMARY KEY,
  reservation_id TEXT NOT NULL,
  voucher_code TEXT NOT NULL UNIQUE,
  voucher_url TEXT NOT NULL,
  qr_payload TEXT NOT NULL,
  enabled INTEGER NOT NULL DEFAULT 1,
  issued_at DATETIME NOT NULL,
  created_at DATETIME
)`,
	`CREATE UNIQUE INDEX ux_vouchers_reservation_enabled ON vouchers (reservation_id) WHERE enabled`,
	`CREATE TABLE reservation_audit_logs (
  id TEXT PRIMARY KEY,
  reservation_id TEXT NOT NULL,
  action TEXT NOT NULL,
  actor TEXT NOT NULL,
  previous_status TEXT,
  next_status TEXT,
  details BLOB,
  created_at DATETIME
)`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
)`,
}

// Open returns a fresh database private to the calling test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}
