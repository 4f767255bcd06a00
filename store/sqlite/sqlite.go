/*
Package sqlite provides a SQLite-backed implementation of warehousing.TxStore.

PURPOSE:
  Persists warehouses, bookings and their stage records, the capacity
  movement ledger and the audit trail. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  capacity_movements and audit_log are only ever INSERTed into.
  Corrections are new movements, never edits.

KEY TABLES:
  warehouses:          Capacity, commodities (JSON), ratings (JSON)
  bookings:            Status + stage; from_day keeps the numeric YYYYMMDD
                       next to the from_date text
  weighbridges:        One per booking (UNIQUE booking_id)
  deposits:            One per booking (UNIQUE booking_id)
  loans:               Many per booking
  shipments:           Many per booking
  invoices:            Invoices and bills
  capacity_movements:  Immutable capacity ledger
  audit_log:           Who did which transition when

OPTIMISTIC CONCURRENCY:
  warehouses, bookings and loans carry a version column. Updates are
  "UPDATE ... WHERE id = ? AND version = ?"; zero rows affected means
  somebody else won and the caller gets generic.ErrConcurrentModification.

CONCURRENCY:
  WithTx serializes writers with a mutex and runs fn against the *sql.Tx.
  Queries never take the mutex themselves, so code inside a transaction can
  call any read without deadlocking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/warehouse.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := warehousing.NewService(store, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements warehousing.Store against a dbtx.
type queries struct {
	db dbtx
}

// Store implements warehousing.TxStore using SQLite.
type Store struct {
	queries
	sqlDB *sql.DB
	mu    sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	store := &Store{queries: queries{db: db}, sqlDB: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS warehouses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		manager_id TEXT,
		address TEXT,
		total_capacity TEXT NOT NULL,
		filled_capacity TEXT NOT NULL,
		capacity_unit TEXT NOT NULL,
		commodities_json TEXT NOT NULL DEFAULT '[]',
		ratings_json TEXT NOT NULL DEFAULT '[]',
		avg_rating TEXT NOT NULL DEFAULT '0',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_warehouses_owner
		ON warehouses(owner_id);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		booking_no TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		warehouse_id TEXT NOT NULL REFERENCES warehouses(id),
		from_date TEXT NOT NULL,
		from_day INTEGER NOT NULL,
		to_date TEXT NOT NULL,
		to_day INTEGER NOT NULL,
		contact_json TEXT NOT NULL DEFAULT '{}',
		product_name TEXT,
		requested_capacity TEXT NOT NULL,
		capacity_unit TEXT NOT NULL,
		items_json TEXT NOT NULL DEFAULT '[]',
		total_price TEXT NOT NULL,
		pending_price TEXT NOT NULL,
		total_weight TEXT NOT NULL,
		no_of_bags INTEGER NOT NULL DEFAULT 0,
		bag_size TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		stage INTEGER NOT NULL,
		accepted_by TEXT,
		rejected_by TEXT,
		reasons_json TEXT NOT NULL DEFAULT '[]',
		deposit_id TEXT,
		weighbridge_id TEXT,
		grade_json TEXT,
		deposit_expiry TEXT,
		withdrawal_id TEXT,
		committed_capacity TEXT NOT NULL,
		released_capacity TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_user
		ON bookings(user_id);
	CREATE INDEX IF NOT EXISTS idx_bookings_warehouse_status
		ON bookings(warehouse_id, status);

	-- Hot path of the expiry sweep
	CREATE INDEX IF NOT EXISTS idx_bookings_expiry
		ON bookings(status, stage, from_day);

	CREATE TABLE IF NOT EXISTS weighbridges (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL UNIQUE REFERENCES bookings(id),
		warehouse_id TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT,
		gross TEXT NOT NULL,
		tare TEXT NOT NULL,
		net TEXT NOT NULL,
		unit TEXT NOT NULL,
		truck_number TEXT,
		driver_name TEXT,
		recorded_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deposits (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL UNIQUE REFERENCES bookings(id),
		warehouse_id TEXT NOT NULL,
		deposit_date TEXT NOT NULL,
		slot TEXT,
		commodity_type TEXT NOT NULL,
		revalidation_date TEXT,
		expiry_date TEXT,
		total_weight TEXT NOT NULL,
		weight_unit TEXT NOT NULL,
		total_price TEXT NOT NULL,
		status TEXT NOT NULL,
		grade TEXT,
		grade_json TEXT,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deposits_warehouse
		ON deposits(warehouse_id);

	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL REFERENCES bookings(id),
		warehouse_id TEXT NOT NULL,
		applicant_id TEXT NOT NULL,
		pledge TEXT NOT NULL,
		amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		loan_type TEXT,
		loan_term TEXT,
		status TEXT NOT NULL,
		terminated INTEGER NOT NULL DEFAULT 0,
		accepted_terms_json TEXT,
		decided_by TEXT,
		rejection_reason TEXT,
		disbursement_date TEXT,
		maturity_date TEXT,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(booking_id, pledge)
	);

	CREATE INDEX IF NOT EXISTS idx_loans_pledge
		ON loans(pledge);

	CREATE TABLE IF NOT EXISTS shipments (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		booking_id TEXT NOT NULL REFERENCES bookings(id),
		warehouse_id TEXT NOT NULL,
		withdrawal_id TEXT,
		mode TEXT NOT NULL,
		lines_json TEXT NOT NULL DEFAULT '[]',
		total_bags INTEGER NOT NULL DEFAULT 0,
		truck_number TEXT,
		driver_name TEXT,
		status TEXT NOT NULL,
		quantity TEXT NOT NULL,
		released_capacity TEXT NOT NULL,
		unit TEXT NOT NULL,
		late_fee TEXT NOT NULL,
		shipped_at TEXT NOT NULL,
		created_by TEXT NOT NULL,
		UNIQUE(booking_id, seq)
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		invoice_no TEXT UNIQUE,
		tracking_id TEXT UNIQUE,
		booking_id TEXT NOT NULL REFERENCES bookings(id),
		warehouse_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		partial_payment TEXT NOT NULL,
		service_cost TEXT NOT NULL,
		fumigation_cost TEXT NOT NULL,
		expiry_monitoring_cost TEXT NOT NULL,
		pending_payment TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_booking
		ON invoices(booking_id);

	-- Capacity movements (append-only ledger)
	CREATE TABLE IF NOT EXISTS capacity_movements (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		warehouse_id TEXT NOT NULL,
		booking_id TEXT,
		movement_type TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		delta_unit TEXT NOT NULL,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		effective_at TEXT NOT NULL,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_warehouse_date
		ON capacity_movements(warehouse_id, effective_at);

	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		warehouse_id TEXT,
		booking_id TEXT,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_booking
		ON audit_log(booking_id) WHERE booking_id IS NOT NULL;
	`

	_, err := s.sqlDB.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (warehousing.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(warehousing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

var (
	_ warehousing.TxStore = (*Store)(nil)
	_ warehousing.Store   = (*queries)(nil)
)

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func formatDate(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseDate(s sql.NullString) generic.TimePoint {
	if !s.Valid || s.String == "" {
		return generic.TimePoint{}
	}
	tp, _ := generic.ParseDate(s.String)
	return tp
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseAmount(value, unit string) generic.Amount {
	return generic.Amount{
		Value: generic.MustParseDecimal(value),
		Unit:  generic.Unit(unit),
	}
}

func parseDecimal(value string) decimal.Decimal {
	return generic.MustParseDecimal(value)
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode json: %w", err)
	}
	return string(b), nil
}

func fromJSON(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s.String), v); err != nil {
		return fmt.Errorf("failed to decode json: %w", err)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// rowsAffectedOrConflict turns a zero-row versioned UPDATE into
// ErrConcurrentModification.
func rowsAffectedOrConflict(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, generic.ErrConcurrentModification)
	}
	return nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
