/*
Package sqlstore provides SQL persistence for plans, accounts and account
transactions, and implements the forecast collaborator interfaces on top of
it.

PURPOSE:
  Stores forecast plans with their planned items, and the account history
  the engine reads through:

    forecast.HistoricalAggregates: credit/debit totals over a date range
    forecast.AccountBalances:      current balance per account
    forecast.AccountLister:        account IDs of a family

DIALECTS:
  sqlite3   mattn/go-sqlite3, opened with foreign keys and WAL
  postgres  lib/pq; queries are written with ? and rebound to $n

KEY TABLES:
  plans:                one row per plan; strategies as tagged JSON
  planned_items:        one row per item; the date mode occupies exactly one
                        of fixed_date, schedule_json, window_json
  accounts:             family bank accounts with an opening balance
  account_transactions: dated credits and debits

MONEY AND DATES:
  Amounts are stored as decimal strings and dates as YYYY-MM-DD text, so
  range filters compare lexicographically and no value passes through a
  float. Sums are computed in Go with decimal arithmetic.

USAGE:
  store, err := sqlstore.New("./data/forecast.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := forecast.NewEngine(store, store, store)

SEE ALSO:
  - factory/plan.go: strategy and date mode encodings
  - forecast/provider: in-memory implementation of the same interfaces
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/cashflow-forecast/factory"
	"github.com/warp/cashflow-forecast/forecast"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store implements plan, account and collaborator storage on database/sql.
type Store struct {
	db      *sql.DB
	driver  string
	factory *factory.PlanFactory
	mu      sync.RWMutex

	// Now stamps created_at columns.
	Now func() time.Time
}

var (
	_ forecast.HistoricalAggregates = (*Store)(nil)
	_ forecast.AccountBalances      = (*Store)(nil)
	_ forecast.AccountLister        = (*Store)(nil)
)

// New opens a SQLite store at dbPath. Use ":memory:" for an in-memory
// database.
func New(dbPath string) (*Store, error) {
	return Open(DriverSQLite, dbPath)
}

// Open connects to a database with the given driver and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite, "sqlite":
		driver = DriverSQLite
		if !strings.Contains(dsn, "?") {
			dsn += "?_foreign_keys=on&_journal_mode=WAL"
		}
		db, err = sql.Open(DriverSQLite, dsn)
		if err == nil && strings.HasPrefix(dsn, ":memory:") {
			// Every pooled connection would otherwise get its own empty database.
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sql.Open(DriverPostgres, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:      db,
		driver:  driver,
		factory: factory.NewPlanFactory(),
		Now:     time.Now,
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver reports which dialect the store speaks.
func (s *Store) Driver() string { return s.driver }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		all_accounts BOOLEAN NOT NULL DEFAULT FALSE,
		account_ids_json TEXT NOT NULL DEFAULT '[]',
		starting_balance_mode TEXT NOT NULL,
		starting_balance_amount TEXT,
		currency TEXT NOT NULL,
		income_strategy_json TEXT,
		outgoing_strategy_json TEXT,
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plans_family
		ON plans(family_id, archived);

	CREATE TABLE IF NOT EXISTS planned_items (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		sort_order INTEGER NOT NULL,
		name TEXT NOT NULL,
		item_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		is_included BOOLEAN NOT NULL DEFAULT TRUE,
		fixed_date TEXT,
		schedule_json TEXT,
		window_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_planned_items_plan
		ON planned_items(plan_id, sort_order);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		name TEXT NOT NULL,
		currency TEXT NOT NULL,
		opening_balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_family
		ON accounts(family_id);

	CREATE TABLE IF NOT EXISTS account_transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		tx_date TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	-- Hot path for history lookups
	CREATE INDEX IF NOT EXISTS idx_account_transactions_account_date
		ON account_transactions(account_id, tx_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears all data (for demo scenarios and tests).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"account_transactions", "accounts", "planned_items", "plans"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// rebind rewrites ? placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) now() string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().UTC().Format(time.RFC3339)
}

func nullString(str string) sql.NullString {
	if str == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: str, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
