package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/cashflow-forecast/forecast"
	"github.com/warp/cashflow-forecast/forecast/provider"
)

// =============================================================================
// ACCOUNT STORE
// =============================================================================

// SaveAccount inserts or updates an account.
func (s *Store) SaveAccount(ctx context.Context, a provider.Account) error {
	if a.ID == "" {
		return errors.New("account id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := s.rebind(`
		INSERT INTO accounts (id, family_id, name, currency, opening_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			family_id = excluded.family_id,
			name = excluded.name,
			currency = excluded.currency,
			opening_balance = excluded.opening_balance
	`)
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.FamilyID, a.Name, a.Currency, a.OpeningBalance.String(), s.now())
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", a.ID, err)
	}
	return nil
}

// GetAccount retrieves an account. Missing accounts are ErrAccountNotFound.
func (s *Store) GetAccount(ctx context.Context, id forecast.AccountID) (*provider.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAccount(ctx, id)
}

func (s *Store) getAccount(ctx context.Context, id forecast.AccountID) (*provider.Account, error) {
	var (
		a       provider.Account
		opening string
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT id, family_id, name, currency, opening_balance FROM accounts WHERE id = ?"),
		id,
	).Scan(&a.ID, &a.FamilyID, &a.Name, &a.Currency, &opening)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", forecast.ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	if a.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
		return nil, fmt.Errorf("account %s: opening balance: %w", id, err)
	}
	return &a, nil
}

// ListAccounts returns a family's accounts (every account when familyID is
// empty) in creation order.
func (s *Store) ListAccounts(ctx context.Context, familyID forecast.FamilyID) ([]provider.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, family_id, name, currency, opening_balance FROM accounts"
	var args []any
	if familyID != "" {
		query += " WHERE family_id = ?"
		args = append(args, familyID)
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []provider.Account
	for rows.Next() {
		var (
			a       provider.Account
			opening string
		)
		if err := rows.Scan(&a.ID, &a.FamilyID, &a.Name, &a.Currency, &opening); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if a.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
			return nil, fmt.Errorf("account %s: opening balance: %w", a.ID, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// RecordTransactions appends transactions atomically. A reused idempotency
// key fails the whole batch with provider.ErrDuplicateTransaction.
func (s *Store) RecordTransactions(ctx context.Context, txs ...provider.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	for _, tx := range txs {
		if tx.Type != forecast.TxCredit && tx.Type != forecast.TxDebit {
			return fmt.Errorf("transaction type %q: must be credit or debit", tx.Type)
		}
		if k := tx.IdempotencyKey; k != "" {
			if seen[k] {
				return fmt.Errorf("%w: %s", provider.ErrDuplicateTransaction, k)
			}
			seen[k] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	query := s.rebind(`
		INSERT INTO account_transactions
		(id, account_id, tx_date, tx_type, amount, description, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	now := s.now()
	for _, tx := range txs {
		var exists int
		err := sqlTx.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM accounts WHERE id = ?"), tx.AccountID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check account %s: %w", tx.AccountID, err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", forecast.ErrAccountNotFound, tx.AccountID)
		}

		_, err = sqlTx.ExecContext(ctx, query,
			tx.ID, tx.AccountID, tx.Date.String(), string(tx.Type), tx.Amount.Abs().String(),
			nullString(tx.Description), nullString(tx.IdempotencyKey), now,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s", provider.ErrDuplicateTransaction, tx.ID)
			}
			return fmt.Errorf("failed to record transaction %s: %w", tx.ID, err)
		}
	}
	return sqlTx.Commit()
}

// Transactions returns an account's transactions in date order.
func (s *Store) Transactions(ctx context.Context, id forecast.AccountID) ([]provider.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getAccount(ctx, id); err != nil {
		return nil, err
	}
	return s.queryTransactions(ctx, `
		SELECT id, account_id, tx_date, tx_type, amount, description, idempotency_key
		FROM account_transactions
		WHERE account_id = ?
		ORDER BY tx_date ASC, created_at ASC, id ASC
	`, id)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]provider.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []provider.Transaction
	for rows.Next() {
		var (
			tx                  provider.Transaction
			date, txType, value string
			description, key    sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.AccountID, &date, &txType, &value, &description, &key); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if tx.Date, err = forecast.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		if tx.Amount, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("transaction %s: amount: %w", tx.ID, err)
		}
		tx.Type = forecast.TransactionType(txType)
		tx.Description = description.String
		tx.IdempotencyKey = key.String
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// COLLABORATORS (forecast.HistoricalAggregates, AccountBalances, AccountLister)
// =============================================================================

// GetCreditDebitTotals sums an account's credits and debits dated within
// [start, end]. Debits are reported as magnitudes.
func (s *Store) GetCreditDebitTotals(ctx context.Context, id forecast.AccountID, start, end forecast.Date) ([]forecast.CreditDebitTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getAccount(ctx, id); err != nil {
		return nil, err
	}
	txs, err := s.queryTransactions(ctx, `
		SELECT id, account_id, tx_date, tx_type, amount, description, idempotency_key
		FROM account_transactions
		WHERE account_id = ? AND tx_date >= ? AND tx_date <= ?
	`, id, start.String(), end.String())
	if err != nil {
		return nil, err
	}

	sums := map[forecast.TransactionType]decimal.Decimal{}
	for _, tx := range txs {
		sums[tx.Type] = sums[tx.Type].Add(tx.Amount.Abs())
	}

	var totals []forecast.CreditDebitTotal
	for _, t := range []forecast.TransactionType{forecast.TxCredit, forecast.TxDebit} {
		if total, ok := sums[t]; ok {
			totals = append(totals, forecast.CreditDebitTotal{Type: t, Total: total})
		}
	}
	return totals, nil
}

// GetCurrentBalance is the opening balance plus every recorded transaction.
func (s *Store) GetCurrentBalance(ctx context.Context, id forecast.AccountID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.getAccount(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	txs, err := s.queryTransactions(ctx, `
		SELECT id, account_id, tx_date, tx_type, amount, description, idempotency_key
		FROM account_transactions
		WHERE account_id = ?
	`, id)
	if err != nil {
		return decimal.Zero, err
	}

	balance := a.OpeningBalance
	for _, tx := range txs {
		balance = balance.Add(tx.Signed())
	}
	return balance, nil
}

// ListAccountIDs returns a family's account IDs in creation order.
func (s *Store) ListAccountIDs(ctx context.Context, familyID forecast.FamilyID) ([]forecast.AccountID, error) {
	accounts, err := s.ListAccounts(ctx, familyID)
	if err != nil {
		return nil, err
	}
	ids := make([]forecast.AccountID, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	return ids, nil
}
