// Package provider contains collaborator implementations for the forecast
// engine that do not need a database.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/cashflow-forecast/forecast"
)

// =============================================================================
// MEMORY PROVIDER - In-memory accounts and transactions (for testing/CLI)
// =============================================================================

// Account is a bank account known to the provider.
type Account struct {
	ID       forecast.AccountID
	FamilyID forecast.FamilyID
	Name     string
	Currency string

	// OpeningBalance is the balance before the first recorded transaction.
	OpeningBalance decimal.Decimal
}

// Transaction is one dated credit or debit. Amount is a magnitude.
type Transaction struct {
	ID             string
	AccountID      forecast.AccountID
	Date           forecast.Date
	Type           forecast.TransactionType
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// Signed returns the transaction's effect on the balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == forecast.TxDebit {
		return t.Amount.Abs().Neg()
	}
	return t.Amount.Abs()
}

// ErrDuplicateTransaction is returned when an idempotency key is reused.
var ErrDuplicateTransaction = errors.New("duplicate transaction")

// Memory implements forecast.HistoricalAggregates, forecast.AccountBalances
// and forecast.AccountLister.
type Memory struct {
	mu           sync.RWMutex
	accounts     map[forecast.AccountID]Account
	order        []forecast.AccountID
	transactions map[forecast.AccountID][]Transaction
	idempotency  map[string]bool
}

var (
	_ forecast.HistoricalAggregates = (*Memory)(nil)
	_ forecast.AccountBalances      = (*Memory)(nil)
	_ forecast.AccountLister        = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[forecast.AccountID]Account),
		transactions: make(map[forecast.AccountID][]Transaction),
		idempotency:  make(map[string]bool),
	}
}

// AddAccount registers or replaces an account.
func (m *Memory) AddAccount(_ context.Context, a Account) error {
	if a.ID == "" {
		return errors.New("account id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[a.ID]; !exists {
		m.order = append(m.order, a.ID)
	}
	m.accounts[a.ID] = a
	return nil
}

// Record appends transactions atomically. Every account must exist and no
// idempotency key may repeat.
func (m *Memory) Record(_ context.Context, txs ...Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	for _, tx := range txs {
		if _, ok := m.accounts[tx.AccountID]; !ok {
			return fmt.Errorf("%w: %s", forecast.ErrAccountNotFound, tx.AccountID)
		}
		if tx.Type != forecast.TxCredit && tx.Type != forecast.TxDebit {
			return fmt.Errorf("transaction type %q: must be credit or debit", tx.Type)
		}
		if k := tx.IdempotencyKey; k != "" {
			if m.idempotency[k] || seen[k] {
				return fmt.Errorf("%w: %s", ErrDuplicateTransaction, k)
			}
			seen[k] = true
		}
	}

	for _, tx := range txs {
		m.insertLocked(tx)
	}
	return nil
}

// insertLocked keeps each account's transactions ordered by date.
func (m *Memory) insertLocked(tx Transaction) {
	txs := m.transactions[tx.AccountID]
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].Date.After(tx.Date)
	})
	txs = append(txs, Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.transactions[tx.AccountID] = txs

	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
}

// Transactions returns a copy of an account's transactions in date order.
func (m *Memory) Transactions(_ context.Context, id forecast.AccountID) ([]Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.accounts[id]; !ok {
		return nil, fmt.Errorf("%w: %s", forecast.ErrAccountNotFound, id)
	}
	out := make([]Transaction, len(m.transactions[id]))
	copy(out, m.transactions[id])
	return out, nil
}

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// GetCreditDebitTotals sums credits and debits dated within [start, end].
// Debit totals are reported as magnitudes.
func (m *Memory) GetCreditDebitTotals(_ context.Context, id forecast.AccountID, start, end forecast.Date) ([]forecast.CreditDebitTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.accounts[id]; !ok {
		return nil, fmt.Errorf("%w: %s", forecast.ErrAccountNotFound, id)
	}

	credits, debits := decimal.Zero, decimal.Zero
	var haveCredit, haveDebit bool
	for _, tx := range m.transactions[id] {
		if tx.Date.Before(start) || tx.Date.After(end) {
			continue
		}
		switch tx.Type {
		case forecast.TxCredit:
			credits = credits.Add(tx.Amount.Abs())
			haveCredit = true
		case forecast.TxDebit:
			debits = debits.Add(tx.Amount.Abs())
			haveDebit = true
		}
	}

	var totals []forecast.CreditDebitTotal
	if haveCredit {
		totals = append(totals, forecast.CreditDebitTotal{Type: forecast.TxCredit, Total: credits})
	}
	if haveDebit {
		totals = append(totals, forecast.CreditDebitTotal{Type: forecast.TxDebit, Total: debits})
	}
	return totals, nil
}

// GetCurrentBalance is the opening balance plus every recorded transaction.
func (m *Memory) GetCurrentBalance(_ context.Context, id forecast.AccountID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", forecast.ErrAccountNotFound, id)
	}
	balance := a.OpeningBalance
	for _, tx := range m.transactions[id] {
		balance = balance.Add(tx.Signed())
	}
	return balance, nil
}

// ListAccountIDs returns a family's accounts in registration order.
func (m *Memory) ListAccountIDs(_ context.Context, familyID forecast.FamilyID) ([]forecast.AccountID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []forecast.AccountID
	for _, id := range m.order {
		if m.accounts[id].FamilyID == familyID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
