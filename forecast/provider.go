/*
provider.go - Read-only collaborators the engine consults

PURPOSE:
  Defines the boundary between the engine and whatever owns transaction
  history and account balances. The engine calls these once per Calculate,
  before the month loop, and checks the context before every call.

KEY INTERFACES:
  HistoricalAggregates: credit/debit totals per account over a date range
  AccountBalances:      current balance of one account
  AccountLister:        account IDs of a family (for AllAccounts scope)

IMPLEMENTATIONS:
  - forecast/provider/memory.go: in-memory, for tests and the CLI
  - store/sqlstore: SQL-backed

ERRORS:
  Implementations return ErrAccountNotFound for unknown accounts. Any other
  error is propagated to the caller unchanged; the engine does not retry.
*/
package forecast

import (
	"context"

	"github.com/shopspring/decimal"
)

// CreditDebitTotal is the summed amount of one transaction type. Debit
// totals may be reported signed or as magnitudes; the engine uses the
// magnitude.
type CreditDebitTotal struct {
	Type  TransactionType
	Total decimal.Decimal
}

// HistoricalAggregates supplies transaction totals for strategy resolution.
type HistoricalAggregates interface {
	// GetCreditDebitTotals returns totals for [start, end] inclusive. An
	// account without transactions returns an empty slice.
	GetCreditDebitTotals(ctx context.Context, accountID AccountID, start, end Date) ([]CreditDebitTotal, error)
}

// AccountBalances supplies current balances for the starting balance.
type AccountBalances interface {
	GetCurrentBalance(ctx context.Context, accountID AccountID) (decimal.Decimal, error)
}

// AccountLister enumerates a family's accounts.
type AccountLister interface {
	ListAccountIDs(ctx context.Context, familyID FamilyID) ([]AccountID, error)
}
