/*
errors.go - Centralized error types for the forecast engine

PURPOSE:
  All error types in one place. Hard errors are detected before the month
  loop runs, so a failed Calculate never returns a partial result.

ERROR CATEGORIES:
  1. Plan validation - inverted ranges, malformed items
  2. Schedule validation - non-positive interval, unknown frequency
  3. Starting balance - manual mode without an amount
  4. Lookup - plan/account not found (persistence collaborators)

WARNINGS:
  Some conditions are recorded on the result instead of failing:
  unresolved strategies, unknown allocation modes, skipped accounts.

USAGE:
  if errors.Is(err, forecast.ErrInvalidSchedule) {
      var se *forecast.ScheduleError
      errors.As(err, &se)
  }
*/
package forecast

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPlan is returned for an inverted date range or a malformed
	// planned item.
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrInvalidSchedule is returned for a non-positive interval or an
	// unsupported frequency.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrMissingStartingBalance is returned when manual mode has no amount.
	ErrMissingStartingBalance = errors.New("missing starting balance")

	// ErrUnresolvedStrategy marks a history-based strategy resolved to zero
	// because no history collaborator was available. Recorded as a warning.
	ErrUnresolvedStrategy = errors.New("unresolved strategy")

	// ErrPlanNotFound is returned by plan stores.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrAccountNotFound is returned by account collaborators. The starting
	// balance resolver skips such accounts.
	ErrAccountNotFound = errors.New("account not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PlanError describes why a plan failed validation.
type PlanError struct {
	PlanID PlanID
	ItemID ItemID // empty for plan-level problems
	Field  string
	Reason string
}

func (e *PlanError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("invalid plan %s: item %s: %s: %s", e.PlanID, e.ItemID, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid plan %s: %s: %s", e.PlanID, e.Field, e.Reason)
}

func (e *PlanError) Unwrap() error { return ErrInvalidPlan }

// ScheduleError describes an unusable recurring schedule.
type ScheduleError struct {
	ItemID    ItemID
	Frequency Frequency
	Interval  int
	Reason    string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule (item %s, frequency %q, interval %d): %s",
		e.ItemID, e.Frequency, e.Interval, e.Reason)
}

func (e *ScheduleError) Unwrap() error { return ErrInvalidSchedule }

// =============================================================================
// WARNINGS
// =============================================================================

type WarningCode string

const (
	WarnUnresolvedStrategy    WarningCode = "unresolved_strategy"
	WarnUnknownAllocationMode WarningCode = "unknown_allocation_mode"
	WarnAccountSkipped        WarningCode = "account_skipped"
)

// Warning is a non-fatal condition recorded on a result.
type Warning struct {
	Code    WarningCode
	ItemID  ItemID
	Message string
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid plan input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPlan) ||
		errors.Is(err, ErrInvalidSchedule) ||
		errors.Is(err, ErrMissingStartingBalance)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) || errors.Is(err, ErrAccountNotFound)
}
