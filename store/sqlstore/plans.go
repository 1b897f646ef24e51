package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/cashflow-forecast/factory"
	"github.com/warp/cashflow-forecast/forecast"
)

// =============================================================================
// PLAN STORE
// =============================================================================

// PlanFilter narrows ListPlans. Zero value lists every active plan.
type PlanFilter struct {
	FamilyID        forecast.FamilyID
	IncludeArchived bool
}

// SavePlan inserts or replaces a plan together with its items. Items are
// rewritten in slice order inside one transaction.
func (s *Store) SavePlan(ctx context.Context, plan forecast.ForecastPlan) error {
	if plan.ID == "" {
		return &forecast.PlanError{Field: "id", Reason: "plan id is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accountIDs, err := json.Marshal(plan.Scope.AccountIDs)
	if err != nil {
		return fmt.Errorf("encode account ids: %w", err)
	}
	income, err := s.encodeStrategy(plan.IncomeStrategy)
	if err != nil {
		return err
	}
	outgoing, err := s.encodeStrategy(plan.OutgoingStrategy)
	if err != nil {
		return err
	}
	var startAmount sql.NullString
	if plan.StartingBalanceAmount != nil {
		startAmount = sql.NullString{String: plan.StartingBalanceAmount.String(), Valid: true}
	}

	now := s.now()
	createdAt, updatedAt := now, now
	if !plan.CreatedAt.IsZero() {
		createdAt = plan.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !plan.UpdatedAt.IsZero() {
		updatedAt = plan.UpdatedAt.UTC().Format(time.RFC3339)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	query := s.rebind(`
		INSERT INTO plans
		(id, family_id, name, start_date, end_date, all_accounts, account_ids_json,
		 starting_balance_mode, starting_balance_amount, currency,
		 income_strategy_json, outgoing_strategy_json, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			family_id = excluded.family_id,
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			all_accounts = excluded.all_accounts,
			account_ids_json = excluded.account_ids_json,
			starting_balance_mode = excluded.starting_balance_mode,
			starting_balance_amount = excluded.starting_balance_amount,
			currency = excluded.currency,
			income_strategy_json = excluded.income_strategy_json,
			outgoing_strategy_json = excluded.outgoing_strategy_json,
			archived = excluded.archived,
			updated_at = excluded.updated_at
	`)
	_, err = sqlTx.ExecContext(ctx, query,
		plan.ID, plan.FamilyID, plan.Name,
		plan.StartDate.String(), plan.EndDate.String(),
		plan.Scope.AllAccounts, string(accountIDs),
		string(plan.StartingBalanceMode), startAmount, plan.Currency,
		income, outgoing, plan.Archived, createdAt, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save plan %s: %w", plan.ID, err)
	}

	if _, err := sqlTx.ExecContext(ctx, s.rebind("DELETE FROM planned_items WHERE plan_id = ?"), plan.ID); err != nil {
		return fmt.Errorf("failed to clear items of plan %s: %w", plan.ID, err)
	}

	insertItem := s.rebind(`
		INSERT INTO planned_items
		(id, plan_id, sort_order, name, item_type, amount, is_included, fixed_date, schedule_json, window_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for i, item := range plan.Items {
		ij := s.factory.ItemJSON(item)
		var fixed, schedule, window sql.NullString
		if ij.FixedDate != nil {
			fixed = nullString(ij.FixedDate.String())
		}
		if ij.Schedule != nil {
			b, err := json.Marshal(ij.Schedule)
			if err != nil {
				return fmt.Errorf("encode schedule of item %s: %w", item.ID, err)
			}
			schedule = nullString(string(b))
		}
		if ij.Window != nil {
			b, err := json.Marshal(ij.Window)
			if err != nil {
				return fmt.Errorf("encode window of item %s: %w", item.ID, err)
			}
			window = nullString(string(b))
		}

		_, err := sqlTx.ExecContext(ctx, insertItem,
			item.ID, plan.ID, i, item.Name, string(item.Type), item.Amount.String(),
			item.IsIncluded, fixed, schedule, window,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return &forecast.PlanError{PlanID: plan.ID, ItemID: item.ID, Field: "id", Reason: "item id already in use"}
			}
			return fmt.Errorf("failed to save item %s: %w", item.ID, err)
		}
	}

	return sqlTx.Commit()
}

// GetPlan loads a plan and its items. Missing plans are ErrPlanNotFound.
func (s *Store) GetPlan(ctx context.Context, id forecast.PlanID) (*forecast.ForecastPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, s.rebind(planSelect+" WHERE id = ?"), id)
	plan, err := s.scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", forecast.ErrPlanNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if plan.Items, err = s.loadItems(ctx, plan.ID); err != nil {
		return nil, err
	}
	return plan, nil
}

// ListPlans returns plans ordered by name, each with its items.
func (s *Store) ListPlans(ctx context.Context, filter PlanFilter) ([]forecast.ForecastPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := planSelect + " WHERE 1 = 1"
	var args []any
	if filter.FamilyID != "" {
		query += " AND family_id = ?"
		args = append(args, filter.FamilyID)
	}
	if !filter.IncludeArchived {
		query += " AND archived = ?"
		args = append(args, false)
	}
	query += " ORDER BY name, id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	var plans []forecast.ForecastPlan
	for rows.Next() {
		plan, err := s.scanPlan(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		plans = append(plans, *plan)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range plans {
		if plans[i].Items, err = s.loadItems(ctx, plans[i].ID); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

// ArchivePlan marks a plan archived. Archived plans are hidden from default
// listings and from the risk scanner.
func (s *Store) ArchivePlan(ctx context.Context, id forecast.PlanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE plans SET archived = ?, updated_at = ? WHERE id = ?"),
		true, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to archive plan %s: %w", id, err)
	}
	return expectOne(res, id)
}

// DeletePlan removes a plan and its items.
func (s *Store) DeletePlan(ctx context.Context, id forecast.PlanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, s.rebind("DELETE FROM planned_items WHERE plan_id = ?"), id); err != nil {
		return fmt.Errorf("failed to delete items of plan %s: %w", id, err)
	}
	res, err := sqlTx.ExecContext(ctx, s.rebind("DELETE FROM plans WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete plan %s: %w", id, err)
	}
	if err := expectOne(res, id); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// ROW MAPPING
// =============================================================================

const planSelect = `
	SELECT id, family_id, name, start_date, end_date, all_accounts, account_ids_json,
	       starting_balance_mode, starting_balance_amount, currency,
	       income_strategy_json, outgoing_strategy_json, archived, created_at, updated_at
	FROM plans`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanPlan(row rowScanner) (*forecast.ForecastPlan, error) {
	var (
		plan                 forecast.ForecastPlan
		startDate, endDate   string
		accountIDs           string
		mode                 string
		startAmount          sql.NullString
		income, outgoing     sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&plan.ID, &plan.FamilyID, &plan.Name, &startDate, &endDate,
		&plan.Scope.AllAccounts, &accountIDs, &mode, &startAmount, &plan.Currency,
		&income, &outgoing, &plan.Archived, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}

	if plan.StartDate, err = forecast.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("plan %s: %w", plan.ID, err)
	}
	if plan.EndDate, err = forecast.ParseDate(endDate); err != nil {
		return nil, fmt.Errorf("plan %s: %w", plan.ID, err)
	}
	if err := json.Unmarshal([]byte(accountIDs), &plan.Scope.AccountIDs); err != nil {
		return nil, fmt.Errorf("plan %s: decode account ids: %w", plan.ID, err)
	}
	plan.StartingBalanceMode = forecast.StartingBalanceMode(mode)
	if startAmount.Valid {
		amount, err := decimal.NewFromString(startAmount.String)
		if err != nil {
			return nil, fmt.Errorf("plan %s: starting balance: %w", plan.ID, err)
		}
		plan.StartingBalanceAmount = &amount
	}
	if plan.IncomeStrategy, err = s.decodeStrategy(income); err != nil {
		return nil, fmt.Errorf("plan %s: income strategy: %w", plan.ID, err)
	}
	if plan.OutgoingStrategy, err = s.decodeStrategy(outgoing); err != nil {
		return nil, fmt.Errorf("plan %s: outgoing strategy: %w", plan.ID, err)
	}
	plan.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	plan.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &plan, nil
}

func (s *Store) loadItems(ctx context.Context, planID forecast.PlanID) ([]forecast.PlannedItem, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, name, item_type, amount, is_included, fixed_date, schedule_json, window_json
		FROM planned_items
		WHERE plan_id = ?
		ORDER BY sort_order ASC
	`), planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items of plan %s: %w", planID, err)
	}
	defer rows.Close()

	var items []forecast.PlannedItem
	for rows.Next() {
		var (
			ij                      factory.ItemJSON
			amount                  string
			included                bool
			fixed, schedule, window sql.NullString
		)
		if err := rows.Scan(&ij.ID, &ij.Name, &ij.Type, &amount, &included, &fixed, &schedule, &window); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if ij.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("item %s: amount: %w", ij.ID, err)
		}
		ij.IsIncluded = &included
		if fixed.Valid {
			d, err := forecast.ParseDate(fixed.String)
			if err != nil {
				return nil, fmt.Errorf("item %s: %w", ij.ID, err)
			}
			ij.FixedDate = &d
		}
		if schedule.Valid {
			ij.Schedule = &factory.ScheduleJSON{}
			if err := json.Unmarshal([]byte(schedule.String), ij.Schedule); err != nil {
				return nil, fmt.Errorf("item %s: schedule: %w", ij.ID, err)
			}
		}
		if window.Valid {
			ij.Window = &factory.WindowJSON{}
			if err := json.Unmarshal([]byte(window.String), ij.Window); err != nil {
				return nil, fmt.Errorf("item %s: window: %w", ij.ID, err)
			}
		}

		item, err := s.factory.ItemFromJSON(planID, ij)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) encodeStrategy(strategy forecast.Strategy) (sql.NullString, error) {
	sj := s.factory.StrategyJSON(strategy)
	if sj == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(sj)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode strategy: %w", err)
	}
	return nullString(string(b)), nil
}

func (s *Store) decodeStrategy(raw sql.NullString) (forecast.Strategy, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var sj factory.StrategyJSON
	if err := json.Unmarshal([]byte(raw.String), &sj); err != nil {
		return nil, err
	}
	return s.factory.ParseStrategy(&sj)
}

func expectOne(res sql.Result, id forecast.PlanID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", forecast.ErrPlanNotFound, id)
	}
	return nil
}
