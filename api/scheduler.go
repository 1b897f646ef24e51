/*
scheduler.go - Periodic forecast risk scanner

PURPOSE:
  Recalculates every active plan on a cron schedule and reports the ones
  whose projected balance dips below zero.

DESIGN:
  - robfig/cron drives the schedule ("@every 1h", "0 6 * * *", ...)
  - Archived plans are skipped
  - A plan that fails to calculate is logged and skipped; the scan goes on
  - Each at-risk plan produces one warning log line

CONFIGURATION:
  - Schedule: cron spec (default: "@every 1h")
  - Enabled: whether Start registers the job (default: true)

USAGE:
  scanner := NewRiskScanner(store, engine, logger)
  scanner.Schedule = cfg.Scanner.Schedule
  if err := scanner.Start(); err != nil { ... }
  // ... later
  scanner.Stop()

SEE ALSO:
  - handlers.go: GetRisk endpoint (on-demand scan)
  - forecast/engine.go: Calculate
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/cashflow-forecast/forecast"
	"github.com/warp/cashflow-forecast/store/sqlstore"
)

// DefaultScanSchedule is used when no schedule is configured.
const DefaultScanSchedule = "@every 1h"

// RiskScanner flags plans whose forecast goes negative.
type RiskScanner struct {
	Store    *sqlstore.Store
	Engine   *forecast.Engine
	Logger   logrus.FieldLogger
	Schedule string
	Enabled  bool

	// ScanTimeout bounds a scheduled run. Zero means no deadline.
	ScanTimeout time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	lastRun time.Time
	last    []RiskDTO
}

// NewRiskScanner creates a scanner with the default schedule.
func NewRiskScanner(store *sqlstore.Store, engine *forecast.Engine, logger logrus.FieldLogger) *RiskScanner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RiskScanner{
		Store:       store,
		Engine:      engine,
		Logger:      logger.WithField("component", "risk_scanner"),
		Schedule:    DefaultScanSchedule,
		Enabled:     true,
		ScanTimeout: 5 * time.Minute,
	}
}

// Start registers the scan with cron and begins running it.
func (rs *RiskScanner) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("disabled, not starting")
		return nil
	}
	if rs.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(rs.Schedule, rs.runScheduled); err != nil {
		return fmt.Errorf("schedule risk scan %q: %w", rs.Schedule, err)
	}
	c.Start()
	rs.cron = c

	rs.Logger.WithField("schedule", rs.Schedule).Info("started")
	return nil
}

// Stop halts the schedule and waits for a running scan to finish.
func (rs *RiskScanner) Stop() {
	rs.mu.Lock()
	c := rs.cron
	rs.cron = nil
	rs.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	rs.Logger.Info("stopped")
}

// NextRun returns when the next scheduled scan will occur. It is zero when
// the scanner is not running.
func (rs *RiskScanner) NextRun() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cron == nil {
		return time.Time{}
	}
	entries := rs.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// LastResult returns the at-risk plans found by the most recent scan.
func (rs *RiskScanner) LastResult() (time.Time, []RiskDTO) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastRun, rs.last
}

func (rs *RiskScanner) runScheduled() {
	ctx := context.Background()
	if rs.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rs.ScanTimeout)
		defer cancel()
	}
	if _, err := rs.ScanOnce(ctx); err != nil {
		rs.Logger.WithError(err).Error("risk scan failed")
	}
}

// ScanOnce calculates every active plan and returns the ones with at least
// one month below zero.
func (rs *RiskScanner) ScanOnce(ctx context.Context) ([]RiskDTO, error) {
	plans, err := rs.Store.ListPlans(ctx, sqlstore.PlanFilter{})
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}

	risks := []RiskDTO{}
	failed := 0
	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := rs.Engine.Calculate(ctx, plan)
		if err != nil {
			failed++
			rs.Logger.WithError(err).WithField("plan_id", plan.ID).Warn("forecast failed")
			continue
		}
		if result.Summary.MonthsBelowZero == 0 {
			continue
		}

		risk := RiskDTO{
			PlanID:                string(plan.ID),
			PlanName:              plan.Name,
			FamilyID:              string(plan.FamilyID),
			MonthsBelowZero:       result.Summary.MonthsBelowZero,
			LowestBalance:         result.Summary.LowestBalance,
			LowestBalanceMonth:    result.Summary.LowestBalanceMonth.String(),
			RequiredMonthlyUplift: result.Summary.RequiredMonthlyUplift,
		}
		risks = append(risks, risk)

		rs.Logger.WithFields(logrus.Fields{
			"plan_id":           risk.PlanID,
			"months_below_zero": risk.MonthsBelowZero,
			"lowest_balance":    risk.LowestBalance.String(),
			"lowest_month":      risk.LowestBalanceMonth,
			"required_uplift":   risk.RequiredMonthlyUplift.String(),
		}).Warn("plan goes below zero")
	}

	rs.Logger.WithFields(logrus.Fields{
		"plans":   len(plans),
		"at_risk": len(risks),
		"failed":  failed,
	}).Info("risk scan completed")

	rs.mu.Lock()
	rs.lastRun = time.Now()
	rs.last = risks
	rs.mu.Unlock()

	return risks, nil
}
