package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/cashflow-forecast/api"
	"github.com/warp/cashflow-forecast/factory"
	"github.com/warp/cashflow-forecast/forecast"
	"github.com/warp/cashflow-forecast/forecast/provider"
)

var flagHistory string

var calculateCmd = &cobra.Command{
	Use:   "calculate <plan.json>",
	Short: "Calculate a forecast from a plan document",
	Long: `Calculate a forecast from a plan document.

History comes from --history (a JSON file of accounts and transactions) or,
when --db or --config is given, from the database. Plans with manual
strategies and a manual starting balance need neither.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalculate,
}

var showCmd = &cobra.Command{
	Use:   "show <plan-id>",
	Short: "Calculate a stored plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "List stored plans that go below zero",
	Args:  cobra.NoArgs,
	RunE:  runRisk,
}

func init() {
	calculateCmd.Flags().StringVar(&flagHistory, "history", "", "JSON file with accounts and transactions")
	rootCmd.AddCommand(calculateCmd, showCmd, riskCmd)
}

// historyFile is the --history document.
type historyFile struct {
	Accounts     []api.CreateAccountRequest `json:"accounts"`
	Transactions []struct {
		AccountID string `json:"account_id"`
		api.TransactionDTO
	} `json:"transactions"`
}

func runCalculate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading plan: %w", err)
	}
	plan, err := factory.NewPlanFactory().ParsePlan(data)
	if err != nil {
		return err
	}

	var engine *forecast.Engine
	switch {
	case flagHistory != "":
		mem, err := loadHistory(ctx, flagHistory)
		if err != nil {
			return err
		}
		engine = newEngine(cfg, logger, mem, mem, mem)
	case flagDB != "" || flagConfig != "":
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		engine = newEngine(cfg, logger, store, store, store)
	default:
		engine = newEngine(cfg, logger, nil, nil, nil)
	}

	result, err := engine.Calculate(ctx, *plan)
	if err != nil {
		return err
	}
	return printForecast(cmd, plan.Name, result)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	plan, err := store.GetPlan(ctx, forecast.PlanID(args[0]))
	if err != nil {
		return err
	}
	engine := newEngine(cfg, newLogger(cfg), store, store, store)
	result, err := engine.Calculate(ctx, *plan)
	if err != nil {
		return err
	}
	return printForecast(cmd, plan.Name, result)
}

func runRisk(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	logger := newLogger(cfg)
	scanner := api.NewRiskScanner(store, newEngine(cfg, logger, store, store, store), logger)
	risks, err := scanner.ScanOnce(cmd.Context())
	if err != nil {
		return err
	}

	if flagJSON {
		return writeJSON(cmd, risks)
	}
	if len(risks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "\n  No plans go below zero.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderRisks(risks))
	return nil
}

// loadHistory fills an in-memory provider from a history document.
func loadHistory(ctx context.Context, path string) (*provider.Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	var doc historyFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing history: %w", err)
	}

	mem := provider.NewMemory()
	for _, a := range doc.Accounts {
		if err := mem.AddAccount(ctx, provider.Account{
			ID:             forecast.AccountID(a.ID),
			FamilyID:       forecast.FamilyID(a.FamilyID),
			Name:           a.Name,
			Currency:       a.Currency,
			OpeningBalance: a.OpeningBalance,
		}); err != nil {
			return nil, err
		}
	}

	txs := make([]provider.Transaction, 0, len(doc.Transactions))
	for i, t := range doc.Transactions {
		id := t.ID
		if id == "" {
			id = fmt.Sprintf("tx-%d", i+1)
		}
		txs = append(txs, provider.Transaction{
			ID:             id,
			AccountID:      forecast.AccountID(t.AccountID),
			Date:           t.Date,
			Type:           forecast.TransactionType(t.Type),
			Amount:         t.Amount.Abs(),
			Description:    t.Description,
			IdempotencyKey: t.IdempotencyKey,
		})
	}
	if err := mem.Record(ctx, txs...); err != nil {
		return nil, err
	}
	return mem, nil
}

func printForecast(cmd *cobra.Command, name string, result *forecast.ForecastResult) error {
	if flagJSON {
		return writeJSON(cmd, api.NewForecastDTO(result))
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderForecast(name, result))
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
