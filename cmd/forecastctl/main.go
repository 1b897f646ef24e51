// Command forecastctl calculates cash-flow forecasts from the command line.
//
//	forecastctl calculate plan.json --history history.json
//	forecastctl show plan-steady --db ./forecast.db
//	forecastctl risk --config forecast.toml --json
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/cashflow-forecast/config"
	"github.com/warp/cashflow-forecast/forecast"
	"github.com/warp/cashflow-forecast/store/sqlstore"
)

var (
	flagConfig   string
	flagDriver   string
	flagDB       string
	flagJSON     bool
	flagVerbose  bool
	flagLookback int
)

var rootCmd = &cobra.Command{
	Use:           "forecastctl",
	Short:         "Household cash-flow forecasts",
	Long:          "Project a household's month-by-month balance from a forecast plan and account history.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "TOML config file (database and forecast sections)")
	rootCmd.PersistentFlags().StringVar(&flagDriver, "driver", "", "Database driver: sqlite3 or postgres")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database DSN")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of a table")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log engine warnings to stderr")
	rootCmd.PersistentFlags().IntVar(&flagLookback, "lookback", 0, "Default lookback months for plans without strategies")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config (if any) and applies the flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagDriver != "" {
		cfg.Database.Driver = flagDriver
	}
	if flagDB != "" {
		cfg.Database.DSN = flagDB
	}
	if flagLookback > 0 {
		cfg.Forecast.DefaultLookbackMonths = flagLookback
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *logrus.Logger {
	logger := cfg.NewLogger()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if flagVerbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	return logger
}

// newEngine configures an engine over the given collaborators.
func newEngine(cfg config.Config, logger logrus.FieldLogger, history forecast.HistoricalAggregates, balances forecast.AccountBalances, accounts forecast.AccountLister) *forecast.Engine {
	engine := forecast.NewEngine(history, balances, accounts)
	engine.DefaultLookback = cfg.Forecast.DefaultLookbackMonths
	engine.Uplift.MaxAttempts = cfg.Forecast.UpliftMaxAttempts
	engine.Logger = logger
	return engine
}

// openStore opens the configured database.
func openStore(cfg config.Config) (*sqlstore.Store, error) {
	return sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN)
}
