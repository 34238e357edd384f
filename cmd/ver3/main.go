package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ver3trade/engine/config"
	"github.com/ver3trade/engine/core"
	"github.com/ver3trade/engine/engine"
	"github.com/ver3trade/engine/exchange"
	"github.com/ver3trade/engine/exchange/binance"
	"github.com/ver3trade/engine/executor"
	zl "github.com/ver3trade/engine/logger/zerolog"
	"github.com/ver3trade/engine/monitoring"
	"github.com/ver3trade/engine/notification"
	"github.com/ver3trade/engine/portfolio"
	"github.com/ver3trade/engine/storage"
	"github.com/ver3trade/engine/strategy"
	"github.com/ver3trade/engine/watchdog"
)

// Exit codes
const (
	exitClean  = 0
	exitFatal  = 1
	exitConfig = 2
)

// errConfig marks failures that should exit with the config code.
var errConfig = errors.New("configuration error")

// Command line flags
var (
	configPath string
	logLevel   string
	coinFilter string
	dryRun     bool
	live       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "ver3",
		Short:   "Portfolio trading engine",
		Version: "3.0.0",
	}

	rootCmd.AddCommand(buildRunCmd())
	rootCmd.AddCommand(buildWatchdogCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errConfig) {
			os.Exit(exitConfig)
		}
		os.Exit(exitFatal)
	}
	os.Exit(exitClean)
}

func buildRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run trading cycles until stopped",
		RunE:  runEngine,
	}

	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (e.g. ./config.json)")
	runCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (trace, debug, info, warn, error)")
	runCmd.Flags().StringVar(&coinFilter, "coins", "", "Restrict the universe to these symbols (e.g. BTC,ETH)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Simulate fills locally, never place real orders")
	runCmd.Flags().BoolVar(&live, "live", false, "Place real orders on the exchange")

	return runCmd
}

func buildWatchdogCmd() *cobra.Command {
	watchdogCmd := &cobra.Command{
		Use:   "watchdog -- <command> [args...]",
		Short: "Supervise an engine process, restarting it on failure or hang",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWatchdog,
	}

	watchdogCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "Log level")

	return watchdogCmd
}

func runEngine(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log := zl.NewConsole(core.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewFileStore(cfg.DataDir, log)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	orderLog, err := buildOrderLog(cfg)
	if err != nil {
		return fmt.Errorf("open order log: %w", err)
	}
	defer orderLog.Close()

	feeder, broker := buildExchange(cfg, log)

	exec := executor.NewLive(broker, store, cfg.Coins, log,
		executor.WithOrderLog(orderLog),
		executor.WithDryRun(cfg.DryRun),
		executor.WithRiskPct(cfg.RiskFraction()),
		executor.WithPyramiding(cfg.Pyramiding),
	)

	metrics := monitoring.NewMetrics()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.WithError(err).Warn("metrics endpoint stopped")
			}
		}()
	}

	managerOpts := []portfolio.Option{portfolio.WithMetrics(metrics)}
	engineOpts := []engine.Option{
		engine.WithInterval(cfg.CycleInterval.Std()),
		engine.WithMaxTimeoutCycles(cfg.MaxTimeoutCycles),
		engine.WithQuoteAsset(cfg.QuoteAsset),
	}

	if cfg.TelegramEnabled() {
		telegram, err := notification.NewTelegram(notification.Settings{
			Token: cfg.Credentials.TelegramToken,
			Users: cfg.Credentials.TelegramUsers,
		}, log)
		if err != nil {
			return fmt.Errorf("telegram setup: %w", err)
		}
		managerOpts = append(managerOpts,
			portfolio.WithNotifier(telegram),
			portfolio.WithCommandSource(telegram),
		)
		engineOpts = append(engineOpts, engine.WithNotifier(telegram))
	}

	manager := portfolio.NewManager(
		portfolioConfig(cfg),
		feeder, broker,
		strategy.NewScoreStrategy(),
		exec, store, cfg.Coins, log,
		managerOpts...,
	)

	eng := engine.New(manager, exec, store, log, engineOpts...)

	log.WithFields(map[string]any{
		"mode":  modeName(cfg.DryRun),
		"coins": len(cfg.Coins),
	}).Info("engine starting")

	return eng.Run(ctx)
}

func runWatchdog(_ *cobra.Command, args []string) error {
	log := zl.NewConsole(core.ParseLevel(logLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	supervisor, err := watchdog.New(watchdog.DefaultConfig(args), log)
	if err != nil {
		return err
	}
	return supervisor.Run(ctx)
}

// loadConfig reads the config file and applies flag overrides. All
// failures here carry errConfig so the CLI exits with code 2.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("%w: %v", errConfig, err)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = dryRun
	}
	if cmd.Flags().Changed("live") {
		cfg.DryRun = !live
	}
	if coinFilter != "" {
		cfg.Coins = filterCoins(cfg.Coins, coinFilter)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("%w: %v", errConfig, err)
	}
	return cfg, nil
}

// filterCoins restricts the universe to the comma-separated symbols.
func filterCoins(coins []core.Coin, filter string) []core.Coin {
	wanted := make(map[string]bool)
	for _, symbol := range strings.Split(filter, ",") {
		wanted[strings.ToUpper(strings.TrimSpace(symbol))] = true
	}

	kept := make([]core.Coin, 0, len(coins))
	for _, coin := range coins {
		if wanted[coin.Symbol] {
			kept = append(kept, coin)
		}
	}
	return kept
}

// buildOrderLog opens the configured fill-journal backend.
func buildOrderLog(cfg config.Config) (storage.OrderLog, error) {
	if cfg.OrderLog == config.OrderLogSQLite {
		return storage.NewSQLiteOrderLog(filepath.Join(cfg.DataDir, "orders.sqlite"), storage.DefaultSQLConfig())
	}
	return storage.NewBuntOrderLog(filepath.Join(cfg.DataDir, "orders.db"))
}

// buildExchange wires the market-data feed and the broker. Dry-run
// keeps the live feed but fills orders in a local simulated wallet.
func buildExchange(cfg config.Config, log core.Logger) (core.Feeder, core.Broker) {
	client := binance.NewBinance(cfg.Credentials.APIKey, cfg.Credentials.APISecret, log)
	if !cfg.DryRun {
		return client, client
	}

	wallet := exchange.NewDryRun(client, cfg.QuoteAsset, cfg.InitialBalance, cfg.FeeRate)
	return wallet, wallet
}

func portfolioConfig(cfg config.Config) portfolio.Config {
	p := cfg.Portfolio
	return portfolio.Config{
		Timeframe:            p.Timeframe,
		DailyTimeframe:       p.DailyTimeframe,
		CandleLimit:          p.CandleLimit,
		MaxPositions:         p.MaxPositions,
		MaxDailyLossPct:      p.MaxDailyLossPct,
		MaxConsecutiveLosses: p.MaxConsecutiveLosses,
		PerCoinTimeout:       p.PerCoinTimeout.Std(),
		TotalTimeout:         p.TotalTimeout.Std(),
		QuoteAsset:           cfg.QuoteAsset,
		RebalanceEnabled:     p.RebalanceEnabled,
		RebalanceTarget:      p.RebalanceTarget,
	}
}

func modeName(dry bool) string {
	if dry {
		return "dry-run"
	}
	return "live"
}
