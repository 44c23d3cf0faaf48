// Command jupitor-trader replays stored bars for a set of symbols through a
// registered strategy, routing every emitted signal through the risk-checked
// order engine into a broker (the in-memory simulator by default, or Alpaca
// when paper_mode is false and credentials are configured), and reports the
// resulting backtest performance.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"jupitor/internal/broker"
	"jupitor/internal/config"
	"jupitor/internal/engine"
	"jupitor/internal/store"
	"jupitor/internal/strategy"
	"jupitor/internal/strategy/builtins"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", envOr("JUPITOR_CONFIG", "config/jupitor.yaml"), "path to jupitor.yaml")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols to replay (required)")
	startFlag := flag.String("start", "", "replay start date, YYYY-MM-DD (required)")
	endFlag := flag.String("end", "", "replay end date, YYYY-MM-DD (required)")
	initialCapital := flag.Float64("capital", 100000, "starting account equity for the simulator broker")
	strategyFlag := flag.String("strategy", "tanglism-center", "registered strategy to backtest (tanglism-center or sma-cross)")
	flag.Parse()

	if *symbolsFlag == "" || *startFlag == "" || *endFlag == "" {
		return fmt.Errorf("jupitor-trader: -symbols, -start, and -end are required")
	}
	symbols := strings.Split(*symbolsFlag, ",")
	start, err := time.Parse("2006-01-02", *startFlag)
	if err != nil {
		return fmt.Errorf("jupitor-trader: -start: %w", err)
	}
	end, err := time.Parse("2006-01-02", *endFlag)
	if err != nil {
		return fmt.Errorf("jupitor-trader: -end: %w", err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("jupitor-trader: load config: %w", err)
	}

	morphCfg, err := cfg.Morph.Resolve()
	if err != nil {
		return fmt.Errorf("jupitor-trader: resolve morph config: %w", err)
	}

	bars := store.NewParquetStore(cfg.Storage.DataDir)

	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = ":memory:"
	}
	orders, err := store.NewSQLiteStore(sqlitePath)
	if err != nil {
		return fmt.Errorf("jupitor-trader: open order store: %w", err)
	}
	defer orders.Close()

	var b broker.Broker
	if cfg.Trading.PaperMode || cfg.Alpaca.APIKey == "" {
		log.Printf("jupitor-trader: using simulator broker (paper_mode=%v)", cfg.Trading.PaperMode)
		b = broker.NewSimulatorBroker(*initialCapital)
	} else {
		log.Printf("jupitor-trader: using Alpaca broker at %s", cfg.Alpaca.BaseURL)
		b = broker.NewAlpacaBroker(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
	}

	maxPositionPct := cfg.Trading.MaxPositionPct
	if maxPositionPct <= 0 {
		maxPositionPct = 0.10
	}
	maxDailyLossPct := cfg.Trading.MaxDailyLossPct
	if maxDailyLossPct <= 0 {
		maxDailyLossPct = 0.02
	}
	riskChecker := engine.NewRiskManager(maxPositionPct, maxDailyLossPct)
	eng := engine.NewEngine(b, orders, orders, riskChecker)

	registry := strategy.NewRegistry()
	registry.Register(builtins.NewTanglismCenter(morphCfg))
	registry.Register(builtins.NewSMACross(5, 20))

	backtester := strategy.NewBacktester(bars, registry, eng)
	result, err := backtester.Run(context.Background(), *strategyFlag, symbols, start, end, *initialCapital)
	if err != nil {
		return fmt.Errorf("jupitor-trader: run backtest: %w", err)
	}

	fmt.Printf("strategy:      %s\n", *strategyFlag)
	fmt.Printf("symbols:       %s\n", strings.Join(symbols, ","))
	fmt.Printf("total return:  %.4f\n", result.TotalReturn)
	fmt.Printf("sharpe ratio:  %.4f\n", result.SharpeRatio)
	fmt.Printf("max drawdown:  %.4f\n", result.MaxDrawdown)
	fmt.Printf("total trades:  %d\n", result.TotalTrades)
	fmt.Printf("win rate:      %.4f\n", result.WinRate)
	fmt.Printf("profit factor: %.4f\n", result.ProfitFactor)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
