package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/wickbot/config"
	"github.com/alejandrodnm/wickbot/internal/adapters/marketdata"
	"github.com/alejandrodnm/wickbot/internal/adapters/notify"
	"github.com/alejandrodnm/wickbot/internal/adapters/storage"
	"github.com/alejandrodnm/wickbot/internal/backtest"
	"github.com/alejandrodnm/wickbot/internal/history"
)

const dateLayout = "2006-01-02"

// runBacktest carga los CSVs históricos, ejecuta un run por estrategia
// configurada y persiste las métricas de cada uno.
func runBacktest(ctx context.Context, cfg *config.Config, fromStr, toStr string, table bool) error {
	from, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return fmt.Errorf("invalid --from date %q (want YYYY-MM-DD)", fromStr)
	}
	to, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return fmt.Errorf("invalid --to date %q (want YYYY-MM-DD)", toStr)
	}

	store := history.NewStore()
	loaded, err := marketdata.LoadDirectory(store, cfg.Backtest.DataDir)
	if err != nil {
		return fmt.Errorf("load historical data: %w", err)
	}
	if loaded == 0 {
		return fmt.Errorf("no CSV series found in %q", cfg.Backtest.DataDir)
	}
	slog.Info("historical data loaded", "dir", cfg.Backtest.DataDir, "series", loaded)

	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer ledger.Close()

	reporter := notify.NewConsole(table)

	for _, name := range cfg.Bot.Strategies {
		direction, err := config.StrategyDirection(name)
		if err != nil {
			return err
		}

		bt := backtest.New(backtest.Config{
			Symbols:        cfg.Bot.Symbols,
			From:           from,
			To:             to,
			InitialBalance: cfg.Backtest.InitialBalance,
			Engine:         cfg.EngineConfig(direction),
			Trading:        cfg.TradingConfig(),
			Risk:           cfg.RiskConfig(),
		}, store)

		res, err := bt.Run(ctx)
		if err != nil {
			return fmt.Errorf("run %s: %w", name, err)
		}

		reporter.BacktestReport(res)
		if err := ledger.SaveBacktestRun(ctx, res); err != nil {
			slog.Warn("cannot persist backtest run", "run_id", res.RunID, "err", err)
		}
	}
	return nil
}
