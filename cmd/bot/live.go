package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/wickbot/config"
	"github.com/alejandrodnm/wickbot/internal/adapters/marketdata"
	"github.com/alejandrodnm/wickbot/internal/adapters/notify"
	"github.com/alejandrodnm/wickbot/internal/adapters/storage"
	"github.com/alejandrodnm/wickbot/internal/bot"
	"github.com/alejandrodnm/wickbot/internal/engine"
	"github.com/alejandrodnm/wickbot/internal/trading"
)

// runLive lanza un loop por estrategia configurada contra el bridge del
// broker. Cada estrategia lleva su propio engine, gestor de posiciones y
// circuit breaker; comparten el client HTTP y el ledger.
func runLive(ctx context.Context, cfg *config.Config) error {
	client := marketdata.NewClient(cfg.Broker.BridgeBase)

	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer ledger.Close()

	reporter := notify.NewConsole(false)

	var wg sync.WaitGroup
	for _, name := range cfg.Bot.Strategies {
		direction, err := config.StrategyDirection(name)
		if err != nil {
			return err
		}

		eng := engine.New(cfg.EngineConfig(direction), client, client)
		mgr := trading.NewManager(cfg.TradingConfig(), direction, name, client, client, client, ledger)
		risk := trading.NewRiskManager(cfg.RiskConfig(), client)

		b := bot.New(
			bot.Config{
				Name:         name,
				Symbols:      cfg.Bot.Symbols,
				PollInterval: cfg.PollInterval(),
			},
			eng, mgr, risk, client, client, client, reporter,
		)

		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := b.Run(ctx); err != nil {
				slog.Error("strategy loop failed", "strategy", name, "err", err)
			}
		}(name)
	}

	wg.Wait()
	return nil
}
