package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alejandrodnm/wickbot/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	botName := flag.String("bot", "", "strategy to run: pain|gain|both (overrides config)")
	symbol := flag.String("symbol", "", "comma-separated symbols (overrides config)")
	backtest := flag.Bool("backtest", false, "replay historical data instead of live trading")
	from := flag.String("from", "", "backtest start date (YYYY-MM-DD)")
	to := flag.String("to", "", "backtest end date (YYYY-MM-DD)")
	balance := flag.Float64("balance", 0, "backtest initial balance (overrides config)")
	relaxed := flag.Bool("relaxed", false, "evaluate all stages without short-circuiting (diagnostics)")
	table := flag.Bool("table", false, "print full trade and equity tables in backtest report")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *relaxed {
		cfg.Strategy.Relaxed = true
	}
	if *symbol != "" {
		cfg.Bot.Symbols = splitList(*symbol)
	}
	if *botName != "" && *botName != "both" {
		cfg.Bot.Strategies = []string{*botName}
	}
	if *balance > 0 {
		cfg.Backtest.InitialBalance = *balance
	}
	setupLogger(cfg.Log)

	slog.Info("wickbot starting",
		"config", *configPath,
		"strategies", cfg.Bot.Strategies,
		"symbols", cfg.Bot.Symbols,
		"backtest", *backtest,
		"relaxed", cfg.Strategy.Relaxed,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *backtest {
		if err := runBacktest(ctx, cfg, *from, *to, *table); err != nil {
			slog.Error("backtest failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := runLive(ctx, cfg); err != nil {
		slog.Error("bot exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("wickbot stopped cleanly")
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
