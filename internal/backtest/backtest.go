package backtest

// backtest.go — replay histórico del cascade de confirmaciones.
//
// El driver compone exactamente los mismos módulos que el bot en vivo
// (engine + gestor de posiciones + circuit breaker) contra un broker
// simulado y vistas causales del histórico. La única diferencia con el
// modo live es de dónde salen velas y fills, no la lógica que los consume.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/wickbot/internal/domain"
	"github.com/alejandrodnm/wickbot/internal/engine"
	"github.com/alejandrodnm/wickbot/internal/history"
	"github.com/alejandrodnm/wickbot/internal/trading"
	"github.com/google/uuid"
)

// tickStep es la resolución del reloj del backtest.
const tickStep = 5 * time.Minute

// Config describe un run de backtest.
type Config struct {
	Symbols        []string
	From           time.Time
	To             time.Time
	InitialBalance float64

	Engine  engine.Config
	Trading trading.Config
	Risk    trading.RiskConfig
}

// EquityPoint es el balance al cierre de un día del run.
type EquityPoint struct {
	Date    time.Time
	Balance float64
}

// Result es el resultado completo de un run.
type Result struct {
	RunID          string
	Symbols        []string
	From           time.Time
	To             time.Time
	Mode           engine.Mode
	Direction      domain.Action
	InitialBalance float64
	FinalBalance   float64
	Trades         []domain.Trade
	Equity         []EquityPoint
	Stats          Statistics
}

// Backtester ejecuta un run contra un Store ya precargado (incluido el
// warm-up anterior a From: los indicadores necesitan histórico previo).
type Backtester struct {
	cfg   Config
	store *history.Store
}

// New crea el backtester. El store debe contener todas las series que el
// cascade consulta para cada símbolo.
func New(cfg Config, store *history.Store) *Backtester {
	return &Backtester{cfg: cfg, store: store}
}

// Run ejecuta el replay completo. Respeta la cancelación del contexto:
// en ese caso devuelve el resultado parcial junto al error del contexto.
func (b *Backtester) Run(ctx context.Context) (*Result, error) {
	if len(b.cfg.Symbols) == 0 {
		return nil, fmt.Errorf("backtest.Run: no symbols configured")
	}
	if !b.cfg.To.After(b.cfg.From) {
		return nil, fmt.Errorf("backtest.Run: empty range %s..%s", b.cfg.From, b.cfg.To)
	}
	for _, sym := range b.cfg.Symbols {
		if !b.store.HasSeries(sym, domain.TimeframeD1) {
			slog.Warn("no daily data for symbol, bias stage will abstain", "symbol", sym)
		}
	}

	causal := &causalBars{store: b.store, now: b.cfg.From}
	broker := newSimBroker(causal, b.cfg.InitialBalance, b.cfg.Trading.PointValue)
	eng := engine.New(b.cfg.Engine, causal, nil)
	mgr := trading.NewManager(b.cfg.Trading, b.cfg.Engine.Direction, "backtest", broker, causal, broker, nil)
	risk := trading.NewRiskManager(b.cfg.Risk, broker)

	if err := risk.Initialize(ctx, b.cfg.From); err != nil {
		return nil, fmt.Errorf("backtest.Run: %w", err)
	}

	res := &Result{
		RunID:          uuid.New().String(),
		Symbols:        b.cfg.Symbols,
		From:           b.cfg.From,
		To:             b.cfg.To,
		Mode:           b.cfg.Engine.Mode,
		Direction:      b.cfg.Engine.Direction,
		InitialBalance: b.cfg.InitialBalance,
	}

	slog.Info("backtest started",
		"run_id", res.RunID,
		"symbols", b.cfg.Symbols,
		"from", b.cfg.From.Format("2006-01-02"),
		"to", b.cfg.To.Format("2006-01-02"),
		"mode", b.cfg.Engine.Mode,
	)

	lastDay := trading.StartOfDay(b.cfg.From)
	now := b.cfg.From
	for !now.After(b.cfg.To) {
		if err := ctx.Err(); err != nil {
			b.finish(ctx, res, broker, mgr, now)
			return res, err
		}

		causal.advance(now)

		// Rollover de día: punto de equity y reset diario.
		if day := trading.StartOfDay(now); day.After(lastDay) {
			res.Equity = append(res.Equity, EquityPoint{Date: lastDay, Balance: broker.balance})
			lastDay = day
			if _, err := risk.CheckDailyReset(ctx, now); err != nil {
				return nil, fmt.Errorf("backtest.Run: %w", err)
			}
			mgr.ResetDailyCounters()
		}

		// Las salidas se gestionan siempre, incluso con el riesgo halted
		// o fuera de sesión.
		res.Trades = append(res.Trades, mgr.CheckExits(ctx, now)...)

		if !risk.InSession(now) {
			now = now.Add(tickStep)
			continue
		}
		if ok, _, err := risk.CheckLimits(ctx); err != nil {
			return nil, fmt.Errorf("backtest.Run: %w", err)
		} else if !ok {
			now = now.Add(tickStep)
			continue
		}

		for _, sym := range b.cfg.Symbols {
			b.tryEntry(ctx, eng, mgr, risk, broker, sym, now)
		}

		now = now.Add(tickStep)
	}

	b.finish(ctx, res, broker, mgr, b.cfg.To)
	slog.Info("backtest finished",
		"run_id", res.RunID,
		"trades", res.Stats.TotalTrades,
		"final_balance", res.FinalBalance,
	)
	return res, nil
}

// tryEntry evalúa el cascade para un símbolo y abre posición si todos los
// gates lo permiten. Las abstenciones no son errores; los fallos de datos
// se loguean y el tick sigue.
func (b *Backtester) tryEntry(ctx context.Context, eng *engine.Engine, mgr *trading.Manager, risk *trading.RiskManager, broker *simBroker, symbol string, now time.Time) {
	sig, err := eng.Evaluate(ctx, symbol, now)
	if err != nil {
		slog.Error("evaluation failed", "symbol", symbol, "at", now, "err", err)
		return
	}
	if sig.Action == domain.ActionNone {
		return
	}

	if ok, reason := mgr.CanOpen(ctx, symbol, now); !ok {
		slog.Debug("entry rejected", "symbol", symbol, "reason", reason)
		return
	}

	price, err := broker.lastPrice(ctx, symbol)
	if err != nil {
		slog.Error("no price for entry", "symbol", symbol, "err", err)
		return
	}
	info, _ := broker.SymbolInfo(ctx, symbol)
	tick := domain.Tick{Symbol: symbol, Bid: price, Ask: price, Time: now}
	if ok, reason := risk.ValidateTrade(ctx, tick, info.Point, now); !ok {
		slog.Debug("trade rejected by risk", "symbol", symbol, "reason", reason)
		return
	}

	volume := risk.PositionSize(info)
	if _, err := mgr.Open(ctx, sig, volume, now); err != nil {
		slog.Error("open failed", "symbol", symbol, "err", err)
		return
	}
	risk.RecordTrade()
}

// finish cierra lo que quede abierto, sella la curva de equity y calcula
// las estadísticas.
func (b *Backtester) finish(ctx context.Context, res *Result, broker *simBroker, mgr *trading.Manager, now time.Time) {
	res.Trades = append(res.Trades, mgr.CloseAll(ctx, now, domain.ExitBacktestEnd)...)
	res.FinalBalance = broker.balance
	res.Equity = append(res.Equity, EquityPoint{Date: trading.StartOfDay(now), Balance: broker.balance})
	res.Stats = ComputeStatistics(res.InitialBalance, res.Trades, res.Equity)
}
