// Package bot contiene el loop en vivo de una estrategia: un ciclo por
// intervalo que gestiona salidas, comprueba riesgo y sesión, y evalúa el
// cascade de cada símbolo.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/wickbot/internal/domain"
	"github.com/alejandrodnm/wickbot/internal/engine"
	"github.com/alejandrodnm/wickbot/internal/ports"
	"github.com/alejandrodnm/wickbot/internal/trading"
)

// Config contiene la configuración del loop.
type Config struct {
	Name         string // "pain" o "gain"
	Symbols      []string
	PollInterval time.Duration
}

// Reporter recibe los eventos relevantes para el operador. La implementación
// de consola vive en adapters; nil silencia los reportes.
type Reporter interface {
	Signal(sig domain.Signal)
	Trade(t domain.Trade)
}

// Bot es el orquestador de una estrategia en vivo.
type Bot struct {
	cfg      Config
	engine   *engine.Engine
	manager  *trading.Manager
	risk     *trading.RiskManager
	ticks    ports.TickProvider
	account  ports.AccountProvider
	exec     ports.OrderExecutor
	reporter Reporter
}

// New crea un Bot con todas las dependencias inyectadas.
func New(
	cfg Config,
	eng *engine.Engine,
	manager *trading.Manager,
	risk *trading.RiskManager,
	ticks ports.TickProvider,
	account ports.AccountProvider,
	exec ports.OrderExecutor,
	reporter Reporter,
) *Bot {
	return &Bot{
		cfg:      cfg,
		engine:   eng,
		manager:  manager,
		risk:     risk,
		ticks:    ticks,
		account:  account,
		exec:     exec,
		reporter: reporter,
	}
}

// Run ejecuta el loop hasta que el contexto se cancele. Al parar, drena las
// posiciones abiertas antes de devolver.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("bot starting",
		"strategy", b.cfg.Name,
		"direction", b.engine.Direction(),
		"symbols", b.cfg.Symbols,
		"interval", b.cfg.PollInterval,
	)

	now := time.Now()
	if err := b.risk.Initialize(ctx, now); err != nil {
		return fmt.Errorf("bot.Run: %w", err)
	}
	b.recoverPositions(ctx)

	b.runCycle(ctx)

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.drain()
			return nil
		case <-ticker.C:
			b.runCycle(ctx)
		}
	}
}

// recoverPositions adopta las posiciones que el broker tenga abiertas con
// el tag de esta estrategia (reinicio con posiciones vivas).
func (b *Bot) recoverPositions(ctx context.Context) {
	positions, err := b.exec.OpenPositions(ctx, b.cfg.Name)
	if err != nil {
		slog.Warn("cannot recover open positions", "strategy", b.cfg.Name, "err", err)
		return
	}
	if len(positions) > 0 {
		b.manager.Adopt(positions)
	}
}

// runCycle ejecuta un ciclo completo: reset diario, salidas, gates globales
// y evaluación por símbolo.
func (b *Bot) runCycle(ctx context.Context) {
	start := time.Now()
	now := start

	if reset, err := b.risk.CheckDailyReset(ctx, now); err != nil {
		slog.Error("daily reset failed", "err", err)
	} else if reset {
		b.manager.ResetDailyCounters()
		b.engine.ResetBias()
	}

	// Las salidas se gestionan siempre, incluso halted o fuera de sesión.
	for _, trade := range b.manager.CheckExits(ctx, now) {
		if b.reporter != nil {
			b.reporter.Trade(trade)
		}
	}

	if !b.risk.InSession(now) {
		slog.Debug("outside session window", "strategy", b.cfg.Name)
		return
	}
	if ok, reason, err := b.risk.CheckLimits(ctx); err != nil {
		slog.Error("risk check failed", "err", err)
		return
	} else if !ok {
		slog.Debug("trading halted", "strategy", b.cfg.Name, "reason", reason)
		return
	}

	for _, symbol := range b.cfg.Symbols {
		b.evaluateSymbol(ctx, symbol, now)
	}

	slog.Info("cycle complete",
		"strategy", b.cfg.Name,
		"open", b.manager.OpenCount(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

// evaluateSymbol corre el cascade para un símbolo y abre posición si todos
// los gates lo permiten.
func (b *Bot) evaluateSymbol(ctx context.Context, symbol string, now time.Time) {
	sig, err := b.engine.Evaluate(ctx, symbol, now)
	if err != nil {
		slog.Error("evaluation failed", "strategy", b.cfg.Name, "symbol", symbol, "err", err)
		return
	}
	if b.reporter != nil {
		b.reporter.Signal(sig)
	}
	if sig.Action == domain.ActionNone {
		return
	}

	if ok, reason := b.manager.CanOpen(ctx, symbol, now); !ok {
		slog.Debug("entry rejected", "symbol", symbol, "reason", reason)
		return
	}

	tick, err := b.ticks.GetTick(ctx, symbol)
	if err != nil {
		slog.Error("cannot get tick", "symbol", symbol, "err", err)
		return
	}
	info, err := b.account.SymbolInfo(ctx, symbol)
	if err != nil {
		slog.Error("cannot get symbol info", "symbol", symbol, "err", err)
		return
	}
	if ok, reason := b.risk.ValidateTrade(ctx, tick, info.Point, now); !ok {
		slog.Info("trade rejected by risk", "symbol", symbol, "reason", reason)
		return
	}

	volume := b.risk.PositionSize(info)
	if _, err := b.manager.Open(ctx, sig, volume, now); err != nil {
		slog.Error("open failed", "symbol", symbol, "err", err)
		return
	}
	b.risk.RecordTrade()
}

// drain cierra todas las posiciones abiertas al parar. Usa un contexto
// propio: el del loop ya está cancelado.
func (b *Bot) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	trades := b.manager.CloseAll(ctx, time.Now(), domain.ExitShutdown)
	for _, trade := range trades {
		if b.reporter != nil {
			b.reporter.Trade(trade)
		}
	}
	slog.Info("bot stopped", "strategy", b.cfg.Name, "drained", len(trades))
}
