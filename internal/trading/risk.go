package trading

// risk.go — circuit breaker diario y dimensionado de lotes.
//
// El P/L del día no se acumula trade a trade: se deriva del balance actual
// contra el balance de apertura del día en cada comprobación. Así los
// swaps, comisiones o cierres manuales del broker cuentan igual. Una vez
// disparado un límite el halt es monótono hasta el reset diario, aunque el
// balance vuelva a territorio permitido.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/wickbot/internal/domain"
	"github.com/alejandrodnm/wickbot/internal/ports"
)

// ClockTime es una hora del día sin fecha, para la ventana de sesión.
type ClockTime struct {
	Hour   int
	Minute int
}

// Minutes devuelve los minutos desde medianoche.
func (c ClockTime) Minutes() int { return c.Hour*60 + c.Minute }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock interpreta una hora "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("trading.ParseClock: invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("trading.ParseClock: invalid hour %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("trading.ParseClock: invalid minute %q", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// RiskConfig son los límites del circuit breaker.
type RiskConfig struct {
	DailyStopUSD    float64 // pérdida diaria máxima (valor positivo)
	DailyTargetUSD  float64 // objetivo de beneficio diario
	BaseLot         float64
	MinLot          float64
	MaxLot          float64
	MaxSpreadPoints float64 // spread máximo tolerado, en points
	SessionStart    ClockTime
	SessionEnd      ClockTime
}

// DefaultRiskConfig devuelve los límites de producción.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		DailyStopUSD:    40,
		DailyTargetUSD:  100,
		BaseLot:         0.10,
		MinLot:          0.01,
		MaxLot:          1.0,
		MaxSpreadPoints: 30,
		SessionStart:    ClockTime{Hour: 19},
		SessionEnd:      ClockTime{Hour: 6},
	}
}

// RiskManager aplica los límites diarios de una estrategia. No es
// concurrente: cada loop tiene el suyo.
type RiskManager struct {
	cfg     RiskConfig
	account ports.AccountProvider
	state   domain.RiskState
}

// NewRiskManager crea el circuit breaker.
func NewRiskManager(cfg RiskConfig, account ports.AccountProvider) *RiskManager {
	return &RiskManager{cfg: cfg, account: account}
}

// Initialize captura el balance de apertura del día. Debe llamarse antes
// del primer CheckLimits.
func (r *RiskManager) Initialize(ctx context.Context, now time.Time) error {
	balance, err := r.account.Balance(ctx)
	if err != nil {
		return fmt.Errorf("trading.Initialize: balance: %w", err)
	}
	r.reset(balance, now)
	slog.Info("risk manager initialized",
		"balance", balance,
		"daily_stop", r.cfg.DailyStopUSD,
		"daily_target", r.cfg.DailyTargetUSD,
	)
	return nil
}

func (r *RiskManager) reset(balance float64, now time.Time) {
	r.state = domain.RiskState{
		DailyStartBalance: balance,
		LastResetDate:     StartOfDay(now),
	}
}

// StartOfDay devuelve la medianoche de t en su propia zona. El rollover
// diario sigue el mismo reloj en el que está expresada la ventana de
// sesión: el que el llamador use para now.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CheckDailyReset resetea el estado si cambió el día. Devuelve true si hubo
// reset.
func (r *RiskManager) CheckDailyReset(ctx context.Context, now time.Time) (bool, error) {
	today := StartOfDay(now)
	if !today.After(r.state.LastResetDate) {
		return false, nil
	}
	balance, err := r.account.Balance(ctx)
	if err != nil {
		return false, fmt.Errorf("trading.CheckDailyReset: balance: %w", err)
	}
	r.reset(balance, now)
	slog.Info("daily risk reset", "date", today.Format("2006-01-02"), "balance", balance)
	return true, nil
}

// refreshPnL deriva el P/L del día del balance actual.
func (r *RiskManager) refreshPnL(ctx context.Context) error {
	balance, err := r.account.Balance(ctx)
	if err != nil {
		return fmt.Errorf("trading.refreshPnL: balance: %w", err)
	}
	pnl := balance - r.state.DailyStartBalance
	if pnl >= 0 {
		r.state.DailyProfit = pnl
		r.state.DailyLoss = 0
	} else {
		r.state.DailyProfit = 0
		r.state.DailyLoss = -pnl
	}
	return nil
}

// CheckLimits comprueba el stop y el target diarios. Una vez halted, sigue
// halted hasta el reset diario independientemente del balance.
func (r *RiskManager) CheckLimits(ctx context.Context) (bool, string, error) {
	if r.state.Halted {
		return false, r.state.HaltReason, nil
	}
	if err := r.refreshPnL(ctx); err != nil {
		return false, "", err
	}

	if r.cfg.DailyStopUSD > 0 && r.state.DailyLoss >= r.cfg.DailyStopUSD {
		r.halt(fmt.Sprintf("daily stop hit: -%.2f USD", r.state.DailyLoss))
		return false, r.state.HaltReason, nil
	}
	if r.cfg.DailyTargetUSD > 0 && r.state.DailyProfit >= r.cfg.DailyTargetUSD {
		r.halt(fmt.Sprintf("daily target hit: +%.2f USD", r.state.DailyProfit))
		return false, r.state.HaltReason, nil
	}
	return true, "OK", nil
}

func (r *RiskManager) halt(reason string) {
	r.state.Halted = true
	r.state.HaltReason = reason
	slog.Warn("trading halted", "reason", reason)
}

// InSession comprueba la ventana de sesión. Si start > end la ventana cruza
// medianoche: dentro si now >= start o now <= end.
func (r *RiskManager) InSession(now time.Time) bool {
	start := r.cfg.SessionStart.Minutes()
	end := r.cfg.SessionEnd.Minutes()
	n := now.Hour()*60 + now.Minute()

	if start <= end {
		return n >= start && n <= end
	}
	return n >= start || n <= end
}

// PositionSize devuelve el lote base ajustado a los límites del símbolo:
// primero clip a [min, max], luego redondeo al step del broker.
func (r *RiskManager) PositionSize(info domain.SymbolInfo) float64 {
	lot := r.cfg.BaseLot

	minLot := math.Max(r.cfg.MinLot, info.VolumeMin)
	maxLot := math.Min(r.cfg.MaxLot, info.VolumeMax)
	if info.VolumeMax <= 0 {
		maxLot = r.cfg.MaxLot
	}
	lot = math.Min(math.Max(lot, minLot), maxLot)

	if info.VolumeStep > 0 {
		lot = math.Round(lot/info.VolumeStep) * info.VolumeStep
	}
	return lot
}

// ValidateTrade es la última barrera antes de enviar una orden: sesión,
// límites diarios y spread del tick.
func (r *RiskManager) ValidateTrade(ctx context.Context, tick domain.Tick, point float64, now time.Time) (bool, string) {
	if !r.InSession(now) {
		return false, fmt.Sprintf("outside session window (%s-%s)", r.cfg.SessionStart, r.cfg.SessionEnd)
	}

	ok, reason, err := r.CheckLimits(ctx)
	if err != nil {
		return false, fmt.Sprintf("cannot check limits: %v", err)
	}
	if !ok {
		return false, reason
	}

	if r.cfg.MaxSpreadPoints > 0 && point > 0 {
		spread := tick.Spread() / point
		if spread > r.cfg.MaxSpreadPoints {
			return false, fmt.Sprintf("spread too wide: %.1f points", spread)
		}
	}
	return true, "OK"
}

// RecordTrade incrementa el contador de trades del día.
func (r *RiskManager) RecordTrade() { r.state.TradesToday++ }

// State devuelve una copia del estado actual.
func (r *RiskManager) State() domain.RiskState { return r.state }
