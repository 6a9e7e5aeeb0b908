package trading

// positions.go — ciclo de vida de las posiciones de una estrategia.
//
// Entradas: tope de órdenes consecutivas, cooldown (hold + velas de espera)
// y lado correcto de la purple line. Salidas: nunca antes de HoldUntil;
// después, invalidación si el precio cruzó la línea (resetea el contador
// del símbolo) o cierre normal por hold cumplido. Cada cierre produce
// exactamente un Trade.
//
// Las posiciones viven en un mapa por ticket y las salidas se recogen
// primero y se drenan después: nada de borrar mientras se itera.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/wickbot/internal/domain"
	"github.com/alejandrodnm/wickbot/internal/ports"
	"github.com/google/uuid"
)

// Config son los parámetros del gestor de posiciones.
type Config struct {
	HoldWindow     time.Duration // retención normal de cada posición
	WaitCandles    int           // velas extra de espera tras el hold
	FinestPeriod   time.Duration // duración de la vela más fina (M5)
	MaxConsecutive int           // tope de órdenes seguidas por símbolo
	PurpleLineEMA  int
	PointValue     float64 // conversión movimiento×lote → moneda de cuenta
}

// DefaultConfig devuelve los parámetros de producción.
func DefaultConfig() Config {
	return Config{
		HoldWindow:     5 * time.Minute,
		WaitCandles:    1,
		FinestPeriod:   5 * time.Minute,
		MaxConsecutive: 3,
		PurpleLineEMA:  34,
		PointValue:     10000,
	}
}

// Cooldown devuelve la espera mínima entre entradas de un mismo símbolo.
func (c Config) Cooldown() time.Duration {
	return c.HoldWindow + time.Duration(c.WaitCandles)*c.FinestPeriod
}

// Manager posee las posiciones abiertas de una estrategia desde la apertura
// hasta el cierre. No es concurrente: cada loop de estrategia tiene el suyo.
type Manager struct {
	cfg       Config
	direction domain.Action
	tag       string

	exec    ports.OrderExecutor
	bars    ports.BarProvider
	account ports.AccountProvider // opcional: balance para el ledger
	ledger  ports.TradeLedger     // opcional

	open        map[string]domain.Position
	lastEntry   map[string]time.Time
	consecutive map[string]int
}

// NewManager crea el gestor para una estrategia. account y ledger pueden
// ser nil.
func NewManager(cfg Config, direction domain.Action, tag string, exec ports.OrderExecutor, bars ports.BarProvider, account ports.AccountProvider, ledger ports.TradeLedger) *Manager {
	return &Manager{
		cfg:         cfg,
		direction:   direction,
		tag:         tag,
		exec:        exec,
		bars:        bars,
		account:     account,
		ledger:      ledger,
		open:        make(map[string]domain.Position),
		lastEntry:   make(map[string]time.Time),
		consecutive: make(map[string]int),
	}
}

// CanOpen comprueba los tres gates de entrada en orden y devuelve la primera
// razón de rechazo. Un rechazo no es un error: la estrategia simplemente no
// entra.
func (m *Manager) CanOpen(ctx context.Context, symbol string, now time.Time) (bool, string) {
	if n := m.consecutive[symbol]; n >= m.cfg.MaxConsecutive {
		return false, fmt.Sprintf("max consecutive orders reached (%d)", n)
	}

	if last, ok := m.lastEntry[symbol]; ok {
		elapsed := now.Sub(last)
		if elapsed < m.cfg.Cooldown() {
			return false, fmt.Sprintf("waiting period not complete (%s/%s)",
				elapsed.Round(time.Second), m.cfg.Cooldown())
		}
	}

	ok, reason, err := m.lineSideOK(ctx, symbol)
	if err != nil {
		return false, "cannot retrieve M5 data"
	}
	if !ok {
		return false, reason
	}

	return true, "OK"
}

// errNoBars marca un fallo de datos: la línea no se pudo evaluar. No es lo
// mismo que un cruce.
var errNoBars = errors.New("trading: cannot retrieve M5 data")

// lineSideOK verifica que el precio sigue al lado válido de la purple line
// M5 para la dirección de la estrategia. Un error significa que no hay
// datos para decidir; el llamador elige si eso bloquea (entrada) o se
// reintenta al siguiente tick (salida).
func (m *Manager) lineSideOK(ctx context.Context, symbol string) (bool, string, error) {
	bars, err := m.bars.GetBars(ctx, symbol, domain.TimeframeM5, 10)
	if err != nil {
		return false, "", fmt.Errorf("%w: %v", errNoBars, err)
	}
	if len(bars) == 0 {
		return false, "", errNoBars
	}

	purple := domain.PurpleLine(bars, m.cfg.PurpleLineEMA)
	price := bars[len(bars)-1].Close
	line := purple[len(purple)-1]

	if m.direction == domain.ActionSell && price >= line {
		return false, "price above purple line (SELL invalidated)", nil
	}
	if m.direction == domain.ActionBuy && price <= line {
		return false, "price below purple line (BUY invalidated)", nil
	}
	return true, "OK", nil
}

// Open envía la orden al ejecutor y registra la posición resultante.
// El llamador debe haber pasado CanOpen y la validación de riesgo.
func (m *Manager) Open(ctx context.Context, sig domain.Signal, volume float64, now time.Time) (domain.Position, error) {
	order, err := m.exec.SubmitOrder(ctx, domain.OrderRequest{
		Symbol: sig.Symbol,
		Action: sig.Action,
		Volume: volume,
		Tag:    m.tag,
	})
	if err != nil {
		return domain.Position{}, fmt.Errorf("trading.Open: submit %s %s: %w", sig.Action, sig.Symbol, err)
	}

	ticket := order.Ticket
	if ticket == "" {
		ticket = uuid.New().String()
	}

	pos := domain.Position{
		Ticket:     ticket,
		Symbol:     sig.Symbol,
		Action:     sig.Action,
		EntryPrice: order.FillPrice,
		EntryTime:  now,
		Volume:     volume,
		HoldUntil:  now.Add(m.cfg.HoldWindow),
		Tag:        m.tag,
	}

	m.open[pos.Ticket] = pos
	m.lastEntry[sig.Symbol] = now
	m.consecutive[sig.Symbol]++

	if m.ledger != nil {
		if err := m.ledger.RecordOpen(ctx, pos); err != nil {
			slog.Warn("ledger error on open", "ticket", pos.Ticket, "err", err)
		}
	}

	slog.Info("position opened",
		"ticket", pos.Ticket,
		"symbol", pos.Symbol,
		"action", pos.Action,
		"volume", pos.Volume,
		"price", pos.EntryPrice,
		"hold_until", pos.HoldUntil,
	)
	return pos, nil
}

// exitDecision es una salida ya decidida, pendiente de drenar.
type exitDecision struct {
	ticket string
	reason domain.ExitReason
}

// CheckExits reevalúa todas las posiciones abiertas en el instante now y
// cierra las que toquen. Devuelve los Trades generados.
func (m *Manager) CheckExits(ctx context.Context, now time.Time) []domain.Trade {
	var due []exitDecision

	for ticket, pos := range m.open {
		if now.Before(pos.HoldUntil) {
			continue
		}

		// Cumplido el hold: ¿sigue el precio al lado válido de la línea?
		// Sin datos no hay veredicto: la posición queda abierta y se
		// reevalúa al siguiente tick.
		ok, _, err := m.lineSideOK(ctx, pos.Symbol)
		if err != nil {
			slog.Warn("cannot evaluate exit, keeping position open",
				"ticket", ticket, "symbol", pos.Symbol, "err", err)
			continue
		}
		if !ok {
			due = append(due, exitDecision{ticket, domain.ExitInvalidation})
			continue
		}
		due = append(due, exitDecision{ticket, domain.ExitHoldComplete})
	}

	trades := make([]domain.Trade, 0, len(due))
	for _, d := range due {
		trade, err := m.closeTicket(ctx, d.ticket, now, d.reason)
		if err != nil {
			slog.Error("close failed", "ticket", d.ticket, "err", err)
			continue
		}
		trades = append(trades, trade)
	}
	return trades
}

// CloseAll fuerza el cierre de todas las posiciones abiertas (drenado en
// cancelación o fin de backtest).
func (m *Manager) CloseAll(ctx context.Context, now time.Time, reason domain.ExitReason) []domain.Trade {
	tickets := make([]string, 0, len(m.open))
	for t := range m.open {
		tickets = append(tickets, t)
	}

	trades := make([]domain.Trade, 0, len(tickets))
	for _, t := range tickets {
		trade, err := m.closeTicket(ctx, t, now, reason)
		if err != nil {
			slog.Error("close failed", "ticket", t, "err", err)
			continue
		}
		trades = append(trades, trade)
	}
	return trades
}

// closeTicket cierra una posición, produce su Trade y la retira del set
// abierto. Una invalidación resetea el contador de consecutivas: es una
// señal de pérdida que no debe acumular más entradas apiladas.
func (m *Manager) closeTicket(ctx context.Context, ticket string, now time.Time, reason domain.ExitReason) (domain.Trade, error) {
	pos, ok := m.open[ticket]
	if !ok {
		return domain.Trade{}, fmt.Errorf("trading.closeTicket: unknown ticket %s", ticket)
	}

	exitPrice, err := m.exec.ClosePosition(ctx, ticket)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("trading.closeTicket: close %s: %w", ticket, err)
	}

	var balance float64
	if m.account != nil {
		if b, err := m.account.Balance(ctx); err == nil {
			balance = b
		}
	}

	trade := domain.Trade{
		Position:     pos,
		ExitPrice:    exitPrice,
		ExitTime:     now,
		ExitReason:   reason,
		PnL:          pos.PnLFor(exitPrice, m.cfg.PointValue),
		BalanceAfter: balance,
	}

	delete(m.open, ticket)
	if reason == domain.ExitInvalidation {
		m.consecutive[pos.Symbol] = 0
	}

	if m.ledger != nil {
		if err := m.ledger.RecordClose(ctx, trade); err != nil {
			slog.Warn("ledger error on close", "ticket", ticket, "err", err)
		}
	}

	slog.Info("position closed",
		"ticket", ticket,
		"symbol", pos.Symbol,
		"reason", reason,
		"pnl", trade.PnL,
	)
	return trade, nil
}

// Adopt registra posiciones abiertas fuera de este proceso (recuperadas
// del broker tras un reinicio) para gestionarlas como propias.
func (m *Manager) Adopt(positions []domain.Position) {
	for _, pos := range positions {
		if pos.HoldUntil.IsZero() {
			pos.HoldUntil = pos.EntryTime.Add(m.cfg.HoldWindow)
		}
		m.open[pos.Ticket] = pos
		slog.Info("position adopted", "ticket", pos.Ticket, "symbol", pos.Symbol)
	}
}

// OpenCount devuelve el número de posiciones abiertas.
func (m *Manager) OpenCount() int { return len(m.open) }

// Consecutive devuelve el contador de órdenes consecutivas del símbolo.
func (m *Manager) Consecutive(symbol string) int { return m.consecutive[symbol] }

// ResetDailyCounters limpia los contadores de consecutivas (rollover de día).
func (m *Manager) ResetDailyCounters() {
	m.consecutive = make(map[string]int)
	slog.Info("daily counters reset", "tag", m.tag)
}
