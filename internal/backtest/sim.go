package backtest

// sim.go — broker simulado para el replay histórico.
//
// Los fills son siempre al último close causal de la serie más fina
// disponible: ni slippage ni spread simulados. El P/L es puramente por
// movimiento de precio, así que un run con los mismos datos y la misma
// configuración es reproducible bit a bit.

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/wickbot/internal/domain"
	"github.com/alejandrodnm/wickbot/internal/history"
	"github.com/google/uuid"
)

// causalBars es un BarProvider anclado a un instante que avanza con el
// reloj del backtest. Nunca entrega velas posteriores a now.
type causalBars struct {
	store *history.Store
	now   time.Time
}

func (c *causalBars) GetBars(_ context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Bar, error) {
	return c.store.BarsUpTo(symbol, tf, c.now, count), nil
}

// advance mueve el reloj causal. Solo lo llama el loop del backtester.
func (c *causalBars) advance(now time.Time) { c.now = now }

// simBroker implementa OrderExecutor y AccountProvider contra los datos
// históricos. El balance se mueve en cada cierre, igual que en un broker
// real.
type simBroker struct {
	bars       *causalBars
	balance    float64
	pointValue float64
	open       map[string]domain.Position
}

func newSimBroker(bars *causalBars, initialBalance, pointValue float64) *simBroker {
	return &simBroker{
		bars:       bars,
		balance:    initialBalance,
		pointValue: pointValue,
		open:       make(map[string]domain.Position),
	}
}

// lastPrice devuelve el último close causal del símbolo, de la serie más
// fina con datos.
func (b *simBroker) lastPrice(ctx context.Context, symbol string) (float64, error) {
	for _, tf := range []domain.Timeframe{domain.TimeframeM1, domain.TimeframeM5, domain.TimeframeM15} {
		bars, err := b.bars.GetBars(ctx, symbol, tf, 1)
		if err != nil {
			return 0, err
		}
		if len(bars) > 0 {
			return bars[len(bars)-1].Close, nil
		}
	}
	return 0, fmt.Errorf("backtest.lastPrice: no data for %s at %s", symbol, b.bars.now)
}

func (b *simBroker) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.ExecutedOrder, error) {
	price, err := b.lastPrice(ctx, req.Symbol)
	if err != nil {
		return domain.ExecutedOrder{}, fmt.Errorf("backtest.SubmitOrder: %w", err)
	}

	order := domain.ExecutedOrder{
		Ticket:    uuid.New().String(),
		Symbol:    req.Symbol,
		Action:    req.Action,
		Volume:    req.Volume,
		FillPrice: price,
		FillTime:  b.bars.now,
	}
	b.open[order.Ticket] = domain.Position{
		Ticket:     order.Ticket,
		Symbol:     req.Symbol,
		Action:     req.Action,
		EntryPrice: price,
		EntryTime:  b.bars.now,
		Volume:     req.Volume,
		Tag:        req.Tag,
	}
	return order, nil
}

func (b *simBroker) ClosePosition(ctx context.Context, ticket string) (float64, error) {
	pos, ok := b.open[ticket]
	if !ok {
		return 0, fmt.Errorf("backtest.ClosePosition: unknown ticket %s", ticket)
	}
	price, err := b.lastPrice(ctx, pos.Symbol)
	if err != nil {
		return 0, fmt.Errorf("backtest.ClosePosition: %w", err)
	}

	b.balance += pos.PnLFor(price, b.pointValue)
	delete(b.open, ticket)
	return price, nil
}

func (b *simBroker) OpenPositions(_ context.Context, tag string) ([]domain.Position, error) {
	var out []domain.Position
	for _, pos := range b.open {
		if tag == "" || pos.Tag == tag {
			out = append(out, pos)
		}
	}
	return out, nil
}

func (b *simBroker) Balance(_ context.Context) (float64, error) {
	return b.balance, nil
}

func (b *simBroker) SymbolInfo(_ context.Context, symbol string) (domain.SymbolInfo, error) {
	// Límites genéricos de un símbolo forex estándar.
	return domain.SymbolInfo{
		Symbol:     symbol,
		VolumeMin:  0.01,
		VolumeMax:  100,
		VolumeStep: 0.01,
		Point:      0.0001,
	}, nil
}
