package ports

import (
	"context"

	"github.com/alejandrodnm/wickbot/internal/domain"
)

// BarProvider entrega velas de una (symbol, timeframe).
//
// Las implementaciones causales (replay histórico) garantizan que ninguna
// vela devuelta es posterior al instante al que está anclada la vista; las
// implementaciones en vivo devuelven las últimas count velas conocidas.
type BarProvider interface {
	// GetBars devuelve hasta count velas, ordenadas por timestamp
	// ascendente. Una serie vacía no es un error: el llamador se abstiene.
	GetBars(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Bar, error)
}

// TickProvider entrega el último tick bid/ask de un símbolo.
type TickProvider interface {
	GetTick(ctx context.Context, symbol string) (domain.Tick, error)
}
