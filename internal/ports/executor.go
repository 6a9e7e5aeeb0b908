package ports

import (
	"context"

	"github.com/alejandrodnm/wickbot/internal/domain"
)

// OrderExecutor envía y cierra órdenes en el venue.
//
// La serialización por (estrategia, símbolo) la garantiza el cooldown del
// entry gate, no un lock: cada loop de estrategia es mono-hilo.
type OrderExecutor interface {
	// SubmitOrder envía una orden de mercado y devuelve el fill.
	SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.ExecutedOrder, error)

	// ClosePosition cierra la posición identificada por su ticket y
	// devuelve el precio de salida.
	ClosePosition(ctx context.Context, ticket string) (float64, error)

	// OpenPositions devuelve las posiciones abiertas con el tag dado.
	OpenPositions(ctx context.Context, tag string) ([]domain.Position, error)
}

// AccountProvider expone el estado de la cuenta y los límites del símbolo.
type AccountProvider interface {
	// Balance devuelve el balance actual de la cuenta. Es la fuente
	// autoritativa del P/L diario del circuit breaker.
	Balance(ctx context.Context) (float64, error)

	// SymbolInfo devuelve los límites de volumen del símbolo.
	SymbolInfo(ctx context.Context, symbol string) (domain.SymbolInfo, error)
}
