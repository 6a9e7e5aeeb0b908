package ports

import (
	"context"

	"github.com/alejandrodnm/wickbot/internal/domain"
)

// TradeLedger recibe los eventos de apertura y cierre para su persistencia.
// El core solo emite el evento; el formato de almacenamiento es cosa del
// adapter.
type TradeLedger interface {
	RecordOpen(ctx context.Context, p domain.Position) error
	RecordClose(ctx context.Context, t domain.Trade) error
	Close() error
}
