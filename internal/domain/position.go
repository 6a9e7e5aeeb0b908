package domain

import "time"

// ExitReason clasifica por qué se cerró una posición.
type ExitReason string

const (
	// ExitHoldComplete: la posición cumplió su ventana de retención sin
	// invalidarse.
	ExitHoldComplete ExitReason = "hold-complete"
	// ExitInvalidation: el precio cruzó al lado inválido de la purple line
	// después del hold. Actúa como stop loss y resetea el contador de
	// órdenes consecutivas del símbolo.
	ExitInvalidation ExitReason = "invalidation"
	// ExitBacktestEnd: cierre forzoso al agotar el rango del backtest.
	ExitBacktestEnd ExitReason = "backtest-end"
	// ExitShutdown: cierre forzoso al parar el bot.
	ExitShutdown ExitReason = "shutdown"
)

// Position es una posición abierta, propiedad exclusiva del gestor de
// posiciones desde su creación hasta su cierre.
type Position struct {
	Ticket     string
	Symbol     string
	Action     Action
	EntryPrice float64
	EntryTime  time.Time
	Volume     float64
	HoldUntil  time.Time
	Tag        string // estrategia propietaria (p.ej. "pain", "gain")
}

// Trade es una posición cerrada. Entrada append-only del ledger; no se muta
// después de crearse.
type Trade struct {
	Position
	ExitPrice    float64
	ExitTime     time.Time
	ExitReason   ExitReason
	PnL          float64
	BalanceAfter float64
}

// Won devuelve true si el trade cerró en positivo.
func (t Trade) Won() bool { return t.PnL > 0 }

// PnLFor calcula el P/L por movimiento de precio entre entrada y salida,
// en la dirección de la posición. pointValue convierte el movimiento de
// precio por lote a moneda de la cuenta.
func (p Position) PnLFor(exitPrice, pointValue float64) float64 {
	var move float64
	if p.Action == ActionSell {
		move = p.EntryPrice - exitPrice
	} else {
		move = exitPrice - p.EntryPrice
	}
	return move * p.Volume * pointValue
}

// RiskState es el estado del circuit breaker diario de una estrategia.
// Lo muta únicamente el RiskManager; se resetea en el rollover de día.
type RiskState struct {
	DailyStartBalance float64
	DailyProfit       float64
	DailyLoss         float64
	TradesToday       int
	Halted            bool
	HaltReason        string
	LastResetDate     time.Time // truncado a día
}
