package domain

import "time"

// OrderRequest es una orden de mercado lista para enviarse al ejecutor.
type OrderRequest struct {
	Symbol string
	Action Action
	Volume float64
	Tag    string
}

// ExecutedOrder es la confirmación de una orden aceptada por el venue.
type ExecutedOrder struct {
	Ticket    string
	Symbol    string
	Action    Action
	Volume    float64
	FillPrice float64
	FillTime  time.Time
}
