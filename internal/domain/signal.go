package domain

import "time"

// Action es la dirección de una señal u orden.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionNone Action = "NONE"
)

// Opposite devuelve la acción contraria. NONE se devuelve tal cual.
func (a Action) Opposite() Action {
	switch a {
	case ActionBuy:
		return ActionSell
	case ActionSell:
		return ActionBuy
	default:
		return ActionNone
	}
}

// Color es el estado de un indicador de tendencia.
type Color string

const (
	ColorGreen Color = "GREEN"
	ColorRed   Color = "RED"
)

// Matches devuelve true si el color confirma la dirección dada:
// GREEN confirma BUY, RED confirma SELL.
func (c Color) Matches(a Action) bool {
	switch a {
	case ActionBuy:
		return c == ColorGreen
	case ActionSell:
		return c == ColorRed
	default:
		return false
	}
}

// Stage identifica cada etapa de la cascada de confirmación, en orden.
type Stage int

const (
	StageBias Stage = iota + 1
	StageDailyStop
	StageMidFib
	StageStructure
	StageTrendFilter
	StageEntry
)

func (s Stage) String() string {
	switch s {
	case StageBias:
		return "d1-bias"
	case StageDailyStop:
		return "daily-stop"
	case StageMidFib:
		return "h4-fib"
	case StageStructure:
		return "h1-shingle"
	case StageTrendFilter:
		return "snake-filter"
	case StageEntry:
		return "entry"
	default:
		return "unknown"
	}
}

// Confirmations es el registro ordenado de las seis etapas de una evaluación.
// Se construye una vez por evaluación y no se muta después.
//
// LastStage indica hasta qué etapa llegó la evaluación: en modo estricto una
// etapa fallida corta la cascada y las posteriores quedan sin poblar.
type Confirmations struct {
	LastStage Stage

	// Etapa 1: sesgo diario por mecha D1.
	Bias       Action
	WickSize   float64
	Wick50     float64
	BiasOK     bool

	// Etapa 2: 50% de la mecha del día anterior ya rellenado.
	DayStopped bool

	// Etapa 3: la vela H4 de mayor cuerpo cubre el 50% Fib del rango M15.
	H4FibOK    bool
	H4FibLevel float64

	// Etapa 4: precio al lado correcto de la shingle H1.
	ShingleOK    bool
	ShingleColor Color

	// Etapa 5: snake M30 y M15 del color de la dirección.
	SnakeM30OK    bool
	SnakeM15OK    bool
	SnakeM30Color Color
	SnakeM15Color Color

	// Etapa 6: break + retest de la purple line en el timeframe de entrada.
	// SquidColor es informativo: registra la pendiente de la squid en el
	// timeframe de entrada pero no veta la señal.
	EntryOK        bool
	EntryTimeframe Timeframe
	PurpleLine     float64
	SquidColor     Color
}

// Signal es el resultado inmutable de una evaluación de la cascada.
// Action es NONE cuando el sistema se abstiene (sin opinión); nunca se
// modela el "no señal" como error.
type Signal struct {
	Action        Action
	Symbol        string
	Price         float64
	Time          time.Time
	Confirmations Confirmations
}

// NoSignal construye la abstención estándar con las confirmaciones parciales.
func NoSignal(symbol string, at time.Time, conf Confirmations) Signal {
	return Signal{Action: ActionNone, Symbol: symbol, Time: at, Confirmations: conf}
}
