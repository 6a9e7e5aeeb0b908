package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Bar es una vela OHLCV cerrada de una (symbol, timeframe) concreta.
// Inmutable una vez que su periodo cierra.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Body devuelve el tamaño del cuerpo de la vela.
func (b Bar) Body() float64 {
	if b.Close >= b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// BodyTop devuelve el extremo superior del cuerpo (max de open/close).
func (b Bar) BodyTop() float64 {
	if b.Open > b.Close {
		return b.Open
	}
	return b.Close
}

// BodyBottom devuelve el extremo inferior del cuerpo (min de open/close).
func (b Bar) BodyBottom() float64 {
	if b.Open < b.Close {
		return b.Open
	}
	return b.Close
}

// UpperWick devuelve la mecha superior (high - techo del cuerpo).
func (b Bar) UpperWick() float64 { return b.High - b.BodyTop() }

// LowerWick devuelve la mecha inferior (suelo del cuerpo - low).
func (b Bar) LowerWick() float64 { return b.BodyBottom() - b.Low }

// Contains devuelve true si el rango [low, high] de la vela cubre el precio dado.
func (b Bar) Contains(price float64) bool {
	return b.Low <= price && price <= b.High
}

// Timeframe identifica una resolución de la serie de velas.
type Timeframe string

const (
	TimeframeM1  Timeframe = "M1"
	TimeframeM5  Timeframe = "M5"
	TimeframeM15 Timeframe = "M15"
	TimeframeM30 Timeframe = "M30"
	TimeframeH1  Timeframe = "H1"
	TimeframeH4  Timeframe = "H4"
	TimeframeD1  Timeframe = "D1"
)

var timeframeDurations = map[Timeframe]time.Duration{
	TimeframeM1:  time.Minute,
	TimeframeM5:  5 * time.Minute,
	TimeframeM15: 15 * time.Minute,
	TimeframeM30: 30 * time.Minute,
	TimeframeH1:  time.Hour,
	TimeframeH4:  4 * time.Hour,
	TimeframeD1:  24 * time.Hour,
}

// Duration devuelve la duración de una vela de este timeframe.
// Devuelve 0 para timeframes desconocidos.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// Valid devuelve true si el timeframe es uno de los soportados.
func (tf Timeframe) Valid() bool {
	_, ok := timeframeDurations[tf]
	return ok
}

// ParseTimeframe normaliza un string ("m15", "M15") al Timeframe soportado.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	if !tf.Valid() {
		return "", fmt.Errorf("domain.ParseTimeframe: unsupported timeframe %q", s)
	}
	return tf, nil
}

// Timeframes devuelve todos los timeframes soportados, del más grueso al más fino.
func Timeframes() []Timeframe {
	tfs := make([]Timeframe, 0, len(timeframeDurations))
	for tf := range timeframeDurations {
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool {
		return tfs[i].Duration() > tfs[j].Duration()
	})
	return tfs
}

// Tick es el último precio bid/ask conocido de un símbolo.
type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

// Spread devuelve el spread absoluto del tick.
func (t Tick) Spread() float64 { return t.Ask - t.Bid }

// PriceFor devuelve el precio relevante para operar en la dirección dada:
// bid para SELL, ask para BUY.
func (t Tick) PriceFor(action Action) float64 {
	if action == ActionSell {
		return t.Bid
	}
	return t.Ask
}

// SymbolInfo son los límites de volumen del símbolo en el venue.
type SymbolInfo struct {
	Symbol     string
	VolumeMin  float64
	VolumeMax  float64
	VolumeStep float64
	Point      float64
}
