package domain_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/wickbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bar construye una vela para los tests; el timestamp es irrelevante para
// los indicadores.
func bar(o, h, l, c float64) domain.Bar {
	return domain.Bar{Time: time.Now(), Open: o, High: h, Low: l, Close: c}
}

// flatBars construye n velas con todos los precios iguales a v.
func flatBars(n int, v float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = bar(v, v, v, v)
	}
	return bars
}

func TestEMA_ConstantSeries(t *testing.T) {
	values := []float64{1.5, 1.5, 1.5, 1.5, 1.5}
	ema := domain.EMA(values, 3)

	require.Len(t, ema, 5)
	for _, v := range ema {
		assert.InDelta(t, 1.5, v, 1e-12)
	}
}

func TestEMA_SeededWithFirstValue(t *testing.T) {
	ema := domain.EMA([]float64{10, 20}, 3)

	require.Len(t, ema, 2)
	assert.InDelta(t, 10.0, ema[0], 1e-12)
	// alpha = 2/(3+1) = 0.5 → 0.5*20 + 0.5*10
	assert.InDelta(t, 15.0, ema[1], 1e-12)
}

func TestEMA_InvalidInput(t *testing.T) {
	assert.Nil(t, domain.EMA(nil, 3))
	assert.Nil(t, domain.EMA([]float64{1, 2}, 0))
}

func TestWickBias_UpperWickDominates(t *testing.T) {
	// Vela cerrada: O=100 C=102 H=110 L=99 → mecha superior 8 vs inferior 1.
	daily := []domain.Bar{
		bar(100, 110, 99, 102),
		bar(102, 103, 101, 102), // día en curso, se ignora
	}

	bias, wickSize, wick50 := domain.WickBias(daily)

	assert.Equal(t, domain.ActionBuy, bias)
	assert.InDelta(t, 8.0, wickSize, 1e-12)
	// Punto medio entre el techo del cuerpo (102) y el high (110).
	assert.InDelta(t, 106.0, wick50, 1e-12)
}

func TestWickBias_LowerWickDominates(t *testing.T) {
	daily := []domain.Bar{
		bar(102, 103, 90, 100), // mecha inferior 10, superior 1
		bar(100, 101, 99, 100),
	}

	bias, wickSize, wick50 := domain.WickBias(daily)

	assert.Equal(t, domain.ActionSell, bias)
	assert.InDelta(t, 10.0, wickSize, 1e-12)
	assert.InDelta(t, 95.0, wick50, 1e-12)
}

func TestWickBias_TieResolvesToSell(t *testing.T) {
	// Mechas iguales (2 y 2) → SELL.
	daily := []domain.Bar{
		bar(100, 104, 98, 102),
		bar(102, 103, 101, 102),
	}

	bias, _, _ := domain.WickBias(daily)
	assert.Equal(t, domain.ActionSell, bias)
}

func TestWickBias_InsufficientData(t *testing.T) {
	bias, wickSize, wick50 := domain.WickBias([]domain.Bar{bar(1, 2, 0, 1)})

	assert.Equal(t, domain.ActionNone, bias)
	assert.Zero(t, wickSize)
	assert.Zero(t, wick50)
}

func TestWick50Filled(t *testing.T) {
	// BUY: se rellena al subir hasta el nivel.
	assert.True(t, domain.Wick50Filled(106.5, domain.ActionBuy, 106))
	assert.False(t, domain.Wick50Filled(105.0, domain.ActionBuy, 106))

	// SELL: se rellena al bajar hasta el nivel.
	assert.True(t, domain.Wick50Filled(94.0, domain.ActionSell, 95))
	assert.False(t, domain.Wick50Filled(96.0, domain.ActionSell, 95))

	assert.False(t, domain.Wick50Filled(100, domain.ActionNone, 100))
}

func TestFibonacciLevels_Midpoint(t *testing.T) {
	levels := domain.FibonacciLevels(1.10, 1.00)

	assert.InDelta(t, 1.10, levels.L0, 1e-12)
	assert.InDelta(t, 1.05, levels.L500, 1e-12)
	assert.InDelta(t, 1.00, levels.L100, 1e-12)
	assert.InDelta(t, 1.0618, levels.L382, 1e-9)
}

func TestSwingHighLow_Window(t *testing.T) {
	bars := []domain.Bar{
		bar(1, 5, 0.5, 1), // fuera del lookback
		bar(1, 2, 1, 1.5),
		bar(1.5, 3, 1.2, 2),
		bar(2, 2.5, 0.8, 1),
	}

	high, low := domain.SwingHighLow(bars, 3)
	assert.InDelta(t, 3.0, high, 1e-12)
	assert.InDelta(t, 0.8, low, 1e-12)
}

func TestCoarseCoversFib_LargestClosedBodyCovers(t *testing.T) {
	// Swing M15: high 1.10, low 1.00 → fib50 = 1.05 (dirección SELL).
	fine := make([]domain.Bar, 20)
	for i := range fine {
		fine[i] = bar(1.02, 1.03, 1.01, 1.02)
	}
	fine[5] = bar(1.08, 1.10, 1.07, 1.09)
	fine[12] = bar(1.01, 1.02, 1.00, 1.01)

	coarse := []domain.Bar{
		bar(1.02, 1.03, 1.015, 1.025), // cuerpo pequeño
		bar(1.03, 1.07, 1.02, 1.06),   // cuerpo mayor, rango cubre 1.05
		bar(1.06, 1.065, 1.055, 1.06), // vela en curso, se descarta
	}

	ok, fib50 := domain.CoarseCoversFib(coarse, fine, domain.ActionSell)
	assert.True(t, ok)
	assert.InDelta(t, 1.05, fib50, 1e-9)
}

func TestCoarseCoversFib_IgnoresIncompleteCandle(t *testing.T) {
	fine := make([]domain.Bar, 20)
	for i := range fine {
		fine[i] = bar(1.02, 1.10, 1.00, 1.02)
	}

	// Solo la vela en curso cubriría el nivel: no cuenta.
	coarse := []domain.Bar{
		bar(1.20, 1.21, 1.19, 1.205),
		bar(1.20, 1.21, 1.19, 1.205),
		bar(1.00, 1.10, 1.00, 1.06), // en curso
	}

	ok, _ := domain.CoarseCoversFib(coarse, fine, domain.ActionSell)
	assert.False(t, ok)
}

func TestCoarseCoversFib_InsufficientData(t *testing.T) {
	ok, fib50 := domain.CoarseCoversFib(nil, nil, domain.ActionSell)
	assert.False(t, ok)
	assert.Zero(t, fib50)
}

func TestSnake_Colors(t *testing.T) {
	// Serie ascendente: la EMA rápida va por encima de la lenta.
	up := make([]domain.Bar, 30)
	for i := range up {
		v := 1.0 + float64(i)*0.01
		up[i] = bar(v, v, v, v)
	}
	_, _, color := domain.Snake(up, 8, 21)
	assert.Equal(t, domain.ColorGreen, color)

	// Serie descendente: rápida por debajo.
	down := make([]domain.Bar, 30)
	for i := range down {
		v := 2.0 - float64(i)*0.01
		down[i] = bar(v, v, v, v)
	}
	_, _, color = domain.Snake(down, 8, 21)
	assert.Equal(t, domain.ColorRed, color)
}

func TestShingle_PriceAboveIsGreen(t *testing.T) {
	bars := flatBars(60, 1.0)
	bars[len(bars)-1] = bar(1.0, 1.3, 1.0, 1.2)

	_, color := domain.Shingle(bars, 50)
	assert.Equal(t, domain.ColorGreen, color)
}

func TestSquid_SlopeColor(t *testing.T) {
	up := make([]domain.Bar, 20)
	for i := range up {
		v := 1.0 + float64(i)*0.01
		up[i] = bar(v, v, v, v)
	}
	_, color := domain.Squid(up, 13)
	assert.Equal(t, domain.ColorGreen, color)

	_, color = domain.Squid(flatBars(1, 1.0), 13)
	assert.Equal(t, domain.ColorGreen, color) // default con datos insuficientes
}

func TestBreakRetest_SellBreakAndRetest(t *testing.T) {
	// Línea plana en 1.05; ruptura a la baja y retest final desde abajo.
	bars := []domain.Bar{
		bar(1.06, 1.07, 1.055, 1.06),
		bar(1.06, 1.065, 1.03, 1.04),  // open ≥ línea, close < línea: ruptura
		bar(1.04, 1.045, 1.035, 1.04),
		bar(1.04, 1.042, 1.03, 1.035),
		bar(1.035, 1.04, 1.03, 1.032),
		bar(1.032, 1.0499, 1.03, 1.04), // high toca la línea (tolerancia 0.0002)
	}
	line := []float64{1.05, 1.05, 1.05, 1.05, 1.05, 1.05}

	assert.True(t, domain.BreakRetest(bars, line, domain.ActionSell, 5, 0.0002))
}

func TestBreakRetest_NoBreak(t *testing.T) {
	// Todo el rango por encima de la línea: sin ruptura no hay señal aunque
	// el último high la toque.
	bars := []domain.Bar{
		bar(1.06, 1.07, 1.055, 1.06),
		bar(1.06, 1.065, 1.055, 1.06),
		bar(1.06, 1.065, 1.055, 1.06),
		bar(1.06, 1.065, 1.055, 1.06),
		bar(1.06, 1.065, 1.055, 1.06),
		bar(1.05, 1.0501, 1.049, 1.05),
	}
	line := []float64{1.05, 1.05, 1.05, 1.05, 1.05, 1.05}

	assert.False(t, domain.BreakRetest(bars, line, domain.ActionSell, 5, 0.0002))
}

func TestBreakRetest_BreakWithoutRetest(t *testing.T) {
	bars := []domain.Bar{
		bar(1.06, 1.07, 1.055, 1.06),
		bar(1.06, 1.065, 1.03, 1.04), // ruptura
		bar(1.04, 1.045, 1.035, 1.04),
		bar(1.04, 1.042, 1.03, 1.035),
		bar(1.035, 1.04, 1.03, 1.032),
		bar(1.032, 1.04, 1.03, 1.035), // high lejos de la línea
	}
	line := []float64{1.05, 1.05, 1.05, 1.05, 1.05, 1.05}

	assert.False(t, domain.BreakRetest(bars, line, domain.ActionSell, 5, 0.0002))
}

func TestBreakRetest_InsufficientData(t *testing.T) {
	bars := []domain.Bar{bar(1, 1, 1, 1)}
	assert.False(t, domain.BreakRetest(bars, []float64{1}, domain.ActionSell, 5, 0.0002))
}
