package domain

// indicator.go — funciones puras sobre secuencias de velas.
//
// Todas las funciones son deterministas y sin efectos secundarios: con input
// insuficiente devuelven el valor neutro (NONE / 0 / false) en lugar de
// fallar, de forma que la cascada se abstiene de operar.

// EMA calcula la media móvil exponencial de los valores dados.
// Semilla = primer valor; factor de suavizado = 2/(period+1).
// Devuelve nil si no hay valores o el periodo es inválido.
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Closes extrae la serie de cierres de las velas.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// WickBias analiza la mecha de la última vela diaria CERRADA (la penúltima
// de la serie: la última es el día en curso, incompleto) y devuelve el sesgo
// del día.
//
// Mecha superior dominante ⇒ BUY; inferior dominante ⇒ SELL. El empate
// resuelve a SELL. Wick50 es el punto medio del rango de la mecha dominante.
// Con menos de 2 velas devuelve (NONE, 0, 0).
func WickBias(daily []Bar) (bias Action, wickSize, wick50 float64) {
	if len(daily) < 2 {
		return ActionNone, 0, 0
	}
	prev := daily[len(daily)-2]

	upper := prev.UpperWick()
	lower := prev.LowerWick()

	if upper > lower {
		// Mecha superior: el precio debería subir a rellenarla.
		return ActionBuy, upper, (prev.BodyTop() + prev.High) / 2
	}
	return ActionSell, lower, (prev.Low + prev.BodyBottom()) / 2
}

// Wick50Filled indica si el precio actual ya rellenó el 50% de la mecha del
// día anterior. Para sesgo BUY (mecha superior) se rellena al subir hasta el
// nivel; para SELL (mecha inferior), al bajar hasta él.
func Wick50Filled(price float64, bias Action, level float64) bool {
	switch bias {
	case ActionBuy:
		return price >= level
	case ActionSell:
		return price <= level
	default:
		return false
	}
}

// FibLevels son los retrocesos estándar entre un swing high y un swing low.
type FibLevels struct {
	L0   float64 // 0%   (anchor alto)
	L236 float64
	L382 float64
	L500 float64
	L618 float64
	L100 float64 // 100% (anchor bajo)
}

// FibonacciLevels calcula la tabla de retrocesos desde high hacia low.
// Para un sesgo BUY los anchors se pasan invertidos (low como primer
// argumento) de modo que el 50% queda simétrico.
func FibonacciLevels(high, low float64) FibLevels {
	diff := high - low
	return FibLevels{
		L0:   high,
		L236: high - 0.236*diff,
		L382: high - 0.382*diff,
		L500: high - 0.500*diff,
		L618: high - 0.618*diff,
		L100: low,
	}
}

// SwingHighLow devuelve el máximo y mínimo de las últimas lookback velas.
func SwingHighLow(bars []Bar, lookback int) (high, low float64) {
	if len(bars) == 0 || lookback <= 0 {
		return 0, 0
	}
	start := len(bars) - lookback
	if start < 0 {
		start = 0
	}
	window := bars[start:]
	high, low = window[0].High, window[0].Low
	for _, b := range window[1:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low
}

// fibSwingLookback es la ventana fija de M15 para anclar el retroceso.
const fibSwingLookback = 20

// CoarseCoversFib comprueba si, de las últimas 3 velas H4 cerradas (se
// descarta la vela en curso), la de mayor cuerpo cubre con su rango
// [low, high] el nivel 50% del retroceso Fibonacci anclado al swing
// high/low de las últimas 20 velas del timeframe fino.
//
// Devuelve también el nivel 50% calculado. Con input insuficiente devuelve
// (false, 0).
func CoarseCoversFib(coarse, fine []Bar, direction Action) (bool, float64) {
	if len(coarse) < 2 || len(fine) < fibSwingLookback {
		return false, 0
	}

	swingHigh, swingLow := SwingHighLow(fine, fibSwingLookback)

	var levels FibLevels
	if direction == ActionSell {
		levels = FibonacciLevels(swingHigh, swingLow)
	} else {
		levels = FibonacciLevels(swingLow, swingHigh)
	}
	fib50 := levels.L500

	// Últimas 3 velas cerradas: se salta la última (incompleta).
	closed := coarse[:len(coarse)-1]
	if len(closed) > 3 {
		closed = closed[len(closed)-3:]
	}

	largest := closed[0]
	for _, b := range closed[1:] {
		if b.Body() > largest.Body() {
			largest = b
		}
	}

	return largest.Contains(fib50), fib50
}

// Snake es el sistema de cruce de EMAs rápida/lenta. El color se evalúa en
// la última vela: GREEN si rápida > lenta, RED en caso contrario.
func Snake(bars []Bar, fastPeriod, slowPeriod int) (fast, slow []float64, color Color) {
	closes := Closes(bars)
	fast = EMA(closes, fastPeriod)
	slow = EMA(closes, slowPeriod)
	if len(fast) == 0 || len(slow) == 0 {
		return fast, slow, ColorRed
	}
	if fast[len(fast)-1] > slow[len(slow)-1] {
		return fast, slow, ColorGreen
	}
	return fast, slow, ColorRed
}

// Shingle es la EMA gruesa de estructura. GREEN si el último cierre está por
// encima de la EMA, RED en caso contrario.
func Shingle(bars []Bar, period int) (ema []float64, color Color) {
	closes := Closes(bars)
	ema = EMA(closes, period)
	if len(ema) == 0 {
		return ema, ColorRed
	}
	if closes[len(closes)-1] > ema[len(ema)-1] {
		return ema, ColorGreen
	}
	return ema, ColorRed
}

// PurpleLine es la EMA que actúa como línea de referencia de entrada e
// invalidación.
func PurpleLine(bars []Bar, period int) []float64 {
	return EMA(Closes(bars), period)
}

// Squid es una EMA coloreada por pendiente: GREEN si sube respecto a la vela
// anterior. Con menos de 2 valores el color por defecto es GREEN.
func Squid(bars []Bar, period int) (ema []float64, color Color) {
	ema = EMA(Closes(bars), period)
	if len(ema) < 2 {
		return ema, ColorGreen
	}
	if ema[len(ema)-1] > ema[len(ema)-2] {
		return ema, ColorGreen
	}
	return ema, ColorRed
}

// BreakRetest detecta, dentro de las últimas lookback+1 velas, una ruptura
// de la línea de referencia (open a un lado, close al otro, en la dirección
// dada) seguida de un retest: la ÚLTIMA vela de la ventana vuelve a tocar la
// línea dentro de la tolerancia absoluta dada.
//
// line debe ser paralela a bars (mismo índice = misma vela). Devuelve false
// si falta la ruptura o falta el retest.
func BreakRetest(bars []Bar, line []float64, direction Action, lookback int, tolerance float64) bool {
	if len(bars) < lookback+1 || len(line) < lookback+1 {
		return false
	}
	bars = bars[len(bars)-(lookback+1):]
	line = line[len(line)-(lookback+1):]

	broke := false
	for i := 0; i < len(bars)-1; i++ {
		b, lv := bars[i], line[i]
		switch direction {
		case ActionBuy:
			if b.Close > lv && b.Open <= lv {
				broke = true
			}
		case ActionSell:
			if b.Close < lv && b.Open >= lv {
				broke = true
			}
		}
	}
	if !broke {
		return false
	}

	last, lastLine := bars[len(bars)-1], line[len(line)-1]
	switch direction {
	case ActionBuy:
		// Tras romper al alza, el precio baja a tocar la línea desde arriba.
		return abs(last.Low-lastLine) <= tolerance
	case ActionSell:
		// Tras romper a la baja, el precio sube a tocar la línea desde abajo.
		return abs(last.High-lastLine) <= tolerance
	default:
		return false
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
