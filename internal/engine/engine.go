package engine

// engine.go — cascada de confirmación multi-timeframe.
//
// Seis etapas ordenadas de más gruesa a más fina: sesgo D1 → stop diario →
// cobertura 50% Fib H4/M15 → estructura H1 → filtro snake M30/M15 → entrada
// M1 (fallback M5). En modo STRICT cada etapa es gate duro y corta la
// evaluación; en RELAXED se evalúan todas con fines de diagnóstico y solo
// la etapa 5 puede vetar la señal.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/wickbot/internal/domain"
	"github.com/alejandrodnm/wickbot/internal/ports"
)

// Mode selecciona la variante de la cascada.
type Mode string

const (
	ModeStrict  Mode = "strict"
	ModeRelaxed Mode = "relaxed"
)

// Velas pedidas por etapa. Mismos counts que usa la variante histórica.
const (
	d1Count    = 5
	h4Count    = 10
	h1Count    = 100
	m30Count   = 100
	m15Count   = 50
	entryCount = 20
)

// Config son los parámetros de la cascada para una estrategia.
type Config struct {
	Direction domain.Action // dirección objetivo del bot (SELL=pain, BUY=gain)
	Mode      Mode

	SnakeFastEMA  int
	SnakeSlowEMA  int
	ShingleEMA    int
	PurpleLineEMA int
	SquidPeriod   int

	BreakRetestLookback int
	RetestTolerance     float64

	// BiasRefresh controla cada cuánto se recalcula el sesgo diario aunque
	// no haya cambiado de día (en vivo, cada hora).
	BiasRefresh time.Duration
}

// DefaultConfig devuelve los parámetros de estrategia de producción.
func DefaultConfig(direction domain.Action) Config {
	return Config{
		Direction:           direction,
		Mode:                ModeStrict,
		SnakeFastEMA:        8,
		SnakeSlowEMA:        21,
		ShingleEMA:          50,
		PurpleLineEMA:       34,
		SquidPeriod:         13,
		BreakRetestLookback: 5,
		RetestTolerance:     0.0002,
		BiasRefresh:         time.Hour,
	}
}

// cachedBias es el sesgo diario memorizado de un símbolo.
type cachedBias struct {
	bias       domain.Action
	wickSize   float64
	wick50     float64
	computedAt time.Time
}

// Engine evalúa la cascada para una estrategia. Una instancia por
// estrategia, con sus dependencias inyectadas; no hay estado global.
type Engine struct {
	cfg   Config
	bars  ports.BarProvider
	ticks ports.TickProvider // opcional: nil en replay (se usa el cierre D1)

	mu     sync.Mutex
	biases map[string]cachedBias
}

// New crea un Engine. ticks puede ser nil: entonces el precio de referencia
// para el stop diario es el último cierre D1 causal (semántica de replay).
func New(cfg Config, bars ports.BarProvider, ticks ports.TickProvider) *Engine {
	if cfg.Mode == "" {
		cfg.Mode = ModeStrict
	}
	if cfg.BiasRefresh <= 0 {
		cfg.BiasRefresh = time.Hour
	}
	return &Engine{
		cfg:    cfg,
		bars:   bars,
		ticks:  ticks,
		biases: make(map[string]cachedBias),
	}
}

// Evaluate ejecuta la cascada para symbol en el instante asOf y devuelve la
// Signal resultante. La insuficiencia de datos produce una abstención
// (Action NONE), nunca un error; solo los fallos del proveedor de datos se
// propagan, y el llamador aborta el ciclo y reintenta en el siguiente tick.
func (e *Engine) Evaluate(ctx context.Context, symbol string, asOf time.Time) (domain.Signal, error) {
	var conf domain.Confirmations

	// Etapa 1: sesgo diario.
	conf.LastStage = domain.StageBias
	d1, err := e.bars.GetBars(ctx, symbol, domain.TimeframeD1, d1Count)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("engine.Evaluate: d1 bars: %w", err)
	}

	bias, ok := e.dailyBias(symbol, d1, asOf, &conf)
	if !ok && e.cfg.Mode == ModeStrict {
		return domain.NoSignal(symbol, asOf, conf), nil
	}
	// En RELAXED el sesgo es informativo: la señal usa la dirección
	// configurada del bot aunque la mecha apunte al otro lado.
	signalBias := bias
	if e.cfg.Mode == ModeRelaxed {
		signalBias = e.cfg.Direction
	}

	// Etapa 2: 50% de la mecha del día anterior.
	conf.LastStage = domain.StageDailyStop
	price, err := e.referencePrice(ctx, symbol, signalBias, d1)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("engine.Evaluate: reference price: %w", err)
	}

	conf.DayStopped = domain.Wick50Filled(price, conf.Bias, conf.Wick50)
	if conf.DayStopped {
		if e.cfg.Mode == ModeStrict {
			slog.Debug("daily stop reached", "symbol", symbol, "price", price, "wick50", conf.Wick50)
			return domain.NoSignal(symbol, asOf, conf), nil
		}
		slog.Debug("daily stop reached, continuing in relaxed mode", "symbol", symbol)
	}

	// Etapa 3: cobertura 50% Fib H4 frente a M15.
	conf.LastStage = domain.StageMidFib
	h4, err := e.bars.GetBars(ctx, symbol, domain.TimeframeH4, h4Count)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("engine.Evaluate: h4 bars: %w", err)
	}
	m15, err := e.bars.GetBars(ctx, symbol, domain.TimeframeM15, m15Count)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("engine.Evaluate: m15 bars: %w", err)
	}

	conf.H4FibOK, conf.H4FibLevel = domain.CoarseCoversFib(h4, m15, signalBias)
	if !conf.H4FibOK && e.cfg.Mode == ModeStrict {
		return domain.NoSignal(symbol, asOf, conf), nil
	}

	// Etapa 4: estructura H1 (shingle).
	conf.LastStage = domain.StageStructure
	h1, err := e.bars.GetBars(ctx, symbol, domain.TimeframeH1, h1Count)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("engine.Evaluate: h1 bars: %w", err)
	}

	conf.ShingleOK, conf.ShingleColor = e.checkShingle(h1, signalBias)
	if !conf.ShingleOK && e.cfg.Mode == ModeStrict {
		return domain.NoSignal(symbol, asOf, conf), nil
	}

	// Etapa 5: filtro snake M30/M15.
	conf.LastStage = domain.StageTrendFilter
	m30, err := e.bars.GetBars(ctx, symbol, domain.TimeframeM30, m30Count)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("engine.Evaluate: m30 bars: %w", err)
	}

	_, _, m30Color := domain.Snake(m30, e.cfg.SnakeFastEMA, e.cfg.SnakeSlowEMA)
	_, _, m15Color := domain.Snake(m15, e.cfg.SnakeFastEMA, e.cfg.SnakeSlowEMA)
	conf.SnakeM30Color, conf.SnakeM15Color = m30Color, m15Color
	conf.SnakeM30OK = len(m30) > 0 && m30Color.Matches(signalBias)
	conf.SnakeM15OK = len(m15) > 0 && m15Color.Matches(signalBias)

	trendOK := conf.SnakeM30OK && conf.SnakeM15OK
	if e.cfg.Mode == ModeRelaxed {
		// RELAXED: basta con uno de los dos. Es la única etapa con veto.
		trendOK = conf.SnakeM30OK || conf.SnakeM15OK
	}
	if !trendOK {
		return domain.NoSignal(symbol, asOf, conf), nil
	}

	// Etapa 6: break + retest de la purple line en el timeframe de entrada.
	conf.LastStage = domain.StageEntry
	entry, tf, err := e.entryBars(ctx, symbol)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("engine.Evaluate: entry bars: %w", err)
	}
	conf.EntryTimeframe = tf
	if len(entry) == 0 {
		return domain.NoSignal(symbol, asOf, conf), nil
	}

	purple := domain.PurpleLine(entry, e.cfg.PurpleLineEMA)
	if len(purple) > 0 {
		conf.PurpleLine = purple[len(purple)-1]
	}
	_, conf.SquidColor = domain.Squid(entry, e.cfg.SquidPeriod)
	conf.EntryOK = domain.BreakRetest(entry, purple, signalBias, e.cfg.BreakRetestLookback, e.cfg.RetestTolerance)

	if !conf.EntryOK && e.cfg.Mode == ModeStrict {
		return domain.NoSignal(symbol, asOf, conf), nil
	}

	entryPrice := entry[len(entry)-1].Close
	sig := domain.Signal{
		Action:        signalBias,
		Symbol:        symbol,
		Price:         entryPrice,
		Time:          asOf,
		Confirmations: conf,
	}
	slog.Info("signal generated",
		"symbol", symbol,
		"action", sig.Action,
		"price", sig.Price,
		"mode", e.cfg.Mode,
		"entry_tf", tf,
	)
	return sig, nil
}

// dailyBias calcula (o reutiliza) el sesgo diario del símbolo y puebla la
// etapa 1 de conf. Devuelve el sesgo y si actúa como gate superado: en
// STRICT el sesgo debe existir y coincidir con la dirección del bot.
func (e *Engine) dailyBias(symbol string, d1 []domain.Bar, asOf time.Time, conf *domain.Confirmations) (domain.Action, bool) {
	e.mu.Lock()
	cached, hit := e.biases[symbol]
	e.mu.Unlock()

	sameDay := hit && cached.computedAt.YearDay() == asOf.YearDay() && cached.computedAt.Year() == asOf.Year()
	fresh := hit && asOf.Sub(cached.computedAt) < e.cfg.BiasRefresh

	if !sameDay || !fresh {
		bias, wickSize, wick50 := domain.WickBias(d1)
		cached = cachedBias{bias: bias, wickSize: wickSize, wick50: wick50, computedAt: asOf}
		e.mu.Lock()
		e.biases[symbol] = cached
		e.mu.Unlock()
	}

	conf.Bias = cached.bias
	conf.WickSize = cached.wickSize
	conf.Wick50 = cached.wick50
	conf.BiasOK = cached.bias != domain.ActionNone && cached.bias == e.cfg.Direction

	return cached.bias, conf.BiasOK
}

// referencePrice devuelve el precio con el que se comprueba el stop diario:
// el tick en vivo (bid para SELL, ask para BUY) o el último cierre D1
// causal cuando no hay proveedor de ticks.
func (e *Engine) referencePrice(ctx context.Context, symbol string, bias domain.Action, d1 []domain.Bar) (float64, error) {
	if e.ticks != nil {
		tick, err := e.ticks.GetTick(ctx, symbol)
		if err != nil {
			return 0, err
		}
		return tick.PriceFor(bias), nil
	}
	if len(d1) == 0 {
		return 0, nil
	}
	return d1[len(d1)-1].Close, nil
}

// checkShingle evalúa la etapa 4: último cierre H1 al lado correcto de la
// EMA gruesa y color coincidente con la dirección.
func (e *Engine) checkShingle(h1 []domain.Bar, bias domain.Action) (bool, domain.Color) {
	if len(h1) == 0 {
		return false, domain.ColorRed
	}
	ema, color := domain.Shingle(h1, e.cfg.ShingleEMA)
	if len(ema) == 0 {
		return false, color
	}

	price := h1[len(h1)-1].Close
	last := ema[len(ema)-1]

	switch bias {
	case domain.ActionBuy:
		return price > last && color == domain.ColorGreen, color
	case domain.ActionSell:
		return price < last && color == domain.ColorRed, color
	default:
		return false, color
	}
}

// entryBars devuelve las velas del timeframe de entrada: M1 si hay
// histórico, M5 como fallback (no todos los brokers conservan M1 largo).
func (e *Engine) entryBars(ctx context.Context, symbol string) ([]domain.Bar, domain.Timeframe, error) {
	m1, err := e.bars.GetBars(ctx, symbol, domain.TimeframeM1, entryCount)
	if err != nil {
		return nil, "", err
	}
	if len(m1) > 0 {
		return m1, domain.TimeframeM1, nil
	}

	m5, err := e.bars.GetBars(ctx, symbol, domain.TimeframeM5, entryCount)
	if err != nil {
		return nil, "", err
	}
	return m5, domain.TimeframeM5, nil
}

// ResetBias descarta el sesgo memorizado de todos los símbolos. Se invoca en
// el rollover diario.
func (e *Engine) ResetBias() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.biases = make(map[string]cachedBias)
}

// Direction devuelve la dirección objetivo de la estrategia.
func (e *Engine) Direction() domain.Action { return e.cfg.Direction }
