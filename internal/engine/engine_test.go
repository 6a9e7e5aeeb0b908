package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/wickbot/internal/domain"
	"github.com/alejandrodnm/wickbot/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBars sirve velas fijas por timeframe, ignorando el símbolo.
type stubBars struct {
	data map[domain.Timeframe][]domain.Bar
	err  error
}

func (s *stubBars) GetBars(_ context.Context, _ string, tf domain.Timeframe, count int) ([]domain.Bar, error) {
	if s.err != nil {
		return nil, s.err
	}
	bars := s.data[tf]
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	out := make([]domain.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

func bar(o, h, l, c float64) domain.Bar {
	return domain.Bar{Open: o, High: h, Low: l, Close: c}
}

// sellFixture construye un juego de series que atraviesa las seis etapas
// con dirección SELL:
//
//   - D1: penúltima vela con mecha inferior dominante (wick50 1.0950) y
//     cierre actual 1.1000, por encima del nivel → día no parado.
//   - M15: cierres descendentes; el swing de las últimas 20 ancla el 50%
//     del retroceso en 1.0961 y la snake queda RED.
//   - H4: la vela cerrada de mayor cuerpo cubre 1.0961.
//   - H1: último cierre muy por debajo de la EMA 50.
//   - M30: cierres descendentes (snake RED).
//   - M5: ruptura a la baja de la purple line y retest de la última vela.
//     M1 vacío fuerza el fallback.
func sellFixture() map[domain.Timeframe][]domain.Bar {
	data := make(map[domain.Timeframe][]domain.Bar)

	d1 := make([]domain.Bar, 5)
	for i := range d1 {
		d1[i] = bar(1.1000, 1.1001, 1.0999, 1.1000)
	}
	d1[3] = bar(1.1010, 1.1011, 1.0900, 1.1000)
	data[domain.TimeframeD1] = d1

	m15 := make([]domain.Bar, 50)
	for i := range m15 {
		v := 1.1040 - float64(i)*0.0002
		m15[i] = bar(v, v, v, v)
	}
	data[domain.TimeframeM15] = m15

	h4 := make([]domain.Bar, 10)
	for i := range h4 {
		h4[i] = bar(1.1000, 1.1003, 1.0999, 1.1002)
	}
	h4[8] = bar(1.1000, 1.1005, 1.0895, 1.0900)
	data[domain.TimeframeH4] = h4

	h1 := make([]domain.Bar, 100)
	for i := range h1 {
		h1[i] = bar(1.1000, 1.1000, 1.1000, 1.1000)
	}
	h1[99] = bar(1.1000, 1.1000, 1.0900, 1.0900)
	data[domain.TimeframeH1] = h1

	m30 := make([]domain.Bar, 100)
	for i := range m30 {
		v := 1.1200 - float64(i)*0.0002
		m30[i] = bar(v, v, v, v)
	}
	data[domain.TimeframeM30] = m30

	m5 := make([]domain.Bar, 20)
	for i := 0; i < 14; i++ {
		m5[i] = bar(1.1000, 1.1000, 1.1000, 1.1000)
	}
	m5[14] = bar(1.1005, 1.1006, 1.0994, 1.0995) // ruptura de la EMA
	for i := 15; i < 19; i++ {
		m5[i] = bar(1.0995, 1.0996, 1.0994, 1.0995)
	}
	m5[19] = bar(1.0995, 1.0998, 1.0994, 1.0996) // retest desde abajo
	data[domain.TimeframeM5] = m5

	return data
}

var asOf = time.Date(2024, 3, 4, 22, 0, 0, 0, time.UTC)

func newSellEngine(data map[domain.Timeframe][]domain.Bar, mode engine.Mode) *engine.Engine {
	cfg := engine.DefaultConfig(domain.ActionSell)
	cfg.Mode = mode
	return engine.New(cfg, &stubBars{data: data}, nil)
}

func TestEngine_Evaluate_StrictSellSignal(t *testing.T) {
	e := newSellEngine(sellFixture(), engine.ModeStrict)

	sig, err := e.Evaluate(context.Background(), "EURUSD", asOf)
	require.NoError(t, err)

	assert.Equal(t, domain.ActionSell, sig.Action)
	assert.InDelta(t, 1.0996, sig.Price, 1e-9)
	assert.Equal(t, domain.TimeframeM5, sig.Confirmations.EntryTimeframe)

	conf := sig.Confirmations
	assert.True(t, conf.BiasOK)
	assert.False(t, conf.DayStopped)
	assert.True(t, conf.H4FibOK)
	assert.InDelta(t, 1.0961, conf.H4FibLevel, 1e-6)
	assert.True(t, conf.ShingleOK)
	assert.True(t, conf.SnakeM30OK)
	assert.True(t, conf.SnakeM15OK)
	assert.True(t, conf.EntryOK)
	assert.Equal(t, domain.StageEntry, conf.LastStage)
}

func TestEngine_Evaluate_StrictShortCircuitsOnBias(t *testing.T) {
	data := sellFixture()
	// Mecha superior dominante → sesgo BUY, contrario a la dirección.
	data[domain.TimeframeD1][3] = bar(1.1000, 1.1110, 1.0999, 1.1010)

	e := newSellEngine(data, engine.ModeStrict)
	sig, err := e.Evaluate(context.Background(), "EURUSD", asOf)
	require.NoError(t, err)

	assert.Equal(t, domain.ActionNone, sig.Action)
	assert.Equal(t, domain.StageBias, sig.Confirmations.LastStage)
	assert.False(t, sig.Confirmations.BiasOK)
	// Las etapas posteriores no se evaluaron.
	assert.False(t, sig.Confirmations.H4FibOK)
}

func TestEngine_Evaluate_DailyStopBlocks(t *testing.T) {
	data := sellFixture()
	// Cierre D1 actual ya por debajo del 50% de la mecha (1.0950).
	data[domain.TimeframeD1][4] = bar(1.0950, 1.0951, 1.0930, 1.0940)

	e := newSellEngine(data, engine.ModeStrict)
	sig, err := e.Evaluate(context.Background(), "EURUSD", asOf)
	require.NoError(t, err)

	assert.Equal(t, domain.ActionNone, sig.Action)
	assert.True(t, sig.Confirmations.DayStopped)
	assert.Equal(t, domain.StageDailyStop, sig.Confirmations.LastStage)
}

func TestEngine_Evaluate_RelaxedIgnoresHardGates(t *testing.T) {
	data := sellFixture()
	// Sesgo contrario: en STRICT cortaría, en RELAXED es informativo y la
	// señal lleva la dirección configurada del bot.
	data[domain.TimeframeD1][3] = bar(1.1000, 1.1110, 1.0999, 1.1010)

	e := newSellEngine(data, engine.ModeRelaxed)
	sig, err := e.Evaluate(context.Background(), "EURUSD", asOf)
	require.NoError(t, err)

	assert.Equal(t, domain.ActionSell, sig.Action)
	assert.False(t, sig.Confirmations.BiasOK)
	assert.Equal(t, domain.StageEntry, sig.Confirmations.LastStage)
}

func TestEngine_Evaluate_RelaxedTrendStillVetoes(t *testing.T) {
	data := sellFixture()
	// Ambas snakes GREEN (series ascendentes) con dirección SELL.
	for _, tf := range []domain.Timeframe{domain.TimeframeM30, domain.TimeframeM15} {
		up := make([]domain.Bar, 50)
		for i := range up {
			v := 1.0900 + float64(i)*0.0002
			up[i] = bar(v, v, v, v)
		}
		data[tf] = up
	}

	e := newSellEngine(data, engine.ModeRelaxed)
	sig, err := e.Evaluate(context.Background(), "EURUSD", asOf)
	require.NoError(t, err)

	assert.Equal(t, domain.ActionNone, sig.Action)
	assert.Equal(t, domain.StageTrendFilter, sig.Confirmations.LastStage)
}

func TestEngine_Evaluate_RelaxedEitherSnakeSuffices(t *testing.T) {
	data := sellFixture()
	// Solo la M15 en contra: en RELAXED basta la M30.
	up := make([]domain.Bar, 50)
	for i := range up {
		v := 1.0900 + float64(i)*0.0002
		up[i] = bar(v, v, v, v)
	}
	data[domain.TimeframeM15] = up

	e := newSellEngine(data, engine.ModeRelaxed)
	sig, err := e.Evaluate(context.Background(), "EURUSD", asOf)
	require.NoError(t, err)

	assert.Equal(t, domain.ActionSell, sig.Action)
	assert.True(t, sig.Confirmations.SnakeM30OK)
	assert.False(t, sig.Confirmations.SnakeM15OK)
}

func TestEngine_Evaluate_InsufficientDataAbstains(t *testing.T) {
	e := newSellEngine(map[domain.Timeframe][]domain.Bar{}, engine.ModeStrict)

	sig, err := e.Evaluate(context.Background(), "EURUSD", asOf)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionNone, sig.Action)
}

func TestEngine_Evaluate_ProviderErrorPropagates(t *testing.T) {
	boom := errors.New("bridge down")
	e := engine.New(engine.DefaultConfig(domain.ActionSell), &stubBars{err: boom}, nil)

	_, err := e.Evaluate(context.Background(), "EURUSD", asOf)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestEngine_BiasCachedWithinDay(t *testing.T) {
	data := sellFixture()
	e := newSellEngine(data, engine.ModeStrict)

	sig, err := e.Evaluate(context.Background(), "EURUSD", asOf)
	require.NoError(t, err)
	require.Equal(t, domain.ActionSell, sig.Action)

	// Cambiar el D1 no altera el sesgo dentro de la ventana de refresco.
	data[domain.TimeframeD1][3] = bar(1.1000, 1.1110, 1.0999, 1.1010)
	sig, err = e.Evaluate(context.Background(), "EURUSD", asOf.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionSell, sig.Action)

	// Tras ResetBias se recalcula y el sesgo contrario corta.
	e.ResetBias()
	sig, err = e.Evaluate(context.Background(), "EURUSD", asOf.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionNone, sig.Action)
}
