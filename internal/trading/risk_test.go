package trading_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/wickbot/internal/domain"
	"github.com/alejandrodnm/wickbot/internal/trading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAccount simula la cuenta del broker con balance mutable.
type stubAccount struct {
	balance float64
	info    domain.SymbolInfo
}

func (a *stubAccount) Balance(context.Context) (float64, error) {
	return a.balance, nil
}

func (a *stubAccount) SymbolInfo(context.Context, string) (domain.SymbolInfo, error) {
	return a.info, nil
}

func riskConfig() trading.RiskConfig {
	return trading.RiskConfig{
		DailyStopUSD:    40,
		DailyTargetUSD:  100,
		BaseLot:         0.10,
		MinLot:          0.01,
		MaxLot:          1.0,
		MaxSpreadPoints: 30,
		SessionStart:    trading.ClockTime{Hour: 19},
		SessionEnd:      trading.ClockTime{Hour: 6},
	}
}

var day = time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC)

func TestRiskManager_CheckLimits_WithinLimits(t *testing.T) {
	account := &stubAccount{balance: 10000}
	r := trading.NewRiskManager(riskConfig(), account)
	require.NoError(t, r.Initialize(context.Background(), day))

	account.balance = 9980 // -20, dentro del stop de 40
	ok, reason, err := r.CheckLimits(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "OK", reason)
	assert.InDelta(t, 20.0, r.State().DailyLoss, 1e-9)
}

func TestRiskManager_DailyStopHaltsMonotonically(t *testing.T) {
	account := &stubAccount{balance: 10000}
	r := trading.NewRiskManager(riskConfig(), account)
	require.NoError(t, r.Initialize(context.Background(), day))

	account.balance = 9955 // -45 ≥ stop de 40
	ok, reason, err := r.CheckLimits(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "daily stop")

	// El balance se recupera pero el halt es monótono hasta el reset.
	account.balance = 10010
	ok, _, err = r.CheckLimits(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, r.State().Halted)
}

func TestRiskManager_DailyTargetHalts(t *testing.T) {
	account := &stubAccount{balance: 10000}
	r := trading.NewRiskManager(riskConfig(), account)
	require.NoError(t, r.Initialize(context.Background(), day))

	account.balance = 10120
	ok, reason, err := r.CheckLimits(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "daily target")
}

func TestRiskManager_DailyResetClearsHalt(t *testing.T) {
	account := &stubAccount{balance: 10000}
	r := trading.NewRiskManager(riskConfig(), account)
	require.NoError(t, r.Initialize(context.Background(), day))

	account.balance = 9950
	ok, _, err := r.CheckLimits(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	// Mismo día: no hay reset.
	reset, err := r.CheckDailyReset(context.Background(), day.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, reset)

	// Día siguiente: reset con el balance actual como apertura.
	reset, err = r.CheckDailyReset(context.Background(), day.Add(26*time.Hour))
	require.NoError(t, err)
	assert.True(t, reset)

	ok, _, err = r.CheckLimits(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 9950.0, r.State().DailyStartBalance, 1e-9)
}

func TestRiskManager_DailyResetFollowsServerClock(t *testing.T) {
	// Reloj del servidor UTC+3: el día cambia a su medianoche, no a la UTC.
	server := time.FixedZone("server", 3*60*60)
	evening := time.Date(2024, 3, 4, 23, 30, 0, 0, server)

	account := &stubAccount{balance: 10000}
	r := trading.NewRiskManager(riskConfig(), account)
	require.NoError(t, r.Initialize(context.Background(), evening))

	// 00:30 hora del servidor (21:30 UTC del mismo día UTC): ya hay reset.
	reset, err := r.CheckDailyReset(context.Background(), evening.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, reset)
}

func TestStartOfDay_KeepsLocation(t *testing.T) {
	server := time.FixedZone("server", 3*60*60)
	ts := time.Date(2024, 3, 5, 0, 30, 0, 0, server)

	sod := trading.StartOfDay(ts)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, server), sod)
	assert.Equal(t, server, sod.Location())
}

func TestRiskManager_InSession_MidnightWrap(t *testing.T) {
	r := trading.NewRiskManager(riskConfig(), &stubAccount{balance: 10000})

	at := func(h, m int) time.Time {
		return time.Date(2024, 3, 4, h, m, 0, 0, time.UTC)
	}

	// Ventana 19:00-06:00 cruza medianoche.
	assert.True(t, r.InSession(at(19, 0)))
	assert.True(t, r.InSession(at(23, 30)))
	assert.True(t, r.InSession(at(3, 0)))
	assert.True(t, r.InSession(at(6, 0)))
	assert.False(t, r.InSession(at(12, 0)))
	assert.False(t, r.InSession(at(18, 59)))
}

func TestRiskManager_InSession_SameDayWindow(t *testing.T) {
	cfg := riskConfig()
	cfg.SessionStart = trading.ClockTime{Hour: 9}
	cfg.SessionEnd = trading.ClockTime{Hour: 17}
	r := trading.NewRiskManager(cfg, &stubAccount{balance: 10000})

	assert.True(t, r.InSession(time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)))
	assert.False(t, r.InSession(time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC)))
}

func TestRiskManager_PositionSize(t *testing.T) {
	r := trading.NewRiskManager(riskConfig(), &stubAccount{balance: 10000})

	info := domain.SymbolInfo{VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01}
	assert.InDelta(t, 0.10, r.PositionSize(info), 1e-9)

	// Clip al mínimo del símbolo.
	info.VolumeMin = 0.5
	assert.InDelta(t, 0.5, r.PositionSize(info), 1e-9)

	// Cuantización al step del broker.
	info = domain.SymbolInfo{VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.03}
	assert.InDelta(t, 0.09, r.PositionSize(info), 1e-9)
}

func TestRiskManager_ValidateTrade_SpreadGuard(t *testing.T) {
	account := &stubAccount{balance: 10000}
	r := trading.NewRiskManager(riskConfig(), account)
	require.NoError(t, r.Initialize(context.Background(), day))

	inSession := day // 20:00, dentro de la ventana

	// Spread de 50 points con tope de 30.
	wide := domain.Tick{Symbol: "EURUSD", Bid: 1.1000, Ask: 1.1050}
	ok, reason := r.ValidateTrade(context.Background(), wide, 0.0001, inSession)
	assert.False(t, ok)
	assert.Contains(t, reason, "spread")

	tight := domain.Tick{Symbol: "EURUSD", Bid: 1.1000, Ask: 1.1001}
	ok, _ = r.ValidateTrade(context.Background(), tight, 0.0001, inSession)
	assert.True(t, ok)
}

func TestRiskManager_ValidateTrade_OutsideSession(t *testing.T) {
	r := trading.NewRiskManager(riskConfig(), &stubAccount{balance: 10000})
	require.NoError(t, r.Initialize(context.Background(), day))

	noon := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	ok, reason := r.ValidateTrade(context.Background(), domain.Tick{}, 0.0001, noon)
	assert.False(t, ok)
	assert.Contains(t, reason, "session")
}

func TestParseClock(t *testing.T) {
	c, err := trading.ParseClock("19:30")
	require.NoError(t, err)
	assert.Equal(t, 19, c.Hour)
	assert.Equal(t, 30, c.Minute)
	assert.Equal(t, "19:30", c.String())

	_, err = trading.ParseClock("25:00")
	assert.Error(t, err)
	_, err = trading.ParseClock("bad")
	assert.Error(t, err)
}
