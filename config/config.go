package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/wickbot/internal/domain"
	"github.com/alejandrodnm/wickbot/internal/engine"
	"github.com/alejandrodnm/wickbot/internal/trading"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Broker   BrokerConfig   `yaml:"broker"`
	Strategy StrategyConfig `yaml:"strategy"`
	Trading  TradingConfig  `yaml:"trading"`
	Risk     RiskConfig     `yaml:"risk"`
	Backtest BacktestConfig `yaml:"backtest"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// BotConfig controla el loop principal.
type BotConfig struct {
	IntervalSeconds int      `yaml:"interval_seconds"`
	Symbols         []string `yaml:"symbols"`
	Strategies      []string `yaml:"strategies"` // pain (SELL) y/o gain (BUY)
}

// BrokerConfig apunta al bridge REST del broker.
type BrokerConfig struct {
	BridgeBase string `yaml:"bridge_base"`
}

// StrategyConfig son los parámetros de los indicadores del cascade.
type StrategyConfig struct {
	SnakeFastEMA        int     `yaml:"snake_fast_ema"`
	SnakeSlowEMA        int     `yaml:"snake_slow_ema"`
	ShingleEMA          int     `yaml:"shingle_ema"`
	PurpleLineEMA       int     `yaml:"purple_line_ema"`
	SquidPeriod         int     `yaml:"squid_period"`
	BreakRetestLookback int     `yaml:"break_retest_lookback"`
	RetestTolerance     float64 `yaml:"retest_tolerance"`
	BiasRefreshMinutes  int     `yaml:"bias_refresh_minutes"`
	Relaxed             bool    `yaml:"relaxed"` // diagnóstico: no corta en gates duros
}

// TradingConfig controla el ciclo de vida de las posiciones.
type TradingConfig struct {
	HoldMinutes    int     `yaml:"hold_minutes"`
	WaitCandles    int     `yaml:"wait_candles"`
	MaxConsecutive int     `yaml:"max_consecutive"`
	PointValue     float64 `yaml:"point_value"`
}

// RiskConfig son los límites del circuit breaker diario.
type RiskConfig struct {
	DailyStopUSD    float64 `yaml:"daily_stop_usd"`
	DailyTargetUSD  float64 `yaml:"daily_target_usd"`
	BaseLot         float64 `yaml:"base_lot"`
	MinLot          float64 `yaml:"min_lot"`
	MaxLot          float64 `yaml:"max_lot"`
	MaxSpreadPoints float64 `yaml:"max_spread_points"`
	SessionStart    string  `yaml:"session_start"` // "HH:MM", hora del servidor
	SessionEnd      string  `yaml:"session_end"`
}

// BacktestConfig controla el modo replay.
type BacktestConfig struct {
	DataDir        string  `yaml:"data_dir"` // CSVs SYMBOL_TF.csv
	InitialBalance float64 `yaml:"initial_balance"`
}

// StorageConfig controla dónde se persisten los trades.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PollInterval devuelve el intervalo del loop como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Bot.IntervalSeconds) * time.Second
}

// EngineConfig construye la configuración del cascade para una dirección.
func (c *Config) EngineConfig(direction domain.Action) engine.Config {
	cfg := engine.DefaultConfig(direction)
	cfg.SnakeFastEMA = c.Strategy.SnakeFastEMA
	cfg.SnakeSlowEMA = c.Strategy.SnakeSlowEMA
	cfg.ShingleEMA = c.Strategy.ShingleEMA
	cfg.PurpleLineEMA = c.Strategy.PurpleLineEMA
	cfg.SquidPeriod = c.Strategy.SquidPeriod
	cfg.BreakRetestLookback = c.Strategy.BreakRetestLookback
	cfg.RetestTolerance = c.Strategy.RetestTolerance
	cfg.BiasRefresh = time.Duration(c.Strategy.BiasRefreshMinutes) * time.Minute
	if c.Strategy.Relaxed {
		cfg.Mode = engine.ModeRelaxed
	}
	return cfg
}

// TradingConfig construye la configuración del gestor de posiciones.
func (c *Config) TradingConfig() trading.Config {
	cfg := trading.DefaultConfig()
	cfg.HoldWindow = time.Duration(c.Trading.HoldMinutes) * time.Minute
	cfg.WaitCandles = c.Trading.WaitCandles
	cfg.MaxConsecutive = c.Trading.MaxConsecutive
	cfg.PurpleLineEMA = c.Strategy.PurpleLineEMA
	cfg.PointValue = c.Trading.PointValue
	return cfg
}

// RiskConfig construye la configuración del circuit breaker. Las horas de
// sesión ya están validadas en Load.
func (c *Config) RiskConfig() trading.RiskConfig {
	start, _ := trading.ParseClock(c.Risk.SessionStart)
	end, _ := trading.ParseClock(c.Risk.SessionEnd)
	return trading.RiskConfig{
		DailyStopUSD:    c.Risk.DailyStopUSD,
		DailyTargetUSD:  c.Risk.DailyTargetUSD,
		BaseLot:         c.Risk.BaseLot,
		MinLot:          c.Risk.MinLot,
		MaxLot:          c.Risk.MaxLot,
		MaxSpreadPoints: c.Risk.MaxSpreadPoints,
		SessionStart:    start,
		SessionEnd:      end,
	}
}

// StrategyDirection devuelve la dirección de una estrategia por nombre.
func StrategyDirection(name string) (domain.Action, error) {
	switch strings.ToLower(name) {
	case "pain":
		return domain.ActionSell, nil
	case "gain":
		return domain.ActionBuy, nil
	default:
		return domain.ActionNone, fmt.Errorf("config.StrategyDirection: unknown strategy %q", name)
	}
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BRIDGE_BASE"); v != "" {
		cfg.Broker.BridgeBase = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Los parámetros de estrategia son los de producción del sistema original.
func setDefaults(cfg *Config) {
	if cfg.Bot.IntervalSeconds <= 0 {
		cfg.Bot.IntervalSeconds = 30
	}
	if len(cfg.Bot.Symbols) == 0 {
		cfg.Bot.Symbols = []string{"EURUSD"}
	}
	if len(cfg.Bot.Strategies) == 0 {
		cfg.Bot.Strategies = []string{"pain", "gain"}
	}
	if cfg.Broker.BridgeBase == "" {
		cfg.Broker.BridgeBase = "http://127.0.0.1:8787"
	}
	if cfg.Strategy.SnakeFastEMA <= 0 {
		cfg.Strategy.SnakeFastEMA = 8
	}
	if cfg.Strategy.SnakeSlowEMA <= 0 {
		cfg.Strategy.SnakeSlowEMA = 21
	}
	if cfg.Strategy.ShingleEMA <= 0 {
		cfg.Strategy.ShingleEMA = 50
	}
	if cfg.Strategy.PurpleLineEMA <= 0 {
		cfg.Strategy.PurpleLineEMA = 34
	}
	if cfg.Strategy.SquidPeriod <= 0 {
		cfg.Strategy.SquidPeriod = 13
	}
	if cfg.Strategy.BreakRetestLookback <= 0 {
		cfg.Strategy.BreakRetestLookback = 5
	}
	if cfg.Strategy.RetestTolerance <= 0 {
		cfg.Strategy.RetestTolerance = 0.0002
	}
	if cfg.Strategy.BiasRefreshMinutes <= 0 {
		cfg.Strategy.BiasRefreshMinutes = 60
	}
	if cfg.Trading.HoldMinutes <= 0 {
		cfg.Trading.HoldMinutes = 5
	}
	if cfg.Trading.WaitCandles <= 0 {
		cfg.Trading.WaitCandles = 1
	}
	if cfg.Trading.MaxConsecutive <= 0 {
		cfg.Trading.MaxConsecutive = 3
	}
	if cfg.Trading.PointValue <= 0 {
		cfg.Trading.PointValue = 10000
	}
	if cfg.Risk.DailyStopUSD <= 0 {
		cfg.Risk.DailyStopUSD = 40
	}
	if cfg.Risk.DailyTargetUSD <= 0 {
		cfg.Risk.DailyTargetUSD = 100
	}
	if cfg.Risk.BaseLot <= 0 {
		cfg.Risk.BaseLot = 0.10
	}
	if cfg.Risk.MinLot <= 0 {
		cfg.Risk.MinLot = 0.01
	}
	if cfg.Risk.MaxLot <= 0 {
		cfg.Risk.MaxLot = 1.0
	}
	if cfg.Risk.MaxSpreadPoints <= 0 {
		cfg.Risk.MaxSpreadPoints = 30
	}
	if cfg.Risk.SessionStart == "" {
		cfg.Risk.SessionStart = "19:00"
	}
	if cfg.Risk.SessionEnd == "" {
		cfg.Risk.SessionEnd = "06:00"
	}
	if cfg.Backtest.DataDir == "" {
		cfg.Backtest.DataDir = "data"
	}
	if cfg.Backtest.InitialBalance <= 0 {
		cfg.Backtest.InitialBalance = 10000
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "wickbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// validate rechaza configuraciones que no pueden funcionar.
func validate(cfg *Config) error {
	for _, name := range cfg.Bot.Strategies {
		if _, err := StrategyDirection(name); err != nil {
			return fmt.Errorf("config.Load: %w", err)
		}
	}
	if _, err := trading.ParseClock(cfg.Risk.SessionStart); err != nil {
		return fmt.Errorf("config.Load: session_start: %w", err)
	}
	if _, err := trading.ParseClock(cfg.Risk.SessionEnd); err != nil {
		return fmt.Errorf("config.Load: session_end: %w", err)
	}
	if cfg.Strategy.SnakeFastEMA >= cfg.Strategy.SnakeSlowEMA {
		return fmt.Errorf("config.Load: snake_fast_ema must be below snake_slow_ema")
	}
	return nil
}
