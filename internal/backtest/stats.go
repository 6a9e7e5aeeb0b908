package backtest

// stats.go — métricas agregadas de un run.

import (
	"math"

	"github.com/alejandrodnm/wickbot/internal/domain"
)

// Statistics resume el rendimiento de un run de backtest.
type Statistics struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64 // fracción [0, 1]
	TotalPnL    float64
	ReturnPct   float64 // sobre el balance inicial
	MaxDrawdown float64 // caída máxima pico-valle, en fracción del pico
	Sharpe      float64 // media/desviación del P/L por trade
}

// ComputeStatistics calcula las métricas a partir de los trades y la curva
// de equity del run. Con menos de dos trades el Sharpe es 0: no hay
// dispersión que medir.
func ComputeStatistics(initialBalance float64, trades []domain.Trade, equity []EquityPoint) Statistics {
	s := Statistics{TotalTrades: len(trades)}

	for _, t := range trades {
		s.TotalPnL += t.PnL
		if t.Won() {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	}
	if initialBalance > 0 {
		s.ReturnPct = s.TotalPnL / initialBalance * 100
	}

	s.MaxDrawdown = maxDrawdown(initialBalance, equity)
	s.Sharpe = sharpe(trades)
	return s
}

// maxDrawdown devuelve la mayor caída pico-valle de la curva de equity,
// como fracción del pico.
func maxDrawdown(initialBalance float64, equity []EquityPoint) float64 {
	peak := initialBalance
	var worst float64
	for _, p := range equity {
		if p.Balance > peak {
			peak = p.Balance
		}
		if peak > 0 {
			if dd := (peak - p.Balance) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpe calcula media/σ (poblacional) del P/L por trade. Sin anualizar:
// es una medida relativa entre runs. Con menos de 2 trades o varianza
// cero devuelve 0.
func sharpe(trades []domain.Trade) float64 {
	if len(trades) < 2 {
		return 0
	}

	var mean float64
	for _, t := range trades {
		mean += t.PnL
	}
	mean /= float64(len(trades))

	var variance float64
	for _, t := range trades {
		d := t.PnL - mean
		variance += d * d
	}
	variance /= float64(len(trades))

	sigma := math.Sqrt(variance)
	if sigma == 0 {
		return 0
	}
	return mean / sigma
}
