package history

// store.go — caché causal de velas por (symbol, timeframe).
//
// El invariante que sostiene todo el backtest: una consulta anclada en T
// jamás expone una vela con timestamp > T. La búsqueda es filtrar el
// sufijo ≤ T y devolver las últimas N.

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/wickbot/internal/domain"
)

type seriesKey struct {
	symbol string
	tf     domain.Timeframe
}

// Store es el almacén append-only de series históricas. Las series quedan
// ordenadas por timestamp estrictamente creciente y sin duplicados.
type Store struct {
	mu     sync.RWMutex
	series map[seriesKey][]domain.Bar
}

// NewStore crea un Store vacío.
func NewStore() *Store {
	return &Store{series: make(map[seriesKey][]domain.Bar)}
}

// Add incorpora velas a la serie de (symbol, tf). Ordena por timestamp y
// descarta duplicados; una vela con timestamp repetido conserva la primera
// versión cargada (las velas cerradas son inmutables).
func (s *Store) Add(symbol string, tf domain.Timeframe, bars []domain.Bar) error {
	if symbol == "" || !tf.Valid() {
		return fmt.Errorf("history.Add: invalid series %q/%q", symbol, tf)
	}
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey{symbol, tf}
	merged := append(append([]domain.Bar{}, s.series[key]...), bars...)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})

	dedup := merged[:0]
	for _, b := range merged {
		if len(dedup) > 0 && b.Time.Equal(dedup[len(dedup)-1].Time) {
			continue
		}
		dedup = append(dedup, b)
	}

	s.series[key] = dedup
	return nil
}

// Len devuelve el número de velas cargadas para (symbol, tf).
func (s *Store) Len(symbol string, tf domain.Timeframe) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[seriesKey{symbol, tf}])
}

// HasSeries devuelve true si hay alguna vela cargada para (symbol, tf).
func (s *Store) HasSeries(symbol string, tf domain.Timeframe) bool {
	return s.Len(symbol, tf) > 0
}

// BarsUpTo devuelve las últimas count velas de (symbol, tf) con
// timestamp ≤ asOf. Sin velas que satisfagan el filtro devuelve una serie
// vacía, nunca un error: la insuficiencia de datos es una abstención.
func (s *Store) BarsUpTo(symbol string, tf domain.Timeframe, asOf time.Time, count int) []domain.Bar {
	if count <= 0 {
		return nil
	}

	s.mu.RLock()
	series := s.series[seriesKey{symbol, tf}]
	s.mu.RUnlock()

	// Primer índice con timestamp > asOf: todo lo anterior es causal.
	end := sort.Search(len(series), func(i int) bool {
		return series[i].Time.After(asOf)
	})
	if end == 0 {
		return nil
	}

	start := end - count
	if start < 0 {
		start = 0
	}

	out := make([]domain.Bar, end-start)
	copy(out, series[start:end])
	return out
}

// View devuelve una vista del store anclada en asOf que implementa
// ports.BarProvider: el motor de señales consume exactamente la misma
// interfaz en vivo y en replay.
func (s *Store) View(asOf time.Time) *View {
	return &View{store: s, asOf: asOf}
}

// View es un BarProvider causal congelado en un instante de simulación.
type View struct {
	store *Store
	asOf  time.Time
}

// GetBars implementa ports.BarProvider sobre la vista causal.
func (v *View) GetBars(_ context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Bar, error) {
	return v.store.BarsUpTo(symbol, tf, v.asOf, count), nil
}

// At devuelve el instante al que está anclada la vista.
func (v *View) At() time.Time { return v.asOf }
