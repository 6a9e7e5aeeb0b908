package marketdata

// csv.go — carga de velas históricas desde CSV exportado de la terminal.
//
// Formato esperado, con cabecera:
//
//	time,open,high,low,close,volume
//	2024-03-01 19:00:00,1.08412,1.08440,1.08395,1.08421,312
//
// Los timestamps van en hora del servidor del broker; se interpretan como
// UTC. Las filas mal formadas abortan la carga: un hueco silencioso en el
// histórico invalida el backtest entero.

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/wickbot/internal/domain"
	"github.com/alejandrodnm/wickbot/internal/history"
)

const csvTimeLayout = "2006-01-02 15:04:05"

// LoadCSV parsea un CSV de velas.
func LoadCSV(r io.Reader) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("marketdata.LoadCSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Cabecera opcional: se salta si la primera celda no parsea como fecha.
	start := 0
	if _, err := time.Parse(csvTimeLayout, rows[0][0]); err != nil {
		start = 1
	}

	bars := make([]domain.Bar, 0, len(rows)-start)
	for i, row := range rows[start:] {
		bar, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("marketdata.LoadCSV: row %d: %w", start+i+1, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseRow(row []string) (domain.Bar, error) {
	if len(row) < 5 {
		return domain.Bar{}, fmt.Errorf("expected at least 5 fields, got %d", len(row))
	}

	t, err := time.Parse(csvTimeLayout, row[0])
	if err != nil {
		return domain.Bar{}, fmt.Errorf("invalid time %q: %w", row[0], err)
	}

	fields := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("invalid value %q: %w", row[i+1], err)
		}
		fields[i] = v
	}

	var volume float64
	if len(row) > 5 && row[5] != "" {
		volume, err = strconv.ParseFloat(row[5], 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("invalid volume %q: %w", row[5], err)
		}
	}

	return domain.Bar{
		Time:   t.UTC(),
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: volume,
	}, nil
}

// LoadDirectory carga en el store todos los CSV de un directorio con la
// convención de nombre SYMBOL_TF.csv (p.ej. EURUSD_M15.csv). Devuelve el
// número de series cargadas.
func LoadDirectory(store *history.Store, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("marketdata.LoadDirectory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}

		symbol, tf, err := parseSeriesName(name)
		if err != nil {
			return loaded, fmt.Errorf("marketdata.LoadDirectory: %w", err)
		}

		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return loaded, fmt.Errorf("marketdata.LoadDirectory: %w", err)
		}
		bars, err := LoadCSV(f)
		f.Close()
		if err != nil {
			return loaded, fmt.Errorf("marketdata.LoadDirectory: %s: %w", name, err)
		}

		if err := store.Add(symbol, tf, bars); err != nil {
			return loaded, fmt.Errorf("marketdata.LoadDirectory: %s: %w", name, err)
		}
		loaded++
	}
	return loaded, nil
}

// parseSeriesName extrae símbolo y timeframe de un nombre SYMBOL_TF.csv.
func parseSeriesName(name string) (string, domain.Timeframe, error) {
	base := strings.TrimSuffix(name, ".csv")
	idx := strings.LastIndex(base, "_")
	if idx <= 0 || idx == len(base)-1 {
		return "", "", fmt.Errorf("invalid series file name %q (want SYMBOL_TF.csv)", name)
	}

	tf, err := domain.ParseTimeframe(base[idx+1:])
	if err != nil {
		return "", "", fmt.Errorf("series file %q: %w", name, err)
	}
	return base[:idx], tf, nil
}
