package marketdata_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/wickbot/internal/adapters/marketdata"
	"github.com/alejandrodnm/wickbot/internal/domain"
	"github.com/alejandrodnm/wickbot/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `time,open,high,low,close,volume
2024-03-01 19:00:00,1.08412,1.08440,1.08395,1.08421,312
2024-03-01 19:15:00,1.08421,1.08455,1.08410,1.08450,287
`

func TestLoadCSV_WithHeader(t *testing.T) {
	bars, err := marketdata.LoadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	first := bars[0]
	assert.Equal(t, time.Date(2024, 3, 1, 19, 0, 0, 0, time.UTC), first.Time)
	assert.InDelta(t, 1.08412, first.Open, 1e-9)
	assert.InDelta(t, 1.08440, first.High, 1e-9)
	assert.InDelta(t, 1.08395, first.Low, 1e-9)
	assert.InDelta(t, 1.08421, first.Close, 1e-9)
	assert.InDelta(t, 312.0, first.Volume, 1e-9)
}

func TestLoadCSV_WithoutHeader(t *testing.T) {
	raw := "2024-03-01 19:00:00,1.1,1.2,1.0,1.15,10\n"
	bars, err := marketdata.LoadCSV(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, bars, 1)
}

func TestLoadCSV_MalformedRowAborts(t *testing.T) {
	raw := sampleCSV + "2024-03-01 19:30:00,not-a-number,1.2,1.0,1.1,5\n"
	_, err := marketdata.LoadCSV(strings.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 4")
}

func TestLoadCSV_VolumeOptional(t *testing.T) {
	raw := "2024-03-01 19:00:00,1.1,1.2,1.0,1.15\n"
	bars, err := marketdata.LoadCSV(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Zero(t, bars[0].Volume)
}

func TestLoadDirectory_SeriesNaming(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EURUSD_M15.csv"), []byte(sampleCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	store := history.NewStore()
	loaded, err := marketdata.LoadDirectory(store, dir)
	require.NoError(t, err)

	assert.Equal(t, 1, loaded)
	assert.Equal(t, 2, store.Len("EURUSD", domain.TimeframeM15))
}

func TestLoadDirectory_RejectsBadName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EURUSD.csv"), []byte(sampleCSV), 0o644))

	_, err := marketdata.LoadDirectory(history.NewStore(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYMBOL_TF")
}
