package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/storage/models"
)

func sampleTrades() []*models.Trade {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []*models.Trade{
		{
			BaseModel: models.BaseModel{CreatedAt: base.Add(2 * time.Minute)},
			OrderID:   "order-2",
			Mint:      "MintAAAAAAA",
			Protocol:  "pumpfun",
			Side:      "sell",
			AmountIn:  50_000,
			AmountOut: 95_000_000,
			State:     "confirmed",
		},
		{
			BaseModel: models.BaseModel{CreatedAt: base},
			OrderID:   "order-1",
			Mint:      "MintAAAAAAA",
			Protocol:  "pumpfun",
			Side:      "buy",
			AmountIn:  100_000_000,
			AmountOut: 50_000,
			State:     "confirmed",
		},
		{
			BaseModel: models.BaseModel{CreatedAt: base.Add(time.Minute)},
			OrderID:   "order-3",
			Mint:      "MintBBBBBBB",
			Protocol:  "raydium",
			Side:      "buy",
			AmountIn:  200_000_000,
			State:     "failed",
		},
	}
}

func TestExportCSV(t *testing.T) {
	te := NewTradeExporter(zap.NewNop())
	dir := t.TempDir()

	path, err := te.Export(sampleTrades(), Options{
		Format:    FormatCSV,
		OutputDir: dir,
	})
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, csvHeaders, records[0])
	// Rows come out in chronological order.
	assert.Equal(t, "order-1", records[1][1])
	assert.Equal(t, "order-3", records[2][1])
	assert.Equal(t, "order-2", records[3][1])
}

func TestExportJSONSummary(t *testing.T) {
	te := NewTradeExporter(zap.NewNop())
	dir := t.TempDir()

	path, err := te.Export(sampleTrades(), Options{
		Format:    FormatJSON,
		OutputDir: dir,
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var payload struct {
		TradeCount int     `json:"trade_count"`
		Summary    Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, 3, payload.TradeCount)
	assert.Equal(t, 2, payload.Summary.ConfirmedTrades)
	assert.Equal(t, 2, payload.Summary.BuyCount)
	assert.Equal(t, 1, payload.Summary.SellCount)
	assert.Equal(t, 2, payload.Summary.UniqueMints)
	assert.Equal(t, uint64(300_000_000), payload.Summary.BuyLamports)
	assert.Equal(t, uint64(95_000_000), payload.Summary.SellLamports)
}

func TestExportFilters(t *testing.T) {
	te := NewTradeExporter(zap.NewNop())
	dir := t.TempDir()

	path, err := te.Export(sampleTrades(), Options{
		Format:        FormatCSV,
		Mint:          "MintAAAAAAA",
		Side:          "buy",
		OnlyConfirmed: true,
		OutputDir:     dir,
	})
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "order-1", records[1][1])
}

func TestExportNoMatches(t *testing.T) {
	te := NewTradeExporter(zap.NewNop())
	_, err := te.Export(sampleTrades(), Options{
		Format:    FormatCSV,
		Mint:      "missing",
		OutputDir: t.TempDir(),
	})
	assert.Error(t, err)
}

func TestExportUnknownFormat(t *testing.T) {
	te := NewTradeExporter(zap.NewNop())
	_, err := te.Export(sampleTrades(), Options{
		Format:    Format("xml"),
		OutputDir: t.TempDir(),
	})
	assert.Error(t, err)
}
