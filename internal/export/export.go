// internal/export/export.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/storage/models"
)

// Format represents the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options configures the export behavior.
type Options struct {
	Format Format
	// Mint filters the export to a single token; empty exports everything.
	Mint string
	// Side filters to "buy" or "sell"; empty exports both.
	Side string
	// OnlyConfirmed drops orders that never landed on chain.
	OnlyConfirmed bool
	OutputDir     string
}

// TradeExporter writes trade history rows to CSV or JSON files.
type TradeExporter struct {
	logger *zap.Logger
}

func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	return &TradeExporter{logger: logger.Named("export")}
}

// Export filters, sorts and writes the trades, returning the output path.
func (te *TradeExporter) Export(trades []*models.Trade, opts Options) (string, error) {
	filtered := filter(trades, opts)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(opts.OutputDir, filename(opts))

	var err error
	switch opts.Format {
	case FormatCSV:
		err = writeCSV(filtered, outputPath)
	case FormatJSON:
		err = writeJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format %q", opts.Format)
	}
	if err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(opts.Format)))
	return outputPath, nil
}

func filter(trades []*models.Trade, opts Options) []*models.Trade {
	var out []*models.Trade
	for _, t := range trades {
		if opts.Mint != "" && t.Mint != opts.Mint {
			continue
		}
		if opts.Side != "" && t.Side != opts.Side {
			continue
		}
		if opts.OnlyConfirmed && t.State != "confirmed" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func filename(opts Options) string {
	prefix := "trades_all"
	if opts.Side != "" {
		prefix = "trades_" + opts.Side
	}
	if opts.Mint != "" && len(opts.Mint) >= 8 {
		prefix += "_" + opts.Mint[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, time.Now().Format("20060102_150405"), opts.Format)
}

var csvHeaders = []string{
	"created_at", "order_id", "source_wallet", "source_signature",
	"signature", "mint", "protocol", "side",
	"amount_in", "amount_out", "slippage_bps", "state",
	"attempts", "duration_ms", "error",
}

func writeCSV(trades []*models.Trade, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, t := range trades {
		record := []string{
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.OrderID,
			t.SourceWallet,
			t.SourceSignature,
			t.Signature,
			t.Mint,
			t.Protocol,
			t.Side,
			strconv.FormatUint(t.AmountIn, 10),
			strconv.FormatUint(t.AmountOut, 10),
			strconv.FormatUint(t.SlippageBps, 10),
			t.State,
			strconv.Itoa(t.Attempts),
			strconv.FormatInt(t.DurationMs, 10),
			t.ErrorMessage,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write trade row: %w", err)
		}
	}
	return nil
}

// Summary aggregates the exported trades.
type Summary struct {
	TotalTrades     int       `json:"total_trades"`
	ConfirmedTrades int       `json:"confirmed_trades"`
	BuyCount        int       `json:"buy_count"`
	SellCount       int       `json:"sell_count"`
	UniqueMints     int       `json:"unique_mints"`
	BuyLamports     uint64    `json:"buy_lamports"`
	SellLamports    uint64    `json:"sell_lamports"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
}

func summarize(trades []*models.Trade) Summary {
	summary := Summary{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return summary
	}
	summary.StartDate = trades[0].CreatedAt
	summary.EndDate = trades[len(trades)-1].CreatedAt

	mints := make(map[string]struct{})
	for _, t := range trades {
		mints[t.Mint] = struct{}{}
		if t.State == "confirmed" {
			summary.ConfirmedTrades++
		}
		switch t.Side {
		case "buy":
			summary.BuyCount++
			summary.BuyLamports += t.AmountIn
		case "sell":
			summary.SellCount++
			summary.SellLamports += t.AmountOut
		}
	}
	summary.UniqueMints = len(mints)
	return summary
}

func writeJSON(trades []*models.Trade, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	payload := struct {
		ExportTime time.Time       `json:"export_time"`
		TradeCount int             `json:"trade_count"`
		Summary    Summary         `json:"summary"`
		Trades     []*models.Trade `json:"trades"`
	}{
		ExportTime: time.Now().UTC(),
		TradeCount: len(trades),
		Summary:    summarize(trades),
		Trades:     trades,
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
