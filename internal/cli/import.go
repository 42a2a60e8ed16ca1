package cli

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "smc-signals/internal/errors"
	"smc-signals/internal/logging"
	"smc-signals/internal/models"
	"smc-signals/internal/performance"
	"smc-signals/internal/store"
)

const defaultImportBatch = 500

func newImportCmd(app *App) *cobra.Command {
	var (
		symbol    string
		timeframe string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import OHLCV bars from a CSV file",
		Long: `Import bars into the local archive.

The CSV needs a header row with timestamp,open,high,low,close,volume columns.
Timestamps may be unix seconds, unix milliseconds, RFC3339 or
"2006-01-02 15:04:05". Re-importing a timestamp replaces the stored bar.

The symbol defaults to the file name (eurusd_5m.csv imports EURUSD).`,
		Example: `  smc import eurusd.csv --symbol EURUSD --timeframe 5m
  smc import BTCUSD.csv -t 1h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := args[0]

			if symbol == "" {
				symbol = symbolFromPath(path)
			}
			symbol = strings.ToUpper(strings.TrimSpace(symbol))
			if symbol == "" {
				return apperrors.Wrapf(apperrors.ErrInvalidSymbol, "cannot derive symbol from %s", path)
			}
			if timeframe == "" {
				timeframe = app.Config.Engine.Timeframe
			}

			s, err := app.openStore()
			if err != nil {
				return err
			}

			logger := logging.WithOperation(logging.FromContext(cmd.Context()), "import")
			start := time.Now()
			n, err := importBars(cmd.Context(), s, path, symbol, timeframe, batchSize)
			logging.LogImport(logger, symbol, timeframe, n, time.Since(start), err)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":    symbol,
					"timeframe": timeframe,
					"bars":      n,
					"source":    path,
				})
			}
			output.Success("✓ Imported %d %s bars for %s", n, timeframe, symbol)
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "symbol to store the bars under")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "timeframe label (default: engine timeframe)")
	cmd.Flags().IntVar(&batchSize, "batch", defaultImportBatch, "bars written per transaction")

	return cmd
}

// importBars reads path and writes its bars to s in batches, then records
// the import.
func importBars(ctx context.Context, s store.BarStore, path, symbol, timeframe string, batchSize int) (int, error) {
	bars, err := store.ReadBarsFile(path, symbol)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, apperrors.NewDataError("csv", symbol, "no bars in "+path, apperrors.ErrDataNotFound)
	}
	if batchSize <= 0 {
		batchSize = defaultImportBatch
	}

	batch := performance.NewBatchProcessor(batchSize, func(chunk []models.Bar) error {
		return s.SaveBars(ctx, symbol, timeframe, chunk)
	})
	if err := batch.Add(bars...); err != nil {
		return batch.Processed(), err
	}
	if err := batch.Flush(); err != nil {
		return batch.Processed(), err
	}

	err = s.RecordImport(ctx, store.Import{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Source:     filepath.Base(path),
		Bars:       batch.Processed(),
		ImportedAt: time.Now().UTC(),
	})
	return batch.Processed(), err
}

// symbolFromPath derives a symbol from a file name: "data/eurusd_5m.csv"
// gives "EURUSD".
func symbolFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.IndexAny(name, "_-. "); i >= 0 {
		name = name[:i]
	}
	return strings.ToUpper(name)
}
