package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"smc-signals/internal/engine"
	apperrors "smc-signals/internal/errors"
	"smc-signals/internal/logging"
	"smc-signals/internal/metrics"
	"smc-signals/internal/models"
	"smc-signals/internal/performance"
	"smc-signals/internal/store"
)

type scanOptions struct {
	timeframe   string
	csvPath     string
	ratios      string
	profile     string
	limit       int
	workers     int
	metricsAddr string
	verbose     bool
}

// ScanResult is the replay summary of one symbol.
type ScanResult struct {
	Symbol   string          `json:"symbol"`
	Bars     int             `json:"bars"`
	Outcomes map[string]int  `json:"outcomes"`
	Signals  []models.Signal `json:"signals"`
	Error    string          `json:"error,omitempty"`

	err error
}

func newScanCmd(app *App) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [symbols...]",
		Short: "Replay bars through the signal engine",
		Long: `Replay stored bars bar-by-bar through the engine and print the signals it emits.

Each symbol gets its own engine and symbols are replayed in parallel.
Without arguments every symbol stored for the timeframe is scanned.
With --csv a single file is replayed without touching the archive.
With --metrics-addr (or [metrics] enabled) the results stay on /metrics until interrupted.`,
		Example: `  smc scan EURUSD GBPUSD -t 5m
  smc scan --csv btcusd.csv --profile crypto --ratios 1.5,2,3
  smc scan --metrics-addr :9090 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, app, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.timeframe, "timeframe", "t", "", "timeframe to scan (default: engine timeframe)")
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "replay bars from a CSV file instead of the archive")
	cmd.Flags().StringVar(&opts.ratios, "ratios", "", "risk:reward ratios, e.g. 1.5,2,3")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "force a parameter profile for all symbols")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "replay only the newest N stored bars (0 = all)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "parallel symbol replays (default: CPU count)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address until interrupted")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "print the rationale of every signal")

	return cmd
}

func runScan(cmd *cobra.Command, app *App, opts *scanOptions, args []string) error {
	ctx := cmd.Context()
	output := NewOutput(cmd)
	logger := logging.WithOperation(logging.FromContext(ctx), "scan")

	if opts.timeframe == "" {
		opts.timeframe = app.Config.Engine.Timeframe
	}

	symbols := normalizeSymbols(args)
	var csvBars []models.Bar
	if opts.csvPath != "" {
		if len(symbols) > 1 {
			return fmt.Errorf("--csv replays a single symbol, got %d", len(symbols))
		}
		if len(symbols) == 0 {
			symbols = []string{symbolFromPath(opts.csvPath)}
		}
		bars, err := store.ReadBarsFile(opts.csvPath, symbols[0])
		if err != nil {
			return err
		}
		csvBars = bars
	}

	engCfg, err := scanConfig(app.Config.Engine, opts, symbols)
	if err != nil {
		return err
	}

	var barStore store.BarStore
	if opts.csvPath == "" {
		barStore, err = app.openStore()
		if err != nil {
			return err
		}
		if len(symbols) == 0 {
			symbols, err = barStore.Symbols(ctx, opts.timeframe)
			if err != nil {
				return err
			}
			// scan-wide profile must cover symbols discovered from the archive
			if engCfg, err = scanConfig(app.Config.Engine, opts, symbols); err != nil {
				return err
			}
		}
	}
	if len(symbols) == 0 {
		return apperrors.NewDataError("bars", "", "no symbols stored for timeframe "+opts.timeframe, apperrors.ErrDataNotFound)
	}

	addr := opts.metricsAddr
	if addr == "" && app.Config.Metrics.Enabled {
		addr = app.Config.Metrics.Addr
	}
	var srv *http.Server
	if addr != "" {
		srv, err = metrics.Serve(addr, app.Config.Metrics.Path, app.Recorder, logger)
		if err != nil {
			return err
		}
		logger.Info().Str("addr", srv.Addr).Msg("metrics up")
	}

	workers := opts.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool := performance.NewWorkerPool(min(workers, len(symbols)))
	pool.Start()
	defer pool.Stop()

	start := time.Now()
	results, err := performance.Each(ctx, pool, symbols, func(ctx context.Context, symbol string) ScanResult {
		bars := csvBars
		if barStore != nil {
			var err error
			bars, err = barStore.LatestBars(ctx, symbol, opts.timeframe, opts.limit)
			if err != nil {
				return ScanResult{Symbol: symbol, Error: err.Error(), err: err}
			}
		}
		return replay(engCfg, symbol, bars, logger, app.Recorder)
	})
	if err != nil {
		return err
	}
	logger.Debug().
		Int("symbols", len(symbols)).
		Uint64("tasks", pool.Stats().TasksDone).
		Dur("duration", time.Since(start)).
		Msg("Scan complete")

	if err := renderScan(output, engCfg, results, opts.verbose); err != nil {
		return err
	}

	failed := 0
	var firstErr error
	for _, r := range results {
		if r.err != nil {
			failed++
			if firstErr == nil {
				firstErr = r.err
			}
		}
	}

	if srv != nil {
		if !output.IsJSON() {
			output.Info("Serving metrics on %s%s (Ctrl+C to stop)", srv.Addr, app.Config.Metrics.Path)
		}
		waitCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		<-waitCtx.Done()
		stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	if failed == len(results) {
		return firstErr
	}
	return nil
}

// scanConfig applies the command line overrides to a copy of base.
func scanConfig(base engine.Config, opts *scanOptions, symbols []string) (engine.Config, error) {
	cfg := base
	cfg.Params = base.Params.Clone()
	cfg.Timeframe = opts.timeframe

	cfg.Profiles = make(map[string]engine.Params, len(base.Profiles))
	for name, p := range base.Profiles {
		cfg.Profiles[name] = p.Clone()
	}
	cfg.Symbols = make(map[string]engine.SymbolConfig, len(base.Symbols))
	for s, sc := range base.Symbols {
		cfg.Symbols[s] = sc
	}

	if opts.ratios != "" {
		ratios, err := ParseRatios(opts.ratios)
		if err != nil {
			return cfg, apperrors.NewValidationError("ratios", opts.ratios, err.Error())
		}
		cfg.RiskRewardRatios = ratios
		for name, p := range cfg.Profiles {
			p.RiskRewardRatios = append([]float64(nil), ratios...)
			cfg.Profiles[name] = p
		}
	}

	if opts.profile != "" {
		profile := strings.ToLower(opts.profile)
		if _, ok := cfg.Profiles[profile]; !ok {
			return cfg, fmt.Errorf("%w: %s", apperrors.ErrUnknownProfile, opts.profile)
		}
		for _, s := range symbols {
			sc := cfg.Symbols[s]
			sc.Profile = profile
			cfg.Symbols[s] = sc
		}
	}

	return cfg, cfg.Validate()
}

// replay feeds bars one at a time through a fresh engine.
func replay(cfg engine.Config, symbol string, bars []models.Bar, logger zerolog.Logger, rec engine.Recorder) ScanResult {
	res := ScanResult{
		Symbol:   symbol,
		Bars:     len(bars),
		Outcomes: make(map[string]int),
		Signals:  []models.Signal{},
	}

	symLogger := logging.WithSymbol(logger, symbol)
	eng, err := engine.New(cfg, engine.WithLogger(symLogger), engine.WithRecorder(rec))
	if err != nil {
		res.Error, res.err = err.Error(), err
		return res
	}

	for _, bar := range bars {
		a := eng.OnBar(symbol, bar)
		res.Outcomes[a.Outcome.String()]++
		for _, sig := range a.Signals {
			logging.LogSignal(symLogger, sig)
		}
		res.Signals = append(res.Signals, a.Signals...)
	}
	return res
}

func renderScan(output *Output, cfg engine.Config, results []ScanResult, verbose bool) error {
	if output.IsJSON() {
		return output.JSON(results)
	}

	var all []models.Signal
	for _, r := range results {
		all = append(all, r.Signals...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	if len(all) == 0 {
		output.Warning("No signals emitted")
	} else {
		table := NewTable(output, "TIME", "SYMBOL", "DIR", "CONFIDENCE", "ENTRY", "STOP", "TARGET", "R:R", "SESSION")
		for _, sig := range all {
			prec := precisionOf(cfg, sig.Symbol)
			table.AddRow(
				sig.Timestamp.UTC().Format("2006-01-02 15:04"),
				sig.Symbol,
				output.FormatDirection(sig.Direction),
				FormatConfidence(sig.Confidence),
				FormatPrice(sig.EntryPrice, prec),
				FormatPrice(sig.StopLoss, prec),
				FormatPrice(sig.TakeProfit, prec),
				FormatRiskReward(sig.RiskReward),
				sig.SessionQuality,
			)
		}
		table.Render()
	}

	if verbose {
		for _, sig := range all {
			output.Println()
			output.Printf("%s %s %s\n", sig.Timestamp.UTC().Format(time.RFC3339), sig.Symbol, output.FormatDirection(sig.Direction))
			output.Dim("  %s", sig.Rationale)
		}
	}

	output.Println()
	for _, r := range results {
		if r.err != nil {
			output.Error("%s: %v", r.Symbol, r.err)
			continue
		}
		output.Printf("%-10s %6d bars  %3d signals  %s\n", r.Symbol, r.Bars, len(r.Signals), output.DimText(formatOutcomes(r.Outcomes)))
	}
	return nil
}

func precisionOf(cfg engine.Config, symbol string) int {
	p, err := cfg.ParamsFor(symbol)
	if err != nil {
		return cfg.Precision
	}
	return p.Precision
}

// formatOutcomes renders outcome counts in a stable order.
func formatOutcomes(counts map[string]int) string {
	order := []engine.Outcome{
		engine.OutcomeEmitted,
		engine.OutcomeCooldown,
		engine.OutcomeRejected,
		engine.OutcomeInsufficientHistory,
		engine.OutcomeNoData,
	}
	var parts []string
	for _, o := range order {
		if n := counts[o.String()]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", o, n))
		}
	}
	return strings.Join(parts, ", ")
}

func normalizeSymbols(args []string) []string {
	seen := make(map[string]bool, len(args))
	var out []string
	for _, a := range args {
		for _, s := range strings.Split(a, ",") {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
