// Package cli provides the command-line interface for the signal engine.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"smc-signals/internal/config"
	apperrors "smc-signals/internal/errors"
	"smc-signals/internal/logging"
	"smc-signals/internal/metrics"
	"smc-signals/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Store     store.BarStore
	Recorder  *metrics.Recorder
}

// NewRootCmd creates the root command for the CLI. A nil cfg is loaded from
// the --config directory before any subcommand runs.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Recorder: metrics.NewRecorder(),
	}

	rootCmd := &cobra.Command{
		Use:   "smc",
		Short: "Smart-money-concepts signal engine",
		Long: `smc replays OHLCV bars through a smart-money-concepts engine.

It tracks market structure, order blocks, fair value gaps, equal levels and
premium/discount zones, scores the confluence and emits BUY/SELL signals with
entry, stop loss and take profit levels.

Use 'smc import' to load bars into the local archive and 'smc scan' to replay them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/smc-signals)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newSymbolsCmd(app))

	return rootCmd
}

func (a *App) init(cmd *cobra.Command) error {
	if dir, _ := cmd.Flags().GetString("config"); dir != "" {
		a.ConfigDir = dir
	}
	if a.ConfigDir == "" {
		a.ConfigDir = config.DefaultConfigDir()
	}

	if a.Config == nil {
		cfg, err := config.Load(a.ConfigDir)
		if err != nil {
			return err
		}
		a.Config = cfg
		a.Logger = logging.NewLoggerWithConfig(cfg.Logging)
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithLogger(ctx, a.Logger))
	return nil
}

// openStore opens the bar archive on first use.
func (a *App) openStore() (store.BarStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	path := a.Config.Store.Path
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperrors.Wrap(err, "creating store directory")
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", path).Msg("SQLite store initialized")
	a.Store = s
	return s, nil
}

// Close releases the bar archive.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("smc-signals v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the effective configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := filepath.Join(app.ConfigDir, "config.toml")
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	e := cfg.Engine
	output.Bold("Engine")
	output.Printf("  Timeframe:          %s\n", e.Timeframe)
	output.Printf("  Default profile:    %s\n", e.DefaultProfile)
	output.Printf("  History capacity:   %d\n", e.HistoryCapacity)
	output.Printf("  Min history bars:   %d\n", e.MinHistoryBars)
	output.Printf("  Swing lookback:     %d\n", e.SwingLookback)
	output.Printf("  Internal lookback:  %d\n", e.InternalLookback)
	output.Printf("  Min confirmations:  %d (primary %d)\n", e.MinConfirmations, e.MinPrimary)
	output.Printf("  Min confidence:     %d\n", e.MinConfidence)
	output.Printf("  Cooldown:           %s\n", e.Cooldown)
	output.Printf("  Risk:reward:        %v\n", e.RiskRewardRatios)
	output.Println()

	output.Bold("Profiles")
	table := NewTable(output, "NAME", "MIN CONF", "COOLDOWN", "VOLATILITY", "PRECISION")
	for _, name := range cfg.ProfileNames() {
		p := e.Profiles[name]
		table.AddRow(name,
			fmt.Sprintf("%d", p.MinConfidence),
			p.Cooldown.String(),
			fmt.Sprintf("%g", p.Volatility),
			fmt.Sprintf("%d", p.Precision),
		)
	}
	table.Render()

	if len(e.Symbols) > 0 {
		output.Println()
		output.Bold("Symbols")
		symbols := make([]string, 0, len(e.Symbols))
		for s := range e.Symbols {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)
		table := NewTable(output, "SYMBOL", "PROFILE")
		for _, s := range symbols {
			table.AddRow(s, e.Symbols[s].Profile)
		}
		table.Render()
	}

	output.Println()
	output.Bold("Storage")
	output.Printf("  Database:  %s\n", cfg.Store.Path)
	output.Printf("  Log file:  %s\n", cfg.Logging.FilePath)
	if cfg.Metrics.Enabled {
		output.Printf("  Metrics:   %s%s\n", cfg.Metrics.Addr, cfg.Metrics.Path)
	}
}
