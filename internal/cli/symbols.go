package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apperrors "smc-signals/internal/errors"
)

// SymbolStatus describes the stored bars of one symbol.
type SymbolStatus struct {
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	LatestBar  time.Time `json:"latest_bar"`
	Profile    string    `json:"profile"`
	LastImport time.Time `json:"last_import,omitempty"`
	Source     string    `json:"source,omitempty"`
}

func newSymbolsCmd(app *App) *cobra.Command {
	var timeframe string

	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List symbols stored in the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)
			if timeframe == "" {
				timeframe = app.Config.Engine.Timeframe
			}

			s, err := app.openStore()
			if err != nil {
				return err
			}
			symbols, err := s.Symbols(ctx, timeframe)
			if err != nil {
				return err
			}

			statuses := make([]SymbolStatus, 0, len(symbols))
			for _, sym := range symbols {
				st := SymbolStatus{Symbol: sym, Timeframe: timeframe}
				if st.LatestBar, err = s.BarsFreshness(ctx, sym, timeframe); err != nil {
					return err
				}
				st.Profile = profileOf(app.Config.Engine.Symbols[sym].Profile, app.Config.Engine.DefaultProfile)
				imp, err := s.LastImport(ctx, sym, timeframe)
				switch {
				case err == nil:
					st.LastImport, st.Source = imp.ImportedAt, imp.Source
				case !apperrors.Is(err, apperrors.ErrDataNotFound):
					return err
				}
				statuses = append(statuses, st)
			}

			if output.IsJSON() {
				return output.JSON(statuses)
			}
			if len(statuses) == 0 {
				output.Warning("No %s bars stored. Use 'smc import' first.", timeframe)
				return nil
			}

			table := NewTable(output, "SYMBOL", "PROFILE", "LATEST BAR", "LAST IMPORT", "SOURCE")
			for _, st := range statuses {
				table.AddRow(
					st.Symbol,
					st.Profile,
					st.LatestBar.UTC().Format("2006-01-02 15:04"),
					formatAge(st.LastImport),
					st.Source,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "timeframe (default: engine timeframe)")
	return cmd
}

func profileOf(symbolProfile, defaultProfile string) string {
	switch {
	case symbolProfile != "":
		return symbolProfile
	case defaultProfile != "":
		return defaultProfile
	default:
		return "-"
	}
}

// formatAge renders how long ago t was, "never" for the zero time.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}
