package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/sales"
	"sales-dashboard/internal/services"
)

const loadTimeout = 30 * time.Second

// rootFlags are shared by every subcommand.
type rootFlags struct {
	File      string
	LogLevel  string
	LogFormat string
}

// filterFlags select the rows a summary is computed over.
type filterFlags struct {
	Year     int
	Start    string
	End      string
	Category string
	Rank     string
	Bins     int
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "salesctl",
		Short: "Validate, summarize and export retail sales CSV files.",
		Long: `salesctl loads a retail sales CSV file, checks it has the required
columns and computes the same summaries the dashboard shows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.File, "file", "f", "", "Sales CSV file (defaults to DATA_CSV_FILE)")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.LogFormat, "log-format", "text", "Log format (text or json)")

	cmd.AddCommand(
		newValidateCmd(flags),
		newSummarizeCmd(flags),
		newExportCmd(flags),
	)
	return cmd
}

func (f *rootFlags) logger(cmd *cobra.Command) *slog.Logger {
	return observability.NewLoggerTo(cmd.ErrOrStderr(), config.LoggerConfig{Level: f.LogLevel, Format: f.LogFormat})
}

// source resolves the input file, falling back to the server configuration.
func (f *rootFlags) source() (string, error) {
	if f.File != "" {
		return f.File, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.Data.CSVFile, nil
}

// load reads and validates the input into a fresh analytics instance.
func (f *rootFlags) load(cmd *cobra.Command, opts sales.Options) (*services.Analytics, error) {
	path, err := f.source()
	if err != nil {
		return nil, err
	}

	a := services.NewAnalytics(
		services.WithLogger(f.logger(cmd)),
		services.WithOptions(opts),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	if err := a.LoadFromCSV(ctx, path); err != nil {
		return nil, err
	}
	return a, nil
}

func (ff *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&ff.Year, "year", 0, "Only include rows from this year")
	cmd.Flags().StringVar(&ff.Start, "start", "", "First day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&ff.End, "end", "", "Last day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&ff.Category, "category", "", "Only include this product category")
	cmd.Flags().StringVar(&ff.Rank, "rank", string(sales.RankByQuantity), "Rank categories by quantity or revenue")
	cmd.Flags().IntVar(&ff.Bins, "bins", 10, "Number of histogram bins")
}

func (ff *filterFlags) options() (sales.Options, error) {
	rank, err := sales.ParseRankKey(ff.Rank)
	if err != nil {
		return sales.Options{}, err
	}
	if ff.Bins < 1 {
		return sales.Options{}, fmt.Errorf("bins must be positive, got %d", ff.Bins)
	}
	return sales.Options{RankBy: rank, HistogramBins: ff.Bins}, nil
}

// filter builds the row filter. A range with a single bound is open on the
// other side.
func (ff *filterFlags) filter() (sales.Filter, error) {
	var f sales.Filter
	if ff.Year != 0 {
		f = f.WithYear(ff.Year)
	}

	if ff.Start != "" || ff.End != "" {
		start := time.Time{}
		end := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
		var err error
		if ff.Start != "" {
			if start, err = sales.ParseDay(ff.Start); err != nil {
				return f, fmt.Errorf("invalid --start: %w", err)
			}
		}
		if ff.End != "" {
			if end, err = sales.ParseDay(ff.End); err != nil {
				return f, fmt.Errorf("invalid --end: %w", err)
			}
		}
		f = f.WithDateRange(start, end)
	}

	if ff.Category != "" {
		f = f.WithCategory(ff.Category)
	}
	return f, nil
}

// summarize loads the input and computes the filtered summary.
func summarize(cmd *cobra.Command, rf *rootFlags, ff *filterFlags) (*services.Analytics, sales.Filter, error) {
	opts, err := ff.options()
	if err != nil {
		return nil, sales.Filter{}, err
	}
	f, err := ff.filter()
	if err != nil {
		return nil, f, err
	}
	a, err := rf.load(cmd, opts)
	if err != nil {
		return nil, f, err
	}
	return a, f, nil
}
