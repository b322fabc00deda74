package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gadievron/mailmatch/internal/runner"
	"github.com/gadievron/mailmatch/internal/store"
)

var (
	resolveAccount    string
	resolveInput      string
	resolveColumn     int
	resolveHasHeader  bool
	resolveOutput     string
	resolveLimit      int
	resolveNoCalendar bool
	resolveNoResume   bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [name ...]",
	Short: "Resolve names to email addresses",
	Long: `Resolve display names to email addresses using the given Gmail
account. Names come either from arguments or from a CSV file.

Every outcome is stored in the local database; names that already
resolved with good confidence are skipped on re-runs. Use --output to
additionally write a CSV with one row per input name.

Examples:
  mailmatch resolve --account you@gmail.com "Jane Smith" "Bob Jones"
  mailmatch resolve --account you@gmail.com --input names.csv --header
  mailmatch resolve --account you@gmail.com --input names.csv --column 2 --output found.csv`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveAccount, "account", "", "Gmail account to search (required)")
	resolveCmd.Flags().StringVar(&resolveInput, "input", "", "CSV file with names")
	resolveCmd.Flags().IntVar(&resolveColumn, "column", 0, "zero-based name column in the input CSV")
	resolveCmd.Flags().BoolVar(&resolveHasHeader, "header", false, "input CSV has a header row")
	resolveCmd.Flags().StringVar(&resolveOutput, "output", "", "write outcomes to this CSV file")
	resolveCmd.Flags().IntVar(&resolveLimit, "limit", 0, "process at most this many names (0 = all)")
	resolveCmd.Flags().BoolVar(&resolveNoCalendar, "no-calendar", false, "skip the calendar phase")
	resolveCmd.Flags().BoolVar(&resolveNoResume, "no-resume", false, "re-resolve names that already have outcomes")
	_ = resolveCmd.MarkFlagRequired("account")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	names := args
	if resolveInput != "" {
		if len(args) > 0 {
			return fmt.Errorf("pass names as arguments or via --input, not both")
		}
		var err error
		names, err = runner.ReadNames(resolveInput, resolveColumn, resolveHasHeader)
		if err != nil {
			return err
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("no names to resolve: pass names as arguments or use --input")
	}
	if resolveLimit > 0 && len(names) > resolveLimit {
		names = names[:resolveLimit]
	}

	res, err := buildResolver(ctx, resolveAccount, !resolveNoCalendar)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()
	if err := s.InitSchema(); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	dbSink := &storeSink{store: s}
	sinks := []runner.OutcomeSink{dbSink}

	if resolveOutput != "" {
		csvSink, err := runner.NewCSVSink(resolveOutput)
		if err != nil {
			return err
		}
		defer func() {
			if err := csvSink.Close(); err != nil {
				logger.Error("failed to close output CSV", "error", err)
			}
		}()
		sinks = append(sinks, csvSink)
	}

	var prior runner.PriorLookup
	if !resolveNoResume {
		prior = dbSink
	}

	run := runner.New(res, prior, logger, sinks...)
	sum, err := run.Run(ctx, names)

	fmt.Printf("Processed %d names:\n", len(names))
	fmt.Printf("  Resolved:  %d\n", sum.Resolved)
	fmt.Printf("  Skipped:   %d\n", sum.Skipped)
	fmt.Printf("  Not found: %d\n", sum.NotFound)
	fmt.Printf("  Empty:     %d\n", sum.Empty)
	fmt.Printf("  Errors:    %d\n", sum.Errors)

	return err
}
