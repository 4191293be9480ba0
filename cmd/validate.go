package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/feedlint/feedlint/internal/diag"
	"github.com/feedlint/feedlint/internal/validator"
	"github.com/feedlint/feedlint/internal/worker"
)

// newValidateCmd creates the 'validate' subcommand. Each argument is a
// URL or a local file path; "-" reads standard input. Several targets
// run through a bounded concurrency pool.
func newValidateCmd() *cobra.Command {
	var (
		jsonOut     bool
		groupEvents bool
		allEvents   bool
		baseURI     string
		concurrency int
		retries     int
	)

	cmd := &cobra.Command{
		Use:   "validate <url|path|-> [more targets...]",
		Short: "Validate feeds and print their diagnostics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnv()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			v := validator.New(cfg, logger)
			opts := validator.Options{
				FirstOccurrenceOnly: !allEvents,
				GroupEvents:         groupEvents,
				BaseURI:             baseURI,
			}

			validate := func(ctx context.Context, target string) (validator.Result, error) {
				switch {
				case target == "-":
					return v.ValidateStream(ctx, os.Stdin, "", opts)
				case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
					return v.ValidateURL(ctx, target, opts)
				default:
					data, err := os.ReadFile(target)
					if err != nil {
						return validator.Result{}, fmt.Errorf("read %s: %w", target, err)
					}
					return v.ValidateString(ctx, data, opts)
				}
			}

			pool := worker.New(validate, worker.Config{
				Concurrency: concurrency,
				MaxAttempts: retries + 1,
			}, logger)
			outcomes := pool.Run(cmd.Context(), args)

			failed := false
			for _, out := range outcomes {
				if len(outcomes) > 1 {
					fmt.Fprintf(cmd.OutOrStdout(), "== %s\n", out.Target)
				}
				// Terminal failures already logged their diagnostics;
				// print them before reporting the error itself.
				printResult(cmd, out.Result, jsonOut)
				if out.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "validate %s: %v\n", out.Target, out.Err)
					failed = true
				}
				if hasErrors(out.Result.Events) {
					failed = true
				}
			}
			if failed {
				cmd.SilenceErrors = true
				return fmt.Errorf("validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit machine-readable JSON")
	cmd.Flags().BoolVar(&groupEvents, "group", false, "coalesce consecutive events of the same kind")
	cmd.Flags().BoolVar(&allEvents, "all", false, "report every occurrence instead of the first per kind")
	cmd.Flags().StringVar(&baseURI, "base-uri", "", "base URI for local input")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "targets validated in parallel")
	cmd.Flags().IntVar(&retries, "retries", 0, "retries for transient transport failures")

	return cmd
}

func printResult(cmd *cobra.Command, res validator.Result, jsonOut bool) {
	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return
	}

	fmt.Fprintf(out, "feed type: %s\n", res.FeedType)
	for _, ev := range res.Events {
		pos := ""
		if ev.Pos != nil {
			pos = fmt.Sprintf(" at %d:%d", ev.Pos.Line, ev.Pos.Column)
		}
		fmt.Fprintf(out, "%-8s %s%s%s\n", ev.Severity, ev.Kind, pos, formatParams(ev))
	}
}

func formatParams(ev diag.Event) string {
	if len(ev.Params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ev.Params))
	for _, p := range ev.Params {
		parts = append(parts, p.Key+"="+p.Value)
	}
	return " (" + strings.Join(parts, " ") + ")"
}

func hasErrors(events []diag.Event) bool {
	for _, ev := range events {
		if ev.Severity == diag.SeverityError {
			return true
		}
	}
	return false
}
