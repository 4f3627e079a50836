package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/penf-coref/config"
	"github.com/otherjamesbrown/penf-coref/pkg/scratch"
)

// scratchFlags holds flags for the scratch commands.
type scratchFlags struct {
	output    string
	olderThan string
	merges    bool
}

// ScratchReport is a recorded run with its artifacts.
type ScratchReport struct {
	Run    *scratch.Run          `json:"run" yaml:"run"`
	Pairs  []scratch.PairRecord  `json:"pairs" yaml:"pairs"`
	Merges []scratch.MergeRecord `json:"merges" yaml:"merges"`
}

// NewScratchCommand creates the scratch command with all subcommands.
func NewScratchCommand(deps *CommandDeps) *cobra.Command {
	deps = deps.withDefaults()
	var flags scratchFlags

	cmd := &cobra.Command{
		Use:   "scratch",
		Short: "Inspect recorded run artifacts",
		Long: `Inspect the local scratch store written by 'resolve --scratch'.

The scratch store is a SQLite file (scratch.path, default
~/.penf-coref/scratch.db) holding every scored candidate pair and every merge
decision of a run, which is enough to explain why two mentions did or did not
end up in the same cluster.

Examples:
  # Show a run's merges
  penf-coref scratch show 6f1c... --merges

  # Delete runs older than a week
  penf-coref scratch prune --older-than 7d`,
	}

	cmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "", "Output format: text, json, yaml")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScratchShow(cmd.Context(), deps, deps.out(cmd.OutOrStdout()), args[0], flags)
		},
	}
	show.Flags().BoolVar(&flags.merges, "merges", false, "Show only merge decisions in text output")

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete old runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScratchPrune(cmd.Context(), deps, deps.out(cmd.OutOrStdout()), flags)
		},
	}
	prune.Flags().StringVar(&flags.olderThan, "older-than", "30d", "Delete runs started before this age (e.g. 12h, 7d)")

	cmd.AddCommand(show, prune)
	return cmd
}

// parseAge parses a duration that may use a "d" suffix for days.
func parseAge(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	return d, nil
}

func withScratch(deps *CommandDeps, fn func(*config.CLIConfig, *scratch.Store) error) error {
	cfg, err := deps.loadConfig()
	if err != nil {
		return err
	}
	path, err := cfg.ScratchPath()
	if err != nil {
		return err
	}
	store, err := deps.OpenScratch(path)
	if err != nil {
		return fmt.Errorf("opening scratch store %s: %w", path, err)
	}
	defer store.Close()
	return fn(cfg, store)
}

func runScratchShow(ctx context.Context, deps *CommandDeps, w io.Writer, runID string, flags scratchFlags) error {
	return withScratch(deps, func(cfg *config.CLIConfig, store *scratch.Store) error {
		format, err := resolveFormat(cfg, flags.output)
		if err != nil {
			return err
		}
		run, err := store.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		report := &ScratchReport{Run: run}
		if report.Pairs, err = store.Pairs(ctx, runID); err != nil {
			return err
		}
		if report.Merges, err = store.Merges(ctx, runID); err != nil {
			return err
		}

		switch format {
		case config.OutputFormatJSON:
			return outputJSON(w, report)
		case config.OutputFormatYAML:
			return outputYAML(w, report)
		default:
			return outputScratchText(w, report, flags.merges)
		}
	})
}

func outputScratchText(w io.Writer, r *ScratchReport, mergesOnly bool) error {
	run := r.Run
	fmt.Fprintf(w, "Run %s  document %s\n", run.ID, run.DocumentID)
	fmt.Fprintf(w, "  Status: %s  Clusters: %d  Thresholds: %s\n", run.Status, run.Clusters, run.Thresholds)
	fmt.Fprintf(w, "  Started: %s", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "  (%s)", formatDurationMs(run.FinishedAt.Sub(run.StartedAt).Milliseconds()))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	if !mergesOnly {
		fmt.Fprintf(w, "Scored pairs (%d):\n", len(r.Pairs))
		fmt.Fprintln(w, "  ANAPHOR  ANTECEDENT  SCORE     NOTE")
		fmt.Fprintln(w, "  -------  ----------  -----     ----")
		for _, p := range r.Pairs {
			note := ""
			if p.Excluded {
				note = "excluded: " + p.Reason
			}
			fmt.Fprintf(w, "  %7d  %10d  %-8.4f  %s\n", p.Anaphor, p.Antecedent, p.Score, note)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Merges (%d):\n", len(r.Merges))
	fmt.Fprintln(w, "  SEQ   ANAPHOR  ANTECEDENT  SCORE     APPLIED")
	fmt.Fprintln(w, "  ---   -------  ----------  -----     -------")
	for _, m := range r.Merges {
		applied := "yes"
		if !m.Applied {
			applied = "no (already merged)"
		}
		fmt.Fprintf(w, "  %-5d %7d  %10d  %-8.4f  %s\n", m.Seq, m.Anaphor, m.Antecedent, m.Score, applied)
	}
	return nil
}

func runScratchPrune(ctx context.Context, deps *CommandDeps, w io.Writer, flags scratchFlags) error {
	age, err := parseAge(flags.olderThan)
	if err != nil {
		return fmt.Errorf("--older-than: %w", err)
	}
	return withScratch(deps, func(cfg *config.CLIConfig, store *scratch.Store) error {
		n, err := store.Prune(ctx, time.Now().Add(-age))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Pruned %d run(s) older than %s\n", n, flags.olderThan)
		return nil
	})
}
