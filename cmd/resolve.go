package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/penf-coref/config"
	"github.com/otherjamesbrown/penf-coref/pkg/coref"
	"github.com/otherjamesbrown/penf-coref/pkg/logging"
	"github.com/otherjamesbrown/penf-coref/pkg/mentions"
)

// resolveFlags holds flags for the resolve command.
type resolveFlags struct {
	output     string
	scorer     string
	thresholds string
	strict     bool
	scratch    bool
	noCache    bool
	save       bool
	describe   bool
}

// ResolveReport is the output of one resolve run.
type ResolveReport struct {
	Result   *coref.Result           `json:"result" yaml:"result"`
	Clusters []coref.ClusterSnapshot `json:"clusters" yaml:"clusters"`
	Saved    bool                    `json:"saved" yaml:"saved"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(deps *CommandDeps) *cobra.Command {
	deps = deps.withDefaults()
	var flags resolveFlags

	cmd := &cobra.Command{
		Use:   "resolve <document>",
		Short: "Cluster the mentions of one document",
		Long: `Resolve coreference for one document.

The document is a JSON or YAML file holding the mentions detected upstream and,
for the table scorer, a precomputed score for each candidate pair. Every mention
starts in its own cluster; candidate pairs are scored, ranked best first and
merged while they clear the threshold for their pronoun/non-pronoun kind.

Thresholds take one value for every pair kind or four values in the order
pronoun/pronoun, pronoun/non-pronoun, non-pronoun/pronoun, non-pronoun/non-pronoun.

Examples:
  # Resolve with configured defaults
  penf-coref resolve doc.json

  # Per-kind thresholds, strict best-first linking, JSON output
  penf-coref resolve doc.yaml --thresholds 0.5,0.4,0.4,0.3 --strict -o json

  # Record scored pairs and merges to the scratch store and save the partition
  penf-coref resolve doc.json --scratch --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), deps, deps.out(cmd.OutOrStdout()), args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output format: text, json, yaml")
	cmd.Flags().StringVar(&flags.scorer, "scorer", "", "Pair scorer: table, linear")
	cmd.Flags().StringVar(&flags.thresholds, "thresholds", "", "One or four comma-separated link thresholds")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "Consume each anaphor on its top-ranked pair even below threshold")
	cmd.Flags().BoolVar(&flags.scratch, "scratch", false, "Record scored pairs and merges to the scratch store")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Disable the score cache")
	cmd.Flags().BoolVar(&flags.save, "save", false, "Save the partition to Postgres")
	cmd.Flags().BoolVar(&flags.describe, "describe", false, "Log every cluster at debug level after resolving")

	return cmd
}

// applyResolverFlags overlays command flags onto the loaded configuration.
func applyResolverFlags(cfg *config.CLIConfig, scorer, thresholds string, strict bool) error {
	if scorer != "" {
		cfg.Resolver.Scorer = scorer
	}
	if thresholds != "" {
		vals, err := config.ParseThresholds(thresholds)
		if err != nil {
			return fmt.Errorf("--thresholds: %w", err)
		}
		cfg.Resolver.Thresholds = vals
	}
	if strict {
		cfg.Resolver.StrictBestFirst = true
	}
	return cfg.Validate()
}

func runResolve(ctx context.Context, deps *CommandDeps, w io.Writer, path string, flags resolveFlags) error {
	cfg, err := deps.loadConfig()
	if err != nil {
		return err
	}
	if err := applyResolverFlags(cfg, flags.scorer, flags.thresholds, flags.strict); err != nil {
		return err
	}
	if flags.describe {
		cfg.Debug = true
	}
	format, err := resolveFormat(cfg, flags.output)
	if err != nil {
		return err
	}

	doc, err := mentions.LoadDocument(path)
	if err != nil {
		return err
	}
	store, err := coref.SingletonStore(doc)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	sess, err := deps.newSession(ctx, cfg, sessionOptions{scratch: flags.scratch, noCache: flags.noCache})
	if err != nil {
		return err
	}
	defer sess.Close()

	result, err := sess.resolver.Resolve(ctx, doc, store)
	if err != nil {
		return err
	}
	if cfg.Debug {
		store.Describe(sess.logger.With(logging.F("document_id", doc.ID)))
	}

	report := &ResolveReport{Result: result, Clusters: store.Snapshot()}
	if flags.save || cfg.Persist {
		repo, closeRepo, err := deps.openRepository(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeRepo()
		if err := repo.Save(ctx, coref.NewPartition(result, store)); err != nil {
			return fmt.Errorf("saving partition: %w", err)
		}
		report.Saved = true
	}

	switch format {
	case config.OutputFormatJSON:
		return outputJSON(w, report)
	case config.OutputFormatYAML:
		return outputYAML(w, report)
	default:
		return outputResolveText(w, report)
	}
}

// outputResolveText formats a resolve report for terminal display.
func outputResolveText(w io.Writer, r *ResolveReport) error {
	res := r.Result
	fmt.Fprintf(w, "Document %s  run %s\n", res.DocumentID, res.RunID)
	fmt.Fprintf(w, "  Candidates: %d  Scored: %d  Excluded: %d  Merges: %d  Clusters: %d  (%s)\n",
		res.Candidates, res.Scored, res.Excluded, res.Applied, res.Clusters,
		formatDurationMs(res.Duration.Milliseconds()))
	if r.Saved {
		fmt.Fprintln(w, "  Partition saved.")
	}
	fmt.Fprintln(w)

	printClusterTable(w, r.Clusters)
	return nil
}

// printClusterTable writes one row per cluster.
func printClusterTable(w io.Writer, clusters []coref.ClusterSnapshot) {
	fmt.Fprintln(w, "  ID    MENTIONS             REPRESENTATIVE                 GENDER   NER")
	fmt.Fprintln(w, "  --    --------             --------------                 ------   ---")
	for _, c := range clusters {
		ids := make([]string, len(c.Mentions))
		for i, id := range c.Mentions {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(w, "  %-5d %-20s %-30s %-8s %s\n",
			c.ID,
			truncate(strings.Join(ids, ","), 20),
			truncate(c.RepresentativeText, 30),
			c.Gender,
			strings.Join(c.NERStrings, ","),
		)
	}
}
