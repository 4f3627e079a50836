package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/penf-coref/config"
	"github.com/otherjamesbrown/penf-coref/pkg/coref"
	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
)

// partitionFlags holds flags for the partition commands.
type partitionFlags struct {
	output   string
	document string
	limit    int
	mention  int
}

// NewPartitionCommand creates the partition command with all subcommands.
func NewPartitionCommand(deps *CommandDeps) *cobra.Command {
	deps = deps.withDefaults()
	var flags partitionFlags

	cmd := &cobra.Command{
		Use:   "partition",
		Short: "Inspect saved partitions",
		Long: `Inspect the partitions saved by 'resolve --save' and 'batch --save'.

A partition is the final set of clusters for one resolution run, keyed by the
run ID printed when the document was resolved.

Examples:
  # List the ten most recent partitions
  penf-coref partition list --limit 10

  # Show the latest partition for a document
  penf-coref partition latest doc-42

  # Show which cluster holds mention 7 in a run
  penf-coref partition show 6f1c... --mention 7`,
		Aliases: []string{"partitions"},
	}

	cmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "", "Output format: text, json, yaml")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a saved partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartitionShow(cmd.Context(), deps, deps.out(cmd.OutOrStdout()), args[0], flags)
		},
	}
	show.Flags().IntVar(&flags.mention, "mention", -1, "Show only the cluster holding this mention ID")

	latest := &cobra.Command{
		Use:   "latest <document-id>",
		Short: "Show the most recent partition for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartitionLatest(cmd.Context(), deps, deps.out(cmd.OutOrStdout()), args[0], flags)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved partitions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartitionList(cmd.Context(), deps, deps.out(cmd.OutOrStdout()), flags)
		},
	}
	list.Flags().StringVar(&flags.document, "document", "", "Only list partitions for this document ID")
	list.Flags().IntVarP(&flags.limit, "limit", "n", 20, "Maximum number of partitions (0 for all)")

	del := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a saved partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartitionDelete(cmd.Context(), deps, deps.out(cmd.OutOrStdout()), args[0])
		},
	}

	cmd.AddCommand(show, latest, list, del)
	return cmd
}

func withRepository(ctx context.Context, deps *CommandDeps, fn func(*config.CLIConfig, coref.PartitionRepository) error) error {
	cfg, err := deps.loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	repo, closeRepo, err := deps.openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()
	return fn(cfg, repo)
}

func runPartitionShow(ctx context.Context, deps *CommandDeps, w io.Writer, runID string, flags partitionFlags) error {
	return withRepository(ctx, deps, func(cfg *config.CLIConfig, repo coref.PartitionRepository) error {
		p, err := repo.Get(ctx, runID)
		if err != nil {
			return err
		}
		if flags.mention >= 0 {
			c, ok := p.ClusterOf(flags.mention)
			if !ok {
				return fmt.Errorf("mention %d in run %s: %w", flags.mention, runID, corerrors.ErrNotFound)
			}
			p.Clusters = []coref.ClusterSnapshot{c}
		}
		return outputPartition(w, cfg, flags.output, p)
	})
}

func runPartitionLatest(ctx context.Context, deps *CommandDeps, w io.Writer, documentID string, flags partitionFlags) error {
	return withRepository(ctx, deps, func(cfg *config.CLIConfig, repo coref.PartitionRepository) error {
		p, err := repo.Latest(ctx, documentID)
		if err != nil {
			return err
		}
		return outputPartition(w, cfg, flags.output, p)
	})
}

func runPartitionList(ctx context.Context, deps *CommandDeps, w io.Writer, flags partitionFlags) error {
	return withRepository(ctx, deps, func(cfg *config.CLIConfig, repo coref.PartitionRepository) error {
		format, err := resolveFormat(cfg, flags.output)
		if err != nil {
			return err
		}
		parts, err := repo.List(ctx, coref.PartitionFilter{DocumentID: flags.document, Limit: flags.limit})
		if err != nil {
			return err
		}

		switch format {
		case config.OutputFormatJSON:
			return outputJSON(w, parts)
		case config.OutputFormatYAML:
			return outputYAML(w, parts)
		}

		if len(parts) == 0 {
			fmt.Fprintln(w, "No partitions found.")
			return nil
		}
		fmt.Fprintln(w, "  RUN ID                                DOCUMENT                       MENTIONS  CREATED")
		fmt.Fprintln(w, "  ------                                --------                       --------  -------")
		for _, p := range parts {
			fmt.Fprintf(w, "  %-37s %-30s %8d  %s\n",
				p.RunID, truncate(p.DocumentID, 30), p.Mentions,
				p.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	})
}

func runPartitionDelete(ctx context.Context, deps *CommandDeps, w io.Writer, runID string) error {
	return withRepository(ctx, deps, func(cfg *config.CLIConfig, repo coref.PartitionRepository) error {
		if err := repo.Delete(ctx, runID); err != nil {
			return err
		}
		fmt.Fprintf(w, "Deleted partition %s\n", runID)
		return nil
	})
}

func outputPartition(w io.Writer, cfg *config.CLIConfig, flag string, p *coref.Partition) error {
	format, err := resolveFormat(cfg, flag)
	if err != nil {
		return err
	}
	switch format {
	case config.OutputFormatJSON:
		return outputJSON(w, p)
	case config.OutputFormatYAML:
		return outputYAML(w, p)
	}

	fmt.Fprintf(w, "Partition %s\n", p.RunID)
	fmt.Fprintf(w, "  Document: %s  Mentions: %d  Clusters: %d  Saved: %s\n\n",
		p.DocumentID, p.Mentions, len(p.Clusters), p.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	printClusterTable(w, p.Clusters)
	return nil
}
