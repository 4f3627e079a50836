package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/penf-coref/config"
	"github.com/otherjamesbrown/penf-coref/pkg/coref"
	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
	"github.com/otherjamesbrown/penf-coref/pkg/logging"
	"github.com/otherjamesbrown/penf-coref/pkg/mentions"
	"github.com/otherjamesbrown/penf-coref/pkg/observability"
	"github.com/otherjamesbrown/penf-coref/pkg/workers"
)

// batchFlags holds flags for the batch command.
type batchFlags struct {
	output      string
	scorer      string
	thresholds  string
	strict      bool
	workers     int
	scratch     bool
	noCache     bool
	save        bool
	metricsAddr string
}

// BatchItem is the outcome of one document in a batch.
type BatchItem struct {
	Path       string        `json:"path" yaml:"path"`
	DocumentID string        `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	RunID      string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Mentions   int           `json:"mentions" yaml:"mentions"`
	Merges     int           `json:"merges" yaml:"merges"`
	Clusters   int           `json:"clusters" yaml:"clusters"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Saved      bool          `json:"saved" yaml:"saved"`
	ErrorCode  string        `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// BatchReport summarises a batch run.
type BatchReport struct {
	Documents int               `json:"documents" yaml:"documents"`
	Resolved  int               `json:"resolved" yaml:"resolved"`
	Failed    int               `json:"failed" yaml:"failed"`
	Workers   workers.PoolStats `json:"workers" yaml:"workers"`
	Items     []BatchItem       `json:"items" yaml:"items"`
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(deps *CommandDeps) *cobra.Command {
	deps = deps.withDefaults()
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "batch <path>...",
		Short: "Resolve many documents concurrently",
		Long: `Resolve a set of documents with a pool of workers.

Each path is a document file or a directory; directories contribute every
.json, .yaml and .yml file they contain (not recursive). Documents are
independent: each gets its own cluster store, and one failure does not stop
the batch. Results are reported in input order.

With --metrics-addr the run serves /metrics, /version and /healthz while it
is in progress.

Examples:
  # Resolve a directory with 8 workers
  penf-coref batch ./docs --workers 8

  # Save every partition and report as JSON
  penf-coref batch ./docs --save -o json

  # Expose metrics for scraping during a long batch
  penf-coref batch ./docs --metrics-addr :9464`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), deps, deps.out(cmd.OutOrStdout()), args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output format: text, json, yaml")
	cmd.Flags().StringVar(&flags.scorer, "scorer", "", "Pair scorer: table, linear")
	cmd.Flags().StringVar(&flags.thresholds, "thresholds", "", "One or four comma-separated link thresholds")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "Consume each anaphor on its top-ranked pair even below threshold")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "Number of concurrent workers (default from config)")
	cmd.Flags().BoolVar(&flags.scratch, "scratch", false, "Record scored pairs and merges to the scratch store")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Disable the score cache")
	cmd.Flags().BoolVar(&flags.save, "save", false, "Save each partition to Postgres")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve metrics on this address during the run")

	return cmd
}

// discoverDocuments expands directories into their document files.
func discoverDocuments(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("accessing %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".json", ".yaml", ".yml":
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func runBatch(ctx context.Context, deps *CommandDeps, w io.Writer, paths []string, flags batchFlags) error {
	cfg, err := deps.loadConfig()
	if err != nil {
		return err
	}
	if flags.workers > 0 {
		cfg.Workers.Count = flags.workers
	}
	if err := applyResolverFlags(cfg, flags.scorer, flags.thresholds, flags.strict); err != nil {
		return err
	}
	format, err := resolveFormat(cfg, flags.output)
	if err != nil {
		return err
	}

	files, err := discoverDocuments(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no documents found")
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	sess, err := deps.newSession(ctx, cfg, sessionOptions{scratch: flags.scratch, noCache: flags.noCache})
	if err != nil {
		return err
	}
	defer sess.Close()

	var repo coref.PartitionRepository
	if flags.save || cfg.Persist {
		pg, closeRepo, err := deps.openRepository(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeRepo()
		repo = pg
	}

	metricsAddr := cfg.MetricsAddr
	if flags.metricsAddr != "" {
		metricsAddr = flags.metricsAddr
	}
	if metricsAddr != "" {
		srv, err := observability.StartMetricsServer(metricsAddr, deps.registry())
		if err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
		sess.logger.Info("serving metrics", logging.F("addr", srv.Addr()))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) // nolint: errcheck
		}()
	}

	report := &BatchReport{Documents: len(files), Items: make([]BatchItem, len(files))}

	// Load failures are reported per document; only loaded documents are queued.
	var jobs []workers.Job
	var jobItems []int
	for i, path := range files {
		report.Items[i].Path = path
		doc, err := mentions.LoadDocument(path)
		if err != nil {
			report.Items[i].ErrorCode = string(corerrors.CodeOf(err))
			report.Items[i].Error = err.Error()
			continue
		}
		report.Items[i].DocumentID = doc.ID
		report.Items[i].Mentions = len(doc.Mentions)
		jobs = append(jobs, workers.Job{Document: doc})
		jobItems = append(jobItems, i)
	}

	pool := workers.NewPool(cfg.Workers, sess.resolver,
		workers.WithLogger(sess.logger),
		workers.WithMetrics(sess.metrics),
	)
	outcomes := pool.Run(ctx, jobs)
	report.Workers = pool.Stats()

	for j, out := range outcomes {
		item := &report.Items[jobItems[j]]
		if out.Err != nil {
			item.ErrorCode = string(corerrors.CodeOf(out.Err))
			item.Error = out.Err.Error()
			continue
		}
		item.RunID = out.Result.RunID
		item.Merges = out.Result.Applied
		item.Clusters = out.Result.Clusters
		item.Duration = out.Result.Duration

		if repo != nil {
			if err := repo.Save(ctx, coref.NewPartition(out.Result, out.Store)); err != nil {
				item.ErrorCode = string(corerrors.ErrCodeIO)
				item.Error = fmt.Sprintf("saving partition: %v", err)
				continue
			}
			item.Saved = true
		}
	}

	for _, item := range report.Items {
		if item.Error != "" {
			report.Failed++
		} else {
			report.Resolved++
		}
	}

	switch format {
	case config.OutputFormatJSON:
		err = outputJSON(w, report)
	case config.OutputFormatYAML:
		err = outputYAML(w, report)
	default:
		err = outputBatchText(w, report)
	}
	if err != nil {
		return err
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", report.Failed, report.Documents)
	}
	return nil
}

// outputBatchText formats a batch report for terminal display.
func outputBatchText(w io.Writer, r *BatchReport) error {
	fmt.Fprintln(w, "  DOCUMENT                       MENTIONS  MERGES  CLUSTERS  TIME      STATUS")
	fmt.Fprintln(w, "  --------                       --------  ------  --------  ----      ------")
	for _, item := range r.Items {
		name := item.DocumentID
		if name == "" {
			name = filepath.Base(item.Path)
		}
		status := "ok"
		if item.Saved {
			status = "saved"
		}
		if item.Error != "" {
			status = "\033[31m" + item.ErrorCode + "\033[0m: " + item.Error
		}
		fmt.Fprintf(w, "  %-30s %8d  %6d  %8d  %-8s  %s\n",
			truncate(name, 30), item.Mentions, item.Merges, item.Clusters,
			formatDurationMs(item.Duration.Milliseconds()), status)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d resolved, %d failed, %d workers\n", r.Resolved, r.Failed, r.Workers.WorkerCount)
	return nil
}
