package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/penf-coref/config"
	"github.com/otherjamesbrown/penf-coref/pkg/db"
)

// dbFlags holds flags for the db commands.
type dbFlags struct {
	dryRun bool
	yes    bool
	output string
}

// NewDbCommand creates the root db command with all subcommands.
func NewDbCommand(deps *CommandDeps) *cobra.Command {
	deps = deps.withDefaults()
	var flags dbFlags

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Partition database management commands",
		Long: `Manage the Postgres schema that stores resolved partitions.

The migrations are compiled into the binary and applied to the configured
schema (postgres.schema, default "coref"). Applied versions are tracked in
that schema's schema_migrations table.

Connection settings come from the postgres section of the config file or from
DATABASE_URL / DB_* environment variables.

Examples:
  # Show migration status
  penf-coref db status

  # Apply all pending migrations without prompting
  penf-coref db migrate --yes

  # Preview migrations without applying
  penf-coref db migrate --dry-run

  # Check connectivity and whether the schema is migrated
  penf-coref db health`,
		Aliases: []string{"database"},
	}

	cmd.AddCommand(newDbMigrateCommand(deps, &flags))
	cmd.AddCommand(newDbStatusCommand(deps, &flags))
	cmd.AddCommand(newDbHealthCommand(deps, &flags))

	return cmd
}

// newDbMigrateCommand creates the 'db migrate' subcommand.
func newDbMigrateCommand(deps *CommandDeps, flags *dbFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply partition schema migrations",
		Long: `Apply pending partition schema migrations.

Shows pending migrations before applying them. Each migration runs in its own
transaction; if one fails it is rolled back and no further migrations are
attempted.`,
		Example: `  penf-coref db migrate
  penf-coref db migrate --dry-run
  penf-coref db migrate --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbMigrate(cmd.Context(), deps, deps.out(cmd.OutOrStdout()), cmd.InOrStdin(), *flags)
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Show what would be applied without executing")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "Apply without asking for confirmation")

	return cmd
}

// newDbStatusCommand creates the 'db status' subcommand.
func newDbStatusCommand(deps *CommandDeps, flags *dbFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show partition schema migration status",
		Long: `Show the current state of partition schema migrations.

Displays three categories of migrations:
  - Applied: migrations that have been applied and are known to this binary
  - Pending: migrations that have not been applied yet
  - Drift: migrations that were applied but are unknown to this binary`,
		Example: `  penf-coref db status
  penf-coref db status --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbStatus(cmd.Context(), deps, deps.out(cmd.OutOrStdout()), *flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

// newDbHealthCommand creates the 'db health' subcommand.
func newDbHealthCommand(deps *CommandDeps, flags *dbFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check partition database connectivity",
		Long: `Ping the partition database and report pool statistics and whether the
partition schema has been migrated. Exits non-zero when the database is
unreachable.`,
		Example: `  penf-coref db health
  penf-coref db health -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbHealth(cmd.Context(), deps, deps.out(cmd.OutOrStdout()), *flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

// runDbMigrate executes the db migrate command.
func runDbMigrate(ctx context.Context, deps *CommandDeps, w io.Writer, in io.Reader, flags dbFlags) error {
	cfg, err := deps.loadConfig()
	if err != nil {
		return err
	}

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	status, err := db.GetMigrationStatus(ctx, pool, cfg.Postgres.Schema)
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}

	if len(status.Pending) == 0 {
		fmt.Fprintln(w, "No pending migrations.")
		return nil
	}

	fmt.Fprintf(w, "Pending migrations for schema %q (%d):\n", cfg.Postgres.Schema, len(status.Pending))
	for _, m := range status.Pending {
		fmt.Fprintf(w, "  %s - %s\n", m.Version, m.Name)
	}
	fmt.Fprintln(w)

	if flags.dryRun {
		fmt.Fprintln(w, "Dry run mode: no migrations applied.")
		return nil
	}

	if !flags.yes && !confirm(w, in, "Apply these migrations? (y/N): ") {
		fmt.Fprintln(w, "Migration cancelled.")
		return nil
	}

	fmt.Fprintln(w, "Applying all pending migrations...")
	result, err := db.Migrate(ctx, pool, cfg.Postgres.Schema)
	if err != nil {
		fmt.Fprintf(w, "\n\033[31mMigration failed:\033[0m %v\n", err)
		if result != nil && len(result.Applied) > 0 {
			fmt.Fprintf(w, "\nSuccessfully applied before failure:\n")
			for _, v := range result.Applied {
				fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", v)
			}
		}
		return err
	}

	fmt.Fprintln(w)
	if len(result.Applied) > 0 {
		fmt.Fprintf(w, "\033[32mSuccessfully applied %d migration(s):\033[0m\n", len(result.Applied))
		for _, v := range result.Applied {
			fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", v)
		}
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped %d migration(s) (already applied):\n", len(result.Skipped))
		for _, v := range result.Skipped {
			fmt.Fprintf(w, "  - %s\n", v)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "\033[32mMigrations completed successfully.\033[0m")
	return nil
}

// confirm asks a yes/no question and reports whether the answer was "y".
func confirm(w io.Writer, in io.Reader, prompt string) bool {
	fmt.Fprint(w, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.ToLower(strings.TrimSpace(line)) == "y"
}

// runDbStatus executes the db status command.
func runDbStatus(ctx context.Context, deps *CommandDeps, w io.Writer, flags dbFlags) error {
	cfg, err := deps.loadConfig()
	if err != nil {
		return err
	}
	format, err := resolveFormat(cfg, flags.output)
	if err != nil {
		return err
	}

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	status, err := db.GetMigrationStatus(ctx, pool, cfg.Postgres.Schema)
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}

	switch format {
	case config.OutputFormatJSON:
		return outputJSON(w, status)
	case config.OutputFormatYAML:
		return outputYAML(w, status)
	default:
		return outputMigrationStatusText(w, status)
	}
}

// outputMigrationStatusText formats migration status for terminal display.
func outputMigrationStatusText(w io.Writer, status *db.MigrationStatus) error {
	if len(status.Applied) > 0 {
		fmt.Fprintf(w, "\033[32mApplied Migrations (%d):\033[0m\n", len(status.Applied))
		printMigrationTable(w, status.Applied)
	}

	if len(status.Pending) > 0 {
		fmt.Fprintf(w, "\033[33mPending Migrations (%d):\033[0m\n", len(status.Pending))
		fmt.Fprintln(w, "  VERSION                    NAME")
		fmt.Fprintln(w, "  -------                    ----")
		for _, m := range status.Pending {
			fmt.Fprintf(w, "  %-26s %s\n", truncate(m.Version, 26), m.Name)
		}
		fmt.Fprintln(w)
	}

	if len(status.Drift) > 0 {
		fmt.Fprintf(w, "\033[31mDrift (%d) - applied but unknown to this binary:\033[0m\n", len(status.Drift))
		printMigrationTable(w, status.Drift)
	}

	if len(status.Applied) == 0 && len(status.Pending) == 0 && len(status.Drift) == 0 {
		fmt.Fprintln(w, "No migrations found.")
		return nil
	}

	fmt.Fprintf(w, "Summary: %d applied, %d pending", len(status.Applied), len(status.Pending))
	if len(status.Drift) > 0 {
		fmt.Fprintf(w, ", \033[31m%d drift\033[0m", len(status.Drift))
	}
	fmt.Fprintln(w)

	return nil
}

func printMigrationTable(w io.Writer, entries []db.MigrationStatusEntry) {
	fmt.Fprintln(w, "  VERSION                    NAME                              APPLIED")
	fmt.Fprintln(w, "  -------                    ----                              -------")
	for _, m := range entries {
		appliedAt := "-"
		if m.AppliedAt != nil {
			appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "  %-26s %-33s %s\n", truncate(m.Version, 26), truncate(m.Name, 33), appliedAt)
	}
	fmt.Fprintln(w)
}

// dbHealthReport is the output of db health.
type dbHealthReport struct {
	Database string `json:"database" yaml:"database"`
	Schema   string `json:"schema" yaml:"schema"`

	db.HealthStatus `yaml:",inline"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// runDbHealth executes the db health command.
func runDbHealth(ctx context.Context, deps *CommandDeps, w io.Writer, flags dbFlags) error {
	cfg, err := deps.loadConfig()
	if err != nil {
		return err
	}
	format, err := resolveFormat(cfg, flags.output)
	if err != nil {
		return err
	}

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	status := db.Check(ctx, pool, cfg.Postgres.Schema)
	report := dbHealthReport{
		Database:     cfg.Postgres.Redacted(),
		Schema:       cfg.Postgres.Schema,
		HealthStatus: *status,
	}
	if status.Error != nil {
		report.Error = status.Error.Error()
	}

	switch format {
	case config.OutputFormatJSON:
		err = outputJSON(w, report)
	case config.OutputFormatYAML:
		err = outputYAML(w, report)
	default:
		err = outputDbHealthText(w, report)
	}
	if err != nil {
		return err
	}
	if !status.Healthy {
		return fmt.Errorf("database unhealthy: %s", report.Error)
	}
	return nil
}

func outputDbHealthText(w io.Writer, r dbHealthReport) error {
	state := "\033[32mhealthy\033[0m"
	if !r.Healthy {
		state = "\033[31munhealthy\033[0m"
	}
	fmt.Fprintf(w, "Database: %s (%s)\n", r.Database, state)
	fmt.Fprintf(w, "  Latency:      %s\n", r.Latency)
	fmt.Fprintf(w, "  Connections:  %d total, %d idle, %d acquired\n", r.TotalConns, r.IdleConns, r.AcquiredConns)
	ready := "no (run 'penf-coref db migrate')"
	if r.SchemaReady {
		ready = "yes"
	}
	fmt.Fprintf(w, "  Schema ready: %s\n", ready)
	if r.Error != "" {
		fmt.Fprintf(w, "  Error:        %s\n", r.Error)
	}
	return nil
}
