// Package main provides the penf-coref CLI entry point.
// penf-coref clusters the entity mentions of a document into coreference chains.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/penf-coref/cmd"
	"github.com/otherjamesbrown/penf-coref/config"
	"github.com/otherjamesbrown/penf-coref/pkg/buildinfo"
	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
)

// Global flags and state.
var (
	timeout      time.Duration
	outputFormat string
	debug        bool

	// deps is shared by every subcommand; PersistentPreRunE fills in the config.
	deps = cmd.DefaultDeps()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "penf-coref",
	Short: "Coreference clustering for detected mentions",
	Long: `penf-coref groups the entity mentions of a document into clusters that
refer to the same real-world entity.

Mentions come from upstream detection (a JSON or YAML document). Candidate
antecedent/anaphor pairs are scored, ranked best first and merged while they
clear a per-kind threshold; each merge pools the clusters' number, gender,
animacy and NER attributes and re-elects the representative mention.

COMMON WORKFLOWS:
  One document:     penf-coref resolve doc.json
  Many documents:   penf-coref batch ./docs --workers 8
  Explain a run:    penf-coref resolve doc.json --scratch  →  penf-coref scratch show <run-id>
  Persist results:  penf-coref db migrate --yes  →  penf-coref resolve doc.json --save

DISCOVERY:
  penf-coref <command> --help   Subcommands, flags, and examples for any command
  penf-coref config show        Effective configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		switch c.Name() {
		case "version", "help", "completion", "init":
			return nil
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		// Override with command-line flags.
		if timeout != 0 {
			cfg.Timeout = timeout
		}
		if outputFormat != "" {
			cfg.OutputFormat = config.OutputFormat(outputFormat)
		}
		if debug {
			cfg.Debug = true
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		deps.Config = cfg
		return nil
	},
}

// Version command flags.
var versionOutput string

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of penf-coref.

Examples:
  penf-coref version
  penf-coref version --output json`,
	RunE: func(c *cobra.Command, args []string) error {
		info := buildinfo.Get(buildinfo.ServiceName)
		out := c.OutOrStdout()

		format := versionOutput
		if format == "" {
			format = outputFormat
		}
		switch config.OutputFormat(format) {
		case config.OutputFormatJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		case config.OutputFormatYAML:
			enc := yaml.NewEncoder(out)
			defer enc.Close()
			return enc.Encode(info)
		}

		fmt.Fprintf(out, "penf-coref version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s %s\n", info.GoVersion, info.Platform)
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and initialise the penf-coref configuration file.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration: defaults, then the config file, then
environment variables and command-line flags. Passwords are masked.`,
	RunE: func(c *cobra.Command, args []string) error {
		configPath, _ := config.ConfigPath()
		out := c.OutOrStdout()

		fmt.Fprintf(out, "# Config file: %s\n", configPath)
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(deps.Config.Redacted())
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(c *cobra.Command, args []string) error {
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}
		out := c.OutOrStdout()

		// Check if config already exists.
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'penf-coref config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "\nDefault settings:")
		fmt.Fprintf(out, "  Timeout:        %s\n", defaultCfg.Timeout)
		fmt.Fprintf(out, "  Output format:  %s\n", defaultCfg.OutputFormat)
		fmt.Fprintf(out, "  Thresholds:     %v\n", defaultCfg.Resolver.Thresholds)
		fmt.Fprintf(out, "  Workers:        %d\n", defaultCfg.Workers.Count)

		return nil
	},
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "run timeout (e.g., 30s, 5m)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add command groups for organized help output.
	rootCmd.AddGroup(
		&cobra.Group{ID: "resolve", Title: "Resolution:"},
		&cobra.Group{ID: "inspect", Title: "Inspection:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	resolveCmd := cmd.NewResolveCommand(deps)
	resolveCmd.GroupID = "resolve"
	rootCmd.AddCommand(resolveCmd)

	batchCmd := cmd.NewBatchCommand(deps)
	batchCmd.GroupID = "resolve"
	rootCmd.AddCommand(batchCmd)

	partitionCmd := cmd.NewPartitionCommand(deps)
	partitionCmd.GroupID = "inspect"
	rootCmd.AddCommand(partitionCmd)

	scratchCmd := cmd.NewScratchCommand(deps)
	scratchCmd.GroupID = "inspect"
	rootCmd.AddCommand(scratchCmd)

	dbCmd := cmd.NewDbCommand(deps)
	dbCmd.GroupID = "setup"
	rootCmd.AddCommand(dbCmd)

	configCmd.GroupID = "setup"
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)

	versionCmd.GroupID = "setup"
	versionCmd.Flags().StringVarP(&versionOutput, "output", "o", "", "Output format: text, json, yaml")
	rootCmd.AddCommand(versionCmd)

	rootCmd.SetHelpCommandGroupID("setup")
	rootCmd.SetCompletionCommandGroupID("setup")
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch corerrors.CodeOf(err) {
	case corerrors.ErrCodeInterrupted:
		return 130
	case corerrors.ErrCodeTimeout:
		return 124
	default:
		return 1
	}
}

func main() {
	// Set up signal handling for graceful shutdown. The first signal cancels
	// the run so the resolver can discard its uncommitted merges; a second
	// one exits immediately.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		cancel()
		<-sigChan
		os.Exit(130)
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
