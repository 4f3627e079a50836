// Package cmd provides CLI commands for the penf-coref tool.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/penf-coref/config"
	"github.com/otherjamesbrown/penf-coref/pkg/buildinfo"
	"github.com/otherjamesbrown/penf-coref/pkg/coref"
	"github.com/otherjamesbrown/penf-coref/pkg/db"
	"github.com/otherjamesbrown/penf-coref/pkg/logging"
	"github.com/otherjamesbrown/penf-coref/pkg/mentions"
	"github.com/otherjamesbrown/penf-coref/pkg/observability"
	"github.com/otherjamesbrown/penf-coref/pkg/scorecache"
	"github.com/otherjamesbrown/penf-coref/pkg/scratch"
)

// CommandDeps holds the dependencies shared by penf-coref commands.
type CommandDeps struct {
	Config         *config.CLIConfig
	LoadConfig     func() (*config.CLIConfig, error)
	ConnectToDB    func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error)
	ConnectToRedis func(context.Context, *config.CLIConfig) (redis.UniversalClient, error)
	OpenScratch    func(path string) (*scratch.Store, error)

	// Registry receives run and pool metrics. Nil uses a private registry.
	Registry *prometheus.Registry

	// IsTerminal reports whether stderr is a terminal.
	IsTerminal func() bool

	// Stdout, when set, replaces the command's output writer.
	Stdout io.Writer
}

// DefaultDeps returns the default dependencies for production use.
func DefaultDeps() *CommandDeps {
	return &CommandDeps{
		LoadConfig:     config.LoadConfig,
		ConnectToDB:    connectToDatabase,
		ConnectToRedis: connectToRedis,
		OpenScratch:    scratch.NewStore,
		IsTerminal: func() bool {
			return term.IsTerminal(int(os.Stderr.Fd()))
		},
	}
}

func (d *CommandDeps) withDefaults() *CommandDeps {
	def := DefaultDeps()
	if d == nil {
		return def
	}
	if d.LoadConfig == nil {
		d.LoadConfig = def.LoadConfig
	}
	if d.ConnectToDB == nil {
		d.ConnectToDB = def.ConnectToDB
	}
	if d.ConnectToRedis == nil {
		d.ConnectToRedis = def.ConnectToRedis
	}
	if d.OpenScratch == nil {
		d.OpenScratch = def.OpenScratch
	}
	if d.IsTerminal == nil {
		d.IsTerminal = def.IsTerminal
	}
	return d
}

// loadConfig loads configuration once per command invocation.
func (d *CommandDeps) loadConfig() (*config.CLIConfig, error) {
	if d.Config != nil {
		return d.Config, nil
	}
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	d.Config = cfg
	return cfg, nil
}

func (d *CommandDeps) registry() *prometheus.Registry {
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	return d.Registry
}

func (d *CommandDeps) logger(cfg *config.CLIConfig) logging.Logger {
	return logging.NewLogger(cfg.LoggingConfig(d.IsTerminal()))
}

func (d *CommandDeps) out(w io.Writer) io.Writer {
	if d.Stdout != nil {
		return d.Stdout
	}
	return w
}

// connectToDatabase establishes a database connection from the postgres settings.
func connectToDatabase(ctx context.Context, cfg *config.CLIConfig) (*pgxpool.Pool, error) {
	return db.Connect(ctx, &cfg.Postgres)
}

// connectToRedis establishes a Redis connection.
func connectToRedis(ctx context.Context, cfg *config.CLIConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("testing connection: %w", err)
	}

	return client, nil
}

// session is the resolver and its optional backends for one command run.
type session struct {
	resolver *coref.Resolver
	metrics  *observability.CorefMetrics
	logger   logging.Logger
	scratch  *scratch.Store
	closers  []func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// sessionOptions carries per-command overrides of the configured backends.
type sessionOptions struct {
	scratch bool
	noCache bool
}

// newSession builds a resolver from cfg. Redis is optional: when it is
// configured but unreachable the run continues with an in-memory cache.
func (d *CommandDeps) newSession(ctx context.Context, cfg *config.CLIConfig, opts sessionOptions) (*session, error) {
	log := d.logger(cfg)
	s := &session{
		metrics: observability.NewCorefMetrics(d.registry()),
		logger:  log,
	}

	corefCfg, err := cfg.CorefConfig()
	if err != nil {
		return nil, err
	}

	resolverOpts := []coref.Option{
		coref.WithLogger(log),
		coref.WithMetrics(s.metrics),
	}

	if cfg.Resolver.Dictionary != "" {
		path, err := config.ExpandPath(cfg.Resolver.Dictionary)
		if err != nil {
			return nil, err
		}
		dict, err := mentions.LoadDictionary(path)
		if err != nil {
			return nil, fmt.Errorf("loading pronoun dictionary: %w", err)
		}
		resolverOpts = append(resolverOpts, coref.WithPronouns(dict))
	}

	if !opts.noCache {
		cache := scorecache.Cache(scorecache.NewMemoryCache())
		if cfg.Redis.Enabled() {
			client, err := d.ConnectToRedis(ctx, cfg)
			if err != nil {
				log.Warn("redis unavailable, using in-memory score cache",
					logging.F("addr", cfg.Redis.Addr), logging.Err(err))
			} else {
				s.closers = append(s.closers, func() { client.Close() })
				cache = scorecache.NewRedisCache(client, scorecache.RedisConfig{
					Namespace: cfg.Redis.Namespace,
					TTL:       cfg.Redis.TTL,
				})
			}
		}
		resolverOpts = append(resolverOpts, coref.WithScoreCache(cache))
	}

	if opts.scratch || cfg.Scratch.Enabled {
		path, err := cfg.ScratchPath()
		if err != nil {
			return nil, err
		}
		store, err := d.OpenScratch(path)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("opening scratch store %s: %w", path, err)
		}
		s.scratch = store
		s.closers = append(s.closers, func() { store.Close() })
		resolverOpts = append(resolverOpts, coref.WithRecorder(store))
	}

	s.resolver, err = coref.NewResolver(corefCfg, cfg.Scorer(), resolverOpts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// openRepository connects to Postgres and returns the partition repository.
func (d *CommandDeps) openRepository(ctx context.Context, cfg *config.CLIConfig) (*coref.PostgresRepository, func(), error) {
	pool, err := d.ConnectToDB(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if _, err := db.RegisterPoolStatsCollector(pool, buildinfo.ServiceName, d.registry()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("registering pool metrics: %w", err)
	}
	return coref.NewPostgresRepository(pool, cfg.Postgres.Schema), pool.Close, nil
}

// resolveFormat returns the flag format if set, else the configured one.
func resolveFormat(cfg *config.CLIConfig, flag string) (config.OutputFormat, error) {
	format := cfg.OutputFormat
	if flag != "" {
		format = config.OutputFormat(flag)
	}
	if !format.IsValid() {
		return "", fmt.Errorf("invalid output format: %q (must be text, json, or yaml)", format)
	}
	return format, nil
}

// outputJSON writes data as indented JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputYAML writes data as YAML.
func outputYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(v)
}

// formatDurationMs formats milliseconds as a human-readable duration.
func formatDurationMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%.1fm", float64(ms)/60000)
}

// truncate shortens s to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
