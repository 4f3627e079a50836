package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/penf-coref/config"
)

func TestResolveFormat(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputFormat = config.OutputFormatYAML

	tests := []struct {
		flag    string
		want    config.OutputFormat
		wantErr bool
	}{
		{"", config.OutputFormatYAML, false},
		{"json", config.OutputFormatJSON, false},
		{"text", config.OutputFormatText, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		got, err := resolveFormat(cfg, tt.flag)
		if tt.wantErr {
			assert.Error(t, err, "flag %q", tt.flag)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "flag %q", tt.flag)
	}
}

func TestFormatDurationMs(t *testing.T) {
	assert.Equal(t, "250ms", formatDurationMs(250))
	assert.Equal(t, "1.5s", formatDurationMs(1500))
	assert.Equal(t, "2.0m", formatDurationMs(120000))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))
	assert.Equal(t, "a long ...", truncate("a long sentence", 10))
}

func TestOutputYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, outputYAML(&buf, map[string]int{"clusters": 2}))
	assert.Equal(t, "clusters: 2\n", buf.String())
}

func TestLoadConfigCachesResult(t *testing.T) {
	calls := 0
	deps := (&CommandDeps{
		LoadConfig: func() (*config.CLIConfig, error) {
			calls++
			return config.DefaultConfig(), nil
		},
	}).withDefaults()

	first, err := deps.loadConfig()
	require.NoError(t, err)
	second, err := deps.loadConfig()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	failing := (&CommandDeps{
		LoadConfig: func() (*config.CLIConfig, error) { return nil, errors.New("bad yaml") },
	}).withDefaults()
	_, err = failing.loadConfig()
	assert.ErrorContains(t, err, "loading configuration")
}

func TestNewSession_RedisUnavailableFallsBack(t *testing.T) {
	deps, buf := testDeps(t)
	deps.Config.Redis.Addr = "127.0.0.1:1"
	deps.ConnectToRedis = func(context.Context, *config.CLIConfig) (redis.UniversalClient, error) {
		return nil, errors.New("connection refused")
	}
	path := writeFile(t, t.TempDir(), "john.json", johnDoc)

	require.NoError(t, runResolve(context.Background(), deps, buf, path, resolveFlags{output: "json"}))
	assert.Contains(t, buf.String(), `"clusters"`)
}

func TestNewSession_DictionaryErrors(t *testing.T) {
	deps, _ := testDeps(t)
	deps.Config.Resolver.Dictionary = writeFile(t, t.TempDir(), "pronouns.yaml", "pronouns: [unterminated")

	_, err := deps.newSession(context.Background(), deps.Config, sessionOptions{})
	assert.ErrorContains(t, err, "pronoun dictionary")
}
