package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/penf-coref/config"
)

// johnDoc is a three-mention document: "John" ... "he" ... "Mary". Only the
// John/he pair scores above the default threshold.
const johnDoc = `{
  "id": "john",
  "mentions": [
    {"id": 0, "type": "PROPER", "gender": "MALE", "ner": "PERSON", "head": "John",
     "tokens": ["John"], "sent_num": 0, "start_index": 0, "end_index": 1, "head_index": 0, "mention_num": 0},
    {"id": 1, "type": "PRONOMINAL", "gender": "MALE", "head": "he",
     "tokens": ["he"], "sent_num": 1, "start_index": 0, "end_index": 1, "head_index": 0, "mention_num": 1},
    {"id": 2, "type": "PROPER", "gender": "FEMALE", "ner": "PERSON", "head": "Mary",
     "tokens": ["Mary"], "sent_num": 1, "start_index": 3, "end_index": 4, "head_index": 3, "mention_num": 2}
  ],
  "pairs": [
    {"antecedent": 0, "anaphor": 1, "score": 0.9},
    {"antecedent": 0, "anaphor": 2, "score": 0.1},
    {"antecedent": 1, "anaphor": 2, "score": 0.2}
  ]
}`

// writeFile writes content under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

var errNoDatabase = errors.New("no database in tests")

// testDeps returns deps with a fixed default config, a private registry and
// no database. Output is captured in the returned buffer.
func testDeps(t *testing.T) (*CommandDeps, *bytes.Buffer) {
	t.Helper()
	t.Setenv("PENF_COREF_CONFIG_DIR", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.Log.Level = "error"

	var buf bytes.Buffer
	deps := &CommandDeps{
		Config:     cfg,
		Registry:   prometheus.NewRegistry(),
		IsTerminal: func() bool { return false },
		Stdout:     &buf,
		ConnectToDB: func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error) {
			return nil, errNoDatabase
		},
	}
	return deps.withDefaults(), &buf
}
