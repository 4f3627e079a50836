package cmd

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/penf-coref/config"
	"github.com/otherjamesbrown/penf-coref/pkg/coref"
	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
)

func TestResolveCommand(t *testing.T) {
	cmd := NewResolveCommand(nil)

	assert.Equal(t, "resolve <document>", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	flags := map[string]string{
		"output":     "string",
		"scorer":     "string",
		"thresholds": "string",
		"strict":     "bool",
		"scratch":    "bool",
		"no-cache":   "bool",
		"save":       "bool",
		"describe":   "bool",
	}
	for name, typ := range flags {
		f := cmd.Flags().Lookup(name)
		if assert.NotNil(t, f, "resolve should have --%s", name) {
			assert.Equal(t, typ, f.Value.Type(), "--%s type", name)
			assert.NotEmpty(t, f.Usage, "--%s should have usage text", name)
		}
	}
	assert.Equal(t, "o", cmd.Flags().Lookup("output").Shorthand)
}

func TestRunResolve_JSON(t *testing.T) {
	deps, buf := testDeps(t)
	path := writeFile(t, t.TempDir(), "john.json", johnDoc)

	err := runResolve(context.Background(), deps, buf, path, resolveFlags{output: "json"})
	require.NoError(t, err)

	var report ResolveReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, "john", report.Result.DocumentID)
	assert.NotEmpty(t, report.Result.RunID)
	assert.Equal(t, 3, report.Result.Candidates)
	assert.Equal(t, 1, report.Result.Applied)
	assert.Equal(t, 2, report.Result.Clusters)
	assert.False(t, report.Saved)

	require.Len(t, report.Clusters, 2)
	assert.Equal(t, []int{0, 1}, report.Clusters[0].Mentions)
	assert.Equal(t, "John", report.Clusters[0].RepresentativeText)
	assert.Equal(t, []int{2}, report.Clusters[1].Mentions)
}

func TestRunResolve_YAMLDocumentAndOutput(t *testing.T) {
	deps, buf := testDeps(t)

	// The same document, re-encoded as YAML.
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(johnDoc), &doc))
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	path := writeFile(t, t.TempDir(), "john.yaml", string(data))

	require.NoError(t, runResolve(context.Background(), deps, buf, path, resolveFlags{output: "yaml"}))

	var report ResolveReport
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, 2, report.Result.Clusters)
}

func TestRunResolve_TextOutput(t *testing.T) {
	deps, buf := testDeps(t)
	path := writeFile(t, t.TempDir(), "john.json", johnDoc)

	require.NoError(t, runResolve(context.Background(), deps, buf, path, resolveFlags{}))

	out := buf.String()
	assert.Contains(t, out, "Document john")
	assert.Contains(t, out, "Merges: 1")
	assert.Contains(t, out, "REPRESENTATIVE")
	assert.Contains(t, out, "0,1")
}

func TestRunResolve_ThresholdFlag(t *testing.T) {
	tests := []struct {
		name       string
		thresholds string
		strict     bool
		clusters   int
	}{
		{"default", "", false, 2},
		{"high uniform threshold blocks every merge", "0.95", false, 3},
		{"per-kind thresholds", "0.5,0.05,0.5,0.05", false, 1},
		{"low non-pronoun threshold reaches a lower-ranked pair", "0.5,0.5,0.5,0.05", false, 1},
		{"strict consumes the anaphor on its best pair", "0.5,0.5,0.5,0.05", true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, buf := testDeps(t)
			path := writeFile(t, t.TempDir(), "john.json", johnDoc)

			flags := resolveFlags{output: "json", thresholds: tt.thresholds, strict: tt.strict}
			require.NoError(t, runResolve(context.Background(), deps, buf, path, flags))

			var report ResolveReport
			require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
			assert.Equal(t, tt.clusters, report.Result.Clusters)
		})
	}
}

func TestRunResolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		flags   resolveFlags
		wantErr string
	}{
		{"bad thresholds", johnDoc, resolveFlags{thresholds: "0.1,0.2"}, "--thresholds"},
		{"bad output format", johnDoc, resolveFlags{output: "xml"}, "invalid output format"},
		{"bad scorer", johnDoc, resolveFlags{scorer: "neural"}, "scorer"},
		{"invalid document", `{"id": "x", "mentions": [{"id": 0, "type": "VERB", "tokens": ["x"], "end_index": 1}]}`, resolveFlags{}, "unknown type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, buf := testDeps(t)
			path := writeFile(t, t.TempDir(), "doc.json", tt.doc)

			err := runResolve(context.Background(), deps, buf, path, tt.flags)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunResolve_ScorerTotalFailsOnMissingScore(t *testing.T) {
	deps, buf := testDeps(t)
	deps.Config.Resolver.ScorerTotal = true

	// Pair 1->2 has no score.
	doc := `{
  "id": "partial",
  "mentions": [
    {"id": 0, "type": "PROPER", "tokens": ["John"], "head": "John", "start_index": 0, "end_index": 1, "head_index": 0},
    {"id": 1, "type": "PRONOMINAL", "tokens": ["he"], "head": "he", "sent_num": 1, "start_index": 0, "end_index": 1, "head_index": 0}
  ]
}`
	path := writeFile(t, t.TempDir(), "partial.json", doc)

	err := runResolve(context.Background(), deps, buf, path, resolveFlags{})
	require.Error(t, err)
	assert.Equal(t, corerrors.ErrCodeScorerFailed, corerrors.CodeOf(err))
}

func TestRunResolve_CancelledContext(t *testing.T) {
	deps, buf := testDeps(t)
	path := writeFile(t, t.TempDir(), "john.json", johnDoc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runResolve(ctx, deps, buf, path, resolveFlags{})
	require.Error(t, err)
	assert.Equal(t, corerrors.ErrCodeInterrupted, corerrors.CodeOf(err))
	assert.Empty(t, buf.String(), "an interrupted run prints no partition")
}

func TestRunResolve_SaveWithoutDatabase(t *testing.T) {
	deps, buf := testDeps(t)
	path := writeFile(t, t.TempDir(), "john.json", johnDoc)

	err := runResolve(context.Background(), deps, buf, path, resolveFlags{save: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoDatabase)
}

func TestRunResolve_ScratchRecordsRun(t *testing.T) {
	deps, buf := testDeps(t)
	deps.Config.Scratch.Path = filepath.Join(t.TempDir(), "scratch.db")
	path := writeFile(t, t.TempDir(), "john.json", johnDoc)

	require.NoError(t, runResolve(context.Background(), deps, buf, path, resolveFlags{output: "json", scratch: true}))

	var report ResolveReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	buf.Reset()
	require.NoError(t, runScratchShow(context.Background(), deps, buf, report.Result.RunID, scratchFlags{output: "json"}))

	var recorded ScratchReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &recorded))
	assert.Equal(t, "john", recorded.Run.DocumentID)
	assert.Equal(t, 2, recorded.Run.Clusters)
	assert.Len(t, recorded.Pairs, 3)
	require.NotEmpty(t, recorded.Merges)
	assert.Equal(t, 0, recorded.Merges[0].Antecedent)
	assert.Equal(t, 1, recorded.Merges[0].Anaphor)
	assert.True(t, recorded.Merges[0].Applied)
}

func TestApplyResolverFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Resolver.Linear.Weights = map[string]float64{"string_match": 2}

	require.NoError(t, applyResolverFlags(cfg, config.ScorerLinear, "0.1,0.2,0.3,0.4", true))
	assert.Equal(t, config.ScorerLinear, cfg.Resolver.Scorer)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, cfg.Resolver.Thresholds)
	assert.True(t, cfg.Resolver.StrictBestFirst)

	corefCfg, err := cfg.CorefConfig()
	require.NoError(t, err)
	assert.Equal(t, coref.Thresholds{PronounPronoun: 0.1, PronounNonPronoun: 0.2, NonPronounPronoun: 0.3, NonPronounNonPronoun: 0.4}, corefCfg.Thresholds)
}
