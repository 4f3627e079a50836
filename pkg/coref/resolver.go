// Package coref resolves coreference within a document. Candidate pairs are
// generated from mention distance and shared words, scored by a pluggable
// Scorer, ranked best first by a Linker and merged in a cluster Store that keeps
// aggregated entity attributes.
//
// A run works on a copy of the store and commits it only when every stage has
// succeeded, so a cancelled or failed run leaves the caller's store untouched.
package coref

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
	"github.com/otherjamesbrown/penf-coref/pkg/logging"
	"github.com/otherjamesbrown/penf-coref/pkg/mentions"
	"github.com/otherjamesbrown/penf-coref/pkg/observability"
	"github.com/otherjamesbrown/penf-coref/pkg/scorecache"
	"github.com/otherjamesbrown/penf-coref/pkg/scratch"
)

// Recorder receives a run's intermediate artifacts. Recording is part of the
// run: a Recorder error fails it.
type Recorder interface {
	BeginRun(ctx context.Context, run scratch.Run) error
	RecordPairs(ctx context.Context, runID string, pairs []scratch.PairRecord) error
	RecordMerges(ctx context.Context, runID string, merges []scratch.MergeRecord) error
	FinishRun(ctx context.Context, runID, status string, clusters int) error
}

// Result summarises one resolution run.
type Result struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	DocumentID string        `json:"document_id" yaml:"document_id"`
	Candidates int           `json:"candidates" yaml:"candidates"`
	Scored     int           `json:"scored" yaml:"scored"`
	Excluded   int           `json:"excluded" yaml:"excluded"`
	Merges     []MergeOp     `json:"merges" yaml:"merges"`
	Applied    int           `json:"applied" yaml:"applied"`
	Clusters   int           `json:"clusters" yaml:"clusters"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Resolver runs coreference resolution for documents.
type Resolver struct {
	config    Config
	scorer    Scorer
	generator *CandidateGenerator
	linker    *Linker

	pronouns mentions.PronounLookup
	cache    scorecache.Cache
	recorder Recorder
	metrics  *observability.CorefMetrics
	tracer   *observability.Tracer
	logger   logging.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithMetrics records run metrics on m.
func WithMetrics(m *observability.CorefMetrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(r *Resolver) { r.tracer = t }
}

// WithScoreCache memoises scores in c.
func WithScoreCache(c scorecache.Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithRecorder records run artifacts.
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) { r.recorder = rec }
}

// WithPronouns sets the pronoun dictionary used by candidate generation.
func WithPronouns(p mentions.PronounLookup) Option {
	return func(r *Resolver) { r.pronouns = p }
}

// NewResolver creates a resolver.
func NewResolver(config Config, scorer Scorer, opts ...Option) (*Resolver, error) {
	if scorer == nil {
		return nil, fmt.Errorf("scorer is required: %w", corerrors.ErrValidation)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	r := &Resolver{
		config:   config,
		scorer:   scorer,
		pronouns: mentions.DefaultDictionary(),
		tracer:   observability.NewTracer(),
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.generator = NewCandidateGenerator(config, r.pronouns)
	r.linker = NewLinker(config.Thresholds, config.StrictBestFirst)
	return r, nil
}

// Config returns the resolver's validated configuration.
func (r *Resolver) Config() Config {
	return r.config
}

// run carries per-run state between stages.
type run struct {
	id      string
	doc     *mentions.Document
	log     logging.Logger
	result  *Result
	scored  []ScoredPair
	working *Store

	// cacheScope namespaces the run's cached scores. Empty disables the cache.
	cacheScope string
}

// Resolve links the mentions of doc and merges the result into store. store
// must already hold every mention of doc, typically from SingletonStore. On
// error store is unchanged and the error is a *errors.RunError.
func (r *Resolver) Resolve(ctx context.Context, doc *mentions.Document, store *Store) (*Result, error) {
	start := time.Now()
	rn := &run{
		id:     uuid.NewString(),
		doc:    doc,
		result: &Result{DocumentID: doc.ID},
	}
	rn.result.RunID = rn.id

	ctx = logging.WithDocumentID(logging.WithRunID(ctx, rn.id), doc.ID)
	ctx, span := r.tracer.StartResolveSpan(ctx, rn.id, doc.ID, len(doc.Mentions))
	defer span.End()
	spanHelper := observability.NewSpanHelper(span)
	rn.log = r.logger.WithContext(ctx)

	rn.log.Info("resolving document", logging.F("mentions", len(doc.Mentions)))

	stage, err := r.execute(ctx, rn, store)
	rn.result.Duration = time.Since(start)

	if err != nil {
		runErr := corerrors.ClassifyError(err, stage)
		runErr.DocumentID = doc.ID
		status := observability.StatusFailed
		if runErr.Code == corerrors.ErrCodeInterrupted || runErr.Code == corerrors.ErrCodeTimeout {
			status = observability.StatusInterrupted
		}

		r.finishRecording(rn, status, 0)
		r.recordRun(status, rn, 0)
		spanHelper.SetError(runErr, string(runErr.Code), corerrors.IsRetryable(runErr.Code))
		rn.log.Warn("resolution failed",
			logging.F("stage", stage),
			logging.F("code", string(runErr.Code)),
			logging.Err(err),
		)
		return nil, runErr
	}

	rn.result.Clusters = store.Len()
	r.recordRun(observability.StatusOK, rn, rn.result.Clusters)
	spanHelper.SetOutcome(rn.result.Scored, rn.result.Applied, rn.result.Clusters)
	spanHelper.SetSuccess()
	rn.log.Info("document resolved",
		logging.F("candidates", rn.result.Candidates),
		logging.F("excluded", rn.result.Excluded),
		logging.F("merges", rn.result.Applied),
		logging.F("clusters", rn.result.Clusters),
		logging.F("duration", rn.result.Duration),
	)
	return rn.result, nil
}

// execute runs every stage and returns the name of the stage that failed.
func (r *Resolver) execute(ctx context.Context, rn *run, store *Store) (string, error) {
	if store == nil {
		return "", fmt.Errorf("nil store: %w", corerrors.ErrValidation)
	}
	for _, m := range rn.doc.Mentions {
		if _, ok := store.ClusterOf(m.ID); !ok {
			return "", fmt.Errorf("mention %d has no cluster: %w", m.ID, corerrors.ErrInvariantViolation)
		}
	}

	if r.recorder != nil {
		err := r.recorder.BeginRun(ctx, scratch.Run{
			ID:         rn.id,
			DocumentID: rn.doc.ID,
			Thresholds: fmt.Sprint(r.config.Thresholds.Values()),
		})
		if err != nil {
			return "", fmt.Errorf("%w: %w", corerrors.ErrIO, err)
		}
	}

	var candidates []Candidate
	stages := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{observability.StageCandidates, func(ctx context.Context) error {
			candidates = r.generator.Generate(rn.doc.Sorted())
			rn.result.Candidates = len(candidates)
			return nil
		}},
		{observability.StageScore, func(ctx context.Context) error {
			return r.score(ctx, rn, candidates)
		}},
		{observability.StageLink, func(ctx context.Context) error {
			ops, err := r.linker.Link(ctx, rn.scored)
			rn.result.Merges = ops
			return err
		}},
		{observability.StageMerge, func(ctx context.Context) error {
			return r.merge(ctx, rn, store)
		}},
		{observability.StageCommit, func(ctx context.Context) error {
			if err := interrupted(ctx); err != nil {
				return err
			}
			if r.recorder != nil {
				if err := r.recorder.FinishRun(ctx, rn.id, scratch.RunStatusOK, rn.working.Len()); err != nil {
					return fmt.Errorf("%w: %w", corerrors.ErrIO, err)
				}
			}
			store.Commit(rn.working)
			return nil
		}},
	}

	for _, s := range stages {
		if err := r.runStage(ctx, s.name, s.fn); err != nil {
			return s.name, err
		}
	}
	return "", nil
}

func (r *Resolver) runStage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if r.config.Heartbeat != nil {
		r.config.Heartbeat(name)
	}
	ctx, span := r.tracer.StartStageSpan(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if r.metrics != nil {
		r.metrics.RecordStage(name, time.Since(start).Seconds())
	}
	if err != nil {
		observability.NewSpanHelper(span).SetError(err, string(corerrors.CodeOf(err)), false)
	}
	return err
}

// score scores every candidate, consulting the cache first. A failing pair is
// excluded unless the scorer is declared total.
func (r *Resolver) score(ctx context.Context, rn *run, candidates []Candidate) error {
	records := make([]scratch.PairRecord, 0, len(candidates))
	rn.scored = make([]ScoredPair, 0, len(candidates))
	rn.cacheScope = r.cacheScope(rn)

	for _, c := range candidates {
		if err := interrupted(ctx); err != nil {
			return err
		}

		score, err := r.scoreOne(ctx, rn, c)
		if err != nil {
			// A scorer failing because the run was cancelled is an interruption.
			if ierr := interrupted(ctx); ierr != nil {
				return ierr
			}
			if r.config.ScorerTotal {
				return fmt.Errorf("pair %d->%d: %w: %w", c.Antecedent.ID, c.Anaphor.ID, corerrors.ErrScorerFailed, err)
			}
			rn.result.Excluded++
			rn.log.Warn("excluding pair",
				logging.F("antecedent", c.Antecedent.ID),
				logging.F("anaphor", c.Anaphor.ID),
				logging.Err(err),
			)
			records = append(records, scratch.PairRecord{
				Antecedent: c.Antecedent.ID,
				Anaphor:    c.Anaphor.ID,
				Excluded:   true,
				Reason:     err.Error(),
			})
			continue
		}

		rn.scored = append(rn.scored, ScoredPair{Antecedent: c.Antecedent, Anaphor: c.Anaphor, Score: score})
		records = append(records, scratch.PairRecord{Antecedent: c.Antecedent.ID, Anaphor: c.Anaphor.ID, Score: score})
		if r.metrics != nil {
			r.metrics.RecordScore(bucket(c.Antecedent.IsPronominal(), c.Anaphor.IsPronominal()), score)
		}
	}
	rn.result.Scored = len(rn.scored)

	if r.metrics != nil {
		r.metrics.RecordPairs("scored", rn.result.Scored)
		r.metrics.RecordPairs("excluded", rn.result.Excluded)
	}
	if r.recorder != nil {
		if err := r.recorder.RecordPairs(ctx, rn.id, records); err != nil {
			return fmt.Errorf("%w: %w", corerrors.ErrIO, err)
		}
	}
	return nil
}

// cacheScope keys cached scores by the scorer's cache key and the document's
// content, so documents sharing an ID and differently configured scorers never
// read each other's scores. It returns "" when the run cannot use the cache.
func (r *Resolver) cacheScope(rn *run) string {
	if r.cache == nil {
		return ""
	}
	keyer, ok := r.scorer.(CacheKeyer)
	if !ok {
		rn.log.Debug("scorer has no cache key, score cache disabled")
		return ""
	}
	fp, err := rn.doc.Fingerprint()
	if err != nil {
		rn.log.Warn("score cache disabled", logging.Err(err))
		return ""
	}
	sum := sha256.Sum256([]byte(keyer.CacheKey() + "\x00" + fp))
	return rn.doc.ID + "@" + hex.EncodeToString(sum[:16])
}

func (r *Resolver) scoreOne(ctx context.Context, rn *run, c Candidate) (float64, error) {
	if rn.cacheScope != "" {
		v, ok, err := r.cache.Get(ctx, rn.cacheScope, c.Antecedent.ID, c.Anaphor.ID)
		switch {
		case err != nil:
			r.cacheLookup("error")
			rn.log.Warn("score cache read failed", logging.Err(err))
		case ok:
			r.cacheLookup("hit")
			return v, nil
		default:
			r.cacheLookup("miss")
		}
	}

	score, err := r.scorer.Score(ctx, rn.doc, c.Antecedent, c.Anaphor)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) {
		return 0, fmt.Errorf("pair %d->%d: score is NaN", c.Antecedent.ID, c.Anaphor.ID)
	}

	if rn.cacheScope != "" {
		if err := r.cache.Put(ctx, rn.cacheScope, c.Antecedent.ID, c.Anaphor.ID, score); err != nil {
			rn.log.Warn("score cache write failed", logging.Err(err))
		}
	}
	return score, nil
}

func (r *Resolver) cacheLookup(result string) {
	if r.metrics != nil {
		r.metrics.RecordCacheLookup(result)
	}
}

// merge applies the run's merge operations, in order, to a working copy of
// store.
func (r *Resolver) merge(ctx context.Context, rn *run, store *Store) error {
	rn.working = store.Clone()
	records := make([]scratch.MergeRecord, 0, len(rn.result.Merges))

	noop := 0
	for i, op := range rn.result.Merges {
		if err := interrupted(ctx); err != nil {
			return err
		}
		applied, err := rn.working.MergeMentions(op.Antecedent, op.Anaphor)
		if err != nil {
			return err
		}
		if applied {
			rn.result.Applied++
		} else {
			noop++
		}
		records = append(records, scratch.MergeRecord{
			Seq:        i,
			Antecedent: op.Antecedent,
			Anaphor:    op.Anaphor,
			Score:      op.Score,
			Applied:    applied,
		})
	}
	rn.log.Debug("merges applied", logging.F("applied", rn.result.Applied), logging.F("noop", noop))

	if err := rn.working.CheckPartition(); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.RecordMerges(rn.result.Applied, noop)
	}
	if r.recorder != nil {
		if err := r.recorder.RecordMerges(ctx, rn.id, records); err != nil {
			return fmt.Errorf("%w: %w", corerrors.ErrIO, err)
		}
	}
	return nil
}

// finishRecording marks a failed run in the recorder. The run has already
// failed, so a recorder error is only logged.
func (r *Resolver) finishRecording(rn *run, status string, clusters int) {
	if r.recorder == nil {
		return
	}
	// The run's context may be the reason it failed.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.recorder.FinishRun(ctx, rn.id, status, clusters); err != nil {
		rn.log.Warn("failed to record run outcome", logging.Err(err))
	}
}

func (r *Resolver) recordRun(status string, rn *run, clusters int) {
	if r.metrics != nil {
		r.metrics.RecordRun(status, rn.result.Duration.Seconds(), len(rn.doc.Mentions), clusters)
	}
}
