// Package partscan resolves equipment mentions in solar proposal text to
// catalog products.
package partscan

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/detect"
	"github.com/cognicore/partscan/pkg/partscan/evidence"
	"github.com/cognicore/partscan/pkg/partscan/internalerr"
	"github.com/cognicore/partscan/pkg/partscan/match"
	"github.com/cognicore/partscan/pkg/partscan/normalize"
	"github.com/cognicore/partscan/pkg/partscan/selector"
	"github.com/cognicore/partscan/pkg/partscan/store"
)

// Engine is the resolution facade
type Engine struct {
	holder *catalog.Holder
	params Params
	scorer *evidence.Scorer
	logger *zap.Logger
}

// Options configures an Engine. Holder takes precedence over Index.
type Options struct {
	Holder *catalog.Holder
	Index  *catalog.Index
	Params Params
	Logger *zap.Logger
}

// New creates an Engine. Params are validated; a zero Params is rejected,
// so start from DefaultParams.
func New(opts Options) (*Engine, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	holder := opts.Holder
	if holder == nil {
		holder = catalog.NewHolder(opts.Index)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		holder: holder,
		params: opts.Params,
		scorer: evidence.NewScorer(opts.Params.evidenceConfig()),
		logger: logger,
	}, nil
}

// Holder returns the holder publishing the engine's catalog.
func (e *Engine) Holder() *catalog.Holder { return e.holder }

// Analysis is the full trace of one resolution.
type Analysis struct {
	Text        string              // normalized input; offsets refer to it
	CatalogSize int                 // products in the snapshot used
	Candidates  []detect.Candidate  // every scored candidate
	Detections  []selector.Detection
	Results     []match.Result
}

// Resolve returns the catalog matches in rawText, best first. Finding
// nothing is not an error.
func (e *Engine) Resolve(ctx context.Context, rawText string) ([]match.Result, error) {
	a, err := e.Analyze(ctx, rawText)
	if err != nil {
		return nil, err
	}
	return a.Results, nil
}

// Analyze runs the pipeline against the current catalog snapshot and
// returns every intermediate stage.
func (e *Engine) Analyze(ctx context.Context, rawText string) (*Analysis, error) {
	idx := e.holder.Load()
	if idx == nil {
		return nil, &internalerr.CatalogLoadError{Source: "holder", Err: internalerr.ErrCatalogEmpty}
	}
	return analyze(ctx, rawText, idx, e.params, e.scorer, e.logger)
}

// Refresh reloads the engine's catalog from src.
func (e *Engine) Refresh(ctx context.Context, src store.CatalogSource, opts catalog.BuildOptions) error {
	if opts.Logger == nil {
		opts.Logger = e.logger
	}
	return Refresh(ctx, e.holder, src, opts)
}

// Resolve is the one-shot form of Engine.Resolve over a caller-owned index.
func Resolve(ctx context.Context, rawText string, idx *catalog.Index, params Params) ([]match.Result, error) {
	if idx == nil {
		return nil, &internalerr.CatalogLoadError{Err: internalerr.ErrCatalogEmpty}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	a, err := analyze(ctx, rawText, idx, params, evidence.NewScorer(params.evidenceConfig()), zap.NewNop())
	if err != nil {
		return nil, err
	}
	return a.Results, nil
}

func analyze(ctx context.Context, rawText string, idx *catalog.Index, p Params, scorer *evidence.Scorer, logger *zap.Logger) (*Analysis, error) {
	text := normalize.Text(rawText)

	cands, err := detect.NewGenerator(idx, p.generatorOptions(logger)).Generate(ctx, text)
	if err != nil {
		return nil, err
	}

	doc := scorer.Prepare(text, idx)
	for i := range cands {
		scoreCandidate(scorer, doc, &cands[i], logger)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dets := selector.Select(cands, p.selectorOptions())
	results := match.NewMatcher(idx, p.matchOptions(logger)).Match(dets)

	logger.Debug("resolved document",
		zap.Int("candidates", len(cands)),
		zap.Int("detections", len(dets)),
		zap.Int("results", len(results)))

	return &Analysis{
		Text:        text,
		CatalogSize: idx.Len(),
		Candidates:  cands,
		Detections:  dets,
		Results:     results,
	}, nil
}

// scoreCandidate applies the evidence signals. A candidate whose scoring
// fails drops to zero and so never survives selection.
func scoreCandidate(scorer *evidence.Scorer, doc *evidence.Document, c *detect.Candidate, logger *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("evidence scoring failed",
				zap.String("candidate_id", c.ID),
				zap.String("pass", string(c.Pass)),
				zap.Any("panic", r))
			c.Score, c.Evidence = 0, nil
		}
	}()
	c.Score, c.Evidence = scorer.Score(doc, c.Mention(), c.Score)
}

// LoadIndex reads every record from src and builds an index.
func LoadIndex(ctx context.Context, src store.CatalogSource, opts catalog.BuildOptions) (*catalog.Index, error) {
	recs, err := src.Products(ctx)
	if err != nil {
		return nil, &internalerr.CatalogLoadError{Source: sourceName(src), Err: err}
	}
	idx, err := catalog.Build(recs, opts)
	if err != nil {
		return nil, &internalerr.CatalogLoadError{Source: sourceName(src), Err: err}
	}
	return idx, nil
}

// Refresh builds a new index from src and publishes it in holder.
// Resolutions already running keep their snapshot. On failure the
// current snapshot stays in place.
func Refresh(ctx context.Context, holder *catalog.Holder, src store.CatalogSource, opts catalog.BuildOptions) error {
	idx, err := LoadIndex(ctx, src, opts)
	if err != nil {
		return err
	}
	holder.Swap(idx)
	return nil
}

func sourceName(src store.CatalogSource) string {
	if s, ok := src.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", src)
}
