package detect

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/evidence"
)

// Options configures a Generator.
type Options struct {
	RegexBase      float64
	AliasBase      float64
	GenericBase    float64
	ClaimTolerance int // bytes around a claimed span a later pass must keep clear of
	ContextRadius  int
	KeywordRadius  int // how far pass C looks for a type keyword around a bare token
	TypeKeywords   map[catalog.ProductType][]string
	Workers        int // pass A fan-out; <= 0 means GOMAXPROCS
	Logger         *zap.Logger
}

// DefaultOptions returns the default base scores and windows.
func DefaultOptions() Options {
	return Options{
		RegexBase:      0.40,
		AliasBase:      0.30,
		GenericBase:    0.25,
		ClaimTolerance: 10,
		ContextRadius:  200,
		KeywordRadius:  60,
		TypeKeywords:   evidence.DefaultTypeKeywords(),
	}
}

// Generator produces raw candidates from normalized text. It only reads the
// index and is safe for concurrent use.
type Generator struct {
	idx     *catalog.Index
	opts    Options
	logger  *zap.Logger
	generic genericPatterns
}

// NewGenerator returns a generator scanning for the products of idx.
func NewGenerator(idx *catalog.Index, opts Options) *Generator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Generator{
		idx:     idx,
		opts:    opts,
		logger:  logger,
		generic: compileGeneric(opts.TypeKeywords),
	}
}

// Generate runs the three passes over text, which must already be
// normalized. Candidates come back in pass order; within the regex and
// alias passes they follow catalog order, so the output does not depend on
// goroutine scheduling.
func (g *Generator) Generate(ctx context.Context, text string) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	regex, err := g.regexPass(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("regex pass: %w", err)
	}
	var claimed claims
	claimed.add(regex, g.opts.ClaimTolerance)

	alias := g.aliasPass(text, claimed)
	claimed.add(alias, g.opts.ClaimTolerance)

	generic := g.genericPass(text, claimed)

	g.logger.Debug("candidates generated",
		zap.Int("regex", len(regex)),
		zap.Int("alias", len(alias)),
		zap.Int("generic", len(generic)))

	out := make([]Candidate, 0, len(regex)+len(alias)+len(generic))
	out = append(out, regex...)
	out = append(out, alias...)
	return append(out, generic...), nil
}

// regexPass scans with every compiled product pattern, fanning out across
// products. Each product writes only its own slot.
func (g *Generator) regexPass(ctx context.Context, text string) ([]Candidate, error) {
	products := g.idx.Products()
	found := make([][]Candidate, len(products))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Workers)
	for i := range products {
		i := i
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			found[i] = g.scanPattern(text, &products[i])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []Candidate
	for _, f := range found {
		out = append(out, f...)
	}
	return out, nil
}

func (g *Generator) scanPattern(text string, p *catalog.Product) (out []Candidate) {
	if p.Pattern == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("regex pass skipped product",
				zap.String("product_id", p.ID),
				zap.Any("panic", r))
			out = nil
		}
	}()

	group := p.Pattern.SubexpIndex("model")
	for _, m := range p.Pattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		if start == end {
			continue
		}
		model := text[start:end]
		if group > 0 && m[2*group] >= 0 {
			model = text[m[2*group]:m[2*group+1]]
		}
		out = append(out, g.newCandidate(text, PassRegex, p.ID, start, end, -1, model, p.Type, g.opts.RegexBase))
	}
	return out
}

// aliasPass scans with every alias matcher. Within one product the longest
// earliest non-overlapping spans are kept.
func (g *Generator) aliasPass(text string, claimed claims) []Candidate {
	var out []Candidate
	products := g.idx.Products()
	for i := range products {
		p := &products[i]
		for _, s := range g.aliasSpans(text, p) {
			if claimed.overlaps(s.start, s.end) {
				continue
			}
			out = append(out, g.newCandidate(text, PassAlias, p.ID, s.start, s.end, -1, text[s.start:s.end], p.Type, g.opts.AliasBase))
		}
	}
	return out
}

func (g *Generator) aliasSpans(text string, p *catalog.Product) (spans []span) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("alias pass skipped product",
				zap.String("product_id", p.ID),
				zap.Any("panic", r))
			spans = nil
		}
	}()

	var all []span
	for _, re := range p.AliasPatterns {
		for _, m := range re.FindAllStringIndex(text, -1) {
			if m[0] < m[1] {
				all = append(all, span{start: m[0], end: m[1]})
			}
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].start != all[j].start {
			return all[i].start < all[j].start
		}
		return all[i].end > all[j].end
	})
	for _, s := range all {
		if n := len(spans); n > 0 && s.start < spans[n-1].end {
			continue
		}
		spans = append(spans, s)
	}
	return spans
}

// quantityPrefix is an "N x" style marker ending right before a candidate.
var quantityPrefix = regexp.MustCompile(`\b\d{1,3}\s*(?:X|×|\*|PCS?\.?|NOS?\.?|UNITS?)\s*(?:OF\s+)?$`)

// leadStart returns where a quantity marker directly in front of offset
// begins, or offset when there is none.
func leadStart(text string, offset int) int {
	lo := offset - 24
	if lo < 0 {
		lo = 0
	}
	if loc := quantityPrefix.FindStringIndex(text[lo:offset]); loc != nil {
		return lo + loc[0]
	}
	return offset
}

// newCandidate fills in the context window. A negative lead is computed
// from the text.
func (g *Generator) newCandidate(text string, pass Pass, key string, start, end, lead int, model string, typ catalog.ProductType, base float64) Candidate {
	if lead < 0 {
		lead = leadStart(text, start)
	}
	window, windowStart := contextWindow(text, lead, end, g.opts.ContextRadius)
	return Candidate{
		ID:           candidateID(pass, start, key),
		Pass:         pass,
		RawText:      text[start:end],
		Text:         model,
		Type:         typ,
		Offset:       start,
		End:          end,
		Lead:         lead,
		Context:      window,
		ContextStart: windowStart,
		Score:        base,
	}
}

type span struct {
	start, end int
}

// claims are spans taken by earlier passes, widened by the tolerance.
type claims []span

func (c *claims) add(cands []Candidate, tolerance int) {
	for _, cand := range cands {
		*c = append(*c, span{start: cand.Offset - tolerance, end: cand.End + tolerance})
	}
}

func (c claims) overlaps(start, end int) bool {
	for _, s := range c {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}
