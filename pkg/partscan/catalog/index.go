package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/partscan/pkg/partscan/internalerr"
	"github.com/cognicore/partscan/pkg/partscan/normalize"
)

// Index is a compiled catalog snapshot. It is immutable once Build returns
// and may be read by any number of concurrent resolutions.
type Index struct {
	products []Product
	byType   map[ProductType][]Product
	byID     map[string]int
	brands   []brandTerm
	degraded []string
	skipped  []string
}

// brandTerm is a word-bounded spelling of a catalog brand.
type brandTerm struct {
	key  string // BrandKey of the catalog brand
	term string
	re   *regexp.Regexp
}

// BuildOptions configures Build.
type BuildOptions struct {
	Registry *Registry   // nil means DefaultRegistry()
	Logger   *zap.Logger // nil means no logging
}

// Build compiles raw catalog records into an Index. Invalid records are
// skipped and a product whose pattern cannot be built keeps alias-only
// matching; neither aborts the build. Build fails only when no usable
// product remains.
func Build(records []Record, opts BuildOptions) (*Index, error) {
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := &Index{
		byType: make(map[ProductType][]Product),
		byID:   make(map[string]int),
	}
	brandSeen := make(map[string]bool)

	for _, rec := range records {
		p, err := newProduct(rec)
		if err != nil {
			logger.Warn("skipping catalog record",
				zap.String("product_id", rec.ID),
				zap.String("brand", rec.Brand),
				zap.Error(err))
			idx.skipped = append(idx.skipped, rec.ID)
			continue
		}
		if _, dup := idx.byID[p.ID]; dup {
			logger.Warn("skipping catalog record",
				zap.String("product_id", rec.ID),
				zap.Error(internalerr.ErrDuplicate))
			idx.skipped = append(idx.skipped, rec.ID)
			continue
		}

		if err := compilePattern(&p, reg, logger); err != nil {
			var pce *internalerr.PatternCompileError
			if errors.As(err, &pce) {
				logger.Warn("pattern compile failed, product degraded to alias matching",
					zap.String("product_id", pce.ProductID),
					zap.String("pattern", pce.Pattern),
					zap.Error(pce.Err))
			}
			idx.degraded = append(idx.degraded, p.ID)
		}
		compileAliases(&p, rec.Aliases, logger)

		idx.byID[p.ID] = len(idx.products)
		idx.products = append(idx.products, p)

		if !brandSeen[p.BrandKey] {
			brandSeen[p.BrandKey] = true
			idx.brands = append(idx.brands, brandTerms(p.BrandKey, p.NormBrand)...)
		}
	}

	if len(idx.products) == 0 {
		return nil, fmt.Errorf("build index from %d records: %w", len(records), internalerr.ErrCatalogEmpty)
	}

	for _, p := range idx.products {
		idx.byType[p.Type] = append(idx.byType[p.Type], p)
	}
	return idx, nil
}

func newProduct(rec Record) (Product, error) {
	id := strings.TrimSpace(rec.ID)
	brand := strings.TrimSpace(rec.Brand)
	model := strings.TrimSpace(rec.Model)
	if id == "" || brand == "" || model == "" {
		return Product{}, fmt.Errorf("%w: id, brand and model are required", internalerr.ErrInvalidInput)
	}
	typ, err := ParseType(rec.Type)
	if err != nil {
		return Product{}, err
	}
	return Product{
		ID:        id,
		Type:      typ,
		Brand:     brand,
		Model:     model,
		NormBrand: normalize.Text(brand),
		NormModel: normalize.Text(model),
		BrandKey:  BrandKey(brand),
		Spec: Spec{
			PowerW:      rec.PowerW,
			CapacityKWh: rec.CapacityKWh,
			ACKW:        rec.ACKW,
		},
	}, nil
}

// compilePattern picks the brand builder (falling back to the generic one
// when the model does not follow the brand convention), prefixes an optional
// brand and compiles. A failing or panicking builder is reported as a
// PatternCompileError and leaves p.Pattern nil.
func compilePattern(p *Product, reg *Registry, logger *zap.Logger) (err error) {
	var body string
	defer func() {
		if r := recover(); r != nil {
			p.Pattern = nil
			err = &internalerr.PatternCompileError{ProductID: p.ID, Pattern: body, Err: fmt.Errorf("builder panic: %v", r)}
		}
	}()

	builder, branded := reg.Lookup(p.Brand)
	body, err = builder(*p)
	if errors.Is(err, internalerr.ErrConventionMismatch) && branded {
		logger.Debug("model does not follow brand convention, using generic pattern",
			zap.String("product_id", p.ID),
			zap.String("brand", p.Brand))
		body, err = reg.Fallback()(*p)
	}
	if err == nil && body == "" {
		err = internalerr.ErrInvalidInput
	}
	if err != nil {
		return &internalerr.PatternCompileError{ProductID: p.ID, Pattern: body, Err: err}
	}

	full := brandPrefix(p.NormBrand) + boundary(p.NormModel, true) + `(?P<model>` + body + `)` + boundary(p.NormModel, false)
	re, cerr := regexp.Compile(full)
	if cerr != nil {
		return &internalerr.PatternCompileError{ProductID: p.ID, Pattern: full, Err: cerr}
	}
	p.Pattern = re
	return nil
}

// brandPrefix lets a match start at the brand name (or its short form) when
// it precedes the model, so the matched span records that the mention was
// brand-qualified.
func brandPrefix(brand string) string {
	var alts []string
	for _, t := range brandSpellings(brand) {
		if expr := flexTerm(t); expr != "" {
			alts = append(alts, expr)
		}
	}
	if len(alts) == 0 {
		return ""
	}
	return `(?:\b(?:` + strings.Join(alts, "|") + `)[-\s]*)?`
}

// brandSpellings returns the full normalized brand and, for multi-word
// brands, a distinctive first word ("TRINA" for "TRINA SOLAR").
func brandSpellings(normBrand string) []string {
	out := []string{normBrand}
	if words := strings.Fields(normBrand); len(words) > 1 && len(words[0]) >= 4 {
		out = append(out, words[0])
	}
	return out
}

// flexTerm quotes the segments of a term and allows a dash, a space or
// nothing between them.
func flexTerm(term string) string {
	segs := segments(term)
	for i, s := range segs {
		segs[i] = regexp.QuoteMeta(s)
	}
	return strings.Join(segs, `[-\s]?`)
}

// boundary returns `\b` when the model starts (or ends) with an ASCII letter
// or digit; `\b` next to punctuation would reject the mention.
func boundary(model string, start bool) string {
	if model == "" {
		return ""
	}
	c := model[len(model)-1]
	if start {
		c = model[0]
	}
	if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
		return `\b`
	}
	return ""
}

func compileAliases(p *Product, extra []string, logger *zap.Logger) {
	p.Aliases = BuildAliases(p.Brand, p.Model, extra)
	seen := make(map[string]bool)
	for _, a := range p.Aliases {
		re, err := aliasPattern(a)
		if err != nil {
			logger.Warn("skipping alias",
				zap.String("product_id", p.ID),
				zap.String("alias", a),
				zap.Error(err))
			continue
		}
		if re == nil || seen[re.String()] {
			continue
		}
		seen[re.String()] = true
		p.AliasPatterns = append(p.AliasPatterns, re)
	}
}

// brandTerms compiles the word-bounded spellings searched for a brand.
func brandTerms(key, normBrand string) []brandTerm {
	var out []brandTerm
	for _, t := range brandSpellings(normBrand) {
		expr := flexTerm(t)
		if expr == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + expr + `\b`)
		if err != nil {
			continue
		}
		out = append(out, brandTerm{key: key, term: t, re: re})
	}
	return out
}

// Len returns the number of compiled products.
func (idx *Index) Len() int { return len(idx.products) }

// Products returns every product in catalog order. The slice is shared and
// must not be modified.
func (idx *Index) Products() []Product { return idx.products }

// ForType returns the products of one type in catalog order. The slice is
// shared and must not be modified.
func (idx *Index) ForType(t ProductType) []Product { return idx.byType[t] }

// Product looks a product up by ID.
func (idx *Index) Product(id string) (Product, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return Product{}, false
	}
	return idx.products[i], true
}

// Degraded lists products left with alias-only matching.
func (idx *Index) Degraded() []string { return append([]string(nil), idx.degraded...) }

// Skipped lists records that could not be turned into products.
func (idx *Index) Skipped() []string { return append([]string(nil), idx.skipped...) }

// BrandsIn returns the brand keys mentioned in s, in catalog order.
func (idx *Index) BrandsIn(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, b := range idx.brands {
		if seen[b.key] {
			continue
		}
		if b.re.MatchString(s) {
			seen[b.key] = true
			out = append(out, b.key)
		}
	}
	return out
}

// MentionsBrand reports whether s mentions the brand of p.
func (idx *Index) MentionsBrand(s string, p *Product) bool {
	for _, b := range idx.brands {
		if b.key == p.BrandKey && b.re.MatchString(s) {
			return true
		}
	}
	return false
}
