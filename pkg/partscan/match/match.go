// Package match cross-references accepted detections against the catalog.
package match

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/normalize"
	"github.com/cognicore/partscan/pkg/partscan/selector"
)

// Type says how a detection was tied to its product.
type Type string

const (
	Regex Type = "regex"
	Alias Type = "alias"
	Fuzzy Type = "fuzzy"
)

func (t Type) rank() int {
	switch t {
	case Regex:
		return 0
	case Alias:
		return 1
	}
	return 2
}

// Result is one resolved mention.
type Result struct {
	Detection  selector.Detection
	Product    catalog.Product
	Confidence float64
	MatchType  Type
	BrandMatch bool
	SpecMatch  bool
}

// Tolerances are the allowed distances between a rating found in the text
// and the catalog rating.
type Tolerances struct {
	PanelW     float64 `yaml:"panel_w"`
	BatteryKWh float64 `yaml:"battery_kwh"`
	InverterKW float64 `yaml:"inverter_kw"`
}

// For returns the tolerance for a product type.
func (t Tolerances) For(pt catalog.ProductType) float64 {
	switch pt {
	case catalog.Panel:
		return t.PanelW
	case catalog.Battery:
		return t.BatteryKWh
	case catalog.Inverter:
		return t.InverterKW
	}
	return 0
}

// Options configures a Matcher.
type Options struct {
	RegexBonus         float64
	AliasBonus         float64
	BrandBonus         float64
	SpecBonus          float64
	MatchThreshold     float64
	FuzzyMinSimilarity float64
	MinAliasLen        int
	Tolerances         Tolerances
	Logger             *zap.Logger
}

// DefaultOptions returns the uncalibrated starting bonuses.
func DefaultOptions() Options {
	return Options{
		RegexBonus:         0.30,
		AliasBonus:         0.25,
		BrandBonus:         0.15,
		SpecBonus:          0.10,
		MatchThreshold:     0.70,
		FuzzyMinSimilarity: 0.80,
		MinAliasLen:        4,
		Tolerances:         Tolerances{PanelW: 50, BatteryKWh: 2, InverterKW: 1},
	}
}

// Matcher resolves detections against one index snapshot.
type Matcher struct {
	idx    *catalog.Index
	opts   Options
	logger *zap.Logger
}

// NewMatcher returns a matcher over idx.
func NewMatcher(idx *catalog.Index, opts Options) *Matcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{idx: idx, opts: opts, logger: logger}
}

// Match resolves every detection and returns the results sorted by
// confidence, then offset, then product ID. Detections without a product
// above the threshold are left out.
func (m *Matcher) Match(dets []selector.Detection) []Result {
	var out []Result
	for _, d := range dets {
		if r, ok := m.Best(d); ok {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Detection.Offset != b.Detection.Offset {
			return a.Detection.Offset < b.Detection.Offset
		}
		return a.Product.ID < b.Product.ID
	})
	return out
}

// scored is a product evaluated for one detection; raw is the unclamped
// confidence used for ranking.
type scored struct {
	Result
	raw float64
}

// Best returns the single best product for d. A panic while evaluating the
// detection is logged and treated as no match.
func (m *Matcher) Best(d selector.Detection) (res Result, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("match skipped detection",
				zap.String("candidate_id", d.ID),
				zap.Any("panic", r))
			res, ok = Result{}, false
		}
	}()

	text := normalize.Compact(d.Text)
	values := catalog.SpecValues(d.Type, d.Context)

	var best *scored
	for _, p := range m.idx.ForType(d.Type) {
		s, eligible := m.evaluate(d, p, text, values)
		if !eligible {
			continue
		}
		if best == nil || outranks(&s, best) {
			best = &s
		}
	}
	if best == nil || best.Confidence < m.opts.MatchThreshold {
		return Result{}, false
	}
	return best.Result, true
}

func (m *Matcher) evaluate(d selector.Detection, p catalog.Product, text string, values []float64) (scored, bool) {
	raw := d.Score
	var mt Type
	switch {
	case p.Pattern != nil && p.Pattern.MatchString(d.Text):
		mt = Regex
		raw += m.opts.RegexBonus
	case m.aliasHit(p, text):
		mt = Alias
		raw += m.opts.AliasBonus
	default:
		if similarity(text, normalize.Compact(p.NormModel)) < m.opts.FuzzyMinSimilarity {
			return scored{}, false
		}
		mt = Fuzzy
	}

	brand := m.idx.MentionsBrand(d.Text, &p) || m.idx.MentionsBrand(d.Context, &p)
	if brand {
		raw += m.opts.BrandBonus
	}
	spec := specWithin(p, values, m.opts.Tolerances.For(p.Type))
	if spec {
		raw += m.opts.SpecBonus
	}

	raw = round4(raw)
	return scored{
		Result: Result{
			Detection:  d,
			Product:    p,
			Confidence: math.Min(1, math.Max(0, raw)),
			MatchType:  mt,
			BrandMatch: brand,
			SpecMatch:  spec,
		},
		raw: raw,
	}, true
}

// aliasHit reports whether a compact alias contains, or is contained in,
// the compact detection text.
func (m *Matcher) aliasHit(p catalog.Product, text string) bool {
	if len(text) < m.opts.MinAliasLen {
		return false
	}
	for _, a := range p.Aliases {
		ca := normalize.Compact(a)
		if len(ca) < m.opts.MinAliasLen {
			continue
		}
		if strings.Contains(text, ca) || strings.Contains(ca, text) {
			return true
		}
	}
	return false
}

func specWithin(p catalog.Product, values []float64, tolerance float64) bool {
	want, ok := p.Spec.Value(p.Type)
	if !ok {
		return false
	}
	for _, v := range values {
		if math.Abs(v-want) <= tolerance {
			return true
		}
	}
	return false
}

// outranks orders candidate products: higher raw confidence, then the
// stronger match type, then the lower product ID.
func outranks(a, b *scored) bool {
	if a.raw != b.raw {
		return a.raw > b.raw
	}
	if a.MatchType.rank() != b.MatchType.rank() {
		return a.MatchType.rank() < b.MatchType.rank()
	}
	return a.Product.ID < b.Product.ID
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
