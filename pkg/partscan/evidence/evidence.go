// Package evidence adjusts candidate scores from the text around them.
//
// Every adjustment is additive and recorded as a Signal so a final
// confidence can always be explained line by line:
//
//	score = base + Σ signal.Delta, clamped to [0,1]
package evidence

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
)

// Signal names.
const (
	SectionAnchor    = "section_anchor"
	Quantity         = "quantity"
	SpecValue        = "spec_value"
	BrandContext     = "brand_context"
	Datasheet        = "datasheet"
	TypeKeyword      = "type_keyword"
	ModelLabel       = "model_label"
	BrandQualified   = "brand_qualified"
	DatasheetSection = "datasheet_section"
)

// Signal is one applied adjustment.
type Signal struct {
	Name  string  `json:"name"`
	Delta float64 `json:"delta"`
}

// Weights holds the adjustment applied by each signal. Negative weights
// demote.
type Weights struct {
	SectionAnchor    float64 `yaml:"section_anchor"`
	Quantity         float64 `yaml:"quantity"`
	SpecValue        float64 `yaml:"spec_value"`
	BrandContext     float64 `yaml:"brand_context"`
	Datasheet        float64 `yaml:"datasheet"`
	TypeKeyword      float64 `yaml:"type_keyword"`
	ModelLabel       float64 `yaml:"model_label"`
	BrandQualified   float64 `yaml:"brand_qualified"`
	DatasheetSection float64 `yaml:"datasheet_section"`
}

// DefaultWeights returns the uncalibrated starting weights.
func DefaultWeights() Weights {
	return Weights{
		SectionAnchor:    0.25,
		Quantity:         0.20,
		SpecValue:        0.10,
		BrandContext:     0.10,
		Datasheet:        -0.20,
		TypeKeyword:      0.15,
		ModelLabel:       0.25,
		BrandQualified:   0.35,
		DatasheetSection: -0.50,
	}
}

// Config configures a Scorer. Term lists are matched against normalized
// (uppercase) text on word boundaries.
type Config struct {
	Weights           Weights
	AnchorDistance    int // how far a heading reaches, in bytes
	ComponentHeadings []string
	DatasheetHeadings []string
	DatasheetTerms    []string
	TypeKeywords      map[catalog.ProductType][]string
}

// DefaultConfig returns the default weights and term lists.
func DefaultConfig() Config {
	return Config{
		Weights:           DefaultWeights(),
		AnchorDistance:    1500,
		ComponentHeadings: append([]string(nil), defaultComponentHeadings...),
		DatasheetHeadings: append([]string(nil), defaultDatasheetHeadings...),
		DatasheetTerms:    append([]string(nil), defaultDatasheetTerms...),
		TypeKeywords:      DefaultTypeKeywords(),
	}
}

// BrandFinder reports which catalog brands a piece of text mentions.
// *catalog.Index implements it.
type BrandFinder interface {
	BrandsIn(s string) []string
}

// Scorer applies the evidence signals. It is safe for concurrent use.
type Scorer struct {
	weights        Weights
	anchorDistance int
	headings       *regexp.Regexp
	datasheetHead  map[string]bool
	datasheetTerms *regexp.Regexp
	typeKeywords   map[catalog.ProductType]*regexp.Regexp
}

// NewScorer compiles the term lists of cfg.
func NewScorer(cfg Config) *Scorer {
	s := &Scorer{
		weights:        cfg.Weights,
		anchorDistance: cfg.AnchorDistance,
		datasheetHead:  make(map[string]bool),
		typeKeywords:   make(map[catalog.ProductType]*regexp.Regexp),
	}
	for _, h := range cfg.DatasheetHeadings {
		s.datasheetHead[termKey(h)] = true
	}
	s.headings = termsPattern(append(append([]string(nil), cfg.ComponentHeadings...), cfg.DatasheetHeadings...), true)
	s.datasheetTerms = termsPattern(cfg.DatasheetTerms, false)
	for t, kws := range cfg.TypeKeywords {
		s.typeKeywords[t] = keywordPattern(kws)
	}
	return s
}

// heading is a recognised section heading in a document.
type heading struct {
	start, end int
	datasheet  bool
}

// Document is the per-call view of one normalized text: the headings are
// located once and shared by every candidate.
type Document struct {
	text     string
	headings []heading
	brands   BrandFinder
}

// Prepare locates the section headings of text. brands may be nil, in
// which case the brand signals never fire.
func (s *Scorer) Prepare(text string, brands BrandFinder) *Document {
	doc := &Document{text: text, brands: brands}
	if s.headings == nil {
		return doc
	}
	for _, m := range s.headings.FindAllStringSubmatchIndex(text, -1) {
		term := text[m[2]:m[3]]
		doc.headings = append(doc.headings, heading{
			start:     m[2],
			end:       m[3],
			datasheet: s.datasheetHead[termKey(term)],
		})
	}
	return doc
}

// Mention is what the scorer needs to know about a candidate.
type Mention struct {
	Type         catalog.ProductType
	Span         string // matched text
	Offset       int    // start of Span in the document
	Lead         int    // start of a quantity prefix, or Offset
	Context      string
	ContextStart int
}

// Score returns base adjusted by every signal that fires for m, and the
// signals in the order they were applied.
func (s *Scorer) Score(doc *Document, m Mention, base float64) (float64, []Signal) {
	score := base
	var signals []Signal
	apply := func(name string, delta float64) {
		if delta == 0 {
			return
		}
		score = round4(score + delta)
		signals = append(signals, Signal{Name: name, Delta: delta})
	}

	section, inDatasheet := s.section(doc, m.Lead)
	if section {
		apply(SectionAnchor, s.weights.SectionAnchor)
	}
	if hasQuantity(m.Context) {
		apply(Quantity, s.weights.Quantity)
	}
	if len(catalog.SpecValues(m.Type, m.Context)) > 0 {
		apply(SpecValue, s.weights.SpecValue)
	}
	if re := s.typeKeywords[m.Type]; re != nil && re.MatchString(m.Context) {
		apply(TypeKeyword, s.weights.TypeKeyword)
	}
	if modelLabel.MatchString(labelWindow(doc.text, m.Lead)) {
		apply(ModelLabel, s.weights.ModelLabel)
	}
	// No brand signals inside a datasheet section.
	if doc.brands != nil && !inDatasheet {
		if inSpan := doc.brands.BrandsIn(m.Span); len(inSpan) > 0 {
			apply(BrandQualified, s.weights.BrandQualified)
			if sharesBrand(inSpan, doc.brands.BrandsIn(outsideSpan(m))) {
				apply(BrandContext, s.weights.BrandContext)
			}
		}
	}
	if s.datasheetTerms != nil && s.datasheetTerms.MatchString(m.Context) {
		apply(Datasheet, s.weights.Datasheet)
	}
	if inDatasheet {
		apply(DatasheetSection, s.weights.DatasheetSection)
	}

	return clamp(score), signals
}

// section reports whether the nearest heading before pos (within the
// anchor distance) is a component heading or a datasheet heading.
func (s *Scorer) section(doc *Document, pos int) (component, datasheet bool) {
	i := sort.Search(len(doc.headings), func(i int) bool {
		return doc.headings[i].start >= pos
	})
	if i == 0 {
		return false, false
	}
	h := doc.headings[i-1]
	if pos-h.end > s.anchorDistance {
		return false, false
	}
	return !h.datasheet, h.datasheet
}

// outsideSpan returns the context with the candidate span blanked out.
func outsideSpan(m Mention) string {
	start := m.Offset - m.ContextStart
	end := start + len(m.Span)
	if start < 0 || end > len(m.Context) {
		return m.Context
	}
	return m.Context[:start] + " " + m.Context[end:]
}

func sharesBrand(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// hasQuantity reports whether text carries an "N ×" marker that counts
// items. Dimensions such as "182 X 182 MM" are not quantities.
func hasQuantity(text string) bool {
	for _, m := range quantityMarker.FindAllStringSubmatch(text, -1) {
		if !dimension.MatchString(m[1]) {
			return true
		}
	}
	return false
}

// labelWindow is the text just before a candidate (and its quantity
// prefix) where a "MODEL:" style label would sit.
func labelWindow(text string, offset int) string {
	start := offset - 32
	if start < 0 {
		start = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	return text[start:offset]
}

func termKey(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
