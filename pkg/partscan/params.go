package partscan

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/detect"
	"github.com/cognicore/partscan/pkg/partscan/evidence"
	"github.com/cognicore/partscan/pkg/partscan/internalerr"
	"github.com/cognicore/partscan/pkg/partscan/match"
	"github.com/cognicore/partscan/pkg/partscan/selector"
)

// Params holds every threshold, base score, boost and window of the
// pipeline. The defaults are uncalibrated starting values; tune them
// against a labelled set of proposals.
type Params struct {
	// Candidate generation
	RegexBase      float64 `yaml:"regex_base"`
	AliasBase      float64 `yaml:"alias_base"`
	GenericBase    float64 `yaml:"generic_base"`
	ClaimTolerance int     `yaml:"claim_tolerance"`
	ContextRadius  int     `yaml:"context_radius"`
	KeywordRadius  int     `yaml:"keyword_radius"`
	Workers        int     `yaml:"workers"`

	// Evidence
	Weights           evidence.Weights                 `yaml:"weights"`
	AnchorDistance    int                              `yaml:"anchor_distance"`
	ComponentHeadings []string                         `yaml:"component_headings"`
	DatasheetHeadings []string                         `yaml:"datasheet_headings"`
	DatasheetTerms    []string                         `yaml:"datasheet_terms"`
	TypeKeywords      map[catalog.ProductType][]string `yaml:"type_keywords"`

	// Selection
	Window          int     `yaml:"window"`
	AcceptThreshold float64 `yaml:"accept_threshold"`

	// Matching
	RegexBonus         float64          `yaml:"regex_bonus"`
	AliasBonus         float64          `yaml:"alias_bonus"`
	BrandBonus         float64          `yaml:"brand_bonus"`
	SpecBonus          float64          `yaml:"spec_bonus"`
	MatchThreshold     float64          `yaml:"match_threshold"`
	FuzzyMinSimilarity float64          `yaml:"fuzzy_min_similarity"`
	MinAliasLen        int              `yaml:"min_alias_len"`
	Tolerances         match.Tolerances `yaml:"tolerances"`
}

// DefaultParams assembles the defaults of every stage.
func DefaultParams() Params {
	gen := detect.DefaultOptions()
	ev := evidence.DefaultConfig()
	sel := selector.DefaultOptions()
	m := match.DefaultOptions()

	return Params{
		RegexBase:      gen.RegexBase,
		AliasBase:      gen.AliasBase,
		GenericBase:    gen.GenericBase,
		ClaimTolerance: gen.ClaimTolerance,
		ContextRadius:  gen.ContextRadius,
		KeywordRadius:  gen.KeywordRadius,

		Weights:           ev.Weights,
		AnchorDistance:    ev.AnchorDistance,
		ComponentHeadings: ev.ComponentHeadings,
		DatasheetHeadings: ev.DatasheetHeadings,
		DatasheetTerms:    ev.DatasheetTerms,
		TypeKeywords:      ev.TypeKeywords,

		Window:          sel.Window,
		AcceptThreshold: sel.AcceptThreshold,

		RegexBonus:         m.RegexBonus,
		AliasBonus:         m.AliasBonus,
		BrandBonus:         m.BrandBonus,
		SpecBonus:          m.SpecBonus,
		MatchThreshold:     m.MatchThreshold,
		FuzzyMinSimilarity: m.FuzzyMinSimilarity,
		MinAliasLen:        m.MinAliasLen,
		Tolerances:         m.Tolerances,
	}
}

// Validate rejects thresholds outside [0,1] and non-positive windows.
func (p Params) Validate() error {
	unit := []struct {
		name string
		v    float64
	}{
		{"regex_base", p.RegexBase},
		{"alias_base", p.AliasBase},
		{"generic_base", p.GenericBase},
		{"accept_threshold", p.AcceptThreshold},
		{"match_threshold", p.MatchThreshold},
		{"fuzzy_min_similarity", p.FuzzyMinSimilarity},
	}
	for _, f := range unit {
		if f.v < 0 || f.v > 1 {
			return fmt.Errorf("%w: %s=%v outside [0,1]", internalerr.ErrInvalidConfig, f.name, f.v)
		}
	}

	positive := []struct {
		name string
		v    int
	}{
		{"context_radius", p.ContextRadius},
		{"anchor_distance", p.AnchorDistance},
		{"window", p.Window},
	}
	for _, f := range positive {
		if f.v <= 0 {
			return fmt.Errorf("%w: %s=%d must be positive", internalerr.ErrInvalidConfig, f.name, f.v)
		}
	}
	if p.ClaimTolerance < 0 || p.KeywordRadius < 0 || p.MinAliasLen < 0 {
		return fmt.Errorf("%w: negative claim_tolerance, keyword_radius or min_alias_len", internalerr.ErrInvalidConfig)
	}
	if p.Tolerances.PanelW < 0 || p.Tolerances.BatteryKWh < 0 || p.Tolerances.InverterKW < 0 {
		return fmt.Errorf("%w: negative spec tolerance", internalerr.ErrInvalidConfig)
	}
	for t := range p.TypeKeywords {
		if _, err := catalog.ParseType(string(t)); err != nil {
			return fmt.Errorf("%w: type_keywords: %v", internalerr.ErrInvalidConfig, err)
		}
	}
	return nil
}

func (p Params) generatorOptions(logger *zap.Logger) detect.Options {
	return detect.Options{
		RegexBase:      p.RegexBase,
		AliasBase:      p.AliasBase,
		GenericBase:    p.GenericBase,
		ClaimTolerance: p.ClaimTolerance,
		ContextRadius:  p.ContextRadius,
		KeywordRadius:  p.KeywordRadius,
		TypeKeywords:   p.TypeKeywords,
		Workers:        p.Workers,
		Logger:         logger,
	}
}

func (p Params) evidenceConfig() evidence.Config {
	return evidence.Config{
		Weights:           p.Weights,
		AnchorDistance:    p.AnchorDistance,
		ComponentHeadings: p.ComponentHeadings,
		DatasheetHeadings: p.DatasheetHeadings,
		DatasheetTerms:    p.DatasheetTerms,
		TypeKeywords:      p.TypeKeywords,
	}
}

func (p Params) selectorOptions() selector.Options {
	return selector.Options{Window: p.Window, AcceptThreshold: p.AcceptThreshold}
}

func (p Params) matchOptions(logger *zap.Logger) match.Options {
	return match.Options{
		RegexBonus:         p.RegexBonus,
		AliasBonus:         p.AliasBonus,
		BrandBonus:         p.BrandBonus,
		SpecBonus:          p.SpecBonus,
		MatchThreshold:     p.MatchThreshold,
		FuzzyMinSimilarity: p.FuzzyMinSimilarity,
		MinAliasLen:        p.MinAliasLen,
		Tolerances:         p.Tolerances,
		Logger:             logger,
	}
}
