package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cognicore/partscan/pkg/partscan/internalerr"
)

// ProductType is the equipment class a catalog entry or detection belongs to.
type ProductType string

const (
	Panel    ProductType = "panel"
	Battery  ProductType = "battery"
	Inverter ProductType = "inverter"
)

// Types lists every product type in a fixed order.
var Types = []ProductType{Panel, Battery, Inverter}

// ParseType maps a catalog type label onto a ProductType.
// Common synonyms ("module", "storage") are accepted.
func ParseType(s string) (ProductType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "panel", "panels", "module", "modules", "solar panel", "pv module":
		return Panel, nil
	case "battery", "batteries", "storage", "energy storage":
		return Battery, nil
	case "inverter", "inverters":
		return Inverter, nil
	}
	return "", fmt.Errorf("%w: %q", internalerr.ErrUnknownProductType, s)
}

// Unit returns the rating unit used for this type, as it appears in
// normalized text.
func (t ProductType) Unit() string {
	switch t {
	case Panel:
		return "W"
	case Battery:
		return "KWH"
	case Inverter:
		return "KW"
	}
	return ""
}

var specValuePatterns = map[ProductType]*regexp.Regexp{
	Panel:    regexp.MustCompile(`\b(\d{2,4}(?:[.,]\d+)?)\s?WP?\b`),
	Battery:  regexp.MustCompile(`\b(\d{1,3}(?:[.,]\d+)?)\s?KWH\b`),
	Inverter: regexp.MustCompile(`\b(\d{1,3}(?:[.,]\d+)?)\s?KW\b`),
}

// SpecValues extracts every rating written with t's unit from normalized
// text ("440W", "13.5 KWH", "5KW").
func SpecValues(t ProductType, s string) []float64 {
	re, ok := specValuePatterns[t]
	if !ok {
		return nil
	}
	var out []float64
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err == nil {
			out = append(out, v)
		}
	}
	return out
}

// Spec is the canonical rating of a product. Only the field matching the
// product type is meaningful.
type Spec struct {
	PowerW      float64 // panels
	CapacityKWh float64 // batteries
	ACKW        float64 // inverters
}

// Value returns the rating relevant for t, and false when it is unknown.
func (s Spec) Value(t ProductType) (float64, bool) {
	var v float64
	switch t {
	case Panel:
		v = s.PowerW
	case Battery:
		v = s.CapacityKWh
	case Inverter:
		v = s.ACKW
	}
	return v, v > 0
}

// Record is one raw entry as supplied by the external catalog.
type Record struct {
	ID          string
	Type        string
	Brand       string
	Model       string
	PowerW      float64
	CapacityKWh float64
	ACKW        float64
	Aliases     []string // curated extra spellings
}

// Product is a compiled catalog entry. Brand and Model keep the catalog
// spelling; NormBrand and NormModel are the normalized forms matched
// against document text.
type Product struct {
	ID        string
	Type      ProductType
	Brand     string
	Model     string
	NormBrand string
	NormModel string
	BrandKey  string
	Spec      Spec

	// Pattern is nil when the product was degraded to alias-only matching.
	Pattern *regexp.Regexp

	Aliases       []string
	AliasPatterns []*regexp.Regexp
}

// Canonical returns the "BRAND MODEL" string.
func (p *Product) Canonical() string {
	return p.NormBrand + " " + p.NormModel
}
