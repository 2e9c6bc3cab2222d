package catalog

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/cognicore/partscan/pkg/partscan/normalize"
)

// PatternBuilder turns a product (normalized brand and model already set)
// into a regular expression body for its model string. Returning
// internalerr.ErrConventionMismatch hands the product to the fallback
// builder.
type PatternBuilder func(p Product) (string, error)

// Registry maps brand keys to pattern builders. New brands are supported by
// registering a builder; the index builder never special-cases a brand.
type Registry struct {
	builders map[string]PatternBuilder
	keys     []string // sorted longest first for prefix lookup
	fallback PatternBuilder
}

// NewRegistry returns a registry with no brand builders and the generic
// fallback.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]PatternBuilder),
		fallback: GenericPattern,
	}
}

// DefaultRegistry returns a registry preloaded with the built-in brand
// conventions.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	registerBuiltins(r)
	return r
}

// Register adds or replaces the builder for a brand.
func (r *Registry) Register(brand string, b PatternBuilder) {
	key := BrandKey(brand)
	if key == "" || b == nil {
		return
	}
	if _, exists := r.builders[key]; !exists {
		r.keys = append(r.keys, key)
		sort.Slice(r.keys, func(i, j int) bool {
			if len(r.keys[i]) != len(r.keys[j]) {
				return len(r.keys[i]) > len(r.keys[j])
			}
			return r.keys[i] < r.keys[j]
		})
	}
	r.builders[key] = b
}

// SetFallback replaces the builder used for unregistered brands.
func (r *Registry) SetFallback(b PatternBuilder) {
	if b != nil {
		r.fallback = b
	}
}

// Lookup returns the builder for a brand. An exact key wins; otherwise the
// longest registered key that prefixes the brand key is used, so
// "Jinko Solar" finds the "JINKO" builder.
func (r *Registry) Lookup(brand string) (PatternBuilder, bool) {
	key := BrandKey(brand)
	if b, ok := r.builders[key]; ok {
		return b, true
	}
	for _, k := range r.keys {
		if strings.HasPrefix(key, k) {
			return r.builders[k], true
		}
	}
	return r.fallback, false
}

// Fallback returns the generic builder.
func (r *Registry) Fallback() PatternBuilder {
	return r.fallback
}

// BrandKey is the registry key for a brand name: normalized, letters and
// digits only.
func BrandKey(brand string) string {
	return normalize.Compact(normalize.Text(brand))
}

// sep is the flexible separator used between model segments.
const sep = `[-\s/]?`

// GenericPattern escapes the model, makes every separator optional and
// flexible, and appends an optional unit suffix when the rating is known.
func GenericPattern(p Product) (string, error) {
	var b strings.Builder
	for _, r := range p.NormModel {
		switch {
		case r == '-' || r == '/' || r == '_' || unicode.IsSpace(r):
			b.WriteString(sep)
		case r == '.' || r == ',':
			b.WriteString(`[.,]?`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	body := collapseSeparators(b.String())
	if v, ok := p.Spec.Value(p.Type); ok {
		body += `(?:\s?` + formatNumber(v) + `\s?` + p.Type.Unit() + `)?`
	}
	return body, nil
}

// collapseSeparators folds runs like "[-\s/]?[-\s/]?" produced by " - ".
func collapseSeparators(s string) string {
	double := sep + sep
	for strings.Contains(s, double) {
		s = strings.ReplaceAll(s, double, sep)
	}
	return s
}

// formatNumber renders a rating the way quotes print it: integers without a
// decimal point, others with an optional decimal separator.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	return strings.Replace(s, ".", `[.,]`, 1)
}

// flex joins already-escaped segments with the flexible separator.
func flex(parts ...string) string {
	return strings.Join(parts, sep)
}
