package catalog

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/cognicore/partscan/pkg/partscan/normalize"
)

// minAliasLen is the shortest compact alias accepted besides the canonical
// "BRAND MODEL" form. Shorter strings match too much unrelated text.
const minAliasLen = 4

// aliasSep is the separator class between alias segments in document text.
const aliasSep = `[-\s/.]*`

// BuildAliases returns the alias set of a product: the canonical
// "BRAND MODEL" string first, then spacing variants of the model, whole-token
// OCR confusion variants and any curated extras. Every alias is normalized
// the same way document text is, and duplicates are dropped.
func BuildAliases(brand, model string, extra []string) []string {
	brand = normalize.Text(brand)
	model = normalize.Text(model)

	seen := make(map[string]bool)
	var out []string
	add := func(a string, force bool) {
		a = normalize.Text(a)
		if a == "" || seen[a] {
			return
		}
		if !force && len(normalize.Compact(a)) < minAliasLen {
			return
		}
		seen[a] = true
		out = append(out, a)
	}

	add(brand+" "+model, true)
	add(model, false)

	segs := segments(model)
	add(strings.Join(segs, ""), false)
	add(strings.Join(segs, "-"), false)
	add(strings.Join(segs, " "), false)

	for _, c := range normalize.Confusions {
		if v := strings.ReplaceAll(model, string(c.Letter), string(c.Digit)); v != model {
			add(v, false)
		}
		if v := strings.ReplaceAll(model, string(c.Digit), string(c.Letter)); v != model {
			add(v, false)
		}
	}

	for _, e := range extra {
		add(e, false)
	}
	return out
}

// aliasPattern compiles an alias into a word-bounded matcher that accepts any
// run of separators (or none) between its alphanumeric segments.
func aliasPattern(alias string) (*regexp.Regexp, error) {
	segs := segments(alias)
	if len(segs) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(segs))
	for i, s := range segs {
		quoted[i] = regexp.QuoteMeta(s)
	}
	return regexp.Compile(`\b` + strings.Join(quoted, aliasSep) + `\b`)
}

// segments splits a string into its alphanumeric runs.
func segments(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
