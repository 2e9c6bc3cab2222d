package evidence

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
)

var defaultComponentHeadings = []string{
	"SYSTEM COMPONENTS",
	"EQUIPMENT SPECIFICATION",
	"EQUIPMENT LIST",
	"PROPOSED SYSTEM",
	"SYSTEM DESIGN",
	"SYSTEM SUMMARY",
	"BILL OF MATERIALS",
	"SCOPE OF WORKS",
}

var defaultDatasheetHeadings = []string{
	"DATASHEET",
	"DATA SHEET",
	"APPENDIX",
	"TECHNICAL DATA",
	"PRODUCT BROCHURE",
}

var defaultDatasheetTerms = []string{
	"DATASHEET",
	"DATA SHEET",
	"APPENDIX",
	"TEMPERATURE COEFFICIENT",
	"OPERATING TEMPERATURE",
	"NOCT",
	"STC",
	"IEC 61215",
	"IEC 61730",
	"MAXIMUM SYSTEM VOLTAGE",
	"SUBJECT TO CHANGE",
	"ALL RIGHTS RESERVED",
}

// DefaultTypeKeywords returns the words that name each product type.
func DefaultTypeKeywords() map[catalog.ProductType][]string {
	return map[catalog.ProductType][]string{
		catalog.Panel:    {"PANEL", "MODULE", "SOLAR"},
		catalog.Battery:  {"BATTERY", "STORAGE"},
		catalog.Inverter: {"INVERTER"},
	}
}

var (
	// quantityMarker is an "N ×" token directly in front of an alphanumeric
	// token: "3 X EG-440", "12×JKM". Group 1 is the leading part of that
	// token.
	quantityMarker = regexp.MustCompile(`\b\d{1,3}\s*(?:X|×|\*)\s*([A-Z0-9]+(?:[.,][A-Z0-9]+)*)`)

	// dimension is a bare measure following "N ×": "182", "182MM", "1.5CM".
	dimension = regexp.MustCompile(`^\d+(?:[.,]\d+)?(?:MM|CM|M)?$`)

	// modelLabel must end the window that precedes a candidate.
	modelLabel = regexp.MustCompile(`\b(?:MODEL|MODEL\s*(?:NO\.?|NUMBER)|PART\s*(?:NO\.?|NUMBER)|TYPE)\s*[:#\-]\s*$`)
)

// termsPattern compiles a word-bounded alternation of terms, longest first
// so "DATA SHEET" wins over a shorter overlapping term. With capture set
// the term is wrapped in group 1. A trailing plural S is accepted.
func termsPattern(terms []string, capture bool) *regexp.Regexp {
	var alts []string
	for _, t := range terms {
		words := strings.Fields(strings.ToUpper(t))
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `\s+`))
	}
	if len(alts) == 0 {
		return nil
	}
	sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	body := `(?:` + strings.Join(alts, "|") + `)`
	if capture {
		body = `(` + body + `)`
	}
	return regexp.MustCompile(`\b` + body + `S?\b`)
}

// keywordPattern matches any of the keywords, singular or plural.
func keywordPattern(words []string) *regexp.Regexp {
	return termsPattern(words, false)
}
