package detect

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/normalize"
)

// tokenExpr is a model-like token: alphanumeric runs joined by single
// separators, carrying at least one digit and never ending in punctuation.
const tokenExpr = `(?P<token>(?:[A-Z0-9]+[-/.])*[A-Z]*\d[A-Z0-9]*(?:[-/.][A-Z0-9]+)*)`

// fillerWords allows up to two plain words between a marker and the token
// ("20 PCS JINKO SOLAR JKM440N").
const fillerWords = `(?:[A-Z][A-Z]+\s+){0,2}`

var (
	unitLead = regexp.MustCompile(`\b\d{1,4}(?:[.,]\d+)?\s?(?P<unit>KWH|KW|WP|W)\b\s+` + fillerWords + tokenExpr)

	quantityLead = regexp.MustCompile(`\b\d{1,3}\s*(?:X|×|\*|PCS?\.?|NOS?\.?|UNITS?)\s+(?:OF\s+)?` + fillerWords + tokenExpr)

	// ratingOnly rejects tokens that are just a rating ("10KW", "450WP").
	ratingOnly = regexp.MustCompile(`^\d+(?:[.,]\d+)?(?:KWH|KW|WP|W|KVA|VA|V|A|AH|MM|KG)$`)
)

func unitType(unit string) catalog.ProductType {
	switch unit {
	case "W", "WP":
		return catalog.Panel
	case "KWH":
		return catalog.Battery
	case "KW":
		return catalog.Inverter
	}
	return ""
}

// genericPatterns holds the keyword-driven expressions, which depend on the
// configured type keywords.
type genericPatterns struct {
	keywordLead *regexp.Regexp // "INVERTER MODEL: XG-9999"
	keyword     *regexp.Regexp // any type keyword
	types       map[string]catalog.ProductType
}

func compileGeneric(keywords map[catalog.ProductType][]string) genericPatterns {
	gp := genericPatterns{types: make(map[string]catalog.ProductType)}
	var words []string
	for _, t := range catalog.Types {
		for _, w := range keywords[t] {
			w = strings.ToUpper(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			if _, dup := gp.types[w]; !dup {
				gp.types[w] = t
				words = append(words, regexp.QuoteMeta(w))
			}
		}
	}
	if len(words) == 0 {
		return gp
	}
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	alt := strings.Join(words, "|")

	gp.keywordLead = regexp.MustCompile(`\b(?P<kw>` + alt + `)S?` +
		`(?:\s+(?:MODEL|TYPE|PART)(?:\s*(?:NO\.?|NUMBER|#))?)?` +
		`(?:\s*[:\-]\s*|\s+)` + tokenExpr)
	gp.keyword = regexp.MustCompile(`\b(` + alt + `)S?\b`)
	return gp
}

// nearestType returns the type of the keyword closest to [start,end)
// within radius bytes, or "" when there is none.
func (gp genericPatterns) nearestType(text string, start, end, radius int) catalog.ProductType {
	if gp.keyword == nil {
		return ""
	}
	lo := max(0, start-radius)
	hi := min(len(text), end+radius)
	best, bestDist := catalog.ProductType(""), -1
	for _, m := range gp.keyword.FindAllStringSubmatchIndex(text[lo:hi], -1) {
		ks, ke := lo+m[0], lo+m[1]
		var dist int
		switch {
		case ke <= start:
			dist = start - ke
		case ks >= end:
			dist = ks - end
		default:
			continue
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = gp.types[text[lo+m[2]:lo+m[3]]], dist
		}
	}
	return best
}

type genericHit struct {
	start, end int
	lead       int
	token      string
	typ        catalog.ProductType
}

// genericPass catches model-shaped tokens introduced by a rating, a type
// keyword or a quantity marker, whether or not the catalog knows them.
// A token is reported once; a rating decides its type before a keyword.
func (g *Generator) genericPass(text string, claimed claims) []Candidate {
	hits := make(map[int]genericHit)
	record := func(h genericHit) {
		if h.typ == "" || !normalize.LooksLikeModel(h.token) || ratingOnly.MatchString(h.token) {
			return
		}
		if _, seen := hits[h.start]; seen {
			return
		}
		hits[h.start] = h
	}

	tokenAt := func(re *regexp.Regexp, m []int) (int, int) {
		i := re.SubexpIndex("token")
		return m[2*i], m[2*i+1]
	}

	for _, m := range unitLead.FindAllStringSubmatchIndex(text, -1) {
		s, e := tokenAt(unitLead, m)
		u := unitLead.SubexpIndex("unit")
		record(genericHit{start: s, end: e, lead: -1, token: text[s:e], typ: unitType(text[m[2*u]:m[2*u+1]])})
	}
	if re := g.generic.keywordLead; re != nil {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			s, e := tokenAt(re, m)
			k := re.SubexpIndex("kw")
			record(genericHit{start: s, end: e, lead: -1, token: text[s:e], typ: g.generic.types[text[m[2*k]:m[2*k+1]]]})
		}
	}
	for _, m := range quantityLead.FindAllStringSubmatchIndex(text, -1) {
		s, e := tokenAt(quantityLead, m)
		typ := g.generic.nearestType(text, s, e, g.opts.KeywordRadius)
		record(genericHit{start: s, end: e, lead: m[0], token: text[s:e], typ: typ})
	}

	starts := make([]int, 0, len(hits))
	for s := range hits {
		starts = append(starts, s)
	}
	sort.Ints(starts)

	var out []Candidate
	for _, s := range starts {
		h := hits[s]
		if claimed.overlaps(h.start, h.end) {
			continue
		}
		out = append(out, g.newCandidate(text, PassGeneric, h.token, h.start, h.end, h.lead, h.token, h.typ, g.opts.GenericBase))
	}
	return out
}
