package catalog

import (
	"regexp"
	"strings"

	"github.com/cognicore/partscan/pkg/partscan/internalerr"
)

// convention builds a PatternBuilder from a model-naming grammar. The grammar
// must match the whole normalized model; emit receives its submatches and
// returns the pattern body.
func convention(grammar *regexp.Regexp, emit func(m []string) string) PatternBuilder {
	return func(p Product) (string, error) {
		m := grammar.FindStringSubmatch(p.NormModel)
		if m == nil {
			return "", internalerr.ErrConventionMismatch
		}
		return emit(m), nil
	}
}

// optional wraps an escaped segment so it may be absent, e.g. a trailing
// frame or backsheet code that quotes often omit.
func optional(seg string) string {
	if seg == "" {
		return ""
	}
	return `(?:` + sep + regexp.QuoteMeta(seg) + `)?`
}

// decimal matches "5.0", "5,0" and "50"; a ".0" tail may be dropped.
func decimal(whole, frac string) string {
	w := regexp.QuoteMeta(whole)
	switch frac {
	case "":
		return w
	case "0":
		return w + `(?:[.,]?0)?`
	default:
		return w + `[.,]?` + regexp.QuoteMeta(frac)
	}
}

var (
	// EG-440NT54-HL/BF-DG: wattage, cell technology, cell count, series,
	// then backsheet and frame codes.
	egingGrammar = regexp.MustCompile(`^EG-?(\d{3})([A-Z]{1,2})(\d{2,3})-?([A-Z]{1,3})(?:/([A-Z]{1,3}))?(?:-([A-Z]{1,3}))?$`)

	// JKM440N-54HL4-V: wattage, cell type, cell count + series, variant.
	jinkoGrammar = regexp.MustCompile(`^JKM(\d{3,4})([MN]?)(?:-?(\d{2})([A-Z0-9]*?))?(?:-([A-Z0-9]+))?$`)

	// TSM-440NEG9R.28 / TSM-390DE09.08: wattage, series, revision.
	trinaGrammar = regexp.MustCompile(`^TSM-?(\d{3})([A-Z][A-Z0-9]*?)(?:[.,](\d{2}))?$`)

	// POWERWALL 2, POWERWALL+.
	teslaGrammar = regexp.MustCompile(`^POWER ?WALL ?(\d|\+|PLUS)?$`)

	// HVM 11.0, BATTERY-BOX PREMIUM HVS 10.2.
	bydGrammar = regexp.MustCompile(`^(?:BATTERY-?BOX (?:PREMIUM )?)?(HVM|HVS|LVS|LVL) ?(\d{1,2})(?:[.,](\d))?$`)

	// SG5.0RS, SG10RT.
	sungrowGrammar = regexp.MustCompile(`^SG(\d{1,2})(?:[.,](\d))?-?(RS|RT|CX|K-?D)?$`)

	// PRIMO 5.0-1, SYMO 10.0-3-M.
	froniusGrammar = regexp.MustCompile(`^(PRIMO|SYMO) ?(\d{1,2})(?:[.,](\d))?-(\d)(?:-([A-Z]))?$`)

	// GW5000-EH, GW10K-ET.
	goodweGrammar = regexp.MustCompile(`^GW(\d{1,2}K|\d{4,5})-?([A-Z]{2,3}\d*)$`)
)

func registerBuiltins(r *Registry) {
	r.Register("EGING", convention(egingGrammar, func(m []string) string {
		return flex("EG", m[1]+m[2]+m[3], m[4]) + optional(m[5]) + optional(m[6])
	}))

	r.Register("JINKO", convention(jinkoGrammar, func(m []string) string {
		body := "JKM" + m[1] + m[2]
		if m[3] != "" {
			body = flex(body, m[3]+regexp.QuoteMeta(m[4]))
		}
		return body + optional(m[5])
	}))

	r.Register("TRINA", convention(trinaGrammar, func(m []string) string {
		body := flex("TSM", m[1]+regexp.QuoteMeta(m[2]))
		if m[3] != "" {
			body += `(?:[.,]?` + m[3] + `)?`
		}
		return body
	}))

	r.Register("TESLA", convention(teslaGrammar, func(m []string) string {
		body := `POWER\s?WALL`
		switch m[1] {
		case "":
		case "+", "PLUS":
			body += `\s?(?:\+|PLUS)`
		default:
			body += `\s?` + m[1]
		}
		return body
	}))

	r.Register("BYD", convention(bydGrammar, func(m []string) string {
		return `(?:BATTERY-?BOX\s(?:PREMIUM\s)?)?` + flex(m[1], decimal(m[2], m[3])) + `(?:\s?KWH)?`
	}))

	r.Register("SUNGROW", convention(sungrowGrammar, func(m []string) string {
		body := "SG" + decimal(m[1], m[2])
		if m[3] != "" {
			body = flex(body, strings.ReplaceAll(m[3], "-", sep))
		}
		return body
	}))

	r.Register("FRONIUS", convention(froniusGrammar, func(m []string) string {
		body := m[1] + `\s?` + decimal(m[2], m[3]) + `[-\s]?` + m[4]
		return body + optional(m[5])
	}))

	r.Register("GOODWE", convention(goodweGrammar, func(m []string) string {
		return flex("GW"+m[1], m[2])
	}))
}
