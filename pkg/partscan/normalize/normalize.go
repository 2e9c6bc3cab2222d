// Package normalize cleans OCR and PDF-extraction artifacts out of quote text.
//
// The output is uppercase and stable: Text(Text(x)) == Text(x). Letter/digit
// confusion repair (O↔0, I/L↔1, S↔5, B↔8, G↔6, Z↔2) is only applied inside
// words that already look like model numbers, so ordinary prose is never
// rewritten.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)
	newlinePadding  = regexp.MustCompile(` ?\n ?`)
	wordPattern     = regexp.MustCompile(`\S+`)
)

func mapRune(r rune) rune {
	switch r {
	case '\u2010', '\u2011', '\u2012', '\u2013', '\u2014', '\u2015',
		'\u2043', '\u2212', '\uFE58', '\uFE63', '\uFF0D', '\u00AD':
		return '-'
	case '\r':
		return -1
	case '\n', '\t':
		return r
	case '\f', '\v':
		return ' '
	}
	if unicode.IsControl(r) {
		return -1
	}
	return r
}

// Text normalizes raw extracted text. Offsets reported by the rest of the
// pipeline refer to the string returned here.
func Text(raw string) string {
	// NFKC folds full-width digits, NBSP and ligatures. Control runes go
	// before it so the runes around them compose, and uppercasing is
	// followed by a second NFKC ("ı" + U+0307 becomes "İ" only once upper).
	// The chain keeps per-call state so it is built fresh each time.
	clean := transform.Chain(
		runes.Map(mapRune),
		norm.NFKC,
		runes.Map(unicode.ToUpper),
		norm.NFKC,
		runes.Map(mapRune),
	)
	s, _, err := transform.String(clean, raw)
	if err != nil {
		s = strings.ToUpper(strings.Map(mapRune, raw))
	}

	s = horizontalSpace.ReplaceAllString(s, " ")
	s = newlinePadding.ReplaceAllString(s, "\n")
	if joined := rejoinHyphenBreaks(s); joined != s {
		// Joined runes may compose (Hangul jamo).
		s = norm.NFKC.String(joined)
	}
	s = strings.TrimSpace(s)

	return wordPattern.ReplaceAllStringFunc(s, func(w string) string {
		if !LooksLikeModel(w) {
			return w
		}
		return CorrectToken(w)
	})
}

// rejoinHyphenBreaks turns "WORD-\nWORD" into "WORDWORD". It scans runes
// rather than using a regexp so chained breaks ("A-\nB-\nC") join in a
// single pass.
func rejoinHyphenBreaks(s string) string {
	if !strings.Contains(s, "-\n") {
		return s
	}
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		if r == '-' && i+2 < len(rs) && rs[i+1] == '\n' && isAlnum(prev) && isAlnum(rs[i+2]) {
			i++ // drop the newline too
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// LooksLikeModel reports whether a whitespace-delimited word has the shape of
// a model number: it mixes letters and digits and carries at least four
// alphanumerics.
func LooksLikeModel(word string) bool {
	letters, digits := 0, 0
	for _, r := range word {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		}
	}
	return letters > 0 && digits > 0 && letters+digits >= 4
}

// Compact strips everything except letters and digits and uppercases the
// rest. It is the separator-insensitive form used for alias and fuzzy
// comparisons.
func Compact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isAlnum(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
