package normalize

import "unicode"

// Confusion is a letter/digit pair OCR engines commonly swap.
type Confusion struct {
	Letter rune
	Digit  rune
}

// Confusions lists the pairs repaired inside model-shaped words. L and I
// both read as 1; the digit side repairs back to I.
var Confusions = []Confusion{
	{Letter: 'O', Digit: '0'},
	{Letter: 'I', Digit: '1'},
	{Letter: 'L', Digit: '1'},
	{Letter: 'S', Digit: '5'},
	{Letter: 'B', Digit: '8'},
	{Letter: 'G', Digit: '6'},
	{Letter: 'Z', Digit: '2'},
}

var (
	letterToDigit = map[rune]rune{}
	digitToLetter = map[rune]rune{}
)

func init() {
	for _, c := range Confusions {
		letterToDigit[c.Letter] = c.Digit
		if _, ok := digitToLetter[c.Digit]; !ok {
			digitToLetter[c.Digit] = c.Letter
		}
	}
}

// CorrectToken repairs letter/digit confusions inside one word. A confusable
// character is flipped only when both of its neighbours inside the same
// alphanumeric run belong to the other class ("44O5" → "4405",
// "E6X" stays, "A0B" → "AOB"). The rewrite runs to a fixed point; a flipped
// character always agrees with both neighbours, so it can never flip back
// and the result is stable under repeated application.
func CorrectToken(word string) string {
	rs := []rune(word)
	changed := false
	for {
		pass := false
		for i := 1; i+1 < len(rs); i++ {
			prev, cur, next := rs[i-1], rs[i], rs[i+1]
			if !isAlnum(prev) || !isAlnum(next) {
				continue
			}
			switch {
			case unicode.IsDigit(prev) && unicode.IsDigit(next):
				if d, ok := letterToDigit[cur]; ok {
					rs[i] = d
					pass = true
				}
			case unicode.IsLetter(prev) && unicode.IsLetter(next):
				if l, ok := digitToLetter[cur]; ok {
					rs[i] = l
					pass = true
				}
			}
		}
		if !pass {
			break
		}
		changed = true
	}
	if !changed {
		return word
	}
	return string(rs)
}
