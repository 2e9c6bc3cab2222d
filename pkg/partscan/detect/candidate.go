// Package detect scans normalized quote text for equipment mentions.
//
// Three passes run in order: catalog patterns, catalog aliases, then
// brand-agnostic structural patterns. A later pass never reports a span an
// earlier pass already claimed.
package detect

import (
	"fmt"
	"unicode/utf8"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/evidence"
)

// Pass identifies the scan that produced a candidate.
type Pass string

const (
	PassRegex   Pass = "regex"
	PassAlias   Pass = "alias"
	PassGeneric Pass = "generic"
)

// Candidate is a provisional equipment mention.
type Candidate struct {
	ID        string              `json:"id"`
	Pass      Pass                `json:"pass"`
	ProductID string              `json:"product_id,omitempty"` // product whose matcher fired (regex/alias passes)
	RawText   string              `json:"raw_text"`             // matched span
	Text      string              `json:"text"`                 // model token compared against the catalog
	Type      catalog.ProductType `json:"type"`
	Offset    int                 `json:"offset"`
	End       int                 `json:"end"`
	Lead      int                 `json:"lead"` // start of a quantity prefix, or Offset

	Context      string `json:"-"`
	ContextStart int    `json:"-"`

	Score    float64           `json:"score"`
	Evidence []evidence.Signal `json:"evidence,omitempty"`
}

// Mention returns the view of c the evidence scorer works on.
func (c *Candidate) Mention() evidence.Mention {
	return evidence.Mention{
		Type:         c.Type,
		Span:         c.RawText,
		Offset:       c.Offset,
		Lead:         c.Lead,
		Context:      c.Context,
		ContextStart: c.ContextStart,
	}
}

// candidateID is zero-padded so lexical order follows offset order.
func candidateID(p Pass, offset int, key string) string {
	return fmt.Sprintf("%s:%07d:%s", p, offset, key)
}

// contextWindow cuts radius bytes either side of [start,end), widened to
// rune boundaries.
func contextWindow(text string, start, end, radius int) (string, int) {
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return text[lo:hi], lo
}
