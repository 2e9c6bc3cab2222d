// Package report turns a resolution into an explainable, JSON-ready report.
package report

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/partscan/pkg/partscan"
	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/evidence"
	"github.com/cognicore/partscan/pkg/partscan/match"
)

// Builder constructs resolution reports
type Builder struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy

	// Now stamps reports; defaults to time.Now.
	Now func() time.Time
}

// New creates a new report builder
func New() *Builder {
	return &Builder{
		entropy: ulid.Monotonic(rand.Reader, 0),
		Now:     time.Now,
	}
}

// Report is the outcome of one resolution
type Report struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	CatalogSize int       `json:"catalog_size"`
	Matches     []Match   `json:"matches"`
	Unmatched   []Mention `json:"unmatched"`
	Stats       Stats     `json:"stats"`
}

// Match is a detection resolved to a catalog product
type Match struct {
	Text           string              `json:"text"`
	Offset         int                 `json:"offset"`
	Type           catalog.ProductType `json:"type"`
	ProductID      string              `json:"product_id"`
	Brand          string              `json:"brand"`
	Model          string              `json:"model"`
	Confidence     float64             `json:"confidence"`
	MatchType      match.Type          `json:"match_type"`
	BrandMatch     bool                `json:"brand_match"`
	SpecMatch      bool                `json:"spec_match"`
	DetectionScore float64             `json:"detection_score"`
	Evidence       []evidence.Signal   `json:"evidence,omitempty"`
}

// Mention is an accepted detection no catalog product matched
type Mention struct {
	Text     string              `json:"text"`
	Offset   int                 `json:"offset"`
	Type     catalog.ProductType `json:"type"`
	Score    float64             `json:"score"`
	Evidence []evidence.Signal   `json:"evidence,omitempty"`
}

// Stats counts what each stage kept
type Stats struct {
	Candidates int            `json:"candidates"`
	ByPass     map[string]int `json:"by_pass"`
	Detections int            `json:"detections"`
	Matched    int            `json:"matched"`
}

// Build creates a report from an analysis
func (b *Builder) Build(a *partscan.Analysis) Report {
	now := b.Now().UTC()

	b.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(now), b.entropy).String()
	b.mu.Unlock()

	r := Report{
		ID:          id,
		GeneratedAt: now,
		CatalogSize: a.CatalogSize,
		Matches:     make([]Match, 0, len(a.Results)),
		Unmatched:   []Mention{},
		Stats: Stats{
			Candidates: len(a.Candidates),
			ByPass:     make(map[string]int),
			Detections: len(a.Detections),
			Matched:    len(a.Results),
		},
	}
	for _, c := range a.Candidates {
		r.Stats.ByPass[string(c.Pass)]++
	}

	matched := make(map[string]bool, len(a.Results))
	for _, res := range a.Results {
		d := res.Detection
		matched[d.ID] = true
		r.Matches = append(r.Matches, Match{
			Text:           d.Text,
			Offset:         d.Offset,
			Type:           d.Type,
			ProductID:      res.Product.ID,
			Brand:          res.Product.Brand,
			Model:          res.Product.Model,
			Confidence:     res.Confidence,
			MatchType:      res.MatchType,
			BrandMatch:     res.BrandMatch,
			SpecMatch:      res.SpecMatch,
			DetectionScore: d.Score,
			Evidence:       d.Evidence,
		})
	}

	for _, d := range a.Detections {
		if matched[d.ID] {
			continue
		}
		r.Unmatched = append(r.Unmatched, Mention{
			Text:     d.Text,
			Offset:   d.Offset,
			Type:     d.Type,
			Score:    d.Score,
			Evidence: d.Evidence,
		})
	}
	return r
}
