// Package selector collapses overlapping candidates into accepted
// detections.
package selector

import (
	"sort"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/detect"
)

// Detection is a candidate that survived deduplication and the acceptance
// threshold.
type Detection struct {
	detect.Candidate
}

// Options configures Select.
type Options struct {
	Window          int     // grouping window in bytes
	AcceptThreshold float64 // minimum score of a detection
}

// DefaultOptions returns the 50 byte window and the 0.65 threshold.
func DefaultOptions() Options {
	return Options{Window: 50, AcceptThreshold: 0.65}
}

// better orders candidates: higher score, then earlier offset, then lower ID.
func better(a, b *detect.Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Offset != b.Offset {
		return a.Offset < b.Offset
	}
	return a.ID < b.ID
}

type groupKey struct {
	typ    catalog.ProductType
	bucket int
}

// Select groups candidates by type and offset window, keeps the best of
// each group, merges same-type winners that still sit less than one window
// apart (a mention straddling a window boundary), drops everything below
// the threshold and sorts by score, offset and ID.
func Select(cands []detect.Candidate, opts Options) []Detection {
	window := opts.Window
	if window <= 0 {
		window = 1
	}

	best := make(map[groupKey]int)
	for i := range cands {
		k := groupKey{typ: cands[i].Type, bucket: cands[i].Offset / window}
		if j, ok := best[k]; !ok || better(&cands[i], &cands[j]) {
			best[k] = i
		}
	}

	winners := make([]*detect.Candidate, 0, len(best))
	for _, i := range best {
		winners = append(winners, &cands[i])
	}
	sort.Slice(winners, func(i, j int) bool {
		a, b := winners[i], winners[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return a.ID < b.ID
	})

	var merged []*detect.Candidate
	for _, w := range winners {
		if n := len(merged); n > 0 {
			last := merged[n-1]
			if last.Type == w.Type && w.Offset-last.Offset < window {
				if better(w, last) {
					merged[n-1] = w
				}
				continue
			}
		}
		merged = append(merged, w)
	}

	out := make([]Detection, 0, len(merged))
	for _, c := range merged {
		if c.Score < opts.AcceptThreshold {
			continue
		}
		out = append(out, Detection{Candidate: *c})
	}
	sort.Slice(out, func(i, j int) bool {
		return better(&out[i].Candidate, &out[j].Candidate)
	})
	return out
}
