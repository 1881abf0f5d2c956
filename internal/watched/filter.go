package watched

import (
	"cmp"
	"slices"

	"vidfinder/internal/phash"
	"vidfinder/internal/similarity"
	"vidfinder/internal/video"
)

// Match is a scanned video removed because it resembles a watched record.
type Match struct {
	File       video.File `json:"file" yaml:"file"`
	Watched    string     `json:"watched" yaml:"watched"`
	Similarity float64    `json:"similarity" yaml:"similarity"`
}

// Filter removes items similar to any watched record.
type Filter struct {
	records []Record
	maxDist int
}

// NewFilter uses the same threshold and bit budget as grouping.
func NewFilter(records []Record, threshold float64, totalBits int) *Filter {
	return &Filter{records: records, maxDist: phash.MaxDistance(threshold, totalBits)}
}

// Len returns the number of records consulted.
func (f *Filter) Len() int { return len(f.records) }

// Lookup returns the closest record similar to fp.
func (f *Filter) Lookup(fp phash.Fingerprint) (Record, int, bool) {
	var (
		best     Record
		bestDist = -1
	)
	for _, r := range f.records {
		dist, ok := phash.Similar(fp, r.Fingerprint, f.maxDist)
		if !ok {
			continue
		}
		if bestDist < 0 || dist < bestDist || (dist == bestDist && r.Path < best.Path) {
			best, bestDist = r, dist
		}
	}
	return best, bestDist, bestDist >= 0
}

// Apply splits items into those that survive and those matching a record.
// Both outputs are sorted by path.
func (f *Filter) Apply(items []similarity.Item) ([]similarity.Item, []Match) {
	kept := make([]similarity.Item, 0, len(items))
	var matches []Match
	for _, it := range items {
		rec, dist, ok := f.Lookup(it.Fingerprint)
		if !ok {
			kept = append(kept, it)
			continue
		}
		matches = append(matches, Match{
			File:       it.File,
			Watched:    rec.Path,
			Similarity: phash.Similarity(dist, it.Fingerprint.Bits()),
		})
	}
	slices.SortFunc(kept, func(a, b similarity.Item) int { return cmp.Compare(a.File.Path, b.File.Path) })
	slices.SortFunc(matches, func(a, b Match) int { return cmp.Compare(a.File.Path, b.File.Path) })
	return kept, matches
}
