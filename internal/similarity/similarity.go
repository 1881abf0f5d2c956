// Package similarity clusters fingerprinted videos into groups of near
// duplicates.
//
// Every pair is compared once. Pairs within the distance budget form edges of
// an undirected graph and groups are its connected components, so similarity
// is transitive: A~B and B~C put A, B and C in one group even when A and C
// alone would not match.
package similarity

import (
	"cmp"
	"log/slog"
	"math"
	"slices"
	"strings"

	"vidfinder/internal/logging"
	"vidfinder/internal/phash"
	"vidfinder/internal/video"
)

// Item is a video with its fingerprint.
type Item struct {
	File        video.File
	Fingerprint phash.Fingerprint
}

// Group is one connected component with at least two members.
type Group struct {
	Representative video.File   `json:"representative" yaml:"representative"`
	Members        []video.File `json:"members" yaml:"members"`
	// Edge statistics in percent over the pairs that linked the group.
	AvgSimilarity float64 `json:"avg_similarity" yaml:"avg_similarity"`
	MinSimilarity float64 `json:"min_similarity" yaml:"min_similarity"`
	MaxSimilarity float64 `json:"max_similarity" yaml:"max_similarity"`
	Edges         int     `json:"edges" yaml:"edges"`
}

// Duplicates returns the members other than the representative.
func (g Group) Duplicates() []video.File {
	out := make([]video.File, 0, len(g.Members)-1)
	for _, m := range g.Members {
		if m.Path != g.Representative.Path {
			out = append(out, m)
		}
	}
	return out
}

// Options configures grouping.
type Options struct {
	// Threshold is the similarity percentage two fingerprints must reach.
	Threshold float64
	// TotalBits is the configured fingerprint length used for the distance budget.
	TotalBits int
	Logger    *slog.Logger
}

// MaxDistance returns the Hamming budget for opts.
func (o Options) MaxDistance() int {
	return phash.MaxDistance(o.Threshold, o.TotalBits)
}

type edge struct {
	a, b       int
	similarity float64
}

// FindGroups clusters items. The result depends only on the set of items, not
// their order.
func FindGroups(items []Item, opts Options) []Group {
	logger := logging.NewComponentLogger(opts.Logger, "similarity")
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b Item) int { return strings.Compare(a.File.Path, b.File.Path) })

	maxDist := opts.MaxDistance()
	uf := newUnionFind(len(sorted))
	var edges []edge
	skipped := 0
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			dist, ok := phash.Distance(sorted[i].Fingerprint, sorted[j].Fingerprint)
			if !ok {
				skipped++
				continue
			}
			if dist > maxDist {
				continue
			}
			uf.union(i, j)
			edges = append(edges, edge{a: i, b: j, similarity: phash.Similarity(dist, sorted[i].Fingerprint.Bits())})
		}
	}
	logger.Debug("pairwise comparison complete",
		logging.Int("items", len(sorted)),
		logging.Int("edges", len(edges)),
		logging.Int("incomparable_pairs", skipped),
		logging.Int("max_distance", maxDist),
	)

	components := make(map[int][]int)
	for i := range sorted {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}
	edgesByRoot := make(map[int][]edge)
	for _, e := range edges {
		root := uf.find(e.a)
		edgesByRoot[root] = append(edgesByRoot[root], e)
	}

	groups := make([]Group, 0, len(components))
	for root, idxs := range components {
		if len(idxs) < 2 {
			continue
		}
		g := Group{Members: make([]video.File, 0, len(idxs))}
		for _, i := range idxs {
			g.Members = append(g.Members, sorted[i].File)
		}
		slices.SortFunc(g.Members, func(a, b video.File) int { return strings.Compare(a.Path, b.Path) })
		g.Representative = pickRepresentative(g.Members)
		g.Edges, g.AvgSimilarity, g.MinSimilarity, g.MaxSimilarity = edgeStats(edgesByRoot[root])
		groups = append(groups, g)
	}

	slices.SortFunc(groups, func(a, b Group) int {
		if c := cmp.Compare(b.AvgSimilarity, a.AvgSimilarity); c != 0 {
			return c
		}
		return strings.Compare(a.Representative.Path, b.Representative.Path)
	})
	return groups
}

// pickRepresentative prefers the largest file, then the smallest path.
func pickRepresentative(members []video.File) video.File {
	best := members[0]
	for _, m := range members[1:] {
		if m.Size > best.Size || (m.Size == best.Size && m.Path < best.Path) {
			best = m
		}
	}
	return best
}

func edgeStats(edges []edge) (n int, avg, lo, hi float64) {
	if len(edges) == 0 {
		return 0, 0, 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	sum := 0.0
	for _, e := range edges {
		sum += e.similarity
		lo = min(lo, e.similarity)
		hi = max(hi, e.similarity)
	}
	return len(edges), sum / float64(len(edges)), lo, hi
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
