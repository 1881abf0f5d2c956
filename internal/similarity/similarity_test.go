package similarity

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidfinder/internal/phash"
	"vidfinder/internal/video"
)

func fp(t *testing.T, words ...uint64) phash.Fingerprint {
	t.Helper()
	frames := make([]string, len(words))
	for i, w := range words {
		frames[i] = fmt.Sprintf("%016x", w)
	}
	f, err := phash.ParseHex(8, frames)
	require.NoError(t, err)
	return f
}

func item(t *testing.T, path string, size int64, words ...uint64) Item {
	return Item{File: video.File{Path: path, Size: size}, Fingerprint: fp(t, words...)}
}

// flip sets the lowest n bits of w.
func flip(w uint64, from, n int) uint64 {
	for i := from; i < from+n; i++ {
		w ^= 1 << uint(i)
	}
	return w
}

func paths(files []video.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestIdenticalPairGroupsTogether(t *testing.T) {
	items := []Item{
		item(t, "/v/b.mp4", 100, 0xdeadbeef),
		item(t, "/v/a.mp4", 100, 0xdeadbeef),
		item(t, "/v/other.mp4", 100, ^uint64(0xdeadbeef)),
	}
	groups := FindGroups(items, Options{Threshold: 90, TotalBits: 64})
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"/v/a.mp4", "/v/b.mp4"}, paths(groups[0].Members))
	assert.Equal(t, "/v/a.mp4", groups[0].Representative.Path, "equal size falls back to smallest path")
	assert.InDelta(t, 100.0, groups[0].AvgSimilarity, 1e-9)
	assert.Equal(t, 1, groups[0].Edges)
	assert.Equal(t, []string{"/v/b.mp4"}, paths(groups[0].Duplicates()))
}

func TestRepresentativePrefersLargestFile(t *testing.T) {
	items := []Item{
		item(t, "/v/a.mp4", 10, 1),
		item(t, "/v/b.mp4", 30, 1),
		item(t, "/v/c.mp4", 30, 1),
	}
	groups := FindGroups(items, Options{Threshold: 90, TotalBits: 64})
	require.Len(t, groups, 1)
	assert.Equal(t, "/v/b.mp4", groups[0].Representative.Path)
}

func TestGroupsAreTransitive(t *testing.T) {
	a := uint64(0)
	b := flip(a, 0, 6)
	c := flip(b, 10, 6)
	items := []Item{
		item(t, "/v/a.mp4", 1, a),
		item(t, "/v/b.mp4", 1, b),
		item(t, "/v/c.mp4", 1, c),
	}
	opts := Options{Threshold: 90, TotalBits: 64}
	require.Equal(t, 6, opts.MaxDistance())

	groups := FindGroups(items, opts)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members, 3)
	assert.Equal(t, 2, groups[0].Edges, "a and c are linked only through b")
	assert.InDelta(t, phash.Similarity(6, 64), groups[0].MinSimilarity, 1e-9)
}

func TestSingletonsAreDropped(t *testing.T) {
	items := []Item{
		item(t, "/v/a.mp4", 1, 0),
		item(t, "/v/b.mp4", 1, ^uint64(0)),
	}
	assert.Empty(t, FindGroups(items, Options{Threshold: 90, TotalBits: 64}))
	assert.Empty(t, FindGroups(nil, Options{Threshold: 90, TotalBits: 64}))
}

func TestMismatchedLengthsNeverGroup(t *testing.T) {
	items := []Item{
		item(t, "/v/full.mp4", 1, 0, 0),
		item(t, "/v/short.mp4", 1, 0),
	}
	assert.Empty(t, FindGroups(items, Options{Threshold: 0, TotalBits: 128}))
}

func TestGroupOrdering(t *testing.T) {
	items := []Item{
		item(t, "/v/loose1.mp4", 1, 0),
		item(t, "/v/loose2.mp4", 1, flip(0, 0, 5)),
		item(t, "/v/tight1.mp4", 1, ^uint64(0)),
		item(t, "/v/tight2.mp4", 1, ^uint64(0)),
	}
	groups := FindGroups(items, Options{Threshold: 90, TotalBits: 64})
	require.Len(t, groups, 2)
	assert.Equal(t, "/v/tight1.mp4", groups[0].Representative.Path)
	assert.Equal(t, "/v/loose1.mp4", groups[1].Representative.Path)
	assert.Greater(t, groups[0].AvgSimilarity, groups[1].AvgSimilarity)
}

func randomLibrary(t *testing.T, seed uint64) []Item {
	rng := rand.New(rand.NewPCG(seed, seed))
	var items []Item
	for cluster := range 6 {
		base := rng.Uint64()
		for member := range 4 {
			w := base
			for range rng.IntN(10) {
				w ^= 1 << uint(rng.IntN(64))
			}
			items = append(items, item(t, fmt.Sprintf("/v/c%d-m%d.mp4", cluster, member), int64(rng.IntN(1000)), w))
		}
	}
	return items
}

func TestOrderIndependence(t *testing.T) {
	items := randomLibrary(t, 7)
	opts := Options{Threshold: 90, TotalBits: 64}
	want := FindGroups(items, opts)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 5 {
		shuffled := append([]Item(nil), items...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, FindGroups(shuffled, opts))
	}
}

func TestThresholdMonotonicity(t *testing.T) {
	for seed := range uint64(5) {
		items := randomLibrary(t, seed)
		loose := FindGroups(items, Options{Threshold: 85, TotalBits: 64})
		strict := FindGroups(items, Options{Threshold: 95, TotalBits: 64})

		owner := map[string]int{}
		for i, g := range loose {
			for _, m := range g.Members {
				owner[m.Path] = i
			}
		}
		for _, g := range strict {
			first, ok := owner[g.Members[0].Path]
			require.True(t, ok, "strict member %s ungrouped at looser threshold", g.Members[0].Path)
			for _, m := range g.Members[1:] {
				got, ok := owner[m.Path]
				require.True(t, ok)
				assert.Equal(t, first, got, "strict group split across loose groups")
			}
		}
	}
}
