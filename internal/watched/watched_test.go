package watched

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidfinder/internal/failures"
	"vidfinder/internal/phash"
	"vidfinder/internal/similarity"
	"vidfinder/internal/video"
)

var testParams = Params{Frames: 2, HashSize: 8}

func fp(t *testing.T, a, b uint64) phash.Fingerprint {
	t.Helper()
	f, err := phash.ParseHex(8, []string{fmt.Sprintf("%016x", a), fmt.Sprintf("%016x", b)})
	require.NoError(t, err)
	return f
}

func file(path string, size int64, mtime int64) video.File {
	return video.File{Path: path, Size: size, ModTime: time.Unix(0, mtime), Duration: 95 * time.Second}
}

func openWritable(t *testing.T, path string) *DB {
	t.Helper()
	db, err := OpenWritable(t.Context(), path, testParams, nil)
	require.NoError(t, err)
	return db
}

func TestBuildThenReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched_videos.db")
	db := openWritable(t, path)
	res, err := db.Upsert(t.Context(), []Entry{
		{File: file("/w/b.mp4", 10, 1), Fingerprint: fp(t, 1, 2)},
		{File: file("/w/a.mp4", 20, 2), Fingerprint: fp(t, 3, 4)},
	})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Inserted: 2}, res)
	require.NoError(t, db.Close())

	ro, err := OpenReadOnly(t.Context(), path, nil)
	require.NoError(t, err)
	defer ro.Close()
	assert.Equal(t, testParams, ro.Params())

	records, err := ro.Records(t.Context())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "/w/a.mp4", records[0].Path)
	assert.Equal(t, 95*time.Second, records[0].Duration)
	assert.Equal(t, 2, records[0].Frames)
	assert.True(t, records[0].Fingerprint.Equal(fp(t, 3, 4)))

	count, err := ro.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = ro.Upsert(t.Context(), nil)
	assert.Error(t, err, "read-only handle must refuse writes")
}

func TestRecordsToleratesBadUpdatedAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched_videos.db")
	db := openWritable(t, path)
	_, err := db.Upsert(t.Context(), []Entry{{File: file("/w/a.mp4", 10, 1), Fingerprint: fp(t, 1, 2)}})
	require.NoError(t, err)
	_, err = db.db.ExecContext(t.Context(), "UPDATE watched_videos SET updated_at = 'yesterday'")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ro, err := OpenReadOnly(t.Context(), path, logger)
	require.NoError(t, err)
	defer ro.Close()

	records, err := ro.Records(t.Context())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].UpdatedAt.IsZero())
	assert.Contains(t, logs.String(), "unparsable updated_at")
	assert.Contains(t, logs.String(), "yesterday")
}

func TestUpsertOverwritesOnlyChangedFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.db")
	db := openWritable(t, path)
	defer db.Close()

	_, err := db.Upsert(t.Context(), []Entry{{File: file("/w/a.mp4", 10, 1), Fingerprint: fp(t, 1, 1)}})
	require.NoError(t, err)

	res, err := db.Upsert(t.Context(), []Entry{{File: file("/w/a.mp4", 10, 1), Fingerprint: fp(t, 9, 9)}})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Unchanged: 1}, res)

	records, err := db.Records(t.Context())
	require.NoError(t, err)
	assert.True(t, records[0].Fingerprint.Equal(fp(t, 1, 1)), "unchanged file keeps its record")

	res, err = db.Upsert(t.Context(), []Entry{{File: file("/w/a.mp4", 10, 2), Fingerprint: fp(t, 9, 9)}})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Updated: 1}, res)
	records, err = db.Records(t.Context())
	require.NoError(t, err)
	assert.True(t, records[0].Fingerprint.Equal(fp(t, 9, 9)))
}

func TestOpenReadOnlyMissing(t *testing.T) {
	_, err := OpenReadOnly(t.Context(), filepath.Join(t.TempDir(), "none.db"), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParameterMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.db")
	db := openWritable(t, path)
	_, err := db.Upsert(t.Context(), []Entry{{File: file("/w/a.mp4", 1, 1), Fingerprint: fp(t, 1, 1)}})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = OpenWritable(t.Context(), path, Params{Frames: 20, HashSize: 8}, nil)
	assert.True(t, errors.Is(err, failures.ErrParameterMismatch), "got %v", err)

	params, err := ReadParams(t.Context(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, testParams, params)
}

func TestEmptyDatabaseAdoptsNewParameters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.db")
	require.NoError(t, openWritable(t, path).Close())

	db, err := OpenWritable(t.Context(), path, Params{Frames: 5, HashSize: 16}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	params, err := ReadParams(t.Context(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, Params{Frames: 5, HashSize: 16}, params)
}

func TestBuildAndFilterAreExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.db")
	db := openWritable(t, path)

	_, err := OpenWritable(t.Context(), path, testParams, nil)
	assert.ErrorIs(t, err, failures.ErrWatchedDBLocked)
	_, err = OpenReadOnly(t.Context(), path, nil)
	assert.ErrorIs(t, err, failures.ErrWatchedDBLocked)
	require.NoError(t, db.Close())

	ro, err := OpenReadOnly(t.Context(), path, nil)
	require.NoError(t, err)
	defer ro.Close()
	_, err = OpenWritable(t.Context(), path, testParams, nil)
	assert.ErrorIs(t, err, failures.ErrWatchedDBLocked, "build must wait for filters to finish")
}

func TestUnwritableLocation(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission bits")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
	_, err := OpenWritable(t.Context(), filepath.Join(dir, "watched.db"), testParams, nil)
	assert.ErrorIs(t, err, failures.ErrWatchedDBUnwritable)
}

func TestFilterRemovesMatches(t *testing.T) {
	records := []Record{
		{Path: "/w/seen.mp4", Fingerprint: fp(t, 0xff, 0xff)},
		{Path: "/w/short.mp4", Fingerprint: phash.Fingerprint{HashSize: 8, Frames: fp(t, 0, 0).Frames[:1]}},
	}
	filter := NewFilter(records, 90, testParams.TotalBits())
	assert.Equal(t, 2, filter.Len())

	items := []similarity.Item{
		{File: video.File{Path: "/s/copy.mp4"}, Fingerprint: fp(t, 0xff, 0xff)},
		{File: video.File{Path: "/s/near.mp4"}, Fingerprint: fp(t, 0xfe, 0xff)},
		{File: video.File{Path: "/s/new.mp4"}, Fingerprint: fp(t, ^uint64(0), 0)},
	}
	kept, matches := filter.Apply(items)
	require.Len(t, kept, 1)
	assert.Equal(t, "/s/new.mp4", kept[0].File.Path)
	require.Len(t, matches, 2)
	assert.Equal(t, "/s/copy.mp4", matches[0].File.Path)
	assert.Equal(t, "/w/seen.mp4", matches[0].Watched)
	assert.InDelta(t, 100.0, matches[0].Similarity, 1e-9)
	assert.Less(t, matches[1].Similarity, 100.0)
}

func TestFilterSubsetLaw(t *testing.T) {
	var items []similarity.Item
	for i := range 12 {
		w := uint64(i) * 0x9e3779b97f4a7c15
		items = append(items,
			similarity.Item{File: video.File{Path: fmt.Sprintf("/s/%02da.mp4", i)}, Fingerprint: fp(t, w, ^w)},
			similarity.Item{File: video.File{Path: fmt.Sprintf("/s/%02db.mp4", i)}, Fingerprint: fp(t, w, ^w)},
		)
	}
	opts := similarity.Options{Threshold: 90, TotalBits: testParams.TotalBits()}
	grouped := func(groups []similarity.Group) map[string]bool {
		out := map[string]bool{}
		for _, g := range groups {
			for _, m := range g.Members {
				out[m.Path] = true
			}
		}
		return out
	}

	without := grouped(similarity.FindGroups(items, opts))
	filter := NewFilter([]Record{{Path: "/w/x.mp4", Fingerprint: items[4].Fingerprint}}, 90, testParams.TotalBits())
	kept, matches := filter.Apply(items)
	with := grouped(similarity.FindGroups(kept, opts))

	for path := range with {
		assert.True(t, without[path], "%s grouped only when filtering", path)
	}
	for _, m := range matches {
		assert.False(t, with[m.File.Path], "watched match %s must not be grouped", m.File.Path)
	}
	assert.NotEmpty(t, matches)
}
