// Package hashcache persists video fingerprints keyed by path, size and
// modification time so unchanged files are never hashed twice.
//
// Workers never write to disk. They hand finished fingerprints to Submit,
// which feeds a bounded queue drained by a single committer goroutine. The
// committer applies entries to the in-memory map and rewrites the JSON file
// atomically in batches. A full queue blocks Submit, slowing workers down to
// the committer's pace.
//
// The file header records the hashing parameters. A cache built with other
// parameters, or one that cannot be parsed, is discarded and rebuilt; both
// cases are logged as ErrCacheCorruption and never abort a run.
//
// An advisory lock next to the cache file keeps two runs from committing to
// the same cache.
package hashcache
