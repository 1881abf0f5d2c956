// Package watched stores fingerprints of videos that were already reviewed and
// removes matching videos from later scans.
//
// The database is a single SQLite file. Build mode opens it read-write under
// an exclusive advisory lock; filter mode opens it read-only under a shared
// lock, so a build and a filter never run against the same file at once. The
// database records the frame count and hash size its fingerprints were built
// with; fingerprints from other parameters are never compared.
package watched
