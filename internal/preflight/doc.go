// Package preflight provides readiness checks that run before a scan touches
// any video.
//
// A run needs write access to the cache file location and, when a watched
// database is being built or updated, to the database location. Failing these
// checks up front turns a late disk error into an immediate fatal one.
package preflight
