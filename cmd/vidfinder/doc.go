// Command vidfinder finds visually similar videos in a directory.
//
// The root command scans a directory, prints groups of similar videos and can
// move duplicates aside. Subcommands manage the watched database
// (watched build, watched inspect), the per-directory fingerprint cache
// (cache stats, cache prune), the configuration file (config init,
// config show) and report on external tools (doctor).
package main
