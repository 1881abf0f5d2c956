// Package phash computes difference hashes for video frames and compares the
// per-video fingerprints built from them.
//
// Each frame hash is a goimagehash.ExtImageHash of kind DHash carrying
// hash_size² bits. A Fingerprint is the ordered list of frame hashes for one
// video; comparison treats it as one flat bit vector and never compares
// fingerprints whose frame count or hash size differ.
package phash
