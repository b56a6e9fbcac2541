// Package artifact resolves predictor artifacts (weights and normalization
// arrays) by name against a storage backend.
//
// Three backends are provided: a local directory, an S3 bucket and a MinIO (or
// other S3-compatible) bucket. Names ending in .zst or .lz4 can be opened
// through OpenDecoded, which decompresses them transparently.
package artifact
