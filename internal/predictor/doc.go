// Package predictor loads registered spectrum predictors and runs them.
//
// A predictor is described by a metadata file <name>.json in the registry
// directory. Its path field names a weight artifact, resolved through an
// artifact.Store: absolute paths are used as-is, relative paths against the
// store root (or bucket prefix).
//
// # Weight Artifacts
//
// Weights are JSON maps in the layer naming of a sequential network:
//
//	{"net.0.weight": [[...], ...], "net.0.bias": [...], "net.2.weight": ...}
//
// Linear layer i has weight shape [out][in]. ReLU sits between consecutive
// linear layers. Three layouts are accepted and tried in order:
//
//   - state_dict: the bare map above, checked against the configured architecture
//   - checkpoint: the map nested under "state_dict" with a "model." key prefix
//   - full_model: {"architecture": {"dims": [...]}, "state_dict": {...}}
//
// Artifacts ending in .zst or .lz4 are decompressed transparently.
//
// # Normalization
//
// Feature vectors are standardized with per-component mean and std arrays
// (X_mean.npy, X_std.npy), and outputs are labelled with wavelengths.npy.
// These are loaded once per handle; any problem with them is reported as
// ErrNormalization, which callers treat as fatal.
//
// # Caching
//
// Registry.GetOrLoad caches handles for the life of the Registry and never
// evicts. Handles are read-only after construction and safe for concurrent use.
package predictor
