// Package morphology turns a particle micrograph into the four-value feature
// vector consumed by the spectrum predictors.
//
// # Pipeline
//
// Images are normalized to a single 8-bit channel and resized to a canonical
// square resolution before any thresholds apply, so area cut-offs mean the same
// thing regardless of the source resolution. Segmentation is a Gaussian blur,
// an inverted Otsu threshold (particles are dark on a bright background) and a
// single morphological opening. Only external contours are counted.
//
// # Feature Vector
//
// The vector is ordered {mean equivalent diameter, population std of diameter,
// particle count, mean bounding-box aspect ratio}. Predictors were trained on
// exactly this ordering and on the default Config values.
package morphology
