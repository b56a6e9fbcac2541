// Package detection reads published composite figures: it decides what each
// panel shows and recovers the absorption curve from plot panels.
//
// # Panel Classification
//
// A panel is classified from two features: the fraction of near-white pixels
// and the variance of its Laplacian response. Background-dominated panels are
// plots when they carry line content and empty otherwise; everything else is
// treated as a micrograph. This is a coarse boundary tuned for side-by-side
// micrograph and plot figures, not a general-purpose classifier.
//
// # Curve Digitization
//
// Plot panels are trimmed of their margins, curve pixels are picked by color
// saturation (or darkness for monochrome plots), and the resulting column-wise
// trace is mapped onto a fixed wavelength domain. There is no axis-label
// reading, so the domain is an assumed convention held in DigitizerConfig.
//
// # Coordinate System
//
// All pixel coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward, so intensity is 1 - y/height
package detection
