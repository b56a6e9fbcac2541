// Package imaging provides the pixel-level helpers shared by particle segmentation,
// panel classification and curve digitization.
//
// All operations work with standard Go image.Image types and use a coordinate system
// where (0,0) is at the top-left corner, X increases rightward, and Y increases downward.
// Helpers that return new images always rebase them to a (0,0) origin.
//
// # Decoding
//
// PNG, JPEG and GIF use the standard library decoders; TIFF and BMP are registered
// from golang.org/x/image. 16-bit images are decoded at full depth and collapsed to
// 8-bit linearly by ToGray, which is how scanning-microscope TIFFs reach the
// segmentation pipeline.
//
// # Color
//
// Saturation is reported on OpenCV's 0-255 HSV scale so thresholds tuned against
// OpenCV pipelines carry over unchanged.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images.
package imaging
