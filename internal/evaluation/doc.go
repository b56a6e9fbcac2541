// Package evaluation runs registered predictors over a directory of sample
// images and scores them against matched reference spectra.
//
// # Outputs
//
// Each run writes into a fresh directory <output_root>/<run_id>:
//
//	predictions/<model>_<sample>.csv   wavelength,prediction per (predictor, sample)
//	results_per_sample.csv             one row per (sample, predictor)
//	summary.json                       per-predictor aggregates
//
// Rows are appended to results_per_sample.csv as soon as they are produced, so
// an interrupted run leaves a valid partial table. When every sample is done
// the table is rewritten in (image, model) order and summary.json is written
// exactly once.
//
// # Failure Policy
//
// A sample that cannot be decoded, has no particles, or times out still gets
// one row per predictor, with null metrics and the reason in the error column.
// Missing ground truth is not an error. A predictor whose weights fail to
// load is skipped with a warning; an explicitly requested name that is not
// registered, unusable normalization artifacts, or an unwritable output
// directory abort the run.
package evaluation
