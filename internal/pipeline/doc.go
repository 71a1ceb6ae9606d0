// Package pipeline runs the per-series processing steps.
//
// One exam series goes through navigate, harvest, capture session,
// classify and retrieve. Each stage is a Step that receives the series
// report and fills in its part. The Runner drives the pipeline over the
// configured series one after another, since the browser is owned by a
// single navigator, and folds every series report into the run summary.
package pipeline
