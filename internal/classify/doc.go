// Package classify turns harvested links into paper bundles.
//
// Classification is a pure function of the link text: the text is cleaned
// of format and size annotations, a paper code is extracted (or synthesized
// when the title carries none) and the document kind is derived from the
// wording. The Pairer then folds classified links into bundles keyed by
// paper code, preserving harvest order inside every bundle.
//
// The package also owns the on-disk naming scheme, so that the same
// subject, series and code always map to the same folder and file names.
package classify
