// Package model defines the core data structures used throughout papergrab.
//
// This package contains the following main types:
//   - WizardStep, Selector, Locator: the vocabulary of the wizard navigator
//   - RawLink, DocumentRef, PaperBundle: harvested and classified documents
//   - Session: cookies and user agent shared by all downloads of a series
//   - DownloadOutcome: the per-document result of the retrieval engine
//   - SeriesReport and RunSummary: what happened during a run
//
// The models live in their own package because the wizard, harvest,
// classify, retrieve, pipeline and report packages all share them.
package model
