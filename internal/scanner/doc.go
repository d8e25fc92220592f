// Package scanner walks the music root and turns files into scan
// observations: a fingerprint per audio file, extracted tags for the
// files that changed, and the best folder cover image per directory.
//
// Tag extraction runs on a worker pool sized to the available CPUs.
// Unchanged files are never re-parsed; broken files carry their last
// extraction error in the fingerprint ledger so they are not retried
// every pass.
package scanner
