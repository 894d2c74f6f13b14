// Package cram implements the planning stage of CRAM compression: given
// a batch of alignment records, it decides how every logical data series
// and every auxiliary tag is encoded, and which external byte compressor
// is applied to each of their blocks.
//
// The entry point is CompressionHeaderFactory. Its Build method installs
// a fixed encoding per known data series, derives an encoding per tag id
// from the shapes of the observed tag values (probing gzip and two rANS
// orders on the concatenated values and keeping the smallest), collects
// the distinct tag-id sequences of the batch into a deterministic
// dictionary, and ranks base substitutions into a substitution matrix.
// Records are annotated in place with their dictionary row and their
// substitution codes, so a slice writer can encode them directly against
// the returned header.
//
// A factory caches its per-tag decisions across batches. It is not safe
// for concurrent use; give each goroutine its own factory, or serialize
// calls.
package cram
