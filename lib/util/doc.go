// Package util provides small helpers shared by the ledger implementations.
//
// The package contains:
//   - functions: a seeded FNV-1a string hash and a random seed generator, used to
//     spread keys over lock stripes
//   - statistics: summary statistics and a distribution quality score, used to report
//     how evenly items are spread over the stripes of a ledger
package util
