// Package testing provides standardised tests and benchmarks for
// ledger implementations that satisfy the ledger.ILedger interface.
//
// The package contains:
//   - testing: A conformance suite for single key operations, the secondary indices and batch semantics
//   - benchmark: Performance tests for the most common ledger operations
//
// The suite is used for the in-memory bag as well as for the RPC client, so every
// implementation reachable through ILedger behaves the same.
//
// Example usage:
//
//	factory := func() ledger.ILedger {
//		return NewMyLedger()
//	}
//
//	// Running the standard test suite
//	ledgertesting.RunLedgerTests(t, "MyLedger", factory)
//
//	// Running performance benchmarks
//	ledgertesting.RunLedgerBenchmarks(b, "MyLedger", factory)
package testing
