// Package cmd implements the command-line interface of dLedger. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - ledger: Commands for ledger operations (add, dec, get, do, ...) and the perf tool
//   - serve: Commands for starting and configuring the dLedger server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dledger -help for a list of all commands.
package cmd
