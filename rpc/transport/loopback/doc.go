// Package loopback implements an in-process transport. A server listening on an
// endpoint name is reachable by every client of the same process connecting to
// that name, without sockets or framing.
//
// It is used to run the RPC client against a real server in tests and benchmarks
// and to embed a ledger server into another Go program.
package loopback
