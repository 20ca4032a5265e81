// Package rpc provides the remote procedure call layer of dLedger.
// It lets clients use ledgers hosted by another process as if they were local.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP and an in-process loopback).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: An implementation of ledger.ILedger that forwards every call to a server,
//     and a control client that creates and drops ledgers.
//
//   - server: The server that hosts ledgers by handle and dispatches incoming requests.
package rpc
