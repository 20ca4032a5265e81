// Package ledger defines the interface and data model of an in-memory inventory ledger:
// a concurrent, keyed store of countable items (currency, materials, consumables) that
// is indexed by category and by template, and that supports single mutations as well as
// atomic multi-item batches.
//
// The package focuses on:
//   - A unified interface (ILedger) implemented by the local bag and the RPC client
//   - The data model: Item, Op (batch input) and Effect (batch output)
//   - A structured error type with return codes
//   - The tuple codec used to move batches across process boundaries
//
// Key Components:
//
//   - ILedger Interface: The core abstraction. Single-key operations (Add, Decrement,
//     Get, Amount), index queries (GetByCategory, GetByTemplate, AmountByCategory,
//     AmountByTemplate), snapshots (ToList) and batches (VerifyOps, DoOps).
//
//   - Error System: Every implementation reports failures as *Error with one of the
//     RetCode values. Sentinels (ErrNotFound, ErrUnsupportedOperation,
//     ErrIllegalOperations, ErrLockFailure) match by code with errors.Is.
//
//   - Tuple Codec: DecodeOps parses the [kind, key, category, template, amount] wire
//     shape with exact type checks. A single malformed tuple rejects the whole batch
//     before anything is looked up.
//
// Batch Semantics:
//
//	For every key that is decremented in a batch, all decrement amounts are summed and
//	compared against the quantity stored before the batch. Increments in the same batch
//	never count towards that demand. Only if every key can cover its demand is the batch
//	applied, strictly in input order. Effects report what happened to each item:
//
//	  ops:     [Increment(C, 9, 77, 5), Decrement(A, 3)]   (A stored with quantity 3)
//	  effects: [Created {C 9 77 5},     Deleted {A .. .. 0}]
//
// Implementations:
//
//   - Local Bag (bag): The in-memory implementation built on concurrent maps with
//     per-key lock stripes. Available in "github.com/ValentinKolb/dLedger/lib/ledger/bag".
//
//   - RPC Client (rpc/client): Forwards all operations to a remote ledger server.
//
// The testing package ("github.com/ValentinKolb/dLedger/lib/ledger/testing") provides a
// conformance suite and benchmarks that every implementation is run against.
package ledger
