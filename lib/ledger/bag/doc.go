// Package bag provides the in-memory implementation of ledger.ILedger.
//
// Items are kept in a concurrent map with bucket level locking, two further
// concurrent maps index the item keys by category and by template. There is no
// global lock: every mutation of a key runs under one of a fixed number of lock
// stripes, and a batch holds the stripes of all its keys from validation until
// the last operation is applied. Readers never lock and skip index entries whose
// item is gone, so a reader may briefly miss an item that is being created or see
// one that is being deleted.
//
// A mutation that panics poisons the stripes it holds. All later operations on keys
// of a poisoned stripe fail with ledger.RetCLockFailure.
//
// Example usage:
//
//	l := bag.NewBag(nil)
//	_ = l.Add("gold", 1, 0, 100)
//	effects, err := l.DoOps([]ledger.Op{
//		ledger.Decrement("gold", 30),
//		ledger.Increment("sword", 2, 7, 1),
//	})
package bag
