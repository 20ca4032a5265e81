package testing

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/dLedger/lib/ledger"
)

// RunLedgerBenchmarks runs all benchmarks for a ledger implementation
func RunLedgerBenchmarks(b *testing.B, name string, factory ledger.Factory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Add", func(b *testing.B) {
			benchmarkAdd(b, factory())
		})

		b.Run("AddExisting", func(b *testing.B) {
			benchmarkAddExisting(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("AmountByCategory", func(b *testing.B) {
			benchmarkAmountByCategory(b, factory())
		})

		b.Run("DoOps", func(b *testing.B) {
			benchmarkDoOps(b, factory())
		})

		b.Run("DoOpsRejected", func(b *testing.B) {
			benchmarkDoOpsRejected(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Add creating new items
func benchmarkAdd(b *testing.B, l ledger.ILedger) {
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		prefix := fmt.Sprintf("%p-", pb)
		for pb.Next() {
			_ = l.Add(fmt.Sprintf("%s%d", prefix, counter), uint32(counter%16), uint64(counter%64), 1)
			counter++
		}
	})
}

// Benchmark for Add on a small set of existing items (high contention)
func benchmarkAddExisting(b *testing.B, l ledger.ILedger) {
	const numKeys = 64
	keys := make([]string, numKeys)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
		_ = l.Add(keys[i], 1, 1, 1)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_ = l.Add(keys[counter%numKeys], 1, 1, 1)
			counter++
		}
	})
}

// Benchmark for Get
func benchmarkGet(b *testing.B, l ledger.ILedger) {
	const numKeys = 10_000
	for i := 0; i < numKeys; i++ {
		_ = l.Add(fmt.Sprintf("key-%d", i), 1, 1, 1)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = l.Get(fmt.Sprintf("key-%d", counter%numKeys))
			counter++
		}
	})
}

// Benchmark for AmountByCategory with 100 items per category
func benchmarkAmountByCategory(b *testing.B, l ledger.ILedger) {
	const numCategories = 10
	for i := 0; i < numCategories*100; i++ {
		_ = l.Add(fmt.Sprintf("key-%d", i), uint32(i%numCategories), 1, 1)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = l.AmountByCategory(uint32(counter % numCategories))
			counter++
		}
	})
}

// Benchmark for a transfer batch that always succeeds
func benchmarkDoOps(b *testing.B, l ledger.ILedger) {
	const numKeys = 256
	for i := 0; i < numKeys; i++ {
		_ = l.Add(fmt.Sprintf("key-%d", i), 1, 1, 1<<40)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = l.DoOps([]ledger.Op{
				ledger.Decrement(fmt.Sprintf("key-%d", counter%numKeys), 1),
				ledger.Increment(fmt.Sprintf("key-%d", (counter+1)%numKeys), 1, 1, 1),
			})
			counter++
		}
	})
}

// Benchmark for a batch that is always rejected by validation
func benchmarkDoOpsRejected(b *testing.B, l ledger.ILedger) {
	_ = l.Add("scarce", 1, 1, 1)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = l.DoOps([]ledger.Op{
				ledger.Decrement("scarce", 1),
				ledger.Decrement("scarce", 1),
			})
		}
	})
}
