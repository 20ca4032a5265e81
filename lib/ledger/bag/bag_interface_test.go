package bag

import (
	"testing"

	"github.com/ValentinKolb/dLedger/lib/ledger"
	ledgertesting "github.com/ValentinKolb/dLedger/lib/ledger/testing"
)

func Test(t *testing.T) {
	ledgertesting.RunLedgerTests(t, "Bag", func() ledger.ILedger {
		return NewBag(nil)
	})

	ledgertesting.RunLedgerTests(t, "BagSingleStripe", func() ledger.ILedger {
		return NewBag(&Options{NumStripes: 1})
	})
}

func Benchmark(b *testing.B) {
	ledgertesting.RunLedgerBenchmarks(b, "Bag", func() ledger.ILedger {
		return NewBag(nil)
	})
}
