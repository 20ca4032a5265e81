package testing

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dLedger/lib/ledger"
)

// RunLedgerTests runs the conformance test suite for a ledger implementation.
func RunLedgerTests(t *testing.T, name string, factory ledger.Factory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Add&Get", func(t *testing.T) {
			testAddGet(t, factory())
		})

		t.Run("AddZero", func(t *testing.T) {
			testAddZero(t, factory())
		})

		t.Run("Decrement", func(t *testing.T) {
			testDecrement(t, factory())
		})

		t.Run("Indices", func(t *testing.T) {
			testIndices(t, factory())
		})

		t.Run("Amounts", func(t *testing.T) {
			testAmounts(t, factory())
		})

		t.Run("ToList", func(t *testing.T) {
			testToList(t, factory())
		})

		t.Run("VerifyOps", func(t *testing.T) {
			testVerifyOps(t, factory())
		})

		t.Run("DoOpsAllOrNothing", func(t *testing.T) {
			testDoOpsAllOrNothing(t, factory())
		})

		t.Run("DoOpsAggregation", func(t *testing.T) {
			testDoOpsAggregation(t, factory())
		})

		t.Run("DoOpsDeletion", func(t *testing.T) {
			testDoOpsDeletion(t, factory())
		})

		t.Run("DoOpsCreation", func(t *testing.T) {
			testDoOpsCreation(t, factory())
		})

		t.Run("DoOpsEffects", func(t *testing.T) {
			testDoOpsEffects(t, factory())
		})

		t.Run("DoOpsMalformed", func(t *testing.T) {
			testDoOpsMalformed(t, factory())
		})

		t.Run("Saturation", func(t *testing.T) {
			testSaturation(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})

		t.Run("ConcurrentDecrement", func(t *testing.T) {
			testConcurrentDecrement(t, factory())
		})

		t.Run("ConcurrentBatches", func(t *testing.T) {
			testConcurrentBatches(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustAdd(t testing.TB, l ledger.ILedger, key string, category uint32, template uint64, amount uint64) {
	t.Helper()
	if err := l.Add(key, category, template, amount); err != nil {
		t.Fatalf("Add(%q) failed: %v", key, err)
	}
}

func mustAmount(t testing.TB, l ledger.ILedger, key string) uint64 {
	t.Helper()
	amount, err := l.Amount(key)
	if err != nil {
		t.Fatalf("Amount(%q) failed: %v", key, err)
	}
	return amount
}

func keysOf(items []ledger.Item) map[string]ledger.Item {
	m := make(map[string]ledger.Item, len(items))
	for _, item := range items {
		m[item.Key] = item
	}
	return m
}

func sumOf(items []ledger.Item) uint64 {
	var total uint64
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// checkConsistency verifies that no item has quantity 0 and that every item is
// reachable through both of its indices
func checkConsistency(t *testing.T, l ledger.ILedger) {
	t.Helper()

	items, err := l.ToList()
	if err != nil {
		t.Fatalf("ToList failed: %v", err)
	}

	for _, item := range items {
		if item.Quantity == 0 {
			t.Errorf("Item %s has quantity 0", item)
		}

		byCat, _ := l.GetByCategory(item.Category)
		if _, ok := keysOf(byCat)[item.Key]; !ok {
			t.Errorf("Item %s is missing in category index", item)
		}

		byTmpl, _ := l.GetByTemplate(item.Template)
		if _, ok := keysOf(byTmpl)[item.Key]; !ok {
			t.Errorf("Item %s is missing in template index", item)
		}
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testAddGet(t *testing.T, l ledger.ILedger) {
	mustAdd(t, l, "sword", 1, 10, 5)

	item, err := l.Get("sword")
	if err != nil {
		t.Fatalf("Expected item to exist after Add, got %v", err)
	}
	expected := ledger.Item{Key: "sword", Category: 1, Template: 10, Quantity: 5}
	if item != expected {
		t.Errorf("Expected %s, got %s", expected, item)
	}

	// category and template of an existing item are never changed
	mustAdd(t, l, "sword", 2, 20, 3)
	item, _ = l.Get("sword")
	expected.Quantity = 8
	if item != expected {
		t.Errorf("Expected %s after second Add, got %s", expected, item)
	}

	byCat, _ := l.GetByCategory(2)
	if len(byCat) != 0 {
		t.Errorf("Expected category 2 to be empty, got %v", byCat)
	}

	_, err = l.Get("nonexistent-key")
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Expected NotFound for nonexistent key, got %v", err)
	}
	if ledger.CodeOf(err) != ledger.RetCNotFound {
		t.Errorf("Expected code %s, got %s", ledger.RetCNotFound, ledger.CodeOf(err))
	}

	// the empty string is a valid key
	mustAdd(t, l, "", 0, 0, 1)
	if _, err := l.Get(""); err != nil {
		t.Errorf("Expected empty key to be stored, got %v", err)
	}
}

func testAddZero(t *testing.T, l ledger.ILedger) {
	mustAdd(t, l, "ghost", 1, 1, 0)

	if _, err := l.Get("ghost"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Expected Add of 0 on absent key to be a no-op, got %v", err)
	}

	items, _ := l.GetByCategory(1)
	if len(items) != 0 {
		t.Errorf("Expected no index entry for no-op Add, got %v", items)
	}

	mustAdd(t, l, "coin", 1, 1, 4)
	mustAdd(t, l, "coin", 1, 1, 0)
	if amount := mustAmount(t, l, "coin"); amount != 4 {
		t.Errorf("Expected Add of 0 to keep quantity 4, got %d", amount)
	}
}

func testDecrement(t *testing.T, l ledger.ILedger) {
	mustAdd(t, l, "potion", 3, 30, 10)

	if err := l.Decrement("potion", 3); err != nil {
		t.Fatalf("Decrement failed: %v", err)
	}
	if amount := mustAmount(t, l, "potion"); amount != 7 {
		t.Errorf("Expected quantity 7, got %d", amount)
	}

	err := l.Decrement("potion", 8)
	if !errors.Is(err, ledger.ErrIllegalOperations) {
		t.Errorf("Expected IllegalOperations when decrementing below 0, got %v", err)
	}
	if amount := mustAmount(t, l, "potion"); amount != 7 {
		t.Errorf("Expected failed Decrement to leave quantity 7, got %d", amount)
	}

	if err := l.Decrement("potion", 7); err != nil {
		t.Fatalf("Decrement to 0 failed: %v", err)
	}
	if _, err := l.Get("potion"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Expected item to be removed at quantity 0, got %v", err)
	}
	if items, _ := l.GetByCategory(3); len(items) != 0 {
		t.Errorf("Expected category index to be empty, got %v", items)
	}
	if items, _ := l.GetByTemplate(30); len(items) != 0 {
		t.Errorf("Expected template index to be empty, got %v", items)
	}

	if err := l.Decrement("potion", 1); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Expected NotFound for absent key, got %v", err)
	}
}

func testIndices(t *testing.T, l ledger.ILedger) {
	mustAdd(t, l, "iron", 1, 100, 4)
	mustAdd(t, l, "gold", 1, 200, 2)
	mustAdd(t, l, "apple", 2, 100, 9)

	byCat, _ := l.GetByCategory(1)
	got := keysOf(byCat)
	if len(got) != 2 {
		t.Fatalf("Expected 2 items in category 1, got %v", byCat)
	}
	if got["iron"].Quantity != 4 || got["gold"].Quantity != 2 {
		t.Errorf("Unexpected items in category 1: %v", byCat)
	}

	byTmpl, _ := l.GetByTemplate(100)
	got = keysOf(byTmpl)
	if len(got) != 2 {
		t.Fatalf("Expected 2 items with template 100, got %v", byTmpl)
	}
	if _, ok := got["apple"]; !ok {
		t.Errorf("Expected apple in template 100, got %v", byTmpl)
	}

	if items, err := l.GetByCategory(999); err != nil || len(items) != 0 {
		t.Errorf("Expected unknown category to yield no items, got %v (%v)", items, err)
	}
	if items, err := l.GetByTemplate(999); err != nil || len(items) != 0 {
		t.Errorf("Expected unknown template to yield no items, got %v (%v)", items, err)
	}

	// returned items are copies
	byCat[0].Quantity = 1000
	again, _ := l.GetByCategory(1)
	if sumOf(again) != 6 {
		t.Errorf("Expected modification of result not to affect ledger, sum is %d", sumOf(again))
	}

	checkConsistency(t, l)
}

func testAmounts(t *testing.T, l ledger.ILedger) {
	for i := 0; i < 20; i++ {
		mustAdd(t, l, fmt.Sprintf("item-%d", i), uint32(i%3), uint64(i%4), uint64(i+1))
	}

	for c := uint32(0); c < 3; c++ {
		items, _ := l.GetByCategory(c)
		amount, err := l.AmountByCategory(c)
		if err != nil {
			t.Fatalf("AmountByCategory failed: %v", err)
		}
		if amount != sumOf(items) {
			t.Errorf("Category %d: expected amount %d, got %d", c, sumOf(items), amount)
		}
	}

	for tmpl := uint64(0); tmpl < 4; tmpl++ {
		items, _ := l.GetByTemplate(tmpl)
		amount, err := l.AmountByTemplate(tmpl)
		if err != nil {
			t.Fatalf("AmountByTemplate failed: %v", err)
		}
		if amount != sumOf(items) {
			t.Errorf("Template %d: expected amount %d, got %d", tmpl, sumOf(items), amount)
		}
	}

	if amount := mustAmount(t, l, "nonexistent-key"); amount != 0 {
		t.Errorf("Expected amount 0 for nonexistent key, got %d", amount)
	}
	if amount, _ := l.AmountByCategory(999); amount != 0 {
		t.Errorf("Expected amount 0 for unknown category, got %d", amount)
	}
	if amount, _ := l.AmountByTemplate(999); amount != 0 {
		t.Errorf("Expected amount 0 for unknown template, got %d", amount)
	}
}

func testToList(t *testing.T, l ledger.ILedger) {
	items, err := l.ToList()
	if err != nil {
		t.Fatalf("ToList failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected empty ledger, got %v", items)
	}

	for i := 0; i < 10; i++ {
		mustAdd(t, l, fmt.Sprintf("key-%d", i), 1, 1, 2)
	}
	for i := 0; i < 10; i += 2 {
		if err := l.Decrement(fmt.Sprintf("key-%d", i), 2); err != nil {
			t.Fatalf("Decrement failed: %v", err)
		}
	}

	items, _ = l.ToList()
	if len(items) != 5 {
		t.Errorf("Expected 5 items, got %d", len(items))
	}
	for _, item := range items {
		if item.Quantity == 0 {
			t.Errorf("ToList returned item with quantity 0: %s", item)
		}
	}
	checkConsistency(t, l)
}

func testVerifyOps(t *testing.T, l ledger.ILedger) {
	mustAdd(t, l, "A", 1, 1, 5)

	cases := []struct {
		name     string
		ops      []ledger.Op
		expected bool
	}{
		{"Empty", nil, true},
		{"OnlyIncrements", []ledger.Op{ledger.Increment("B", 1, 1, 3)}, true},
		{"ExactDemand", []ledger.Op{ledger.Decrement("A", 5)}, true},
		{"AggregatedDemand", []ledger.Op{ledger.Decrement("A", 3), ledger.Decrement("A", 3)}, false},
		{"IncrementDoesNotCover", []ledger.Op{ledger.Increment("A", 1, 1, 100), ledger.Decrement("A", 10)}, false},
		{"AbsentKey", []ledger.Op{ledger.Decrement("B", 1)}, false},
		{"ZeroDecrementAbsentKey", []ledger.Op{ledger.Decrement("B", 0)}, true},
		{"OverflowingDemand", []ledger.Op{ledger.Decrement("A", math.MaxUint64), ledger.Decrement("A", 2)}, false},
		{"InvalidKind", []ledger.Op{{Kind: 3, Key: "A", Amount: 1}}, false},
	}

	for _, tc := range cases {
		ok, err := l.VerifyOps(tc.ops)
		if err != nil {
			t.Errorf("%s: VerifyOps failed: %v", tc.name, err)
			continue
		}
		if ok != tc.expected {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.expected, ok)
		}
	}

	// verification never mutates
	if amount := mustAmount(t, l, "A"); amount != 5 {
		t.Errorf("Expected VerifyOps to leave quantity 5, got %d", amount)
	}
	if _, err := l.Get("B"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Expected VerifyOps not to create B, got %v", err)
	}
}

func testDoOpsAllOrNothing(t *testing.T, l ledger.ILedger) {
	mustAdd(t, l, "A", 1, 1, 10)

	effects, err := l.DoOps([]ledger.Op{
		ledger.Increment("X", 1, 1, 1),
		ledger.Decrement("A", 4),
		ledger.Decrement("A", 7),
	})
	if !errors.Is(err, ledger.ErrIllegalOperations) {
		t.Fatalf("Expected IllegalOperations, got %v", err)
	}
	if len(effects) != 0 {
		t.Errorf("Expected no effects for rejected batch, got %v", effects)
	}

	if amount := mustAmount(t, l, "A"); amount != 10 {
		t.Errorf("Expected quantity 10 after rejected batch, got %d", amount)
	}
	if _, err := l.Get("X"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Expected rejected batch not to create X, got %v", err)
	}
}

func testDoOpsAggregation(t *testing.T, l ledger.ILedger) {
	mustAdd(t, l, "A", 1, 1, 5)

	_, err := l.DoOps([]ledger.Op{
		ledger.Increment("A", 1, 1, 100),
		ledger.Decrement("A", 10),
	})
	if !errors.Is(err, ledger.ErrIllegalOperations) {
		t.Fatalf("Expected IllegalOperations, got %v", err)
	}
	if amount := mustAmount(t, l, "A"); amount != 5 {
		t.Errorf("Expected quantity 5, got %d", amount)
	}

	effects, err := l.DoOps([]ledger.Op{
		ledger.Increment("A", 1, 1, 100),
		ledger.Decrement("A", 5),
	})
	if err != nil {
		t.Fatalf("Expected feasible batch to succeed, got %v", err)
	}
	if len(effects) != 2 {
		t.Fatalf("Expected 2 effects, got %v", effects)
	}
	if effects[1].Kind != ledger.EffectDecremented || effects[1].Item.Quantity != 100 {
		t.Errorf("Expected Decremented to 100, got %v", effects[1])
	}
}

func testDoOpsDeletion(t *testing.T, l ledger.ILedger) {
	mustAdd(t, l, "B", 4, 44, 3)

	effects, err := l.DoOps([]ledger.Op{ledger.Decrement("B", 3)})
	if err != nil {
		t.Fatalf("DoOps failed: %v", err)
	}

	expected := []ledger.Effect{
		{Kind: ledger.EffectDeleted, Item: ledger.Item{Key: "B", Category: 4, Template: 44, Quantity: 0}},
	}
	if len(effects) != 1 || effects[0] != expected[0] {
		t.Errorf("Expected %v, got %v", expected, effects)
	}

	if _, err := l.Get("B"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Expected NotFound after deletion, got %v", err)
	}
	if items, _ := l.GetByCategory(4); len(items) != 0 {
		t.Errorf("Expected B to be removed from the category index, got %v", items)
	}
	if items, _ := l.GetByTemplate(44); len(items) != 0 {
		t.Errorf("Expected B to be removed from the template index, got %v", items)
	}
}

func testDoOpsCreation(t *testing.T, l ledger.ILedger) {
	effects, err := l.DoOps([]ledger.Op{ledger.Increment("C", 9, 77, 5)})
	if err != nil {
		t.Fatalf("DoOps failed: %v", err)
	}

	expected := ledger.Effect{Kind: ledger.EffectCreated, Item: ledger.Item{Key: "C", Category: 9, Template: 77, Quantity: 5}}
	if len(effects) != 1 || effects[0] != expected {
		t.Errorf("Expected [%v], got %v", expected, effects)
	}

	if amount, _ := l.AmountByCategory(9); amount != 5 {
		t.Errorf("Expected AmountByCategory(9) = 5, got %d", amount)
	}
	if amount, _ := l.AmountByTemplate(77); amount != 5 {
		t.Errorf("Expected AmountByTemplate(77) = 5, got %d", amount)
	}
}

func testDoOpsEffects(t *testing.T, l ledger.ILedger) {
	mustAdd(t, l, "wood", 1, 1, 10)
	mustAdd(t, l, "stone", 1, 2, 4)

	effects, err := l.DoOps([]ledger.Op{
		ledger.Decrement("wood", 6),
		ledger.Increment("plank", 2, 3, 4),
		ledger.Decrement("stone", 4),
		ledger.Increment("wood", 1, 1, 1),
		ledger.Decrement("wood", 0),
		ledger.Decrement("missing", 0),
		ledger.Increment("nothing", 1, 1, 0),
		ledger.Increment("plank", 2, 3, 2),
	})
	if err != nil {
		t.Fatalf("DoOps failed: %v", err)
	}

	expected := []ledger.Effect{
		{Kind: ledger.EffectDecremented, Item: ledger.Item{Key: "wood", Category: 1, Template: 1, Quantity: 4}},
		{Kind: ledger.EffectCreated, Item: ledger.Item{Key: "plank", Category: 2, Template: 3, Quantity: 4}},
		{Kind: ledger.EffectDeleted, Item: ledger.Item{Key: "stone", Category: 1, Template: 2, Quantity: 0}},
		{Kind: ledger.EffectIncremented, Item: ledger.Item{Key: "wood", Category: 1, Template: 1, Quantity: 5}},
		{Kind: ledger.EffectDecremented, Item: ledger.Item{Key: "wood", Category: 1, Template: 1, Quantity: 5}},
		{Kind: ledger.EffectIncremented, Item: ledger.Item{Key: "plank", Category: 2, Template: 3, Quantity: 6}},
	}

	if len(effects) != len(expected) {
		t.Fatalf("Expected %d effects, got %d: %v", len(expected), len(effects), effects)
	}
	for i := range expected {
		if effects[i] != expected[i] {
			t.Errorf("Effect %d: expected %v, got %v", i, expected[i], effects[i])
		}
	}

	if _, err := l.Get("nothing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Expected increment of 0 not to create an item, got %v", err)
	}

	// empty batch
	effects, err = l.DoOps(nil)
	if err != nil {
		t.Errorf("Expected empty batch to succeed, got %v", err)
	}
	if len(effects) != 0 {
		t.Errorf("Expected no effects for empty batch, got %v", effects)
	}

	checkConsistency(t, l)
}

func testDoOpsMalformed(t *testing.T, l ledger.ILedger) {
	mustAdd(t, l, "A", 1, 1, 10)

	for _, kind := range []ledger.OpKind{0, 3, 4, 200} {
		effects, err := l.DoOps([]ledger.Op{
			ledger.Decrement("A", 1),
			{Kind: kind, Key: "A", Amount: 1},
		})
		if !errors.Is(err, ledger.ErrUnsupportedOperation) {
			t.Errorf("Kind %d: expected UnsupportedOperation, got %v", kind, err)
		}
		if len(effects) != 0 {
			t.Errorf("Kind %d: expected no effects, got %v", kind, effects)
		}
	}

	// malformed input wins over infeasible input
	_, err := l.DoOps([]ledger.Op{
		ledger.Decrement("A", 1000),
		{Kind: 3, Key: "A", Amount: 1},
	})
	if !errors.Is(err, ledger.ErrUnsupportedOperation) {
		t.Errorf("Expected UnsupportedOperation before validation, got %v", err)
	}

	if amount := mustAmount(t, l, "A"); amount != 10 {
		t.Errorf("Expected malformed batches to leave quantity 10, got %d", amount)
	}
}

func testSaturation(t *testing.T, l ledger.ILedger) {
	mustAdd(t, l, "max", 1, 1, math.MaxUint64-1)
	mustAdd(t, l, "max", 1, 1, 10)

	if amount := mustAmount(t, l, "max"); amount != math.MaxUint64 {
		t.Errorf("Expected quantity to saturate at %d, got %d", uint64(math.MaxUint64), amount)
	}

	mustAdd(t, l, "other", 1, 1, 5)
	if amount, _ := l.AmountByCategory(1); amount != math.MaxUint64 {
		t.Errorf("Expected category amount to saturate, got %d", amount)
	}
}

func testInfo(t *testing.T, l ledger.ILedger) {
	for i := 0; i < 100; i++ {
		mustAdd(t, l, fmt.Sprintf("info-%d", i), uint32(i%5), uint64(i%7), 1)
	}

	info, err := l.GetInfo()
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if info.Items != 100 {
		t.Errorf("Expected 100 items, got %d", info.Items)
	}
	if info.Categories != 5 {
		t.Errorf("Expected 5 categories, got %d", info.Categories)
	}
	if info.Templates != 7 {
		t.Errorf("Expected 7 templates, got %d", info.Templates)
	}
	if info.Stripes <= 0 {
		t.Errorf("Expected positive stripe count, got %d", info.Stripes)
	}
	if info.PoisonedStripes != 0 {
		t.Errorf("Expected no poisoned stripes, got %d", info.PoisonedStripes)
	}
}

func testConcurrentDecrement(t *testing.T, l ledger.ILedger) {
	mustAdd(t, l, "A", 1, 1, 1000)

	var wg sync.WaitGroup
	var successes atomic.Int64
	var rejected atomic.Int64

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Decrement("A", 30)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ledger.ErrIllegalOperations):
				rejected.Add(1)
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 33 {
		t.Errorf("Expected 33 successful decrements, got %d", successes.Load())
	}
	if rejected.Load() != 17 {
		t.Errorf("Expected 17 rejected decrements, got %d", rejected.Load())
	}
	if amount := mustAmount(t, l, "A"); amount != 10 {
		t.Errorf("Expected remaining quantity 10, got %d", amount)
	}
}

func testConcurrentBatches(t *testing.T, l ledger.ILedger) {
	const (
		numKeys    = 8
		perKey     = 100
		numWorkers = 16
		numBatches = 50
	)

	for i := 0; i < numKeys; i++ {
		mustAdd(t, l, fmt.Sprintf("acc-%d", i), 7, 7, perKey)
	}

	// every batch moves units between keys, so the total is preserved
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for n := 0; n < numBatches; n++ {
				from := fmt.Sprintf("acc-%d", (w+n)%numKeys)
				to := fmt.Sprintf("acc-%d", (w+n+1)%numKeys)
				amount := uint64(n%5 + 1)
				_, err := l.DoOps([]ledger.Op{
					ledger.Decrement(from, amount),
					ledger.Increment(to, 7, 7, amount),
				})
				if err != nil && !errors.Is(err, ledger.ErrIllegalOperations) {
					t.Errorf("Unexpected error: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	items, _ := l.ToList()
	if total := sumOf(items); total != numKeys*perKey {
		t.Errorf("Expected total %d after transfers, got %d", numKeys*perKey, total)
	}
	if amount, _ := l.AmountByCategory(7); amount != numKeys*perKey {
		t.Errorf("Expected category total %d after transfers, got %d", numKeys*perKey, amount)
	}
	checkConsistency(t, l)
}
