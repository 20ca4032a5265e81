package bag

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/ValentinKolb/dLedger/lib/ledger"
)

func newTestBag(stripes int) *bagImpl {
	return NewBag(&Options{NumStripes: stripes}).(*bagImpl)
}

// keyOnOtherStripe returns a key that does not share a stripe with key
func keyOnOtherStripe(t *testing.T, b *bagImpl, key string) string {
	for i := 0; i < 1000; i++ {
		other := fmt.Sprintf("other-%d", i)
		if b.stripeOf(other) != b.stripeOf(key) {
			return other
		}
	}
	t.Fatalf("no key found on a different stripe than %q", key)
	return ""
}

func TestIndex(t *testing.T) {
	idx := newIndex[uint32]()

	idx.insert(1, "a")
	idx.insert(1, "b")
	idx.insert(2, "c")

	members := idx.members(1)
	slices.Sort(members)
	if !slices.Equal(members, []string{"a", "b"}) {
		t.Errorf("Expected [a b], got %v", members)
	}
	if !idx.contains(2, "c") || idx.contains(2, "a") {
		t.Errorf("Unexpected membership for index key 2")
	}

	idx.remove(1, "a")
	idx.remove(1, "b")
	if idx.members(1) != nil {
		t.Errorf("Expected empty set to be dropped, got %v", idx.members(1))
	}
	if idx.size() != 1 {
		t.Errorf("Expected 1 index key, got %d", idx.size())
	}

	// removing from an unknown index key must not create it
	idx.remove(42, "x")
	if idx.size() != 1 {
		t.Errorf("Expected remove of unknown key to be a no-op, size is %d", idx.size())
	}
}

func TestStripesOf(t *testing.T) {
	b := newTestBag(8)

	keys := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		keys = append(keys, fmt.Sprintf("key-%d", i))
	}
	keys = append(keys, keys...)

	idx := b.stripesOf(keys...)
	if !slices.IsSorted(idx) {
		t.Errorf("Expected sorted stripe indices, got %v", idx)
	}
	if len(slices.Compact(slices.Clone(idx))) != len(idx) {
		t.Errorf("Expected unique stripe indices, got %v", idx)
	}
	for _, s := range idx {
		if s < 0 || s >= 8 {
			t.Errorf("Stripe index %d out of range", s)
		}
	}

	if len(b.stripesOf()) != 0 {
		t.Errorf("Expected no stripes for no keys")
	}
}

func TestIndexAgreement(t *testing.T) {
	b := newTestBag(4)

	_ = b.Add("a", 1, 10, 2)
	_ = b.Add("b", 1, 20, 2)
	_ = b.Add("c", 2, 10, 2)
	_, _ = b.DoOps([]ledger.Op{ledger.Decrement("a", 2), ledger.Increment("d", 3, 30, 1)})

	b.items.Range(func(key string, item ledger.Item) bool {
		if !b.categories.contains(item.Category, key) {
			t.Errorf("Key %q missing in category %d", key, item.Category)
		}
		if !b.templates.contains(item.Template, key) {
			t.Errorf("Key %q missing in template %d", key, item.Template)
		}
		return true
	})

	b.categories.sets.Range(func(category uint32, set keySet) bool {
		for key := range set {
			item, ok := b.items.Load(key)
			if !ok || item.Category != category {
				t.Errorf("Category %d lists stale key %q", category, key)
			}
		}
		return true
	})

	if b.templates.contains(10, "a") {
		t.Errorf("Deleted key still in template index")
	}
}

func TestPoisonedStripe(t *testing.T) {
	b := newTestBag(4)
	_ = b.Add("A", 1, 1, 10)
	other := keyOnOtherStripe(t, b, "A")

	err := b.withKeys([]string{"A"}, func() error {
		panic("simulated failure")
	})
	if !errors.Is(err, ledger.ErrLockFailure) {
		t.Fatalf("Expected LockFailure from panicking mutation, got %v", err)
	}

	if _, err := b.Get("A"); !errors.Is(err, ledger.ErrLockFailure) {
		t.Errorf("Expected Get to report LockFailure, got %v", err)
	}
	if _, err := b.Amount("A"); !errors.Is(err, ledger.ErrLockFailure) {
		t.Errorf("Expected Amount to report LockFailure, got %v", err)
	}
	if err := b.Add("A", 1, 1, 1); !errors.Is(err, ledger.ErrLockFailure) {
		t.Errorf("Expected Add to report LockFailure, got %v", err)
	}
	if err := b.Decrement("A", 1); !errors.Is(err, ledger.ErrLockFailure) {
		t.Errorf("Expected Decrement to report LockFailure, got %v", err)
	}
	if _, err := b.DoOps([]ledger.Op{ledger.Increment(other, 1, 1, 1), ledger.Decrement("A", 1)}); !errors.Is(err, ledger.ErrLockFailure) {
		t.Errorf("Expected DoOps to report LockFailure, got %v", err)
	}

	// LockFailure is never reported as NotFound
	if _, err := b.Get("A"); errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("LockFailure must not be conflated with NotFound")
	}

	// the failed batch must not have touched the healthy stripe, and the lock of the
	// healthy stripe must have been released again
	if _, err := b.Get(other); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Expected %q to be absent, got %v", other, err)
	}
	if err := b.Add(other, 1, 1, 1); err != nil {
		t.Errorf("Expected healthy stripe to accept writes, got %v", err)
	}

	// reads spanning the poisoned stripe fail as well
	if _, err := b.GetByCategory(1); !errors.Is(err, ledger.ErrLockFailure) {
		t.Errorf("Expected GetByCategory to report LockFailure, got %v", err)
	}
	if _, err := b.GetByTemplate(1); !errors.Is(err, ledger.ErrLockFailure) {
		t.Errorf("Expected GetByTemplate to report LockFailure, got %v", err)
	}
	if _, err := b.AmountByCategory(1); !errors.Is(err, ledger.ErrLockFailure) {
		t.Errorf("Expected AmountByCategory to report LockFailure, got %v", err)
	}
	if _, err := b.AmountByTemplate(1); !errors.Is(err, ledger.ErrLockFailure) {
		t.Errorf("Expected AmountByTemplate to report LockFailure, got %v", err)
	}
	if _, err := b.ToList(); !errors.Is(err, ledger.ErrLockFailure) {
		t.Errorf("Expected ToList to report LockFailure, got %v", err)
	}

	// an index without members on the poisoned stripe is still readable
	if items, err := b.GetByCategory(99); err != nil || len(items) != 0 {
		t.Errorf("Expected empty category without error, got %v (err %v)", items, err)
	}

	info, _ := b.GetInfo()
	if info.PoisonedStripes != 1 {
		t.Errorf("Expected 1 poisoned stripe, got %d", info.PoisonedStripes)
	}
}

func TestOverlappingBatchesNoDeadlock(t *testing.T) {
	b := newTestBag(16)
	keys := []string{"k1", "k2", "k3", "k4"}
	for _, key := range keys {
		_ = b.Add(key, 1, 1, 1_000_000)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for n := 0; n < 500; n++ {
				ops := make([]ledger.Op, 0, len(keys))
				for i := range keys {
					// alternate the key order between workers
					key := keys[i]
					if w%2 == 1 {
						key = keys[len(keys)-1-i]
					}
					ops = append(ops, ledger.Decrement(key, 1))
				}
				if _, err := b.DoOps(ops); err != nil {
					t.Errorf("DoOps failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for _, key := range keys {
		if amount, _ := b.Amount(key); amount != 1_000_000-8*500 {
			t.Errorf("Expected %d for %s, got %d", 1_000_000-8*500, key, amount)
		}
	}
}

func TestAddSaturating(t *testing.T) {
	if addSaturating(1, 2) != 3 {
		t.Errorf("Expected 1+2 = 3")
	}
	if addSaturating(^uint64(0), 1) != ^uint64(0) {
		t.Errorf("Expected saturation at max")
	}
	if addSaturating(^uint64(0)-5, 5) != ^uint64(0) {
		t.Errorf("Expected exact max without saturation")
	}
}
