package bag

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dLedger/lib/ledger"
	"github.com/ValentinKolb/dLedger/lib/util"
)

// --------------------------------------------------------------------------
// Lock stripes (per-key mutation exclusion)
// --------------------------------------------------------------------------

// stripe serializes all mutations of the keys hashed onto it.
// A stripe is poisoned when a mutation panics while holding it: the items guarded by
// it may be half updated, so every later acquisition fails with RetCLockFailure.
type stripe struct {
	mu       sync.Mutex
	poisoned atomic.Bool
}

// stripeOf returns the stripe index for a key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *bagImpl) stripeOf(key string) int {
	return util.Bucket(util.HashString(key, b.seed), len(b.stripes))
}

// stripesOf returns the sorted, deduplicated stripe indices of the given keys.
// Acquiring stripes in ascending order prevents deadlocks between overlapping batches.
func (b *bagImpl) stripesOf(keys ...string) []int {
	idx := make([]int, 0, len(keys))
	for _, key := range keys {
		idx = append(idx, b.stripeOf(key))
	}
	slices.Sort(idx)
	return slices.Compact(idx)
}

// checkStripe returns a lock failure if the stripe of key is poisoned.
// Used by readers, which never take stripe locks.
func (b *bagImpl) checkStripe(key string) error {
	if b.stripes[b.stripeOf(key)].poisoned.Load() {
		return ledger.NewError(ledger.RetCLockFailure, fmt.Sprintf("lock for key '%s' is poisoned", key))
	}
	return nil
}

// lockStripes acquires all given stripes in order.
// If one of them is poisoned, all stripes acquired so far are released again.
func (b *bagImpl) lockStripes(idx []int) error {
	for i, s := range idx {
		st := b.stripes[s]
		st.mu.Lock()
		if st.poisoned.Load() {
			st.mu.Unlock()
			b.unlockStripes(idx[:i])
			return ledger.NewError(ledger.RetCLockFailure, fmt.Sprintf("lock stripe %d is poisoned", s))
		}
	}
	return nil
}

// unlockStripes releases the given stripes
func (b *bagImpl) unlockStripes(idx []int) {
	for i := len(idx) - 1; i >= 0; i-- {
		b.stripes[idx[i]].mu.Unlock()
	}
}

// withKeys runs fn while holding the stripes of all given keys.
// A panic inside fn poisons the held stripes and is reported as RetCLockFailure.
func (b *bagImpl) withKeys(keys []string, fn func() error) (err error) {
	idx := b.stripesOf(keys...)
	if err := b.lockStripes(idx); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			for _, s := range idx {
				b.stripes[s].poisoned.Store(true)
			}
			Logger.Errorf("mutation panicked, poisoned %d lock stripe(s): %v", len(idx), r)
			err = ledger.NewError(ledger.RetCLockFailure, fmt.Sprintf("mutation panicked: %v", r))
		}
		b.unlockStripes(idx)
	}()

	return fn()
}
