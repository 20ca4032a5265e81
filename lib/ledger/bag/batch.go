package bag

import (
	"fmt"
	"math"

	"github.com/ValentinKolb/dLedger/lib/ledger"
)

// --------------------------------------------------------------------------
// Batch validation
// --------------------------------------------------------------------------

// VerifyOps implements ledger.ILedger. No locks are taken.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *bagImpl) VerifyOps(ops []ledger.Op) (bool, error) {
	if err := ledger.ValidateOps(ops); err != nil {
		return false, nil
	}
	return b.feasible(ops) == nil, nil
}

// feasible checks the aggregated decrement demand of every key against its current
// quantity. Increments in the same batch never cover a decrement.
func (b *bagImpl) feasible(ops []ledger.Op) error {
	demand := make(map[string]uint64)
	order := make([]string, 0)

	for _, op := range ops {
		if op.Kind != ledger.OpDecrement || op.Amount == 0 {
			continue
		}
		current, seen := demand[op.Key]
		if !seen {
			order = append(order, op.Key)
		}
		if op.Amount > math.MaxUint64-current {
			return ledger.NewError(ledger.RetCIllegalOperations, fmt.Sprintf("demand for key '%s' overflows", op.Key))
		}
		demand[op.Key] = current + op.Amount
	}

	for _, key := range order {
		item, ok := b.items.Load(key)
		if !ok {
			return ledger.NewError(ledger.RetCIllegalOperations, fmt.Sprintf("cannot decrement absent key '%s'", key))
		}
		if item.Quantity < demand[key] {
			return ledger.NewError(ledger.RetCIllegalOperations,
				fmt.Sprintf("key '%s' has %d, batch requires %d", key, item.Quantity, demand[key]))
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Batch execution
// --------------------------------------------------------------------------

// DoOps implements ledger.ILedger.
// The stripes of all keys in the batch are held from validation until the last
// operation is applied, so no concurrent mutation can interleave.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *bagImpl) DoOps(ops []ledger.Op) ([]ledger.Effect, error) {
	if err := ledger.ValidateOps(ops); err != nil {
		return nil, err
	}

	keys := make([]string, len(ops))
	for i, op := range ops {
		keys[i] = op.Key
	}

	effects := make([]ledger.Effect, 0, len(ops))
	err := b.withKeys(keys, func() error {
		if err := b.feasible(ops); err != nil {
			Logger.Debugf("rejected batch of %d operation(s): %v", len(ops), err)
			return err
		}
		for _, op := range ops {
			var (
				effect ledger.Effect
				ok     bool
			)
			switch op.Kind {
			case ledger.OpIncrement:
				effect, ok = b.increment(op)
			case ledger.OpDecrement:
				effect, ok = b.decrement(op)
			}
			if ok {
				effects = append(effects, effect)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return effects, nil
}
