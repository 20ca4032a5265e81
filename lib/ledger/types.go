package ledger

import (
	"fmt"

	"github.com/ValentinKolb/dLedger/lib/util"
)

// --------------------------------------------------------------------------
// Item
// --------------------------------------------------------------------------

// Item is a countable entry of a ledger. An item only exists while its quantity is
// greater than zero.
type Item struct {
	Key      string `json:"key"`      // Unique identifier
	Category uint32 `json:"category"` // Classification of the item type
	Template uint64 `json:"template"` // Configuration the item was instantiated from
	Quantity uint64 `json:"quantity"`
}

func (i Item) String() string {
	return fmt.Sprintf("Item{Key: %q, Category: %d, Template: %d, Quantity: %d}", i.Key, i.Category, i.Template, i.Quantity)
}

// --------------------------------------------------------------------------
// Operations (batch input)
// --------------------------------------------------------------------------

// OpKind is the kind of mutation an Op requests. The numeric values are the kind
// codes used on the wire.
type OpKind uint8

const (
	OpIncrement OpKind = 1
	OpDecrement OpKind = 2
)

func (k OpKind) String() string {
	switch k {
	case OpIncrement:
		return "Increment"
	case OpDecrement:
		return "Decrement"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

// Op requests a mutation of one key. Category and Template are only used by increments
// that create the item; decrements always act on the stored item.
type Op struct {
	Kind     OpKind
	Key      string
	Category uint32
	Template uint64
	Amount   uint64
}

// Increment creates an Op that adds amount to key.
func Increment(key string, category uint32, template uint64, amount uint64) Op {
	return Op{Kind: OpIncrement, Key: key, Category: category, Template: template, Amount: amount}
}

// Decrement creates an Op that subtracts amount from key.
func Decrement(key string, amount uint64) Op {
	return Op{Kind: OpDecrement, Key: key, Amount: amount}
}

// ValidateOps checks that every operation has a valid input kind.
func ValidateOps(ops []Op) error {
	for i, op := range ops {
		if op.Kind != OpIncrement && op.Kind != OpDecrement {
			return NewError(RetCUnsupportedOperation, fmt.Sprintf("operation %d: invalid kind %d", i, op.Kind))
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Effects (batch output)
// --------------------------------------------------------------------------

// EffectKind describes what happened to an item. Incremented and Decremented share
// their codes with the operation kinds; Created and Deleted are output only.
type EffectKind uint8

const (
	EffectIncremented EffectKind = 1
	EffectDecremented EffectKind = 2
	EffectCreated     EffectKind = 3
	EffectDeleted     EffectKind = 4
)

func (k EffectKind) String() string {
	switch k {
	case EffectIncremented:
		return "Incremented"
	case EffectDecremented:
		return "Decremented"
	case EffectCreated:
		return "Created"
	case EffectDeleted:
		return "Deleted"
	default:
		return fmt.Sprintf("EffectKind(%d)", uint8(k))
	}
}

// Effect records the state of one item right after an operation was applied.
// For EffectDeleted the snapshot has quantity 0.
type Effect struct {
	Kind EffectKind `json:"kind"`
	Item Item       `json:"item"`
}

// --------------------------------------------------------------------------
// Info
// --------------------------------------------------------------------------

// Info holds metadata about a ledger. All values are sampled without a global lock
// and may be slightly stale under concurrent writes.
type Info struct {
	Items              int                    `json:"items"`
	Categories         int                    `json:"categories"`
	Templates          int                    `json:"templates"`
	Stripes            int                    `json:"stripes"`
	PoisonedStripes    int                    `json:"poisoned_stripes"`
	StripeDistribution util.DistributionStats `json:"stripe_distribution"`
}
