package bag

import (
	"fmt"
	"math"
	"runtime"

	"github.com/ValentinKolb/dLedger/lib/ledger"
	"github.com/ValentinKolb/dLedger/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("ledger")

// --------------------------------------------------------------------------
// Core bag structure
// --------------------------------------------------------------------------

// bagImpl is an in-memory ledger. Items live in a concurrent map with bucket level
// locking, categories and templates are tracked in two secondary indices.
// All mutations of a key run under the lock stripe of that key.
type bagImpl struct {
	seed       uint64                            // Seed for the stripe hash
	items      *xsync.MapOf[string, ledger.Item] // Primary store (key -> item)
	categories *index[uint32]                    // Category -> keys
	templates  *index[uint64]                    // Template -> keys
	stripes    []*stripe                         // Mutation locks
}

// Options configures the bag during initialization
type Options struct {
	NumStripes int // Number of lock stripes (0 = auto)
}

// DefaultOptions returns the default bag options
func DefaultOptions() *Options {
	return &Options{
		NumStripes: runtime.NumCPU() * 4,
	}
}

// --------------------------------------------------------------------------
// Initialization
// --------------------------------------------------------------------------

// NewBag creates a new, empty bag with the given options (optional)
func NewBag(opts *Options) ledger.ILedger {
	if opts == nil {
		opts = DefaultOptions()
	}
	numStripes := opts.NumStripes
	if numStripes <= 0 {
		numStripes = DefaultOptions().NumStripes
	}

	stripes := make([]*stripe, numStripes)
	for i := range stripes {
		stripes[i] = &stripe{}
	}

	return &bagImpl{
		seed:       util.GenerateSeed(),
		items:      xsync.NewMapOf[string, ledger.Item](),
		categories: newIndex[uint32](),
		templates:  newIndex[uint64](),
		stripes:    stripes,
	}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Add implements ledger.ILedger
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *bagImpl) Add(key string, category uint32, template uint64, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return b.withKeys([]string{key}, func() error {
		b.increment(ledger.Increment(key, category, template, amount))
		return nil
	})
}

// Decrement implements ledger.ILedger
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *bagImpl) Decrement(key string, amount uint64) error {
	return b.withKeys([]string{key}, func() error {
		item, ok := b.items.Load(key)
		if !ok {
			return ledger.NewError(ledger.RetCNotFound, fmt.Sprintf("key '%s' not found", key))
		}
		if item.Quantity < amount {
			return ledger.NewError(ledger.RetCIllegalOperations,
				fmt.Sprintf("cannot decrement key '%s' by %d, only %d available", key, amount, item.Quantity))
		}
		b.decrement(ledger.Decrement(key, amount))
		return nil
	})
}

// increment applies an increment while the stripe of op.Key is held.
// A new item is added to both indices before it becomes visible in the primary store.
// Returns false if the operation had no effect (amount 0 on an absent key).
func (b *bagImpl) increment(op ledger.Op) (ledger.Effect, bool) {
	item, ok := b.items.Load(op.Key)
	if ok {
		item.Quantity = addSaturating(item.Quantity, op.Amount)
		b.items.Store(op.Key, item)
		return ledger.Effect{Kind: ledger.EffectIncremented, Item: item}, true
	}

	if op.Amount == 0 {
		return ledger.Effect{}, false
	}

	item = ledger.Item{
		Key:      op.Key,
		Category: op.Category,
		Template: op.Template,
		Quantity: op.Amount,
	}
	b.categories.insert(item.Category, item.Key)
	b.templates.insert(item.Template, item.Key)
	b.items.Store(item.Key, item)
	return ledger.Effect{Kind: ledger.EffectCreated, Item: item}, true
}

// decrement applies a validated decrement while the stripe of op.Key is held.
// An item whose quantity reaches 0 is removed from both indices and then from the
// primary store. Returns false if the key is absent.
func (b *bagImpl) decrement(op ledger.Op) (ledger.Effect, bool) {
	item, ok := b.items.Load(op.Key)
	if !ok {
		return ledger.Effect{}, false
	}

	item.Quantity -= op.Amount
	if item.Quantity > 0 {
		b.items.Store(op.Key, item)
		return ledger.Effect{Kind: ledger.EffectDecremented, Item: item}, true
	}

	b.categories.remove(item.Category, item.Key)
	b.templates.remove(item.Template, item.Key)
	b.items.Delete(item.Key)
	return ledger.Effect{Kind: ledger.EffectDeleted, Item: item}, true
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get implements ledger.ILedger
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *bagImpl) Get(key string) (ledger.Item, error) {
	if err := b.checkStripe(key); err != nil {
		return ledger.Item{}, err
	}
	item, ok := b.items.Load(key)
	if !ok {
		return ledger.Item{}, ledger.NewError(ledger.RetCNotFound, fmt.Sprintf("key '%s' not found", key))
	}
	return item, nil
}

// GetByCategory implements ledger.ILedger
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *bagImpl) GetByCategory(category uint32) ([]ledger.Item, error) {
	return b.collect(b.categories.members(category), func(item ledger.Item) bool {
		return item.Category == category
	})
}

// GetByTemplate implements ledger.ILedger
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *bagImpl) GetByTemplate(template uint64) ([]ledger.Item, error) {
	return b.collect(b.templates.members(template), func(item ledger.Item) bool {
		return item.Template == template
	})
}

// Amount implements ledger.ILedger
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *bagImpl) Amount(key string) (uint64, error) {
	if err := b.checkStripe(key); err != nil {
		return 0, err
	}
	item, _ := b.items.Load(key)
	return item.Quantity, nil
}

// AmountByCategory implements ledger.ILedger
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *bagImpl) AmountByCategory(category uint32) (uint64, error) {
	items, err := b.GetByCategory(category)
	if err != nil {
		return 0, err
	}
	return sum(items), nil
}

// AmountByTemplate implements ledger.ILedger
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *bagImpl) AmountByTemplate(template uint64) (uint64, error) {
	items, err := b.GetByTemplate(template)
	if err != nil {
		return 0, err
	}
	return sum(items), nil
}

// ToList implements ledger.ILedger
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *bagImpl) ToList() ([]ledger.Item, error) {
	var err error
	items := make([]ledger.Item, 0, b.items.Size())
	b.items.Range(func(key string, item ledger.Item) bool {
		if err = b.checkStripe(key); err != nil {
			return false
		}
		items = append(items, item)
		return true
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// collect resolves index members against the primary store.
// Keys that are no longer stored (or were re-created with other attributes) are skipped.
// Fails with RetCLockFailure if a member lives on a poisoned stripe.
func (b *bagImpl) collect(keys []string, match func(ledger.Item) bool) ([]ledger.Item, error) {
	items := make([]ledger.Item, 0, len(keys))
	for _, key := range keys {
		if err := b.checkStripe(key); err != nil {
			return nil, err
		}
		if item, ok := b.items.Load(key); ok && match(item) {
			items = append(items, item)
		}
	}
	return items, nil
}

// --------------------------------------------------------------------------
// Info
// --------------------------------------------------------------------------

// GetInfo implements ledger.ILedger
func (b *bagImpl) GetInfo() (ledger.Info, error) {
	perStripe := make([]float64, len(b.stripes))
	count := 0
	b.items.Range(func(key string, _ ledger.Item) bool {
		perStripe[b.stripeOf(key)]++
		count++
		return true
	})

	poisoned := 0
	for _, s := range b.stripes {
		if s.poisoned.Load() {
			poisoned++
		}
	}

	return ledger.Info{
		Items:              count,
		Categories:         b.categories.size(),
		Templates:          b.templates.size(),
		Stripes:            len(b.stripes),
		PoisonedStripes:    poisoned,
		StripeDistribution: util.NewDistributionStats(perStripe),
	}, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// addSaturating adds two quantities, clamping at math.MaxUint64
func addSaturating(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func sum(items []ledger.Item) uint64 {
	var total uint64
	for _, item := range items {
		total = addSaturating(total, item.Quantity)
	}
	return total
}
