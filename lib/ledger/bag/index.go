package bag

import "github.com/puzpuzpuz/xsync/v3"

// --------------------------------------------------------------------------
// Secondary index (index key -> set of item keys)
// --------------------------------------------------------------------------

// keySet is the set of item keys stored under one index key.
// It is only ever read or written inside a Compute callback of the owning map,
// which holds the bucket lock for that index key.
type keySet map[string]struct{}

// index is a concurrent multi-map from an index key (category or template)
// to the set of item keys currently carrying it
type index[K comparable] struct {
	sets *xsync.MapOf[K, keySet]
}

func newIndex[K comparable]() *index[K] {
	return &index[K]{
		sets: xsync.NewMapOf[K, keySet](),
	}
}

// insert adds key to the set of k, creating the set if needed
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (idx *index[K]) insert(k K, key string) {
	idx.sets.Compute(k, func(set keySet, loaded bool) (keySet, bool) {
		if !loaded {
			set = make(keySet, 1)
		}
		set[key] = struct{}{}
		return set, false
	})
}

// remove deletes key from the set of k. Empty sets are dropped.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (idx *index[K]) remove(k K, key string) {
	idx.sets.Compute(k, func(set keySet, loaded bool) (keySet, bool) {
		if !loaded {
			return set, true // set delete to true because else the value will be created
		}
		delete(set, key)
		return set, len(set) == 0
	})
}

// members returns a copy of the keys stored under k (nil if k is unknown)
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (idx *index[K]) members(k K) []string {
	var keys []string
	idx.sets.Compute(k, func(set keySet, loaded bool) (keySet, bool) {
		if !loaded {
			return set, true
		}
		keys = make([]string, 0, len(set))
		for key := range set {
			keys = append(keys, key)
		}
		return set, false
	})
	return keys
}

// contains reports whether key is stored under k
func (idx *index[K]) contains(k K, key string) bool {
	var ok bool
	idx.sets.Compute(k, func(set keySet, loaded bool) (keySet, bool) {
		if !loaded {
			return set, true
		}
		_, ok = set[key]
		return set, false
	})
	return ok
}

// size returns the number of distinct index keys
func (idx *index[K]) size() int {
	return idx.sets.Size()
}
