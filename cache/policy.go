package cache

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// NoLimit is the maximum memory reported by policies without a byte budget.
const NoLimit int64 = -1

// Policy names accepted by PolicyByName.
const (
	PolicyOff       = "off"
	PolicyUnlimited = "unlimited"
	PolicyLRU       = "lru"
	PolicyLargest   = "largest"
)

// PolicyNames lists the valid policy names.
var PolicyNames = []string{PolicyOff, PolicyUnlimited, PolicyLargest, PolicyLRU}

// Item describes one cached entry as seen by a Policy.
type Item struct {
	Key  string
	Size int64
}

// Policy decides whether the cache is used and which entries to evict.
//
// Contract:
//   - Concurrency: implementations must be stateless and safe for concurrent use.
//   - Evict must not retain or modify items.
type Policy interface {
	// Name returns the policy name.
	Name() string

	// HasCache reports whether lookups consult the cache at all.
	HasCache() bool

	// HasLimit reports whether a finite byte budget is enforced.
	HasLimit() bool

	// Check validates maxMem and returns the budget the cache should use.
	Check(maxMem int64) (int64, error)

	// Evict returns the keys to remove so that the usage drops strictly
	// below target, or every key if that is impossible. items are ordered
	// from least to most recently used and curr is their total size.
	Evict(items []Item, curr, target int64) []string
}

// PolicyByName returns the policy registered under name.
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case PolicyOff:
		return Off{}, nil
	case PolicyUnlimited:
		return Unlimited{}, nil
	case PolicyLRU:
		return LRU{}, nil
	case PolicyLargest:
		return Largest{}, nil
	default:
		return nil, fmt.Errorf("%w: %q, valid values are %v", ErrUnknownPolicy, name, PolicyNames)
	}
}

// Off disables caching.
type Off struct{}

// Name implements Policy.
func (Off) Name() string { return PolicyOff }

// HasCache implements Policy.
func (Off) HasCache() bool { return false }

// HasLimit implements Policy.
func (Off) HasLimit() bool { return false }

// Check implements Policy.
func (Off) Check(int64) (int64, error) { return 0, nil }

// Evict returns every key; nothing is kept.
func (Off) Evict(items []Item, _, _ int64) []string { return keys(items) }

// Unlimited caches everything and never evicts.
type Unlimited struct{}

// Name implements Policy.
func (Unlimited) Name() string { return PolicyUnlimited }

// HasCache implements Policy.
func (Unlimited) HasCache() bool { return true }

// HasLimit implements Policy.
func (Unlimited) HasLimit() bool { return false }

// Check implements Policy.
func (Unlimited) Check(int64) (int64, error) { return NoLimit, nil }

// Evict implements Policy.
func (Unlimited) Evict([]Item, int64, int64) []string { return nil }

// LRU evicts the least recently used entries first.
type LRU struct{}

// Name implements Policy.
func (LRU) Name() string { return PolicyLRU }

// HasCache implements Policy.
func (LRU) HasCache() bool { return true }

// HasLimit implements Policy.
func (LRU) HasLimit() bool { return true }

// Check implements Policy.
func (LRU) Check(maxMem int64) (int64, error) { return checkLimit(PolicyLRU, maxMem) }

// Evict walks items from least to most recently used.
func (LRU) Evict(items []Item, curr, target int64) []string {
	var out []string
	for _, it := range items {
		if curr < target {
			break
		}
		out = append(out, it.Key)
		curr -= it.Size
	}
	return out
}

// Largest repeatedly evicts the biggest entry. Entries of equal size are
// evicted in key order.
type Largest struct{}

// Name implements Policy.
func (Largest) Name() string { return PolicyLargest }

// HasCache implements Policy.
func (Largest) HasCache() bool { return true }

// HasLimit implements Policy.
func (Largest) HasLimit() bool { return true }

// Check implements Policy.
func (Largest) Check(maxMem int64) (int64, error) { return checkLimit(PolicyLargest, maxMem) }

// Evict implements Policy.
func (Largest) Evict(items []Item, curr, target int64) []string {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b Item) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})

	var out []string
	for _, it := range sorted {
		if curr < target {
			break
		}
		out = append(out, it.Key)
		curr -= it.Size
	}
	return out
}

func checkLimit(policy string, maxMem int64) (int64, error) {
	if maxMem <= 0 {
		return 0, fmt.Errorf("%w: policy %q requires a positive size, got %d", ErrInvalidMaxMemory, policy, maxMem)
	}
	return maxMem, nil
}

func keys(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Key
	}
	return out
}

var (
	_ Policy = Off{}
	_ Policy = Unlimited{}
	_ Policy = LRU{}
	_ Policy = Largest{}
)
