package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/regrid/observe"
)

// Config selects the policy and budget of a MemoryCache.
type Config struct {
	// Policy is one of PolicyNames.
	Policy string

	// MaxMemory is the byte budget. It is ignored by Off and Unlimited.
	MaxMemory int64

	// Strict refuses matrices whose estimated size does not fit, instead
	// of decoding them and evicting afterwards.
	Strict bool
}

// CreateFunc builds the value for args on a miss.
type CreateFunc[V any] func(ctx context.Context, args []any) (V, error)

// Prepared carries the size estimate of a value that has not been built
// yet, and the function that builds it.
type Prepared[V any] struct {
	Estimate int64
	Create   func(ctx context.Context) (V, error)
}

// PrepareFunc looks up the metadata for args without decoding anything.
type PrepareFunc[V any] func(ctx context.Context, args []any) (Prepared[V], error)

// SizeFunc reports the memory held by a value.
type SizeFunc[V any] func(V) int64

// Recorder receives cache activity.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: implementations must not panic.
type Recorder interface {
	RecordHit(ctx context.Context)
	RecordMiss(ctx context.Context)
	RecordEviction(ctx context.Context, size int64)
	RecordUsage(ctx context.Context, bytes int64, count int)
}

// Info is a point-in-time snapshot of a MemoryCache.
type Info struct {
	Hits     int64  `json:"hits"`
	Misses   int64  `json:"misses"`
	MaxSize  int64  `json:"maxsize"`
	CurrSize int64  `json:"currsize"`
	Count    int    `json:"count"`
	Policy   string `json:"policy"`
}

// Option configures a MemoryCache.
type Option func(*options)

type options struct {
	keyer    Keyer
	logger   observe.Logger
	recorder Recorder
}

// WithKeyer overrides the DefaultKeyer.
func WithKeyer(k Keyer) Option {
	return func(o *options) { o.keyer = k }
}

// WithLogger sets the logger used for evictions and refusals.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRecorder reports hits, misses, evictions and usage to r.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

type memoryItem[V any] struct {
	key  string
	data V
	size int64
}

// MemoryCache is a memory-bounded cache of decoded values.
//
// All lookups, insertions and evictions run in a single critical section,
// so a value is built at most once per key and miss. Only the Off policy
// bypasses the lock.
type MemoryCache[V any] struct {
	sizeFn SizeFunc[V]
	opts   options

	// policy is read without the lock on the bypass path.
	policyMu sync.RWMutex
	policy   Policy

	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // front is least recently used
	maxMem  int64
	strict  bool
	currMem int64
	hits    int64
	misses  int64
}

// New creates a MemoryCache. sizeFn measures decoded values.
func New[V any](cfg Config, sizeFn SizeFunc[V], opts ...Option) (*MemoryCache[V], error) {
	if sizeFn == nil {
		return nil, ErrNilSizeFunc
	}
	c := &MemoryCache[V]{
		sizeFn: sizeFn,
		items:  make(map[string]*list.Element),
		order:  list.New(),
	}
	for _, opt := range opts {
		opt(&c.opts)
	}
	if c.opts.keyer == nil {
		c.opts.keyer = NewDefaultKeyer()
	}
	if c.opts.logger == nil {
		c.opts.logger = observe.NopLogger()
	}

	policy, maxMem, err := resolve(cfg)
	if err != nil {
		return nil, err
	}
	c.policy, c.maxMem, c.strict = policy, maxMem, cfg.Strict
	return c, nil
}

func resolve(cfg Config) (Policy, int64, error) {
	policy, err := PolicyByName(cfg.Policy)
	if err != nil {
		return nil, 0, err
	}
	maxMem, err := policy.Check(cfg.MaxMemory)
	if err != nil {
		return nil, 0, err
	}
	return policy, maxMem, nil
}

func (c *MemoryCache[V]) currentPolicy() Policy {
	c.policyMu.RLock()
	defer c.policyMu.RUnlock()
	return c.policy
}

// Get returns the cached value for args, building it on a miss.
//
// With a bounded policy and a non-nil prepare, the entry size is estimated
// before decoding: space is freed in advance when the estimate fits the
// budget, and in strict mode ErrCapacityExceeded is returned without calling
// create when it cannot fit. Otherwise create is called. Errors from prepare
// and create are returned unchanged and leave the cache untouched.
func (c *MemoryCache[V]) Get(ctx context.Context, args []any, create CreateFunc[V], prepare PrepareFunc[V]) (V, error) {
	var zero V
	if create == nil {
		return zero, ErrNilCreate
	}

	if !c.currentPolicy().HasCache() {
		return create(ctx, args)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	policy := c.policy
	if !policy.HasCache() {
		return create(ctx, args)
	}

	key, err := c.opts.keyer.Key(args)
	if err != nil {
		return zero, err
	}

	if el, ok := c.items[key]; ok {
		c.order.MoveToBack(el)
		c.hits++
		if c.opts.recorder != nil {
			c.opts.recorder.RecordHit(ctx)
		}
		return el.Value.(*memoryItem[V]).data, nil
	}

	var data V
	if policy.HasLimit() && prepare != nil {
		data, err = c.createWithEstimate(ctx, policy, args, prepare)
	} else {
		data, err = create(ctx, args)
	}
	if err != nil {
		return zero, err
	}

	item := &memoryItem[V]{key: key, data: data, size: c.sizeFn(data)}
	c.items[key] = c.order.PushBack(item)
	c.recompute()
	c.misses++
	if c.opts.recorder != nil {
		c.opts.recorder.RecordMiss(ctx)
	}

	c.reduce(ctx, policy, c.maxMem)
	return data, nil
}

// createWithEstimate must be called with c.mu held.
func (c *MemoryCache[V]) createWithEstimate(ctx context.Context, policy Policy, args []any, prepare PrepareFunc[V]) (V, error) {
	var zero V
	p, err := prepare(ctx, args)
	if err != nil {
		return zero, err
	}
	if p.Create == nil {
		return zero, ErrNilCreate
	}

	if p.Estimate > c.maxMem-c.currMem && p.Estimate <= c.maxMem {
		c.reduce(ctx, policy, c.maxMem-p.Estimate)
	}

	if c.strict && p.Estimate > c.maxMem-c.currMem {
		c.opts.logger.Warn(ctx, "matrix refused by strict memory cache",
			observe.F("estimate", p.Estimate),
			observe.F("max_memory", c.maxMem),
			observe.F("current_memory", c.currMem),
		)
		return zero, fmt.Errorf("%w: estimated %d bytes, %d of %d bytes free",
			ErrCapacityExceeded, p.Estimate, c.maxMem-c.currMem, c.maxMem)
	}
	return p.Create(ctx)
}

// reduce evicts entries until the usage is below target. It must be called
// with c.mu held.
func (c *MemoryCache[V]) reduce(ctx context.Context, policy Policy, target int64) {
	if policy.HasCache() && !policy.HasLimit() {
		c.recompute()
		return
	}

	victims := policy.Evict(c.snapshot(), c.currMem, target)
	for _, key := range victims {
		el, ok := c.items[key]
		if !ok {
			continue
		}
		item := c.order.Remove(el).(*memoryItem[V])
		delete(c.items, key)
		if c.opts.recorder != nil {
			c.opts.recorder.RecordEviction(ctx, item.size)
		}
		c.opts.logger.Debug(ctx, "matrix evicted from memory cache",
			observe.F("policy", policy.Name()),
			observe.F("size", item.size),
		)
	}
	c.recompute()
}

// snapshot lists the entries from least to most recently used.
func (c *MemoryCache[V]) snapshot() []Item {
	out := make([]Item, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		it := el.Value.(*memoryItem[V])
		out = append(out, Item{Key: it.key, Size: it.size})
	}
	return out
}

func (c *MemoryCache[V]) recompute() {
	var total int64
	for el := c.order.Front(); el != nil; el = el.Next() {
		total += el.Value.(*memoryItem[V]).size
	}
	c.currMem = max(total, 0)
	if c.opts.recorder != nil {
		c.opts.recorder.RecordUsage(context.Background(), c.currMem, len(c.items))
	}
}

// Update applies a new configuration. It reports whether anything changed;
// when it did, entries are evicted to fit the new budget. An invalid
// configuration leaves the cache unchanged.
func (c *MemoryCache[V]) Update(cfg Config) (bool, error) {
	policy, maxMem, err := resolve(cfg)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if policy.Name() == c.policy.Name() && maxMem == c.maxMem && cfg.Strict == c.strict {
		return false, nil
	}

	c.policyMu.Lock()
	c.policy = policy
	c.policyMu.Unlock()
	c.maxMem, c.strict = maxMem, cfg.Strict

	ctx := context.Background()
	c.opts.logger.Info(ctx, "memory cache reconfigured",
		observe.F("policy", policy.Name()),
		observe.F("max_memory", maxMem),
		observe.F("strict", cfg.Strict),
	)
	c.reduce(ctx, policy, maxMem)
	if !policy.HasCache() {
		c.hits, c.misses = 0, 0
	}
	return true, nil
}

// Info returns a consistent snapshot of the cache state.
func (c *MemoryCache[V]) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Info{
		Hits:     c.hits,
		Misses:   c.misses,
		MaxSize:  c.maxMem,
		CurrSize: c.currMem,
		Count:    len(c.items),
		Policy:   c.policy.Name(),
	}
}

// Clear removes every entry and resets the counters.
func (c *MemoryCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.items)
	c.order.Init()
	c.hits, c.misses = 0, 0
	c.recompute()
}

// Contains reports whether a value for args is cached.
func (c *MemoryCache[V]) Contains(args []any) bool {
	key, err := c.opts.keyer.Key(args)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Strict reports whether strict mode is enabled.
func (c *MemoryCache[V]) Strict() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strict
}
