package config

import (
	"fmt"
	"sync"

	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Listener is called with the new settings after every change.
type Listener func(Config)

// Store holds the active configuration and notifies listeners of changes.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: a change that fails validation leaves the store unchanged.
//   - Listeners run synchronously after the change, outside the store lock.
type Store struct {
	mu        sync.RWMutex
	k         *koanf.Koanf
	cfg       Config
	listeners map[int]Listener
	nextID    int
}

// NewStore returns a Store holding cfg.
func NewStore(cfg Config) (*Store, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load settings: %w", err)
	}
	return newStore(k)
}

// LoadStore returns a Store initialised by Load.
func LoadStore(path string) (*Store, error) {
	k, err := load(path)
	if err != nil {
		return nil, err
	}
	return newStore(k)
}

func newStore(k *koanf.Koanf) (*Store, error) {
	cfg, err := decode(k)
	if err != nil {
		return nil, err
	}
	return &Store{k: k, cfg: *cfg, listeners: make(map[int]Listener)}, nil
}

// Get returns a copy of the active settings.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.clone()
}

// Set changes one setting.
func (s *Store) Set(key string, value any) error {
	return s.SetMany(map[string]any{key: value})
}

// SetMany changes several settings at once. Either all of them apply or
// none does.
func (s *Store) SetMany(values map[string]any) error {
	s.mu.Lock()
	next := s.k.Copy()
	for key, value := range values {
		if !knownKey(key) {
			s.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
		if err := next.Set(key, value); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("config: set %s: %w", key, err)
		}
	}
	if err := splitSlices(next); err != nil {
		s.mu.Unlock()
		return err
	}
	cfg, err := decode(next)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.k, s.cfg = next, *cfg
	s.mu.Unlock()

	s.notify(cfg.clone())
	return nil
}

// Temporary applies values while fn runs, then restores the previous
// settings. Listeners see both changes.
func (s *Store) Temporary(values map[string]any, fn func() error) error {
	s.mu.RLock()
	saved := s.k.Copy()
	s.mu.RUnlock()

	if err := s.SetMany(values); err != nil {
		return err
	}
	defer s.restore(saved)
	return fn()
}

func (s *Store) restore(k *koanf.Koanf) {
	cfg, err := decode(k)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.k, s.cfg = k, *cfg
	s.mu.Unlock()
	s.notify(cfg.clone())
}

// OnChange registers fn and returns a function that unregisters it.
func (s *Store) OnChange(fn Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(cfg Config) {
	s.mu.RLock()
	fns := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(cfg)
	}
}

// keys lists the settings Set accepts. Admin credentials are read at
// startup only.
var keys = []string{
	KeyCachePolicy, KeyCacheSize, KeyCacheStrict, KeyMatrixSource, KeyCacheDir,
	KeyDownloadTimeout, KeyBackendOrder, KeyHTTPHeaders, KeyLogLevel, KeyLogFormat,
	KeyMetricsExporter, KeyTracingExporter, KeyServerAddress, KeyRateLimit,
}

func knownKey(key string) bool {
	for _, k := range keys {
		if key == k || len(key) > len(k) && key[:len(k)+1] == k+"." {
			return true
		}
	}
	return false
}
