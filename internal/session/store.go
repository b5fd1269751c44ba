package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultIdleTTL    = 24 * time.Hour
	defaultMaxEntries = 10000
)

var ErrEmptyKey = errors.New("session key is required")

type Config struct {
	IdleTTL    time.Duration
	MaxEntries int
}

type entry[V any] struct {
	lock  chan struct{}
	value V
	refs  int
}

// Store keeps one value per key and runs callers for the same key one at a
// time. Entries nobody is using sit in an expiring LRU and are dropped after
// IdleTTL or when MaxEntries is exceeded; entries in use are never evicted.
type Store[V any] struct {
	mu       sync.Mutex
	active   map[string]*entry[V]
	idle     *expirable.LRU[string, *entry[V]]
	newValue func(key string) V
}

func New[V any](cfg Config, newValue func(key string) V) *Store[V] {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if newValue == nil {
		newValue = func(string) V {
			var zero V
			return zero
		}
	}
	return &Store[V]{
		active:   map[string]*entry[V]{},
		idle:     expirable.NewLRU[string, *entry[V]](cfg.MaxEntries, nil, cfg.IdleTTL),
		newValue: newValue,
	}
}

// With gets or creates the value for key and calls fn with exclusive access
// to it. Changes fn makes through the pointer are kept.
func (s *Store[V]) With(ctx context.Context, key string, fn func(*V) error) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	e := s.acquire(key)
	defer s.release(key, e)

	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.lock }()
	return fn(&e.value)
}

// Reset drops the stored value for key. A caller currently inside With keeps
// its copy until it returns.
func (s *Store[V]) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle.Remove(strings.TrimSpace(key))
}

// Len counts idle and in-use entries.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) + s.idle.Len()
}

func (s *Store[V]) acquire(key string) *entry[V] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.active[key]; ok {
		e.refs++
		return e
	}
	e, ok := s.idle.Get(key)
	if ok {
		s.idle.Remove(key)
	} else {
		e = &entry[V]{lock: make(chan struct{}, 1), value: s.newValue(key)}
	}
	e.refs = 1
	s.active[key] = e
	return e
}

func (s *Store[V]) release(key string, e *entry[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refs--
	if e.refs > 0 {
		return
	}
	delete(s.active, key)
	s.idle.Add(key, e)
}
