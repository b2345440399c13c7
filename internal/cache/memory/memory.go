package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-update-relay/update-relay/internal/cache"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
)

// Store keeps cache entries in process memory.
type Store struct {
	cache *gocache.Cache
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := val.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("unexpected cache value of type %T", val)
	}
	return data, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.cache.Set(key, value, gocache.DefaultExpiration)
	return nil
}

// ItemCount returns the number of stored entries, expired ones included.
func (s *Store) ItemCount() int {
	return s.cache.ItemCount()
}

type keyedSemaphore struct {
	sem  *semaphore.Weighted
	refs int
}

// Locker serializes work per key within one process.
type Locker struct {
	mu      sync.Mutex
	keys    map[string]*keyedSemaphore
	timeout time.Duration
}

// NewLocker creates a locker. A positive timeout bounds how long Lock waits.
func NewLocker(timeout time.Duration) *Locker {
	return &Locker{
		keys:    make(map[string]*keyedSemaphore),
		timeout: timeout,
	}
}

func (l *Locker) acquireRef(key string) *keyedSemaphore {
	l.mu.Lock()
	defer l.mu.Unlock()
	ks, ok := l.keys[key]
	if !ok {
		ks = &keyedSemaphore{sem: semaphore.NewWeighted(1)}
		l.keys[key] = ks
	}
	ks.refs++
	return ks
}

func (l *Locker) releaseRef(key string, ks *keyedSemaphore) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ks.refs--
	if ks.refs == 0 {
		delete(l.keys, key)
	}
}

func (l *Locker) Lock(ctx context.Context, key string) (cache.Lock, error) {
	ks := l.acquireRef(key)
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	if err := ks.sem.Acquire(ctx, 1); err != nil {
		l.releaseRef(key, ks)
		return nil, fmt.Errorf("could not acquire lock: %w", err)
	}
	return &lock{locker: l, key: key, ks: ks}, nil
}

// Held returns the number of keys that are locked or waited on.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

type lock struct {
	once   sync.Once
	locker *Locker
	key    string
	ks     *keyedSemaphore
}

func (l *lock) Unlock(context.Context) error {
	l.once.Do(func() {
		l.ks.sem.Release(1)
		l.locker.releaseRef(l.key, l.ks)
	})
	return nil
}
