package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(time.Minute)

	_, ok, err := s.Get(ctx, "owner/repo")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "owner/repo", []byte("{}")))
	data, ok, err := s.Get(ctx, "owner/repo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "{}", string(data))
	require.Equal(t, 1, s.ItemCount())
}

func TestStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewStore(20 * time.Millisecond)
	require.NoError(t, s.Set(ctx, "owner/repo", []byte("{}")))
	require.Eventually(t, func() bool {
		_, ok, err := s.Get(ctx, "owner/repo")
		return err == nil && !ok
	}, time.Second, 10*time.Millisecond)
}

func TestLockerMutualExclusion(t *testing.T) {
	l := NewLocker(0)
	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock, err := l.Lock(context.Background(), "owner/repo")
			require.NoError(t, err)
			n := active.Add(1)
			if n > maxActive.Load() {
				maxActive.Store(n)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			require.NoError(t, lock.Unlock(context.Background()))
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, maxActive.Load())
	require.Zero(t, l.Held())
}

func TestLockerIndependentKeys(t *testing.T) {
	l := NewLocker(time.Second)
	a, err := l.Lock(context.Background(), "owner/a")
	require.NoError(t, err)
	b, err := l.Lock(context.Background(), "owner/b")
	require.NoError(t, err)
	require.Equal(t, 2, l.Held())
	require.NoError(t, a.Unlock(context.Background()))
	require.NoError(t, b.Unlock(context.Background()))
	require.Zero(t, l.Held())
}

func TestLockerTimeout(t *testing.T) {
	l := NewLocker(20 * time.Millisecond)
	held, err := l.Lock(context.Background(), "owner/repo")
	require.NoError(t, err)

	_, err = l.Lock(context.Background(), "owner/repo")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// a second unlock is a no-op
	require.NoError(t, held.Unlock(context.Background()))
	require.NoError(t, held.Unlock(context.Background()))
	require.Zero(t, l.Held())
}
