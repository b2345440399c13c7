package firestore

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Runs against the emulator started with
// gcloud emulators firestore start --host-port=127.0.0.1:9090
func newTestClient(t *testing.T) (*firestore.Client, string) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set")
	}
	db, err := firestore.NewClient(context.Background(), "update-relay")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, "test-" + uuid.NewString()
}

func TestDocID(t *testing.T) {
	require.Equal(t, "owner%2Frepo-v1.0.0", docID("owner/repo-v1.0.0"))
}

func TestStore(t *testing.T) {
	db, prefix := newTestClient(t)
	ctx := context.Background()
	s := NewStore(db, prefix, time.Minute)

	_, ok, err := s.Get(ctx, "owner/repo")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "owner/repo", []byte("{}")))
	data, ok, err := s.Get(ctx, "owner/repo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "{}", string(data))

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, ok, err = s.Get(ctx, "owner/repo")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocker(t *testing.T) {
	db, prefix := newTestClient(t)
	l := NewLocker(db, prefix, 10*time.Second, 10*time.Millisecond)

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock, err := l.Lock(context.Background(), "owner/repo")
			require.NoError(t, err)
			n := active.Add(1)
			if n > maxActive.Load() {
				maxActive.Store(n)
			}
			time.Sleep(20 * time.Millisecond)
			active.Add(-1)
			require.NoError(t, lock.Unlock(context.Background()))
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, maxActive.Load())
}

func TestLockerStaleLease(t *testing.T) {
	db, prefix := newTestClient(t)
	ctx := context.Background()
	stale := NewLocker(db, prefix, time.Millisecond, time.Millisecond)
	first, err := stale.Lock(ctx, "owner/repo")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	second, err := stale.Lock(ctx, "owner/repo")
	require.NoError(t, err)

	// the previous owner must not release the new lease
	require.NoError(t, first.Unlock(ctx))
	snap, err := stale.getDocRef("owner/repo").Get(ctx)
	require.NoError(t, err)
	require.True(t, snap.Exists())

	require.NoError(t, second.Unlock(ctx))
	_, err = stale.getDocRef("owner/repo").Get(ctx)
	require.Error(t, err)
}
