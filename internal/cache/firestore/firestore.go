package firestore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-update-relay/update-relay/internal/cache"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

type entry struct {
	Value     []byte    `firestore:"value"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

type lease struct {
	Owner     string    `firestore:"owner"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

func docID(key string) string {
	return url.PathEscape(key)
}

// Store keeps cache entries in the "<prefix>-cache" collection.
type Store struct {
	db     *firestore.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(db *firestore.Client, collectionPrefix string, ttl time.Duration) *Store {
	return &Store{
		db:     db,
		prefix: collectionPrefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *Store) getDocRef(key string) *firestore.DocumentRef {
	return s.db.Collection(s.prefix + "-cache").Doc(docID(key))
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	snap, err := s.getDocRef(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e entry
	if err := snap.DataTo(&e); err != nil {
		return nil, false, err
	}
	if !e.ExpiresAt.IsZero() && s.now().After(e.ExpiresAt) {
		return nil, false, nil
	}
	return e.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.getDocRef(key).Set(ctx, &entry{
		Value:     value,
		ExpiresAt: s.now().Add(s.ttl),
	})
	return err
}

// Locker hands out leases stored in the "<prefix>-locks" collection. A lease
// that outlives its duration may be taken over by another owner.
type Locker struct {
	db         *firestore.Client
	prefix     string
	leaseTime  time.Duration
	retryDelay time.Duration
	now        func() time.Time
}

func NewLocker(db *firestore.Client, collectionPrefix string, leaseTime, retryDelay time.Duration) *Locker {
	return &Locker{
		db:         db,
		prefix:     collectionPrefix,
		leaseTime:  leaseTime,
		retryDelay: retryDelay,
		now:        time.Now,
	}
}

func (l *Locker) getDocRef(key string) *firestore.DocumentRef {
	return l.db.Collection(l.prefix + "-locks").Doc(docID(key))
}

func (l *Locker) tryAcquire(ctx context.Context, ref *firestore.DocumentRef, owner string) (bool, error) {
	newLease := &lease{Owner: owner, ExpiresAt: l.now().Add(l.leaseTime)}
	_, err := ref.Create(ctx, newLease)
	if err == nil {
		return true, nil
	}
	if status.Code(err) != codes.AlreadyExists {
		return false, err
	}

	acquired := false
	err = l.db.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		acquired = false
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			acquired = true
			return tx.Create(ref, newLease)
		}
		if err != nil {
			return err
		}
		var current lease
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		if l.now().Before(current.ExpiresAt) {
			return nil
		}
		acquired = true
		return tx.Set(ref, newLease)
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

func (l *Locker) Lock(ctx context.Context, key string) (cache.Lock, error) {
	ref := l.getDocRef(key)
	owner := uuid.NewString()
	deadline := l.now().Add(l.leaseTime)
	for {
		acquired, err := l.tryAcquire(ctx, ref, owner)
		if err != nil {
			return nil, fmt.Errorf("could not acquire lease %s: %w", ref.ID, err)
		}
		if acquired {
			return &lock{db: l.db, ref: ref, owner: owner}, nil
		}
		if l.now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

type lock struct {
	db    *firestore.Client
	ref   *firestore.DocumentRef
	owner string
}

// Unlock deletes the lease unless another owner has taken it over.
func (l *lock) Unlock(ctx context.Context) error {
	return l.db.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(l.ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var current lease
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		if current.Owner != l.owner {
			return nil
		}
		return tx.Delete(l.ref)
	})
}
