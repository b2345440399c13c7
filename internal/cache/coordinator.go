package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-update-relay/update-relay/internal/metrics"
	"github.com/go-update-relay/update-relay/internal/platform"
	"github.com/go-update-relay/update-relay/internal/release"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/tag"
)

// Resolver is the upstream lookup the coordinator fills the cache from.
type Resolver interface {
	ReleaseTag(account, repository string, arch platform.Arch, version string) string
	FetchLatest(ctx context.Context, account, repository string, arch platform.Arch, version string) (*release.LatestByPlatform, error)
}

// Coordinator answers release lookups from the cache and populates missing
// entries at most once per key at a time when a Locker is configured.
// Without a Locker concurrent misses may each query upstream.
type Coordinator struct {
	log      *logrus.Logger
	store    Store
	locker   Locker
	resolver Resolver
}

func NewCoordinator(log *logrus.Logger, store Store, locker Locker, resolver Resolver) *Coordinator {
	return &Coordinator{
		log:      log,
		store:    store,
		locker:   locker,
		resolver: resolver,
	}
}

// Key returns the cache key of a lookup. Pinned lookups live in their own
// partition.
func (c *Coordinator) Key(account, repository string, arch platform.Arch, version string) string {
	if tag := c.resolver.ReleaseTag(account, repository, arch, version); tag != "" {
		return fmt.Sprintf("%s/%s-%s", account, repository, tag)
	}
	return fmt.Sprintf("%s/%s", account, repository)
}

func (c *Coordinator) read(ctx context.Context, key string) (*release.LatestByPlatform, bool, error) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("could not read cache entry %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	latest, err := decodeEntry(data)
	if err != nil {
		return nil, false, err
	}
	metrics.Record(ctx, metrics.CounterCacheHit, tag.Upsert(metrics.TagCacheKey, key))
	return latest, true, nil
}

func (c *Coordinator) write(ctx context.Context, key string, latest *release.LatestByPlatform) error {
	metrics.Record(ctx, metrics.CounterCacheMiss, tag.Upsert(metrics.TagCacheKey, key))
	data, err := encodeEntry(latest)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("could not write cache entry %s: %w", key, err)
	}
	return nil
}

// GetLatest returns the newest release of a repository for arch, or nil if
// the repository has none.
func (c *Coordinator) GetLatest(ctx context.Context, account, repository string, arch platform.Arch, version string) (*release.Latest, error) {
	latest, err := c.Lookup(ctx, account, repository, arch, version)
	if err != nil {
		return nil, err
	}
	return latest.Get(arch), nil
}

// Lookup returns the cache entry a request for arch is answered from,
// populating it from the resolver on a miss. Negative results are cached
// like positive ones and come back as an empty entry.
func (c *Coordinator) Lookup(ctx context.Context, account, repository string, arch platform.Arch, version string) (_ *release.LatestByPlatform, err error) {
	key := c.Key(account, repository, arch, version)
	log := c.log.WithField("key", key)

	latest, ok, err := c.read(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		log.Debug("cache hit")
		return latest, nil
	}

	if c.locker != nil {
		log.Debug("lock acquiring")
		lock, lockErr := c.locker.Lock(ctx, key)
		if lockErr != nil {
			return nil, fmt.Errorf("could not lock cache entry %s: %w", key, lockErr)
		}
		log.Debug("lock acquired")
		defer func() {
			log.Debug("lock releasing")
			// the lock is released even when the request is gone
			unlockErr := lock.Unlock(context.WithoutCancel(ctx))
			if unlockErr != nil {
				err = errors.Join(err, fmt.Errorf("could not unlock cache entry %s: %w", key, unlockErr))
				return
			}
			log.Debug("lock released")
		}()

		latest, ok, err = c.read(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			log.Debug("cache hit after lock")
			return latest, nil
		}
	}

	latest, err = c.resolver.FetchLatest(ctx, account, repository, arch, version)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		latest = &release.LatestByPlatform{}
	}
	if err := c.write(ctx, key, latest); err != nil {
		return nil, err
	}
	return latest, nil
}
