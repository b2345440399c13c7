package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-update-relay/update-relay/internal/release"
)

// Store keeps encoded cache entries. Expiry is owned by the store. A missing
// or expired key reports false and no error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Locker provides mutual exclusion per key, possibly across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (Lock, error)
}

type Lock interface {
	Unlock(ctx context.Context) error
}

func encodeEntry(latest *release.LatestByPlatform) ([]byte, error) {
	return json.Marshal(latest)
}

func decodeEntry(data []byte) (*release.LatestByPlatform, error) {
	latest := new(release.LatestByPlatform)
	if err := json.Unmarshal(data, latest); err != nil {
		return nil, fmt.Errorf("could not decode cache entry: %w", err)
	}
	return latest, nil
}
