package release

import (
	"encoding/json"

	"github.com/go-update-relay/update-relay/internal/platform"
	"github.com/go-update-relay/update-relay/internal/version"
)

// Latest is the newest release that carries an asset for one platform.
type Latest struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version"`
	URL     string `json:"url"`
	Notes   string `json:"notes,omitempty"`
	// Releases holds the rewritten RELEASES manifest of Windows builds.
	Releases string `json:"RELEASES,omitempty"`
}

func (l *Latest) DisplayName() string {
	if l.Name != "" {
		return l.Name
	}
	return l.Version
}

// LatestByPlatform holds at most one Latest per platform. The zero value is
// the "resolved, nothing found" entry.
type LatestByPlatform [platform.Count]*Latest

func (l *LatestByPlatform) Get(a platform.Arch) *Latest {
	if l == nil || !a.Valid() {
		return nil
	}
	return l[a]
}

func (l *LatestByPlatform) Set(a platform.Arch, latest *Latest) {
	if !a.Valid() {
		return
	}
	l[a] = latest
}

// Empty reports whether no platform resolved to a release.
func (l *LatestByPlatform) Empty() bool {
	for _, a := range platform.All {
		if l.Get(a) != nil {
			return false
		}
	}
	return true
}

// Complete reports whether every platform resolved to a release.
func (l *LatestByPlatform) Complete() bool {
	for _, a := range platform.All {
		if l.Get(a) == nil {
			return false
		}
	}
	return true
}

func (l LatestByPlatform) MarshalJSON() ([]byte, error) {
	m := make(map[string]*Latest, platform.Count)
	for _, a := range platform.All {
		if l[a] != nil {
			m[a.String()] = l[a]
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads entries keyed by platform tag. Entries written before
// the tags carried an architecture ("darwin", "win32") fill the default
// architecture when it has no entry of its own. Unknown keys are ignored.
func (l *LatestByPlatform) UnmarshalJSON(data []byte) error {
	var m map[string]*Latest
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*l = LatestByPlatform{}
	for key, latest := range m {
		if a, ok := platform.Parse(key); ok {
			l[a] = latest
		}
	}
	for _, a := range platform.All {
		legacyKey, ok := platform.Legacy(a)
		if !ok || l[a] != nil {
			continue
		}
		l[a] = m[legacyKey]
	}
	return nil
}

// PreferUniversal picks between an architecture-specific darwin build and a
// universal one. The universal build only wins when it is strictly newer or
// the specific build is missing.
func PreferUniversal(specific, universal *Latest) *Latest {
	if specific == nil {
		return universal
	}
	if universal != nil && version.GreaterThan(universal.Version, specific.Version) {
		return universal
	}
	return specific
}
