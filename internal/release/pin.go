package release

import (
	"slices"

	"github.com/go-update-relay/update-relay/internal/platform"
	"github.com/go-update-relay/update-relay/internal/version"
)

// Pin sends clients of a repository that are older than Before to the
// release tagged Tag instead of the newest release.
type Pin struct {
	Account    string
	Repository string
	Platforms  []platform.Arch
	Before     string
	Tag        string
}

func (p *Pin) Matches(account, repository string, a platform.Arch, v string) bool {
	return p.Account == account &&
		p.Repository == repository &&
		slices.Contains(p.Platforms, a) &&
		version.LessThan(v, p.Before)
}

type Pins []*Pin

// Lookup returns the tag the request is pinned to, or an empty string.
func (l Pins) Lookup(account, repository string, a platform.Arch, v string) string {
	for _, p := range l {
		if p.Matches(account, repository, a, v) {
			return p.Tag
		}
	}
	return ""
}
