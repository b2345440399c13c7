package release

import (
	"context"
	"sync"
	"time"

	"github.com/go-update-relay/update-relay/internal/platform"
	"github.com/google/go-github/v59/github"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// DefaultDownloadURL is where release assets and RELEASES files are served from.
const DefaultDownloadURL = "https://github.com"

var (
	defaultRetryableClient     *retryablehttp.Client
	defaultRetryableClientInit sync.Once
)

func getDefaultRetryableClient() *retryablehttp.Client {
	defaultRetryableClientInit.Do(func() {
		defaultRetryableClient = retryablehttp.NewClient()
		defaultRetryableClient.Logger = nil
		defaultRetryableClient.HTTPClient.Timeout = 30 * time.Second
	})
	return defaultRetryableClient
}

// Resolver finds the newest release of a repository for every platform.
type Resolver struct {
	log         *logrus.Logger
	ghClient    *github.Client
	httpClient  *retryablehttp.Client
	downloadURL string
	pins        Pins
}

// NewResolver creates a resolver. httpClient fetches RELEASES files below
// downloadURL; nil and empty values select the defaults.
func NewResolver(log *logrus.Logger, ghClient *github.Client, httpClient *retryablehttp.Client, downloadURL string, pins Pins) *Resolver {
	if httpClient == nil {
		httpClient = getDefaultRetryableClient()
	}
	if downloadURL == "" {
		downloadURL = DefaultDownloadURL
	}
	return &Resolver{
		log:         log,
		ghClient:    ghClient,
		httpClient:  httpClient,
		downloadURL: downloadURL,
		pins:        pins,
	}
}

// ReleaseTag returns the tag a request is pinned to, or an empty string if
// the newest releases apply.
func (r *Resolver) ReleaseTag(account, repository string, arch platform.Arch, version string) string {
	return r.pins.Lookup(account, repository, arch, version)
}

// FetchLatest resolves the newest release of every platform. Upstream
// failures are logged and reported as nothing found, as is a repository
// without matching assets. A retrieved but malformed RELEASES file is
// returned as an error wrapping ErrMalformedManifest.
func (r *Resolver) FetchLatest(ctx context.Context, account, repository string, arch platform.Arch, version string) (*LatestByPlatform, error) {
	tag := r.ReleaseTag(account, repository, arch, version)
	releases, err := r.getGitHubReleases(ctx, account, repository, tag)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logUpstreamFailure(account, repository, err)
		return nil, nil
	}
	r.log.WithFields(logrus.Fields{
		"account":    account,
		"repository": repository,
		"tag":        tag,
		"releases":   len(releases),
	}).Debug("github releases api")

	latest := latestByPlatform(usableReleases(releases))
	if err := r.attachManifests(ctx, account, repository, latest); err != nil {
		return nil, err
	}
	if latest.Empty() {
		return nil, nil
	}
	return latest, nil
}
