package release

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/go-update-relay/update-relay/internal/metrics"
	"github.com/go-update-relay/update-relay/internal/platform"
	"github.com/go-update-relay/update-relay/internal/version"
	"github.com/google/go-github/v59/github"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/tag"
)

const releasesPerPage = 100

func recordUpstreamRequest(ctx context.Context, resp *github.Response) {
	status := "error"
	if resp != nil && resp.Response != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	metrics.Record(ctx, metrics.CounterUpstreamRequests, tag.Upsert(metrics.TagStatus, status))
}

// getGitHubReleases returns the first page of releases, newest first, or the
// single release tagged tag when tag is set.
func (r *Resolver) getGitHubReleases(ctx context.Context, account, repository, tag string) ([]*github.RepositoryRelease, error) {
	owner, repo := url.PathEscape(account), url.PathEscape(repository)
	if tag != "" {
		release, resp, err := r.ghClient.Repositories.GetReleaseByTag(ctx, owner, repo, url.PathEscape(tag))
		recordUpstreamRequest(ctx, resp)
		if err != nil {
			return nil, err
		}
		return []*github.RepositoryRelease{release}, nil
	}
	releases, resp, err := r.ghClient.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{PerPage: releasesPerPage})
	recordUpstreamRequest(ctx, resp)
	if err != nil {
		return nil, err
	}
	return releases, nil
}

func (r *Resolver) logUpstreamFailure(account, repository string, err error) {
	log := r.log.WithFields(logrus.Fields{"account": account, "repository": repository})
	var (
		rateLimitErr  *github.RateLimitError
		abuseLimitErr *github.AbuseRateLimitError
		errResp       *github.ErrorResponse
	)
	switch {
	case errors.As(err, &rateLimitErr), errors.As(err, &abuseLimitErr):
		log.Warnf("rate limited: %v", err)
	case errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusForbidden:
		log.Warnf("rate limited: %v", err)
	case errors.As(err, &errResp):
		log.Warnf("github releases api returned an error: %v", err)
	default:
		log.Warnf("could not reach github releases api: %v", err)
	}
}

// usableReleases drops drafts, prereleases and releases without a valid
// semantic version tag, and orders the rest newest first. Releases with equal
// versions keep their upstream order.
func usableReleases(releases []*github.RepositoryRelease) []*github.RepositoryRelease {
	ret := make([]*github.RepositoryRelease, 0, len(releases))
	for _, release := range releases {
		if release.GetDraft() || release.GetPrerelease() {
			continue
		}
		if !version.Valid(release.GetTagName()) {
			continue
		}
		ret = append(ret, release)
	}
	sort.SliceStable(ret, func(i, j int) bool {
		return version.GreaterThan(ret[i].GetTagName(), ret[j].GetTagName())
	})
	return ret
}

// latestByPlatform records, for every platform, the first release in order
// that carries a matching asset.
func latestByPlatform(releases []*github.RepositoryRelease) *LatestByPlatform {
	latest := new(LatestByPlatform)
	for _, release := range releases {
		for _, asset := range release.Assets {
			arch, ok := platform.Classify(asset.GetName())
			if !ok || latest.Get(arch) != nil {
				continue
			}
			latest.Set(arch, &Latest{
				Name:    release.GetName(),
				Version: release.GetTagName(),
				URL:     asset.GetBrowserDownloadURL(),
				Notes:   release.GetBody(),
			})
		}
		if latest.Complete() {
			break
		}
	}
	return latest
}
