package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-update-relay/update-relay/internal/platform"
	"github.com/go-update-relay/update-relay/pkg/updates"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ManifestFileName is the Squirrel.Windows manifest published next to each
// Windows release.
const ManifestFileName = updates.ManifestFileName

// maximum size of a RELEASES file that is read into memory
const maxManifestSize = 1 << 20

var ErrMalformedManifest = errors.New("RELEASES file does not reference a .nupkg package")

var nupkgRe = regexp.MustCompile(`(?i)[^ \r\n]*\.nupkg`)

func (r *Resolver) manifestURL(account, repository, tag string) (string, error) {
	return url.JoinPath(r.downloadURL, account, repository, "releases", "download", tag, ManifestFileName)
}

func (r *Resolver) fetchManifest(ctx context.Context, manifestURL string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return "", err
	}
	res, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxManifestSize))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// rewriteManifest points the first package referenced by a RELEASES file at
// its absolute download location next to the manifest.
func rewriteManifest(body, manifestURL string) (string, error) {
	pkg := nupkgRe.FindString(body)
	if pkg == "" {
		return "", ErrMalformedManifest
	}
	pkgURL := strings.TrimSuffix(manifestURL, ManifestFileName) + pkg
	return strings.Replace(body, pkg, pkgURL, 1), nil
}

// attachManifests fetches the RELEASES file of every Windows entry. Missing
// files are skipped, files without a package reference fail the resolution.
func (r *Resolver) attachManifests(ctx context.Context, account, repository string, latest *LatestByPlatform) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, arch := range platform.Windows {
		entry := latest.Get(arch)
		if entry == nil {
			continue
		}
		g.Go(func() error {
			manifestURL, err := r.manifestURL(account, repository, entry.Version)
			if err != nil {
				return err
			}
			body, err := r.fetchManifest(gctx, manifestURL)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.log.WithFields(logrus.Fields{"platform": arch.String(), "url": manifestURL}).Debugf("no RELEASES file: %v", err)
				return nil
			}
			rewritten, err := rewriteManifest(body, manifestURL)
			if err != nil {
				return fmt.Errorf("%s: %w", manifestURL, err)
			}
			entry.Releases = rewritten
			return nil
		})
	}
	return g.Wait()
}
