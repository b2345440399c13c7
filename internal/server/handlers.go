package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-update-relay/update-relay/internal/metrics"
	"github.com/go-update-relay/update-relay/internal/platform"
	"github.com/go-update-relay/update-relay/internal/release"
	"github.com/go-update-relay/update-relay/internal/version"
	"github.com/go-update-relay/update-relay/pkg/updates"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/tag"
)

const (
	outcomeNotFound        = "not_found"
	outcomeUpToDate        = "up_to_date"
	outcomeUpdateAvailable = "update_available"
)

// notFoundHints tells publishers which asset names are picked up.
var notFoundHints = map[string]string{
	platform.FamilyDarwin: "No updates found (needs asset matching .*-(mac|darwin|osx).*.zip in public repository)",
	platform.FamilyWin32:  "No updates found (needs asset containing .*-win32-(x64|ia32|arm64) or .exe in public repository)",
}

type updateRequest struct {
	account    string
	repository string
	arch       platform.Arch
	version    string
}

func (u *updateRequest) logFields() logrus.Fields {
	return logrus.Fields{
		"account":    u.account,
		"repository": u.repository,
		"platform":   u.arch.String(),
		"version":    u.version,
	}
}

func pathSegments(path string) []string {
	return strings.FieldsFunc(path, func(c rune) bool { return c == '/' })
}

func (s *Server) updatesHandler(w http.ResponseWriter, r *http.Request) {
	segs := pathSegments(r.URL.Path)
	if len(segs) < 4 {
		s.redirect(w, s.config.DocumentationURL)
		return
	}
	account, repository, platformToken, v := segs[0], segs[1], segs[2], segs[3]

	arch, ok := platform.ParseRouteToken(platformToken)
	if !ok {
		s.writeText(w, http.StatusNotFound, fmt.Sprintf(`Unsupported platform: "%s". Supported: %s.`, platformToken, strings.Join(platform.Names(), ", ")))
		return
	}
	if !version.Valid(v) {
		s.writeText(w, http.StatusBadRequest, fmt.Sprintf(`Invalid SemVer: "%s"`, v))
		return
	}

	req := &updateRequest{account: account, repository: repository, arch: arch, version: v}
	if len(segs) > 4 && segs[4] == release.ManifestFileName {
		s.handleReleases(w, r, req)
		return
	}
	s.handleUpdate(w, r, req)
}

func (s *Server) handleReleases(w http.ResponseWriter, r *http.Request, req *updateRequest) {
	entry, err := s.coordinator.Lookup(r.Context(), req.account, req.repository, req.arch, req.version)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	latest := entry.Get(req.arch)
	if latest == nil || latest.Releases == "" {
		s.writeText(w, http.StatusNotFound, "Not found")
		return
	}
	s.writeText(w, http.StatusOK, latest.Releases)
}

func (s *Server) recordUpdateCheck(r *http.Request, arch platform.Arch, outcome string) {
	metrics.Record(r.Context(), metrics.CounterUpdateChecks,
		tag.Upsert(metrics.TagPlatform, arch.String()),
		tag.Upsert(metrics.TagOutcome, outcome),
	)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, req *updateRequest) {
	entry, err := s.coordinator.Lookup(r.Context(), req.account, req.repository, req.arch, req.version)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	reqLogger := s.requestLogger(r).WithFields(req.logFields())

	latest := entry.Get(req.arch)
	if req.arch.IsDarwin() && req.arch != platform.DarwinUniversal {
		// universal builds resolve under their own key, which is never pinned
		universal, err := s.coordinator.Lookup(r.Context(), req.account, req.repository, platform.DarwinUniversal, req.version)
		if err != nil {
			s.writeInternalError(w, r, err)
			return
		}
		preferred := release.PreferUniversal(latest, universal.Get(platform.DarwinUniversal))
		if preferred != latest {
			reqLogger.Info("falling back to universal build for darwin")
			latest = preferred
		}
	}

	if latest == nil {
		s.recordUpdateCheck(r, req.arch, outcomeNotFound)
		s.writeText(w, http.StatusNotFound, notFoundHints[req.arch.Family()])
		return
	}

	upToDate, err := version.UpToDate(latest.Version, req.version)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	if upToDate {
		reqLogger.Debug("up to date")
		s.recordUpdateCheck(r, req.arch, outcomeUpToDate)
		s.writeNoContent(w)
		return
	}

	reqLogger.WithField("latest", latest.DisplayName()).Debug("update available")
	s.recordUpdateCheck(r, req.arch, outcomeUpdateAvailable)
	s.writeJSON(w, &updates.Update{
		Name:  latest.DisplayName(),
		Notes: latest.Notes,
		URL:   latest.URL,
	})
}
