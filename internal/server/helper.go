package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const (
	LogFieldRequestID   = "requestId"
	LogFieldHTTPRequest = "httpRequest"
	LogFieldIPHash      = "ipHash"
)

func (s *Server) writeText(w http.ResponseWriter, statusCode int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(msg)); err != nil {
		s.log.Error(err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, d any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	err := json.NewEncoder(w).Encode(d)
	if err != nil {
		s.log.Error(err)
	}
}

func (s *Server) writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// redirect sends the client to url. url must never be derived from the
// request.
func (s *Server) redirect(w http.ResponseWriter, url string) {
	w.Header().Set("Location", url)
	s.writeText(w, http.StatusFound, url)
}

// writeInternalError answers with 500. Outside of production the body holds
// the error and a stack trace.
func (s *Server) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.WithFields(logrus.Fields{
		LogFieldRequestID: middleware.GetReqID(r.Context()),
		LogFieldHTTPRequest: map[string]any{
			"requestMethod": r.Method,
			"requestUrl":    r.URL.EscapedPath(),
			"status":        http.StatusInternalServerError,
		},
	}).Errorf("error: %s", err.Error())

	msg := "Internal Server Error"
	if !s.config.IsProduction() {
		msg = fmt.Sprintf("%s\n%s", err.Error(), debug.Stack())
	}
	s.writeText(w, http.StatusInternalServerError, msg)
}

func (s *Server) requestLogger(r *http.Request) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{
		LogFieldRequestID: middleware.GetReqID(r.Context()),
		LogFieldHTTPRequest: map[string]any{
			"requestMethod": r.Method,
			"requestUrl":    r.URL.EscapedPath(),
		},
	})
}

// hashIP returns the hex SHA-256 of the host part of a client address, or an
// empty string if there is none.
func hashIP(remoteAddr string) string {
	ip := remoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		ip = host
	}
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}
