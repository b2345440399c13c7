package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.log.WithFields(logrus.Fields{
			LogFieldRequestID: middleware.GetReqID(r.Context()),
			LogFieldHTTPRequest: map[string]any{
				"requestMethod": r.Method,
				"requestUrl":    r.URL.EscapedPath(),
				"status":        status,
				"latency":       time.Since(start).String(),
			},
			LogFieldIPHash: hashIP(r.RemoteAddr),
		}).Debugf("%s %s %d", r.Method, r.URL.EscapedPath(), status)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.writeInternalError(w, r, fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
