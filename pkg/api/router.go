// Package api exposes the cache engine over a deliberately thin HTTP
// transport: just enough routes to drive a put-transaction and stream a
// committed version back, not a general-purpose protocol.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cachegrid/assetcache/internal/logger"
	"github.com/cachegrid/assetcache/pkg/engine"
)

// NewRouter builds the chi router wired to eng.
//
// Routes:
//   - GET    /health                    - liveness probe
//   - GET    /v1/stats                  - engine.Stats
//   - POST   /v1/{guid}/{hash}/{kind}    - stream a pending write
//   - POST   /v1/{guid}/{hash}/commit    - finalize and publish
//   - GET    /v1/{guid}/{hash}/{kind}    - stream the committed file
//   - DELETE /v1/{guid}/{hash}           - evict a version
func NewRouter(eng engine.Engine) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", Liveness)

	h := NewVersionHandler(eng)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", h.Stats)
		r.Route("/{guid}/{hash}", func(r chi.Router) {
			r.Delete("/", h.Evict)
			r.Post("/commit", h.Commit)
			r.Post("/{kind}", h.PutKind)
			r.Get("/{kind}", h.GetKind)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("api request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
