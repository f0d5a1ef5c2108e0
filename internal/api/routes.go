package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/pan-validator/internal/pkg/logger"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, hc *HealthChecker, gatherer prometheus.Gatherer, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)
	r.Get("/health/ready", hc.HandleReadiness)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/rules", h.ListRules)

		r.Route("/pan", func(r chi.Router) {
			r.Post("/validate", h.ValidateOne)
			r.Post("/batch", h.ValidateBatch)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", h.TriggerRun)
			r.Get("/{runID}", h.GetRun)
			r.Get("/{runID}/outcomes", h.ListOutcomes)
			r.Get("/{runID}/verdicts/{pan}", h.GetVerdict)
		})

		r.Get("/sources/{source}/summaries", h.ListSummaries)
	})

	return r
}

// requestLogger logs one line per request. Paths carrying identifiers are
// masked by the logger's redaction.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
