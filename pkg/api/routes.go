package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/procurement-risk-graph/pkg/metrics"
)

// SetupRoutes registers the REST endpoints on router
func SetupRoutes(router *mux.Router, handlers *Handlers) {
	api := router.PathPrefix("/api/v1").Subrouter()

	analyses := api.PathPrefix("/analyses").Subrouter()
	analyses.HandleFunc("", handlers.ListAnalyses).Methods(http.MethodGet)
	analyses.HandleFunc("", handlers.CreateAnalysis).Methods(http.MethodPost)
	analyses.HandleFunc("/{analysisId}", handlers.GetAnalysis).Methods(http.MethodGet)
	analyses.HandleFunc("/{analysisId}", handlers.DeleteAnalysis).Methods(http.MethodDelete)

	analyses.HandleFunc("/{analysisId}/communities", handlers.GetCommunities).Methods(http.MethodGet)
	analyses.HandleFunc("/{analysisId}/communities/{communityId:[0-9]+}/suppliers", handlers.GetCommunitySuppliers).Methods(http.MethodGet)
	analyses.HandleFunc("/{analysisId}/edges", handlers.GetEdges).Methods(http.MethodGet)
	analyses.HandleFunc("/{analysisId}/rankings", handlers.GetRankings).Methods(http.MethodGet)

	api.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)
}

// NewRouter builds the complete HTTP handler with middleware and the
// Prometheus endpoint
func NewRouter(handlers *Handlers, registry *metrics.Registry, logger zerolog.Logger) http.Handler {
	router := mux.NewRouter()
	SetupRoutes(router, handlers)

	router.Handle("/metrics", promhttp.HandlerFor(registry.GetPrometheusRegistry(), promhttp.HandlerOpts{})).
		Methods(http.MethodGet)

	router.Use(LoggingMiddleware(logger))
	router.Use(MetricsMiddleware(registry))
	router.Use(RecoveryMiddleware(logger))

	return CORS(router)
}
