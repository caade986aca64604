package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

func SetupRoutes(router *mux.Router, handler *Handler) {
	router.Use(loggingMiddleware(handler.logger))

	router.HandleFunc("/api/v1/health", handler.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/jobs", handler.ListJobs).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/jobs/{name}", handler.GetJob).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/jobs/{name}/reset", handler.ResetJob).Methods(http.MethodPost)
}
