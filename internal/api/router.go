package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/kenneth/pq-encryption-service/internal/metrics"
	"github.com/kenneth/pq-encryption-service/internal/middleware"
)

// NewRouter wires the HTTP boundary with the logging and request-ID
// middleware chain.
func NewRouter(h *Handler, logger *logrus.Logger, m *metrics.Metrics) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(logger, m))

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/public-key", h.HandleGetPublicKey).Methods(http.MethodGet)
	v1.HandleFunc("/encrypt", h.HandleEncrypt).Methods(http.MethodPost)
	v1.HandleFunc("/decrypt", h.HandleDecrypt).Methods(http.MethodPost)
	v1.HandleFunc("/rotate", h.HandleRotate).Methods(http.MethodPost)
	v1.HandleFunc("/status", h.HandleStatus).Methods(http.MethodGet)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return router
}
