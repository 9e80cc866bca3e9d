package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/angeloszaimis/workload-cache/internal/handler"
	"github.com/angeloszaimis/workload-cache/internal/metrics"
)

func setupRouter(workloadHandler *handler.WorkloadHandler, metricsCollector *metrics.Collector) *mux.Router {
	r := mux.NewRouter()
	r.Use(workloadHandler.LogRequests)

	r.HandleFunc("/services", workloadHandler.ServeServices).Methods(http.MethodGet)
	r.HandleFunc("/ping", workloadHandler.ServePing).Methods(http.MethodGet)
	r.Handle("/metrics", metricsCollector.Handler()).Methods(http.MethodGet)

	// mux middleware only wraps matched routes.
	r.NotFoundHandler = workloadHandler.LogRequests(http.HandlerFunc(workloadHandler.ServeNotFound))

	return r
}
