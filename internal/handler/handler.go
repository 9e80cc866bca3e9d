package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/workload-cache/internal/worker"
	"github.com/angeloszaimis/workload-cache/internal/workload"
)

type ServiceInfoGetter interface {
	GetServiceInfo(ctx context.Context, q workload.Query, opts workload.CacheOptions) worker.Response
}

type WorkloadHandler struct {
	logger  *slog.Logger
	service ServiceInfoGetter
	options workload.CacheOptions
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

type errorBody struct {
	Error string `json:"error"`
}

func NewWorkloadHandler(logger *slog.Logger, service ServiceInfoGetter, options workload.CacheOptions) *WorkloadHandler {
	return &WorkloadHandler{
		logger:  logger,
		service: service,
		options: options,
	}
}

// ServeServices answers GET /services?workload_name=&workload_namespace=&workload_uuid=.
func (h *WorkloadHandler) ServeServices(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := workload.Query{
		Name:      values.Get("workload_name"),
		Namespace: values.Get("workload_namespace"),
		UUID:      values.Get("workload_uuid"),
	}

	res := h.service.GetServiceInfo(r.Context(), q, h.options)

	switch {
	case res.StatusCode == http.StatusOK:
		h.writeJSON(w, http.StatusOK, res.Items)
	case len(res.ErrorBody) > 0:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(res.StatusCode)
		if _, err := w.Write(res.ErrorBody); err != nil {
			h.logger.Warn("Cannot write upstream error body", slog.Any("err", err))
		}
	default:
		h.writeJSON(w, res.StatusCode, errorBody{Error: res.Message})
	}
}

// ServePing answers GET /ping.
func (h *WorkloadHandler) ServePing(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "hello"})
}

// ServeNotFound answers every unknown route.
func (h *WorkloadHandler) ServeNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
}

// LogRequests logs every request once it has been served.
func (h *WorkloadHandler) LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		h.logger.Info("Served request",
			slog.String("from", extractClientIP(r)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("query", r.URL.RawQuery),
			slog.Int("status", wrapped.statusCode),
			slog.Duration("took", time.Since(start)),
			slog.String("user_agent", r.UserAgent()))
	})
}

func (h *WorkloadHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Cannot encode response", slog.Any("err", err))
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
