// Mockupstream is a stand-in for the workload status API, used to run the
// cache locally. It serves GET /workload from a fixed set of workloads.
//
// Usage:
//
//	go run ./cmd/mockupstream -port 7008 -api-key secret -extra 5
//
// With -api-key set, requests must carry a matching bearer token.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/angeloszaimis/workload-cache/internal/workload"
	"github.com/angeloszaimis/workload-cache/pkg/logger"
)

type fixture struct {
	Name      string
	Namespace string
	Item      workload.Item
}

type mockUpstream struct {
	logger    *slog.Logger
	apiKey    string
	workloads map[string]fixture
	order     []string
}

func defaultFixtures() []fixture {
	return []fixture{
		{
			Name:      "my_workload_name1A",
			Namespace: "my_workload_namespace1A",
			Item: workload.Item{
				UUID:        uuid.MustParse("63ac5c15-3342-498d-a9e9-c2bb72577bbd").String(),
				ClusterName: "local",
				Status:      workload.StatusHealthy,
			},
		},
		{
			Name:      "my_workload_name1B",
			Namespace: "my_workload_namespace1A",
			Item: workload.Item{
				UUID:        uuid.MustParse("992b5d96-a6c3-4dbd-8a21-4238ce8d8010").String(),
				ClusterName: "local",
				Status:      workload.StatusUnhealthy,
			},
		},
		{
			Name:      "my_workload_name1A",
			Namespace: "my_workload_namespace1A",
			Item: workload.Item{
				UUID:        uuid.MustParse("ef9a01d9-2854-4bfd-959e-91427afbadf6").String(),
				ClusterName: "local",
				Status:      workload.StatusHealthy,
			},
		},
	}
}

// generatedFixtures returns n random workloads in their own namespace.
func generatedFixtures(n int) []fixture {
	fixtures := make([]fixture, 0, n)
	for i := 0; i < n; i++ {
		status := workload.StatusHealthy
		if i%2 == 1 {
			status = workload.StatusUnhealthy
		}
		fixtures = append(fixtures, fixture{
			Name:      fmt.Sprintf("generated_workload_%d", i),
			Namespace: "generated",
			Item: workload.Item{
				UUID:        uuid.NewString(),
				ClusterName: "local",
				Status:      status,
			},
		})
	}
	return fixtures
}

func newMockUpstream(logger *slog.Logger, apiKey string, fixtures []fixture) *mockUpstream {
	m := &mockUpstream{
		logger:    logger,
		apiKey:    apiKey,
		workloads: make(map[string]fixture, len(fixtures)),
	}
	for _, f := range fixtures {
		if _, ok := m.workloads[f.Item.UUID]; !ok {
			m.order = append(m.order, f.Item.UUID)
		}
		m.workloads[f.Item.UUID] = f
	}
	return m
}

func (m *mockUpstream) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/workload", m.serveWorkload).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	})
	r.MethodNotAllowedHandler = r.NotFoundHandler
	return r
}

func (m *mockUpstream) serveWorkload(w http.ResponseWriter, r *http.Request) {
	if m.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+m.apiKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}

	values := r.URL.Query()
	q := workload.Query{
		Name:      values.Get("workload_name"),
		Namespace: values.Get("workload_namespace"),
		UUID:      values.Get("workload_uuid"),
	}.Normalize()

	items := m.selectItems(q)

	m.logger.Info("Served workloads",
		slog.String("name", q.Name),
		slog.String("namespace", q.Namespace),
		slog.String("uuid", q.UUID),
		slog.Int("count", len(items)))

	writeJSON(w, http.StatusOK, items)
}

// selectItems looks a workload up by uuid only when name and namespace are
// both unset and the uuid is known; otherwise it filters by name and namespace.
func (m *mockUpstream) selectItems(q workload.Query) []workload.Item {
	items := []workload.Item{}

	if f, ok := m.workloads[q.UUID]; ok && q.Name == workload.DefaultValue && q.Namespace == workload.DefaultValue {
		return append(items, f.Item)
	}

	for _, id := range m.order {
		f := m.workloads[id]
		if f.Name == q.Name && f.Namespace == q.Namespace {
			items = append(items, f.Item)
		}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	port := flag.Int("port", 7008, "port to listen on")
	apiKey := flag.String("api-key", "", "bearer token required from callers; empty accepts any")
	extra := flag.Int("extra", 0, "number of additional generated workloads")
	flag.Parse()

	log := logger.New("info", false, "dev")

	fixtures := append(defaultFixtures(), generatedFixtures(*extra)...)
	m := newMockUpstream(log, *apiKey, fixtures)

	addr := fmt.Sprintf(":%d", *port)
	log.Info("Starting mock upstream", slog.String("addr", addr), slog.Int("workloads", len(m.order)))
	if err := http.ListenAndServe(addr, m.router()); err != nil {
		log.Error("Mock upstream failed", slog.Any("err", err))
		os.Exit(1)
	}
}
