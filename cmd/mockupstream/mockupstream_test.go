package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/workload-cache/internal/workload"
)

var _ = Describe("mock upstream", func() {
	var m *mockUpstream

	BeforeEach(func() {
		m = newMockUpstream(slog.New(slog.NewTextHandler(io.Discard, nil)), "", defaultFixtures())
	})

	get := func(target string, header http.Header) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		for k, v := range header {
			req.Header[k] = v
		}
		w := httptest.NewRecorder()
		m.router().ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) []workload.Item {
		var items []workload.Item
		Expect(json.Unmarshal(w.Body.Bytes(), &items)).To(Succeed())
		return items
	}

	It("should look a workload up by uuid when name and namespace are unset", func() {
		w := get("/workload?workload_name=!default!&workload_namespace=!default!&workload_uuid=992b5d96-a6c3-4dbd-8a21-4238ce8d8010", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		items := decode(w)
		Expect(items).To(HaveLen(1))
		Expect(items[0].Status).To(Equal(workload.StatusUnhealthy))
	})

	It("should filter by name and namespace", func() {
		w := get("/workload?workload_name=my_workload_name1A&workload_namespace=my_workload_namespace1A", nil)

		items := decode(w)
		Expect(items).To(HaveLen(2))
		Expect(items[0].UUID).To(Equal("63ac5c15-3342-498d-a9e9-c2bb72577bbd"))
		Expect(items[1].UUID).To(Equal("ef9a01d9-2854-4bfd-959e-91427afbadf6"))
	})

	It("should ignore the uuid when a name is given", func() {
		w := get("/workload?workload_name=my_workload_name1B&workload_namespace=my_workload_namespace1A&workload_uuid=63ac5c15-3342-498d-a9e9-c2bb72577bbd", nil)

		items := decode(w)
		Expect(items).To(HaveLen(1))
		Expect(items[0].UUID).To(Equal("992b5d96-a6c3-4dbd-8a21-4238ce8d8010"))
	})

	It("should return an empty array for unknown workloads", func() {
		w := get("/workload?workload_uuid="+uuid.NewString(), nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`[]`))
	})

	It("should answer unknown paths with 404", func() {
		w := get("/nope", nil)

		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(w.Body.String()).To(MatchJSON(`{"message":"Not Found"}`))
	})

	Context("with an api key", func() {
		BeforeEach(func() {
			m.apiKey = "secret"
		})

		It("should reject a missing token", func() {
			Expect(get("/workload", nil).Code).To(Equal(http.StatusUnauthorized))
		})

		It("should accept the matching token", func() {
			w := get("/workload", http.Header{"Authorization": {"Bearer secret"}})
			Expect(w.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("generatedFixtures", func() {
		It("should produce distinct valid uuids", func() {
			fixtures := generatedFixtures(4)
			Expect(fixtures).To(HaveLen(4))

			seen := map[string]bool{}
			for _, f := range fixtures {
				_, err := uuid.Parse(f.Item.UUID)
				Expect(err).NotTo(HaveOccurred())
				seen[f.Item.UUID] = true
			}
			Expect(seen).To(HaveLen(4))
		})
	})
})
