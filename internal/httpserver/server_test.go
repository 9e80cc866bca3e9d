package httpserver_test

import (
	"context"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/workload-cache/internal/httpserver"
)

var noop = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

var _ = Describe("HTTP Server", func() {
	Context("server creation", func() {
		DescribeTable("accepted addresses",
			func(addr string) {
				srv, err := httpserver.New(addr, noop, httpserver.Options{})
				Expect(err).NotTo(HaveOccurred())
				Expect(srv.Addr()).To(Equal(addr))
			},
			Entry("host name", "localhost:9999"),
			Entry("IP address", "127.0.0.1:9999"),
			Entry("port only", ":9999"),
		)

		DescribeTable("rejected addresses",
			func(addr string) {
				srv, err := httpserver.New(addr, noop, httpserver.Options{})
				Expect(err).To(HaveOccurred())
				Expect(srv).To(BeNil())
			},
			Entry("too many colons", "invalid:host:port"),
			Entry("missing port", "localhost"),
			Entry("empty port", "localhost:"),
			Entry("bad host", "bad_host!:9999"),
		)
	})

	Context("server lifecycle", func() {
		var testServer *httpserver.Server

		AfterEach(func() {
			if testServer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = testServer.Shutdown(ctx)
			}
		})

		It("starts and handles requests", func() {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("test"))
			})
			var err error
			testServer, err = httpserver.New(":19999", handler, httpserver.Options{ReadTimeout: time.Second})
			Expect(err).NotTo(HaveOccurred())

			go func() {
				defer GinkgoRecover()
				Expect(testServer.Start()).To(Succeed())
			}()

			var resp *http.Response
			Eventually(func() error {
				resp, err = http.Get("http://localhost:19999")
				return err
			}).Should(Succeed())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("test"))
		})

		It("shuts down gracefully", func() {
			var err error
			testServer, err = httpserver.New(":19998", noop, httpserver.Options{ShutdownTimeout: time.Second})
			Expect(err).NotTo(HaveOccurred())

			done := make(chan error, 1)
			go func() {
				done <- testServer.Start()
			}()

			Eventually(func() error {
				resp, err := http.Get("http://localhost:19998")
				if err == nil {
					resp.Body.Close()
				}
				return err
			}).Should(Succeed())

			Expect(testServer.Shutdown(context.Background())).To(Succeed())
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
