package classify_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/dev-router/internal/classify"
)

const testTimeout = 300 * time.Millisecond

func serverPort(server *httptest.Server) int {
	u, err := url.Parse(server.URL)
	Expect(err).NotTo(HaveOccurred())

	port, err := strconv.Atoi(u.Port())
	Expect(err).NotTo(HaveOccurred())
	return port
}

var _ = Describe("Classifier", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	newClassifier := func(portNames map[int]string, apiStart, apiEnd int) *classify.Classifier {
		return classify.New("127.0.0.1", "/health", portNames, apiStart, apiEnd, testTimeout)
	}

	Context("with a healthy /health endpoint", func() {
		var server *httptest.Server

		BeforeEach(func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/health" {
					w.WriteHeader(http.StatusOK)
					w.Write([]byte("OK"))
					return
				}
				w.WriteHeader(http.StatusNotFound)
			}))
		})

		AfterEach(func() {
			server.Close()
		})

		It("should produce a healthy record", func() {
			port := serverPort(server)
			record := newClassifier(nil, 0, 0).Classify(ctx, port)

			Expect(record).NotTo(BeNil())
			Expect(record.Healthy).To(BeTrue())
			Expect(record.Port).To(Equal(port))
			Expect(record.URL).To(Equal(server.URL))
			Expect(record.ResponseTime).To(BeNumerically(">", 0))
		})

		It("should name the service from the static port table first", func() {
			port := serverPort(server)
			record := newClassifier(map[int]string{port: "plan-api"}, 0, 0).Classify(ctx, port)

			Expect(record).NotTo(BeNil())
			Expect(record.Name).To(Equal("plan-api"))
		})

		It("should fall back to a generic placeholder name", func() {
			port := serverPort(server)
			record := newClassifier(nil, 0, 0).Classify(ctx, port)

			Expect(record).NotTo(BeNil())
			Expect(record.Name).To(Equal("service-" + strconv.Itoa(port)))
		})
	})

	Context("without a /health endpoint", func() {
		It("should use the root path as a weaker liveness signal", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/" {
					w.WriteHeader(http.StatusOK)
					return
				}
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			record := newClassifier(nil, 0, 0).Classify(ctx, serverPort(server))
			Expect(record).NotTo(BeNil())
			Expect(record.Healthy).To(BeTrue())
		})
	})

	Context("with a non-2xx response everywhere", func() {
		It("should produce an unhealthy record", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer server.Close()

			record := newClassifier(nil, 0, 0).Classify(ctx, serverPort(server))
			Expect(record).NotTo(BeNil())
			Expect(record.Healthy).To(BeFalse())
		})
	})

	Context("with an API port demanding query parameters", func() {
		var server *httptest.Server

		BeforeEach(func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"missing required parameter: q"}`))
			}))
		})

		AfterEach(func() {
			server.Close()
		})

		It("should treat the missing-parameter complaint as healthy inside the API range", func() {
			port := serverPort(server)
			record := newClassifier(nil, port, port).Classify(ctx, port)

			Expect(record).NotTo(BeNil())
			Expect(record.Healthy).To(BeTrue())
		})

		It("should stay unhealthy outside the API range", func() {
			port := serverPort(server)
			record := newClassifier(nil, port+1, port+1).Classify(ctx, port)

			Expect(record).NotTo(BeNil())
			Expect(record.Healthy).To(BeFalse())
		})
	})

	Context("with a Server header hint", func() {
		It("should derive the name from the header and port", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Powered-By", "Express")
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			port := serverPort(server)
			record := newClassifier(nil, 0, 0).Classify(ctx, port)

			Expect(record).NotTo(BeNil())
			Expect(record.Name).To(Equal("express-" + strconv.Itoa(port)))
		})
	})

	Context("with an open port that never speaks HTTP", func() {
		var listener net.Listener

		BeforeEach(func() {
			var err error
			listener, err = net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())

			// Accept connections but never respond, so the HTTP probe times out.
			go func() {
				for {
					conn, err := listener.Accept()
					if err != nil {
						return
					}
					defer conn.Close()
				}
			}()
		})

		AfterEach(func() {
			listener.Close()
		})

		It("should emit an unhealthy record when the port has a static name", func() {
			port := listener.Addr().(*net.TCPAddr).Port
			record := newClassifier(map[int]string{port: "redis"}, 0, 0).Classify(ctx, port)

			Expect(record).NotTo(BeNil())
			Expect(record.Name).To(Equal("redis"))
			Expect(record.Healthy).To(BeFalse())
		})

		It("should return nil for an anonymous non-HTTP port", func() {
			port := listener.Addr().(*net.TCPAddr).Port
			Expect(newClassifier(nil, 0, 0).Classify(ctx, port)).To(BeNil())
		})
	})
})
