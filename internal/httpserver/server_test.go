package httpserver_test

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/dev-router/internal/httpserver"
)

var _ = Describe("Server", func() {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	Describe("New", func() {
		It("should accept a valid host:port address", func() {
			srv, err := httpserver.New("127.0.0.1:0", okHandler, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("should accept a port-only address", func() {
			srv, err := httpserver.New(":0", okHandler, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("should reject an address without a port", func() {
			_, err := httpserver.New("localhost", okHandler, 0)
			Expect(err).To(HaveOccurred())
		})

		It("should reject garbage", func() {
			_, err := httpserver.New("not an address", okHandler, 0)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Start and Shutdown", func() {
		It("should start, serve, and shut down cleanly", func() {
			srv, err := httpserver.New("127.0.0.1:0", okHandler, time.Second)
			Expect(err).NotTo(HaveOccurred())

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			// Give the listener a moment to come up, then stop it.
			time.Sleep(100 * time.Millisecond)
			Expect(srv.Shutdown(context.Background())).To(Succeed())

			Eventually(errCh, time.Second).Should(Receive(BeNil()))
		})
	})
})
