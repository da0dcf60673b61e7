package probe_test

import (
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/dev-router/internal/probe"
)

var _ = Describe("Prober", func() {
	var prober *probe.Prober

	BeforeEach(func() {
		prober = probe.New("127.0.0.1", 200*time.Millisecond)
	})

	It("should report an open port when a listener is present", func() {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer listener.Close()

		port := listener.Addr().(*net.TCPAddr).Port
		Expect(prober.IsOpen(port)).To(BeTrue())
	})

	It("should report a closed port when nothing listens", func() {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		port := listener.Addr().(*net.TCPAddr).Port
		listener.Close()

		Expect(prober.IsOpen(port)).To(BeFalse())
	})

	It("should never panic on repeated probes of the same closed port", func() {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		port := listener.Addr().(*net.TCPAddr).Port
		listener.Close()

		for i := 0; i < 10; i++ {
			Expect(prober.IsOpen(port)).To(BeFalse())
		}
	})
})
