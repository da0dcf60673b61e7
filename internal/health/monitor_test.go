package health_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/dev-router/internal/health"
	"github.com/angeloszaimis/dev-router/internal/registry"
)

var _ = Describe("Monitor", func() {
	var (
		reg     *registry.Registry
		monitor *health.Monitor
		log     *slog.Logger
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))
		reg = registry.New()
		monitor = health.NewMonitor(reg, 50*time.Millisecond, 200*time.Millisecond, "/health", log, nil)
	})

	AfterEach(func() {
		monitor.Stop()
	})

	register := func(serverURL string, healthy bool) string {
		u, err := url.Parse(serverURL)
		Expect(err).NotTo(HaveOccurred())
		port, err := strconv.Atoi(u.Port())
		Expect(err).NotTo(HaveOccurred())

		record := registry.ServiceRecord{
			Name:    "svc-" + u.Port(),
			URL:     serverURL,
			Port:    port,
			Healthy: healthy,
		}
		reg.Upsert(record)
		return record.Name
	}

	It("should flip an unhealthy service back to healthy", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				w.WriteHeader(http.StatusOK)
			}
		}))
		defer server.Close()

		name := register(server.URL, false)
		monitor.Track(context.Background(), name)

		Eventually(func() bool {
			record, _ := reg.Get(name)
			return record.Healthy
		}, time.Second, 20*time.Millisecond).Should(BeTrue())
	})

	It("should mark a dead service unhealthy and stamp the probe time", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		name := register(server.URL, true)
		server.Close()

		monitor.Track(context.Background(), name)

		Eventually(func() bool {
			record, _ := reg.Get(name)
			return !record.Healthy && !record.LastCheck.IsZero()
		}, time.Second, 20*time.Millisecond).Should(BeTrue())
	})

	It("should record the probe response time", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		name := register(server.URL, false)
		monitor.Track(context.Background(), name)

		Eventually(func() time.Duration {
			record, _ := reg.Get(name)
			return record.ResponseTime
		}, time.Second, 20*time.Millisecond).Should(BeNumerically(">", 0))
	})

	It("should not start a second task for an already tracked service", func() {
		var probes atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			probes.Add(1)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		name := register(server.URL, true)
		monitor.Track(context.Background(), name)
		monitor.Track(context.Background(), name)
		monitor.Track(context.Background(), name)

		Expect(monitor.Tracked()).To(Equal(1))
	})

	It("should stop probing after Untrack", func() {
		var probes atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			probes.Add(1)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		name := register(server.URL, true)
		monitor.Track(context.Background(), name)

		Eventually(probes.Load, time.Second, 20*time.Millisecond).Should(BeNumerically(">", 0))

		monitor.Untrack(name)
		Expect(monitor.Tracked()).To(BeZero())

		settled := probes.Load()
		Consistently(probes.Load, 200*time.Millisecond, 50*time.Millisecond).Should(BeNumerically("<=", settled+1))
	})

	It("should end a task whose service was removed from the registry", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		name := register(server.URL, true)
		monitor.Track(context.Background(), name)

		record, _ := reg.Get(name)
		reg.RemoveByPort(record.Port)

		Eventually(monitor.Tracked, time.Second, 20*time.Millisecond).Should(BeZero())
	})

	Describe("status sink", func() {
		var sink *recordingSink

		BeforeEach(func() {
			sink = &recordingSink{}
			monitor = health.NewMonitor(reg, 50*time.Millisecond, 200*time.Millisecond, "/health", log, sink)
		})

		It("should report a service going down", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			name := register(server.URL, true)
			server.Close()

			monitor.Track(context.Background(), name)

			Eventually(sink.Transitions, time.Second, 20*time.Millisecond).Should(
				ContainElement(healthTransition{Name: name, Healthy: false}))
		})

		It("should report a service coming back up", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/health" {
					w.WriteHeader(http.StatusOK)
				}
			}))
			defer server.Close()

			name := register(server.URL, false)
			monitor.Track(context.Background(), name)

			Eventually(sink.Transitions, time.Second, 20*time.Millisecond).Should(
				ContainElement(healthTransition{Name: name, Healthy: true}))
		})

		It("should stay quiet while health is steady", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			name := register(server.URL, true)
			monitor.Track(context.Background(), name)

			Consistently(sink.Transitions, 300*time.Millisecond, 50*time.Millisecond).Should(BeEmpty())
		})
	})

	It("should stop all tasks on Stop", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		name := register(server.URL, true)
		monitor.Track(context.Background(), name)

		monitor.Stop()
		Expect(monitor.Tracked()).To(BeZero())
	})
})

type healthTransition struct {
	Name    string
	Healthy bool
}

// recordingSink captures health transitions for assertions.
type recordingSink struct {
	mutex       sync.Mutex
	transitions []healthTransition
}

func (s *recordingSink) HealthChanged(name string, healthy bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.transitions = append(s.transitions, healthTransition{Name: name, Healthy: healthy})
}

func (s *recordingSink) Transitions() []healthTransition {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]healthTransition(nil), s.transitions...)
}
