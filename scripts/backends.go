// Backends starts a handful of fake backend HTTP servers so discovery can be
// exercised by hand.
//
// Usage:
//
//	go run backends.go -ports 3000,3001,8080
//
// Each server answers /health with 200 and echoes its port on every other
// path. Pass -flaky to make one of them alternate between healthy and
// unhealthy, which exercises the degraded-mode forwarding path.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

func main() {
	ports := flag.String("ports", "3000,3001,3002", "comma-separated ports to listen on")
	flaky := flag.Bool("flaky", false, "make the last backend alternate health responses")
	flag.Parse()

	parts := strings.Split(*ports, ",")

	var wg sync.WaitGroup
	for i, part := range parts {
		port, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			log.Fatalf("bad port %q: %v", part, err)
		}

		isFlaky := *flaky && i == len(parts)-1

		wg.Add(1)
		go func(port int, isFlaky bool) {
			defer wg.Done()
			serve(port, isFlaky)
		}(port, isFlaky)
	}

	wg.Wait()
}

func serve(port int, flaky bool) {
	var ticks atomic.Int64

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if flaky && ticks.Add(1)%2 == 0 {
			http.Error(w, "simulated outage", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","port":%d}`, port)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "fake-backend")
		fmt.Fprintf(w, "backend on port %d served %s\n", port, r.URL.Path)
	})

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("fake backend listening on %s (flaky=%v)", addr, flaky)
	log.Fatal(http.ListenAndServe(addr, mux))
}
