// Measures echo round-trip latency against a running server, for
// example cmd/surfd. Each connection sends a text message, waits for
// the echo and records the round trip in a shared histogram.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/gorilla/websocket"
)

var (
	addr     = flag.String("addr", "ws://127.0.0.1:8080/", "server url")
	conns    = flag.Int("conns", 8, "concurrent connections")
	n        = flag.Int("n", 10_000, "round trips per connection")
	size     = flag.Int("size", 64, "message payload size in bytes")
	interval = flag.Duration("interval", 0, "pause between round trips")
)

func main() {
	flag.Parse()

	hist := hdrhistogram.New(1, 10_000_000_000, 3)
	var mu sync.Mutex

	msg := []byte(strings.Repeat("x", *size))

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < *conns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ws, _, err := websocket.DefaultDialer.Dial(*addr, nil)
			if err != nil {
				log.Fatalf("dial %s: %v", *addr, err)
			}
			defer ws.Close()

			local := hdrhistogram.New(1, 10_000_000_000, 3)
			for j := 0; j < *n; j++ {
				t0 := time.Now()
				if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Fatalf("write: %v", err)
				}
				if _, _, err := ws.ReadMessage(); err != nil {
					log.Fatalf("read: %v", err)
				}
				local.RecordValue(time.Since(t0).Nanoseconds())

				if *interval > 0 {
					time.Sleep(*interval)
				}
			}

			mu.Lock()
			hist.Merge(local)
			mu.Unlock()
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	total := *conns * *n
	fmt.Printf("%d round trips over %d connections in %s (%.0f/s)\n",
		total, *conns, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	for _, q := range []float64{50, 90, 99, 99.9, 100} {
		fmt.Printf("  p%-5v %s\n", q, time.Duration(hist.ValueAtQuantile(q)))
	}
}
