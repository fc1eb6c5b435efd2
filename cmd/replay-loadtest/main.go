// Command replay-loadtest drives concurrent standingsAt queries against a
// running standings-api instance and optionally tails its live-snapshot
// websocket feed, reporting latency and throughput the way the teacher's
// cmd/load-test reports SSE connection throughput.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Result is the summary one load-test run produces.
type Result struct {
	TotalRequests      int64         `json:"totalRequests"`
	SuccessfulRequests int64         `json:"successfulRequests"`
	FailedRequests     int64         `json:"failedRequests"`
	TestDuration       time.Duration `json:"testDuration"`
	AvgLatency         time.Duration `json:"avgLatency"`
	MinLatency         time.Duration `json:"minLatency"`
	MaxLatency         time.Duration `json:"maxLatency"`
	RequestsPerSecond  float64       `json:"requestsPerSecond"`
}

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "Base URL of the standings-api server")
		contestID   = flag.String("contest", "", "Contest ID to query")
		workers     = flag.Int("workers", 20, "Concurrent standingsAt callers")
		duration    = flag.Duration("duration", 30*time.Second, "Test duration")
		timestamp   = flag.Int("t", 0, "timestampSeconds to query, in seconds since contest start")
		tailLive    = flag.Bool("tail-live", false, "Also open a websocket connection to /contests/{id}/live and log events")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *contestID == "" {
		log.Fatal("-contest is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	if *tailLive {
		go tailLiveFeed(ctx, *baseURL, *contestID)
	}

	result := runLoadTest(ctx, *baseURL, *contestID, *timestamp, *workers, *verbose)
	printResult(result)
}

func runLoadTest(ctx context.Context, baseURL, contestID string, timestamp, workerCount int, verbose bool) Result {
	endpoint := fmt.Sprintf("%s/api/v1/contests/%s/standings?t=%d", strings.TrimRight(baseURL, "/"), contestID, timestamp)

	var (
		total, success, failed int64
		mu                     sync.Mutex
		minLatency             = time.Hour
		maxLatency             time.Duration
		sumLatency             time.Duration
	)

	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				reqStart := time.Now()
				resp, err := client.Get(endpoint)
				latency := time.Since(reqStart)
				atomic.AddInt64(&total, 1)

				if err != nil || resp.StatusCode >= 400 {
					atomic.AddInt64(&failed, 1)
					if verbose && err != nil {
						log.Printf("request error: %v", err)
					}
					if resp != nil {
						resp.Body.Close()
					}
					continue
				}
				resp.Body.Close()
				atomic.AddInt64(&success, 1)

				mu.Lock()
				if latency < minLatency {
					minLatency = latency
				}
				if latency > maxLatency {
					maxLatency = latency
				}
				sumLatency += latency
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	var avg time.Duration
	if success > 0 {
		avg = sumLatency / time.Duration(success)
	}
	if minLatency == time.Hour {
		minLatency = 0
	}

	return Result{
		TotalRequests:      total,
		SuccessfulRequests: success,
		FailedRequests:     failed,
		TestDuration:       elapsed,
		AvgLatency:         avg,
		MinLatency:         minLatency,
		MaxLatency:         maxLatency,
		RequestsPerSecond:  float64(total) / elapsed.Seconds(),
	}
}

// tailLiveFeed opens the live-snapshot websocket and logs every published
// event until ctx is canceled, as a smoke check of internal/livefeed.
func tailLiveFeed(ctx context.Context, baseURL, contestID string) {
	wsURL := strings.Replace(strings.TrimRight(baseURL, "/"), "http", "ws", 1) + "/api/v1/contests/" + contestID + "/live"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		log.Printf("live feed: dial failed: %v", err)
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var event map[string]any
		if err := conn.ReadJSON(&event); err != nil {
			return
		}
		data, _ := json.Marshal(event)
		log.Printf("live feed event: %s", data)
	}
}

func printResult(r Result) {
	fmt.Printf("\n=== replay-loadtest results ===\n")
	fmt.Printf("Duration: %v\n", r.TestDuration)
	fmt.Printf("Total Requests: %d\n", r.TotalRequests)
	fmt.Printf("Successful: %d (%.1f%%)\n", r.SuccessfulRequests, percentage(r.SuccessfulRequests, r.TotalRequests))
	fmt.Printf("Failed: %d (%.1f%%)\n", r.FailedRequests, percentage(r.FailedRequests, r.TotalRequests))
	fmt.Printf("Requests/sec: %.2f\n", r.RequestsPerSecond)
	fmt.Printf("Latency - Avg: %v, Min: %v, Max: %v\n", r.AvgLatency, r.MinLatency, r.MaxLatency)
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
