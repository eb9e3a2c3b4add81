// Command load drives POST /api/v1/track-usage at a fixed rate and prints
// latency percentiles. Configure it through the environment.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Netflix/go-env"
	"github.com/nimasrn/gpu-savings-gateway/test/fixtures"
	"github.com/valyala/fasthttp"
)

type LoadTestConfig struct {
	URL               string `env:"TARGET_URL,default=http://localhost:8080/api/v1/track-usage"`
	APIKey            string `env:"API_KEY"`
	RequestsPerSecond int    `env:"REQUESTS_PER_SECOND,default=500"`
	DurationSeconds   int    `env:"DURATION_SECONDS,default=30"`
	ConcurrentWorkers int    `env:"CONCURRENT_WORKERS,default=100"`
	GPUsPerRequest    int    `env:"GPUS_PER_REQUEST,default=8"`
}

func sendRequest(client *fasthttp.Client, config LoadTestConfig, payload []byte, stats *Stats) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(config.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+config.APIKey)
	req.SetBodyRaw(payload)

	start := time.Now()
	if err := client.DoTimeout(req, resp, 10*time.Second); err != nil {
		stats.Record(0, time.Since(start))
		return
	}
	stats.Record(resp.StatusCode(), time.Since(start))
}

func worker(client *fasthttp.Client, config LoadTestConfig, payload []byte, stats *Stats, jobs <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for range jobs {
		sendRequest(client, config, payload, stats)
	}
}

func main() {
	var config LoadTestConfig
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	if config.APIKey == "" {
		fmt.Fprintln(os.Stderr, "API_KEY is required")
		os.Exit(1)
	}

	payload, err := json.Marshal(fixtures.TrackUsageBody(fixtures.MixedFleet(config.GPUsPerRequest)))
	if err != nil {
		panic(err)
	}

	fmt.Println("Starting load test...")
	fmt.Printf("Target: %s\n", config.URL)
	fmt.Printf("Total requests: %d\n", config.RequestsPerSecond*config.DurationSeconds)
	fmt.Printf("Target RPS: %d\n", config.RequestsPerSecond)
	fmt.Printf("GPUs per request: %d\n", config.GPUsPerRequest)
	fmt.Printf("Concurrent workers: %d\n", config.ConcurrentWorkers)
	fmt.Printf("Duration: %d seconds\n", config.DurationSeconds)
	fmt.Println(strings.Repeat("-", 50))

	stats := NewStats()
	client := &fasthttp.Client{
		MaxConnsPerHost:     config.ConcurrentWorkers,
		MaxIdleConnDuration: 90 * time.Second,
	}

	jobs := make(chan struct{}, config.RequestsPerSecond)
	var wg sync.WaitGroup
	for i := 0; i < config.ConcurrentWorkers; i++ {
		wg.Add(1)
		go worker(client, config, payload, stats, jobs, &wg)
	}

	startTime := time.Now()
	for i := 0; i < config.DurationSeconds; i++ {
		batchStart := time.Now()
		for j := 0; j < config.RequestsPerSecond; j++ {
			jobs <- struct{}{}
		}

		success := stats.successCount.Load()
		failed := stats.errorCount.Load()
		fmt.Printf("[%ds] Completed: %d | Success: %d | Errors: %d\n", i+1, success+failed, success, failed)

		if elapsed := time.Since(batchStart); elapsed < time.Second {
			time.Sleep(time.Second - elapsed)
		}
	}

	close(jobs)
	wg.Wait()

	elapsed := time.Since(startTime)
	stats.Summarize(elapsed).Print(os.Stdout, elapsed)
}
