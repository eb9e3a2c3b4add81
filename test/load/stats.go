package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	successCount atomic.Int64
	errorCount   atomic.Int64

	mu            sync.Mutex
	responseTimes []time.Duration
	byStatus      map[int]int64
}

func NewStats() *Stats {
	return &Stats{byStatus: make(map[int]int64)}
}

// Record stores one response. status 0 means the request never completed.
func (s *Stats) Record(status int, d time.Duration) {
	if status == 200 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responseTimes = append(s.responseTimes, d)
	s.byStatus[status]++
}

type Summary struct {
	Total, Success, Failed int64
	RPS                    float64
	Avg, P50, P95, P99     time.Duration
	Min, Max               time.Duration
	ByStatus               map[int]int64
}

func (s *Stats) Summarize(elapsed time.Duration) Summary {
	s.mu.Lock()
	times := append([]time.Duration(nil), s.responseTimes...)
	byStatus := make(map[int]int64, len(s.byStatus))
	for k, v := range s.byStatus {
		byStatus[k] = v
	}
	s.mu.Unlock()

	sum := Summary{
		Success:  s.successCount.Load(),
		Failed:   s.errorCount.Load(),
		ByStatus: byStatus,
	}
	sum.Total = sum.Success + sum.Failed
	if elapsed > 0 {
		sum.RPS = float64(sum.Total) / elapsed.Seconds()
	}
	if len(times) == 0 {
		return sum
	}

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	var total time.Duration
	for _, t := range times {
		total += t
	}
	sum.Avg = total / time.Duration(len(times))
	sum.Min = times[0]
	sum.Max = times[len(times)-1]
	sum.P50 = percentile(times, 0.50)
	sum.P95 = percentile(times, 0.95)
	sum.P99 = percentile(times, 0.99)
	return sum
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)) * p)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

func (s Summary) Print(w io.Writer, elapsed time.Duration) {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 50))
	fmt.Fprintln(w, "LOAD TEST RESULTS")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Duration: %.2f seconds\n", elapsed.Seconds())
	fmt.Fprintf(w, "Total requests: %d\n", s.Total)
	fmt.Fprintf(w, "Successful: %d\n", s.Success)
	fmt.Fprintf(w, "Failed: %d\n", s.Failed)
	if s.Total > 0 {
		fmt.Fprintf(w, "Success rate: %.2f%%\n", float64(s.Success)/float64(s.Total)*100)
	}

	codes := make([]int, 0, len(s.ByStatus))
	for c := range s.ByStatus {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	fmt.Fprintln(w, "\nBy status:")
	for _, c := range codes {
		fmt.Fprintf(w, "  %d: %d\n", c, s.ByStatus[c])
	}

	fmt.Fprintf(w, "\nActual RPS: %.2f\n", s.RPS)
	fmt.Fprintf(w, "\nResponse times:\n")
	fmt.Fprintf(w, "  Average: %.2f ms\n", ms(s.Avg))
	fmt.Fprintf(w, "  P50: %.2f ms\n", ms(s.P50))
	fmt.Fprintf(w, "  P95: %.2f ms\n", ms(s.P95))
	fmt.Fprintf(w, "  P99: %.2f ms\n", ms(s.P99))
	fmt.Fprintf(w, "  Min: %.2f ms\n", ms(s.Min))
	fmt.Fprintf(w, "  Max: %.2f ms\n", ms(s.Max))
}
