package main

import (
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimasrn/gpu-savings-gateway/internal/notifier"
	"github.com/rs/zerolog/log"
)

// Sink is a development webhook receiver that keeps the most recent payloads
// in memory and can be told to fail a share of deliveries.
type Sink struct {
	mu          sync.RWMutex
	received    []notifier.AlertPayload
	capacity    int
	failureRate float64
	rng         *rand.Rand
	total       int64
}

func NewSink(capacity int, failureRate float64) *Sink {
	if capacity <= 0 {
		capacity = 100
	}
	return &Sink{
		capacity:    capacity,
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Sink) shouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failureRate > 0 && s.rng.Float64() < s.failureRate
}

func (s *Sink) store(p notifier.AlertPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if len(s.received) >= s.capacity {
		s.received = s.received[1:]
	}
	s.received = append(s.received, p)
}

// Receive handles one webhook delivery.
func (s *Sink) Receive(c *gin.Context) {
	var p notifier.AlertPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid payload",
			"details": err.Error(),
		})
		return
	}
	if p.EventID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id is required"})
		return
	}

	if s.shouldFail() {
		log.Warn().Str("event_id", p.EventID).Msg("Simulated webhook failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "simulated failure"})
		return
	}

	s.store(p)
	log.Info().
		Str("event_id", p.EventID).
		Int64("customer_id", p.CustomerID).
		Str("tier", string(p.Tier)).
		Int("alerts", len(p.Alerts)).
		Float64("potential_savings", p.TotalPotentialSavings).
		Msg("Idle alert received")

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "event_id": p.EventID})
}

// List returns the retained payloads, newest last.
func (s *Sink) List(c *gin.Context) {
	s.mu.RLock()
	items := make([]notifier.AlertPayload, len(s.received))
	copy(items, s.received)
	total := s.total
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{"items": items, "total_received": total})
}

func (s *Sink) HealthCheck(c *gin.Context) {
	s.mu.RLock()
	rate := s.failureRate
	s.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"timestamp":    time.Now(),
		"failure_rate": rate,
	})
}

// UpdateConfig changes the simulated failure rate at runtime.
func (s *Sink) UpdateConfig(c *gin.Context) {
	var config struct {
		FailureRate *float64 `json:"failure_rate"`
	}
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if config.FailureRate == nil || *config.FailureRate < 0 || *config.FailureRate > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failure_rate must be between 0 and 1"})
		return
	}

	s.mu.Lock()
	s.failureRate = *config.FailureRate
	s.mu.Unlock()
	log.Info().Float64("rate", *config.FailureRate).Msg("Updated failure rate")

	c.JSON(http.StatusOK, gin.H{"failure_rate": *config.FailureRate})
}

func SetupRouter(sink *Sink) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	router.POST("/hook", sink.Receive)
	router.GET("/alerts", sink.List)
	router.GET("/health", sink.HealthCheck)
	router.PUT("/config", sink.UpdateConfig)
	return router
}
