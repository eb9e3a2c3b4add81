package services

import (
	"context"
	"time"
)

const healthTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthReport struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
	Time     string `json:"timestamp"`
}

type HealthService struct {
	db    Pinger
	cache Pinger
}

// NewHealthService checks db and, when not nil, cache.
func NewHealthService(db Pinger, cache Pinger) *HealthService {
	return &HealthService{db: db, cache: cache}
}

// Check reports "healthy" only when every dependency answers.
func (s *HealthService) Check(ctx context.Context) *HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	r := &HealthReport{Status: "healthy", Database: "connected", Time: time.Now().UTC().Format(time.RFC3339)}
	if err := s.db.Ping(ctx); err != nil {
		r.Status = "unhealthy"
		r.Database = "error: " + err.Error()
	}
	if s.cache != nil {
		r.Cache = "connected"
		if err := s.cache.Ping(ctx); err != nil {
			r.Status = "unhealthy"
			r.Cache = "error: " + err.Error()
		}
	}
	return r
}

func (r *HealthReport) Healthy() bool { return r.Status == "healthy" }
