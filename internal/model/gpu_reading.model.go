package model

import "time"

type Classification string

const (
	ClassificationIdle   Classification = "idle"
	ClassificationActive Classification = "active"
)

// GPUReading is one persisted observation of one GPU. Rows are append-only.
type GPUReading struct {
	ID               int64          `json:"id"`
	CustomerID       int64          `json:"customer_id"`
	GPUIndex         int            `json:"gpu_index"`
	GPUName          string         `json:"gpu_name"`
	GPUUtil          float64        `json:"gpu_util"`
	MemUsed          float64        `json:"mem_used"`
	MemTotal         float64        `json:"mem_total"`
	Temperature      *float64       `json:"temperature,omitempty"`
	CostPerHour      float64        `json:"cost_per_hour"`
	PotentialSavings float64        `json:"potential_savings"`
	Classification   Classification `json:"classification"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (GPUReading) TableName() string { return "gpu_usage_logs" }

// UsageSummary is the result of one ingestion call.
type UsageSummary struct {
	Status                 string  `json:"status"`
	GPUsMonitored          int     `json:"gpus_monitored"`
	PotentialHourlySavings float64 `json:"potential_hourly_savings"`
	MonthlyProjection      float64 `json:"monthly_projection"`
	Tier                   Tier    `json:"tier"`
}

// UsageFilter controls reading list queries.
type UsageFilter struct {
	CustomerID     int64
	Classification *Classification
	From           *time.Time
	To             *time.Time
	Limit          int // default 50
	Offset         int
	Desc           bool // order by created_at
}
